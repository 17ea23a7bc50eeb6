package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/luckin/internal/db"
	"github.com/jonathan/luckin/internal/harvest"
	"github.com/jonathan/luckin/internal/observability"
	"github.com/jonathan/luckin/internal/ratelimit"
)

var (
	harvestBackend  string
	harvestParallel int
	harvestMaxPages int
	harvestJSON     bool
	harvestBetween  time.Duration
)

var harvestCmd = &cobra.Command{
	Use:   "harvest [source...]",
	Short: "Scrape job postings from the configured sources",
	Long:  "Harvest pages through each named source (all sources when none are named) and stores the postings it finds. Already stored URLs are counted as duplicates.",
	RunE:  runHarvest,
}

func init() {
	harvestCmd.Flags().StringVar(&harvestBackend, "backend", "", "Page backend: chrome or http (default from config)")
	harvestCmd.Flags().IntVar(&harvestParallel, "parallel", 0, "Sources harvested at once (default from config)")
	harvestCmd.Flags().IntVar(&harvestMaxPages, "max-pages", 0, "Override every source's page limit")
	harvestCmd.Flags().DurationVar(&harvestBetween, "between", 0, "Pause before starting each source after the first")
	harvestCmd.Flags().BoolVar(&harvestJSON, "json", false, "Print reports as JSON")

	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	sources, err := cfg.Sources(args...)
	if err != nil {
		return err
	}

	database, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	backend := cfg.Harvest.Backend
	if harvestBackend != "" {
		backend = harvestBackend
	}
	parallel := cfg.Harvest.Parallel
	if harvestParallel > 0 {
		parallel = harvestParallel
	}

	var opts []harvest.RunOption
	if harvestBetween > 0 {
		opts = append(opts, harvest.Between(ratelimit.NewInterval(harvestBetween)))
	}

	reports, runErr := harvestSources(ctx, sources, harvesterFactory(database, backend, harvestMaxPages), parallel, opts...)
	if err := writeReports(cmd.OutOrStdout(), reports, harvestJSON); err != nil {
		return err
	}
	return runErr
}

// harvestSources runs every source once and logs a summary line.
func harvestSources(ctx context.Context, sources []harvest.Source, factory harvest.Factory, parallel int, opts ...harvest.RunOption) ([]*harvest.Report, error) {
	reports, err := harvest.RunAll(ctx, sources, factory, parallel, opts...)

	total := totalSaved(reports)
	log.Info().
		Int("sources", len(sources)).
		Int("inserted", total.Inserted).
		Int("duplicates", total.Duplicates).
		Int("errors", total.Errors).
		Err(err).
		Msg("harvest cycle complete")
	return reports, err
}

// totalSaved sums the store counts of every report that ran.
func totalSaved(reports []*harvest.Report) db.InsertResult {
	var total db.InsertResult
	for _, r := range reports {
		if r != nil {
			total.Add(r.Saved)
		}
	}
	return total
}

func writeReports(out io.Writer, reports []*harvest.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("failed to encode reports: %w", err)
		}
		return nil
	}

	printer := observability.NewPrinter(out)
	for _, r := range reports {
		if r != nil {
			printer.PrintHarvestReport(r)
		}
	}
	return nil
}

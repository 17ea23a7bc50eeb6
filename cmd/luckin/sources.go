package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathan/luckin/internal/harvest"
	"github.com/jonathan/luckin/internal/observability"
)

var (
	sourcesJSON   bool
	sourcesCounts bool
)

var sourcesCmd = &cobra.Command{
	Use:   "sources [source...]",
	Short: "List the configured job sources",
	RunE:  runSources,
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "Print source definitions as JSON")
	sourcesCmd.Flags().BoolVar(&sourcesCounts, "counts", false, "Include the number of stored postings per source")

	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	sources, err := cfg.Sources(args...)
	if err != nil {
		return err
	}
	for i := range sources {
		sources[i] = sources[i].WithDefaults()
	}
	if err := writeSources(cmd.OutOrStdout(), sources, sourcesJSON); err != nil {
		return err
	}
	if !sourcesCounts {
		return nil
	}

	ctx, stop := signalContext()
	defer stop()
	database, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	return writeCounts(ctx, cmd.OutOrStdout(), sources, database)
}

func writeSources(out io.Writer, sources []harvest.Source, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sources); err != nil {
			return fmt.Errorf("failed to encode sources: %w", err)
		}
		return nil
	}
	observability.NewPrinter(out).PrintSources(sources)
	return nil
}

type postingCounter interface {
	CountPostings(ctx context.Context, source string) (int, error)
}

func writeCounts(ctx context.Context, out io.Writer, sources []harvest.Source, store postingCounter) error {
	for _, src := range sources {
		// Postings are stamped with the source label.
		n, err := store.CountPostings(ctx, src.Label)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "%-20s %d stored\n", src.Name, n)
	}
	return nil
}

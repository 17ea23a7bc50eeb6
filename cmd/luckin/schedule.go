package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonathan/luckin/internal/schedule"
)

var (
	scheduleSpec   string
	scheduleRunNow bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule [source...]",
	Short: "Harvest on a cron schedule until interrupted",
	Long:  "Schedule keeps running and harvests the sources on every tick. A tick that arrives while the previous harvest is still running is skipped.",
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleSpec, "cron", "", "Cron spec or @every interval (default from config)")
	scheduleCmd.Flags().BoolVar(&scheduleRunNow, "run-now", false, "Harvest once immediately on start")
	scheduleCmd.Flags().StringVar(&harvestBackend, "backend", "", "Page backend: chrome or http (default from config)")
	scheduleCmd.Flags().IntVar(&harvestParallel, "parallel", 0, "Sources harvested at once (default from config)")

	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(_ *cobra.Command, args []string) error {
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
	if err := database.Migrate(ctx); err != nil {
		return err
	}

	backend := cfg.Harvest.Backend
	if harvestBackend != "" {
		backend = harvestBackend
	}
	parallel := cfg.Harvest.Parallel
	if harvestParallel > 0 {
		parallel = harvestParallel
	}
	spec := cfg.Harvest.Schedule
	if scheduleSpec != "" {
		spec = scheduleSpec
	}

	factory := harvesterFactory(database, backend, 0)
	job := func(ctx context.Context) {
		// Per-source failures are in the reports and already logged.
		_, _ = harvestSources(ctx, sources, factory, parallel)
	}

	opts := []schedule.Option{schedule.WithLogger(log)}
	if scheduleRunNow {
		opts = append(opts, schedule.WithRunOnStart())
	}
	sched, err := schedule.New(spec, job, opts...)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	log.Info().Time("next", sched.Next()).Int("sources", len(sources)).Msg("waiting for next harvest")

	<-ctx.Done()
	sched.Stop()
	return nil
}

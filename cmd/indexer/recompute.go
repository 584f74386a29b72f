package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rumor-tracing/ledger-indexer/internal/analytics"
	"github.com/rumor-tracing/ledger-indexer/internal/export"
	"github.com/rumor-tracing/ledger-indexer/internal/repository"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute analytics from the database and export a report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := slog.Default()

		store, err := repository.NewPostgresStore(ctx, cfg.Database.ConnString(), repository.PoolConfig{
			MinConns: cfg.Database.MinConns,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer store.Close()

		sink, err := export.NewSink(cfg.Analytics.OutputDir, log)
		if err != nil {
			return err
		}

		report, err := analytics.NewEngine(store, log).Recompute(ctx)
		if err != nil {
			return err
		}
		if err := sink.Write(report); err != nil {
			return err
		}

		log.Info("report written",
			"report_id", report.ID,
			"total_events", report.Summary.TotalEvents,
			"dir", cfg.Analytics.OutputDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recomputeCmd)
}

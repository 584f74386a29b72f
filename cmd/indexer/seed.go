package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/rumor-tracing/ledger-indexer/internal/repository"
	"github.com/rumor-tracing/ledger-indexer/internal/seeder"
)

var (
	seedCount    int
	seedVerified float64
	seedSpread   time.Duration
	seedValue    int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with fake rumor activity",
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

		s := seeder.New(store, seedValue)
		if err := s.Run(ctx, seeder.Options{
			Rumors:        seedCount,
			VerifiedRatio: seedVerified,
			TimeSpread:    seedSpread,
		}); err != nil {
			return err
		}

		log.Info("seed complete", "rumors", seedCount)
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 100, "number of rumors to create")
	seedCmd.Flags().Float64Var(&seedVerified, "verified-ratio", 0.6, "fraction of rumors to verify")
	seedCmd.Flags().DurationVar(&seedSpread, "time-spread", 24*time.Hour, "window to spread creation times over")
	seedCmd.Flags().Int64Var(&seedValue, "seed", time.Now().UnixNano(), "random seed")
	rootCmd.AddCommand(seedCmd)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rumor-tracing/ledger-indexer/internal/analytics"
	"github.com/rumor-tracing/ledger-indexer/internal/chain"
	"github.com/rumor-tracing/ledger-indexer/internal/config"
	"github.com/rumor-tracing/ledger-indexer/internal/dispatcher"
	"github.com/rumor-tracing/ledger-indexer/internal/export"
	"github.com/rumor-tracing/ledger-indexer/internal/notify"
	"github.com/rumor-tracing/ledger-indexer/internal/repository"
	"github.com/rumor-tracing/ledger-indexer/internal/server"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the indexer loop and the metrics endpoint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIndexer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runIndexer(parent context.Context) error {
	log := slog.Default()
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(cfg.Database.ConnString()); err != nil {
		return err
	}

	store, err := repository.NewPostgresStore(ctx, cfg.Database.ConnString(), repository.PoolConfig{
		MinConns: cfg.Database.MinConns,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer store.Close()

	var checkpoints chain.CheckpointStore
	if cfg.Chain.Resume == config.ResumeCheckpoint {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		checkpoints = chain.NewRedisCheckpoints(rdb, "ledger-indexer")
	}

	client := chain.NewRPCClient(cfg.Chain.RPCURL, cfg.Chain.ContractAddress)
	source := chain.NewSource(client, checkpoints, log)
	fetcher := chain.NewFetcher(client, chain.FetcherConfig{
		RatePerSecond: cfg.Chain.LookupRate,
		Burst:         cfg.Chain.LookupBurst,
		CacheTTL:      cfg.Chain.CacheTTL,
	})

	sink, err := export.NewSink(cfg.Analytics.OutputDir, log)
	if err != nil {
		return err
	}

	var publisher notify.Publisher = notify.NoopPublisher{}
	if cfg.NATS.Enabled {
		p, err := notify.NewNATSPublisher(notify.Config{
			URL:           cfg.NATS.URL,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		publisher = p
	}
	defer publisher.Close()

	engine := analytics.NewEngine(store, log)
	d := dispatcher.New(source, fetcher, store, engine, sink, publisher, dispatcher.Config{
		PollInterval: cfg.Chain.PollInterval,
		ErrorBackoff: cfg.Chain.ErrorBackoff,
	}, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	go func() {
		log.Info("metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", "error", err)
		}
	}()

	d.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var migrationsPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runMigrations(cfg.Database.ConnString())
	},
}

func init() {
	// run also applies migrations at startup, so the flag lives on root.
	rootCmd.PersistentFlags().StringVar(&migrationsPath, "migrations", "file://migrations", "migrations source URL")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrations(connString string) error {
	m, err := migrate.New(migrationsPath, connString)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	slog.Default().Info("database migrations applied")
	return nil
}

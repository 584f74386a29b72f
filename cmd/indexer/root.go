package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rumor-tracing/ledger-indexer/internal/config"
	"github.com/rumor-tracing/ledger-indexer/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Rumor tracing ledger indexer",
	Long: `indexer follows the rumor-tracing contract on the ledger, persists
rumors and verifications into PostgreSQL, and exports per-cycle
analytics reports.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logging.SetDefault(logging.New(
			logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format))
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $INDEXER_CONFIG_DIR/config.yaml)")
}

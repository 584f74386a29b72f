package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configInitOut string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE: func(_ *cobra.Command, _ []string) error {
		defaults := map[string]any{
			"chain": map[string]any{
				"rpc_url":          "http://localhost:8545",
				"contract_address": "",
				"poll_interval":    "1s",
				"error_backoff":    "5s",
				"resume":           "latest",
				"lookup_rate":      10.0,
				"lookup_burst":     5,
				"cache_ttl":        "10m",
			},
			"database": map[string]any{
				"host":      "localhost",
				"port":      5432,
				"database":  "rumor_tracing",
				"user":      "rumor_tracing",
				"password":  "",
				"sslmode":   "disable",
				"min_conns": 1,
				"max_conns": 10,
			},
			"redis": map[string]any{
				"enabled": false,
				"url":     "redis://localhost:6379/0",
			},
			"nats": map[string]any{
				"enabled":        false,
				"url":            "nats://localhost:4222",
				"max_reconnects": -1,
				"reconnect_wait": "2s",
			},
			"analytics": map[string]any{
				"output_dir": "./reports",
			},
			"server": map[string]any{
				"port": 8090,
			},
			"logging": map[string]any{
				"level":  "info",
				"format": "json",
			},
		}

		data, err := yaml.Marshal(defaults)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(configInitOut), 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err := os.WriteFile(configInitOut, data, 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		fmt.Printf("Wrote %s\n", configInitOut)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitOut, "out", "config.yaml", "output path")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// Package config provides configuration management for the ledger indexer.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the indexer process.
type Config struct {
	Chain     ChainConfig     `mapstructure:"chain"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ChainConfig holds ledger connection and polling settings.
type ChainConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	ContractAddress string        `mapstructure:"contract_address"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	ErrorBackoff    time.Duration `mapstructure:"error_backoff"`

	// Resume controls where polling starts after a restart:
	// "latest" drops events emitted while the process was down,
	// "checkpoint" resumes from the last committed cursor in Redis.
	Resume string `mapstructure:"resume"`

	// Point-lookup throttling against the RPC node.
	LookupRate  float64       `mapstructure:"lookup_rate"`
	LookupBurst int           `mapstructure:"lookup_burst"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// ResumeLatest and ResumeCheckpoint are the accepted chain.resume values.
const (
	ResumeLatest     = "latest"
	ResumeCheckpoint = "checkpoint"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	MinConns int32  `mapstructure:"min_conns"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ConnString builds a pgx-compatible connection URL.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// RedisConfig holds Redis settings for the cursor checkpoint store.
type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// NATSConfig holds NATS settings for downstream notifications.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Enabled       bool          `mapstructure:"enabled"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// AnalyticsConfig holds report export settings.
type AnalyticsConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// ServerConfig holds the health/metrics HTTP endpoint settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks settings the process cannot run without.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}
	if c.Chain.Resume != ResumeLatest && c.Chain.Resume != ResumeCheckpoint {
		return fmt.Errorf("chain.resume must be %q or %q, got %q",
			ResumeLatest, ResumeCheckpoint, c.Chain.Resume)
	}
	if c.Chain.Resume == ResumeCheckpoint && !c.Redis.Enabled {
		return fmt.Errorf("chain.resume=checkpoint requires redis.enabled=true")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds max_conns (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}

// Load reads configuration from the given file (optional), the
// INDEXER_CONFIG_DIR directory, and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		configDir := os.Getenv("INDEXER_CONFIG_DIR")
		if configDir == "" {
			configDir = "/etc/ledger-indexer"
		}
		path = fmt.Sprintf("%s/config.yaml", configDir)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("INDEXER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain.rpc_url", "http://localhost:8545")
	v.SetDefault("chain.contract_address", "")
	v.SetDefault("chain.poll_interval", "1s")
	v.SetDefault("chain.error_backoff", "5s")
	v.SetDefault("chain.resume", ResumeLatest)
	v.SetDefault("chain.lookup_rate", 10.0)
	v.SetDefault("chain.lookup_burst", 5)
	v.SetDefault("chain.cache_ttl", "10m")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "rumor_tracing")
	v.SetDefault("database.user", "rumor_tracing")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("analytics.output_dir", "./reports")

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

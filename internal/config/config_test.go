package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8545", cfg.Chain.RPCURL)
	assert.Equal(t, time.Second, cfg.Chain.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Chain.ErrorBackoff)
	assert.Equal(t, ResumeLatest, cfg.Chain.Resume)
	assert.Equal(t, 10.0, cfg.Chain.LookupRate)
	assert.Equal(t, 10*time.Minute, cfg.Chain.CacheTTL)

	assert.Equal(t, "rumor_tracing", cfg.Database.Database)
	assert.Equal(t, int32(1), cfg.Database.MinConns)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)

	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
chain:
  rpc_url: http://node:8545
  contract_address: "0xabc"
  poll_interval: 2s
  resume: checkpoint
redis:
  enabled: true
  url: redis://cache:6379/1
database:
  host: db
  password: secret
analytics:
  output_dir: /var/lib/indexer/reports
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://node:8545", cfg.Chain.RPCURL)
	assert.Equal(t, "0xabc", cfg.Chain.ContractAddress)
	assert.Equal(t, 2*time.Second, cfg.Chain.PollInterval)
	assert.Equal(t, ResumeCheckpoint, cfg.Chain.Resume)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "/var/lib/indexer/reports", cfg.Analytics.OutputDir)

	// Defaults still fill unset fields.
	assert.Equal(t, 5*time.Second, cfg.Chain.ErrorBackoff)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestConnString(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5432, Database: "rumor_tracing",
		User: "indexer", Password: "pw", SSLMode: "disable",
	}
	assert.Equal(t,
		"postgres://indexer:pw@db:5432/rumor_tracing?sslmode=disable",
		d.ConnString())
}

func TestValidateResume(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chain:\n  resume: sometimes\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain.resume")
}

func TestValidateCheckpointRequiresRedis(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chain:\n  resume: checkpoint\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.enabled")
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("INDEXER_CHAIN_RPC_URL", "http://env-node:8545")
	t.Setenv("INDEXER_LOGGING_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://env-node:8545", cfg.Chain.RPCURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

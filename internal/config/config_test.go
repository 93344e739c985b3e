package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "store-001", cfg.StoreID)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "pos-sync.db", cfg.Database.DSN)

	assert.Equal(t, 30*time.Second, cfg.Central.Timeout)
	assert.Equal(t, 3, cfg.Central.MaxHTTPRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Central.BackoffBase)
	assert.Equal(t, 5, cfg.Central.Breaker.FailThreshold)
	assert.Equal(t, 30*time.Second, cfg.Central.Breaker.OpenFor)

	assert.Equal(t, 10*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 3, cfg.Sync.MaxRetryAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Sync.RetryDelay)

	assert.Equal(t, 24*time.Hour, cfg.Cleanup.Interval)
	assert.Equal(t, 30, cfg.Cleanup.RetentionDays)

	assert.True(t, cfg.Health.Enabled)
	assert.Equal(t, 500, cfg.Health.PendingThreshold)
	assert.Equal(t, 100, cfg.Health.FailuresThreshold)

	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "pos.synced", cfg.Kafka.Topic)
	assert.Equal(t, ":8090", cfg.HTTP.Addr)
}

func TestLoadMergesUserFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_id: "store-042"
sync:
  batch_size: 10
central:
  endpoint: "https://central.example.com/api/inventory/sync"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "store-042", cfg.StoreID)
	assert.Equal(t, 10, cfg.Sync.BatchSize)
	assert.Equal(t, "https://central.example.com/api/inventory/sync", cfg.Central.Endpoint)

	// Untouched settings keep their defaults.
	assert.Equal(t, 3, cfg.Sync.MaxRetryAttempts)
	assert.Equal(t, 10*time.Second, cfg.Sync.Interval)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("POSSYNC_STORE_ID", "store-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "store-env", cfg.StoreID)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "store-001", cfg.StoreID)
}

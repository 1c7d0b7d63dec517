package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
http:
  port: "9090"
storage:
  backend: memory
locking:
  backend: redis
  acquireTimeout: 750ms
jwt:
  secret: from-file
reservations:
  nearTermHorizon: 48h
seed:
  chargers:
    - id: 0b9d7f2e-55a5-4d8e-9b49-2f3c6b3c1a10
      stationId: 7f0c1d8e-3a4b-4c5d-8e9f-0a1b2c3d4e5f
      connectorType: CCS2
      price: 0.39
      chargingSpeed: 150
`

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chargers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHARGERS_JWT_SECRET", "from-env")
	t.Setenv("CHARGERS_LOCK_MAX_RETRIES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddress())
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, LockRedis, cfg.Locking.Backend)
	assert.Equal(t, 750*time.Millisecond, cfg.Locking.AcquireTimeout)
	assert.Equal(t, 5, cfg.Locking.MaxRetries)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 48*time.Hour, cfg.Reservations.NearTermHorizon)
	assert.Equal(t, 30*time.Second, cfg.Reservations.ListCacheTTL)
	require.Len(t, cfg.Seed.Chargers, 1)
	assert.Equal(t, "CCS2", cfg.Seed.Chargers[0].ConnectorType)
	assert.True(t, cfg.RedisEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"postgres needs dsn", func(c *Config) {}, "database dsn required"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "sqlite" }, "unknown storage backend"},
		{"unknown locker", func(c *Config) { c.Storage.Backend = BackendMemory; c.Locking.Backend = "zk" }, "unknown locking backend"},
		{"redis locking needs addr", func(c *Config) {
			c.Storage.Backend = BackendMemory
			c.Locking.Backend = LockRedis
			c.Redis.Addr = ""
		}, "redis addr required"},
		{"jwt secret", func(c *Config) { c.Database.DSN = "postgres://x"; c.JWT.Secret = "" }, "jwt secret required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.JWT.Secret = "s"
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	cfg := Default()
	cfg.Database.DSN = "postgres://x"
	cfg.JWT.Secret = "s"
	assert.NoError(t, cfg.Validate())
}

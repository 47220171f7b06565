package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8085", cfg.Server.Addr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "data/levelscout.db", cfg.Database.SQLitePath)
	assert.Equal(t, 15, cfg.Runner.Lookback)
	assert.Equal(t, 4, cfg.Runner.IngestWorkers)
	assert.Equal(t, "0 */15 * * * *", cfg.Schedule.TriggerCron)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
redis:
  addr: "redis:6379"
  db: 2
database:
  postgres_dsn: "postgres://localhost/levelscout?sslmode=disable"
runner:
  lookback: 20
schedule:
  trigger_cron: "0 */5 * * * *"
  pairs:
    - market: "GBP/USD"
      granularity: "15Min"
    - market: "EUR/USD"
      granularity: "1H"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "postgres://localhost/levelscout?sslmode=disable", cfg.Database.PostgresDSN)
	// Postgres configured, so no SQLite fallback path is defaulted.
	assert.Empty(t, cfg.Database.SQLitePath)
	assert.Equal(t, 20, cfg.Runner.Lookback)
	require.Len(t, cfg.Schedule.Pairs, 2)
	assert.Equal(t, Pair{Market: "GBP/USD", Granularity: "15Min"}, cfg.Schedule.Pairs[0])
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
redis:
  addr: "from-file:6379"
runner:
  lookback: 10
`)
	t.Setenv("REDIS_ADDR", "from-env:6379")
	t.Setenv("LOOKBACK", "25")
	t.Setenv("SQLITE_PATH", "/var/lib/levelscout/test.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env:6379", cfg.Redis.Addr)
	assert.Equal(t, 25, cfg.Runner.Lookback)
	assert.Equal(t, "/var/lib/levelscout/test.db", cfg.Database.SQLitePath)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "redis: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(*Config) {},
		},
		{
			name:    "missing redis addr",
			mutate:  func(c *Config) { c.Redis.Addr = "" },
			wantErr: "redis.addr",
		},
		{
			name:    "non-positive lookback",
			mutate:  func(c *Config) { c.Runner.Lookback = -1 },
			wantErr: "lookback",
		},
		{
			name: "pair without market",
			mutate: func(c *Config) {
				c.Schedule.Pairs = []Pair{{Granularity: "15Min"}}
			},
			wantErr: "market is required",
		},
		{
			name: "pair with unknown granularity",
			mutate: func(c *Config) {
				c.Schedule.Pairs = []Pair{{Market: "GBP/USD", Granularity: "13Min"}}
			},
			wantErr: "granularity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

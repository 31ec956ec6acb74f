package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	result := cfg.Validate()
	assert.False(t, result.HasErrors(), result.Error())

	assert.Equal(t, 0.80, cfg.Identity.AutoMediumThreshold)
	assert.Equal(t, 0.90, cfg.Identity.AutoHighThreshold)
	assert.Equal(t, 365*24*time.Hour, cfg.Recommender.Lookback())
	assert.Equal(t, 90*24*time.Hour, cfg.Recommender.WorkloadWindow())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  type: sqlite
  local_path: /tmp/rscout.db
  batch_size: 100
recommender:
  strategy: turnover
  top_n: 3
  weights:
    c1_turnover: 2.0
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/rscout.db", cfg.Storage.LocalPath)
	assert.Equal(t, 100, cfg.Storage.BatchSize)
	assert.Equal(t, "turnover", cfg.Recommender.Strategy)
	assert.Equal(t, 3, cfg.Recommender.TopN)
	assert.Equal(t, 2.0, cfg.Recommender.Weights.C1Turnover)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  type: sqlite\n"), 0644))

	t.Setenv("REVIEWSCOUT_DB_PATH", "/data/env.db")
	t.Setenv("POSTGRES_PORT_EXTERNAL", "6543")
	t.Setenv("REDIS_ADDR", "cache:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/env.db", cfg.Storage.LocalPath)
	assert.Equal(t, 6543, cfg.Storage.PostgresPort)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisAddr)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"high below medium", func(c *Config) { c.Identity.AutoHighThreshold = 0.7 }, true},
		{"threshold above one", func(c *Config) { c.Identity.AutoMediumThreshold = 1.2 }, true},
		{"zero batch size", func(c *Config) { c.Storage.BatchSize = 0 }, true},
		{"unknown strategy", func(c *Config) { c.Recommender.Strategy = "random" }, true},
		{"negative weight", func(c *Config) { c.Recommender.Weights.C2Retention = -1 }, true},
		{"unknown storage", func(c *Config) { c.Storage.Type = "mongo" }, true},
		{"postgres without host", func(c *Config) { c.Storage.Type = "postgres"; c.Storage.PostgresDB = "rs" }, true},
		{"redis without addr", func(c *Config) { c.Cache.Type = "redis" }, true},
		{"graph enabled without uri", func(c *Config) { c.Graph.Enabled = true; c.Graph.URI = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			result := cfg.Validate()
			assert.Equal(t, tt.wantErr, result.HasErrors(), result.Error())
		})
	}
}

func TestPostgresDSN_UsesKeychain(t *testing.T) {
	keyring.MockInit()

	km := NewKeyringManager()
	require.NoError(t, km.SavePostgresPassword("s3cret"))
	t.Cleanup(func() { km.DeletePostgresPassword() })

	cfg := Default()
	cfg.Storage.Type = "postgres"
	cfg.Storage.PostgresHost = "db"
	cfg.Storage.PostgresDB = "reviews"
	cfg.Storage.PostgresUser = "scout"
	cfg.Storage.UseKeychain = true

	dsn, err := cfg.PostgresDSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://scout:s3cret@db:5432/reviews?sslmode=disable", dsn)

	cfg.Storage.PostgresPassword = "explicit"
	dsn, err = cfg.PostgresDSN()
	require.NoError(t, err)
	assert.Contains(t, dsn, "scout:explicit@")
}

func TestKeyringManager_MissingPassword(t *testing.T) {
	keyring.MockInit()

	km := NewKeyringManager()
	password, err := km.GetPostgresPassword()
	require.NoError(t, err)
	assert.Empty(t, password)

	assert.Error(t, km.SavePostgresPassword(""))
	assert.NoError(t, km.DeletePostgresPassword())
}

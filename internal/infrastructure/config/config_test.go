package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "stockflow", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8090", cfg.App.Port)
		assert.Equal(t, "http://localhost:8080/api/v1", cfg.Backend.BaseURL)
		assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
		assert.Equal(t, 2, cfg.Backend.MaxRetries)
		assert.Equal(t, 4, cfg.Backend.AvailabilityConcurrency)
		assert.Equal(t, DraftStoreMemory, cfg.Draft.Store)
		assert.Equal(t, 24*time.Hour, cfg.Draft.TTL)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, "/metrics", cfg.Metrics.Path)
	})

	t.Run("loads values from environment variables with STOCKFLOW prefix", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("STOCKFLOW_APP_PORT", "9100")
		t.Setenv("STOCKFLOW_BACKEND_BASE_URL", "https://erp.example.com/api")
		t.Setenv("STOCKFLOW_BACKEND_TIMEOUT", "5s")
		t.Setenv("STOCKFLOW_BACKEND_MAX_RETRIES", "0")
		t.Setenv("STOCKFLOW_BACKEND_RATE_LIMIT_QPS", "12.5")
		t.Setenv("STOCKFLOW_DRAFT_STORE", "REDIS")
		t.Setenv("STOCKFLOW_REDIS_PORT", "6380")
		t.Setenv("STOCKFLOW_METRICS_ENABLED", "false")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9100", cfg.App.Port)
		assert.Equal(t, "https://erp.example.com/api", cfg.Backend.BaseURL)
		assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
		assert.Equal(t, 0, cfg.Backend.MaxRetries)
		assert.Equal(t, 12.5, cfg.Backend.RateLimitQPS)
		assert.Equal(t, DraftStoreRedis, cfg.Draft.Store)
		assert.Equal(t, 6380, cfg.Redis.Port)
		assert.False(t, cfg.Metrics.Enabled)
	})

	t.Run("reads config.toml", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		content := `
[app]
name = "stockflow-test"

[backend]
base_url = "http://backend:8080/api/v1"
availability_concurrency = 8

[draft]
ttl = "2h"
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "stockflow-test", cfg.App.Name)
		assert.Equal(t, "http://backend:8080/api/v1", cfg.Backend.BaseURL)
		assert.Equal(t, 8, cfg.Backend.AvailabilityConcurrency)
		assert.Equal(t, 2*time.Hour, cfg.Draft.TTL)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"relative backend url", func(c *Config) { c.Backend.BaseURL = "/api" }, "backend.base_url"},
		{"unsupported scheme", func(c *Config) { c.Backend.BaseURL = "ftp://erp" }, "backend.base_url"},
		{"negative retries", func(c *Config) { c.Backend.MaxRetries = -1 }, "backend.max_retries"},
		{"negative qps", func(c *Config) { c.Backend.RateLimitQPS = -1 }, "backend.rate_limit_qps"},
		{"zero concurrency", func(c *Config) { c.Backend.AvailabilityConcurrency = 0 }, "availability_concurrency"},
		{"unknown store", func(c *Config) { c.Draft.Store = "postgres" }, "draft.store"},
		{"tiny ttl", func(c *Config) { c.Draft.TTL = time.Second }, "draft.ttl"},
		{"bad metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
		{"production needs https", func(c *Config) {
			c.App.Env = "production"
			c.Draft.Store = DraftStoreRedis
		}, "https"},
		{"production needs redis", func(c *Config) {
			c.App.Env = "production"
			c.Backend.BaseURL = "https://erp.example.com"
		}, "draft.store must be redis"},
		{"production rejects wildcard cors", func(c *Config) {
			c.App.Env = "production"
			c.Backend.BaseURL = "https://erp.example.com"
			c.Draft.Store = DraftStoreRedis
			c.HTTP.CORSAllowOrigins = []string{"*"}
		}, "cors_allow_origins"},
		{"production valid", func(c *Config) {
			c.App.Env = "production"
			c.Backend.BaseURL = "https://erp.example.com"
			c.Draft.Store = DraftStoreRedis
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromViper_InvalidConfig(t *testing.T) {
	v := viper.New()
	v.Set("draft.store", "disk")

	_, err := fromViper(v)
	assert.Error(t, err)
}

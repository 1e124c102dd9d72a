package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/places-scout/pkg/client"
	"github.com/Sternrassler/places-scout/pkg/logging"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, client.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 3, cfg.EnrichConcurrency)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GOOGLE_PLACES_API_KEY", "env-key")
	t.Setenv("PLACES_BASE_URL", "http://localhost:9999/v1")
	t.Setenv("REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("PORT", "9090")
	t.Setenv("PLACES_SCOUT_ENRICH_TIMEOUT", "5s")
	t.Setenv("PLACES_SCOUT_ENRICH_CONCURRENCY", "5")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "http://localhost:9999/v1", cfg.BaseURL)
	assert.Equal(t, "redis://localhost:6379/2", cfg.RedisURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.EnrichTimeout)
	assert.Equal(t, 5, cfg.EnrichConcurrency)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_key: file-key
port: 7070
cache_ttl: 1h
enrich_concurrency: 4
`), 0o600))

	t.Setenv("PORT", "6060")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, 6060, cfg.Port, "environment overrides the file")
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 4, cfg.EnrichConcurrency)
}

func TestLoad_DefaultFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigName+".yaml"), []byte("api_key: local-key\n"), 0o600))

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "local-key", cfg.APIKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() Config {
	return Config{
		APIKey:            "key",
		BaseURL:           client.DefaultBaseURL,
		Port:              8080,
		CacheTTL:          time.Minute,
		LogLevel:          "info",
		EnrichConcurrency: 3,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.APIKey = " " }, expectError: "api key is required"},
		{name: "bad base url", mutate: func(c *Config) { c.BaseURL = "nope" }, expectError: "invalid base_url"},
		{name: "bad port", mutate: func(c *Config) { c.Port = 0 }, expectError: "port must be"},
		{name: "zero concurrency", mutate: func(c *Config) { c.EnrichConcurrency = 0 }, expectError: "enrich_concurrency"},
		{name: "huge concurrency", mutate: func(c *Config) { c.EnrichConcurrency = 1000 }, expectError: "enrich_concurrency"},
		{name: "negative timeout", mutate: func(c *Config) { c.EnrichTimeout = -time.Second }, expectError: "enrich_timeout"},
		{name: "zero cache ttl", mutate: func(c *Config) { c.CacheTTL = 0 }, expectError: "cache_ttl"},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "trace" }, expectError: "unknown log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "warn"
	cfg.LogPretty = true
	cfg.RequestTimeout = 5 * time.Second
	cfg.EnrichConcurrency = 7
	cfg.EnrichTimeout = 2 * time.Second

	logCfg := cfg.Logging()
	assert.Equal(t, logging.LevelWarn, logCfg.Level)
	assert.True(t, logCfg.Pretty)

	clientCfg := cfg.Client()
	assert.Equal(t, "key", clientCfg.APIKey)
	assert.Equal(t, 5*time.Second, clientCfg.Timeout)
	assert.Equal(t, client.ContinuationPolicy(), clientCfg.ContinuationPolicy)

	opts := cfg.Pipeline()
	assert.Equal(t, 7, opts.Enrich.MaxConcurrency)
	assert.Equal(t, 2*time.Second, opts.Enrich.Timeout)
}

// Package config loads places-scout settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/places-scout/pkg/client"
	"github.com/Sternrassler/places-scout/pkg/enrich"
	"github.com/Sternrassler/places-scout/pkg/logging"
	"github.com/Sternrassler/places-scout/pkg/pipeline"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables of every key without an
// explicit binding, e.g. PLACES_SCOUT_CACHE_TTL.
const EnvPrefix = "PLACES_SCOUT"

// ConfigName is the file name (without extension) searched in the working
// directory when no config file is given.
const ConfigName = "places-scout"

// MaxEnrichConcurrency bounds the enrichment worker count.
const MaxEnrichConcurrency = 32

// Config is the resolved runtime configuration.
type Config struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	Port int `mapstructure:"port"`

	// RedisURL enables the detail cache when set.
	RedisURL string        `mapstructure:"redis_url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	EnrichConcurrency int           `mapstructure:"enrich_concurrency"`
	EnrichTimeout     time.Duration `mapstructure:"enrich_timeout"`
}

// envBindings maps keys to the environment variables that set them.
var envBindings = map[string][]string{
	"api_key":            {"GOOGLE_PLACES_API_KEY", EnvPrefix + "_API_KEY"},
	"base_url":           {"PLACES_BASE_URL", EnvPrefix + "_BASE_URL"},
	"redis_url":          {"REDIS_URL", EnvPrefix + "_REDIS_URL"},
	"log_level":          {"LOG_LEVEL", EnvPrefix + "_LOG_LEVEL"},
	"log_pretty":         {"LOG_PRETTY", EnvPrefix + "_LOG_PRETTY"},
	"port":               {"PORT", EnvPrefix + "_PORT"},
	"enrich_concurrency": {"ENRICH_CONCURRENCY", EnvPrefix + "_ENRICH_CONCURRENCY"},
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", client.DefaultBaseURL)
	v.SetDefault("user_agent", "places-scout/dev")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("port", 8080)
	v.SetDefault("redis_url", "")
	v.SetDefault("cache_ttl", 15*time.Minute)
	v.SetDefault("log_level", string(logging.LevelInfo))
	v.SetDefault("log_pretty", false)
	v.SetDefault("enrich_concurrency", enrich.DefaultConfig().MaxConcurrency)
	v.SetDefault("enrich_timeout", time.Duration(0))
}

// Load resolves the configuration on v. configFile may be empty, in which
// case ./places-scout.yaml is read if present.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.APIKey) == "" {
		errs = append(errs, errors.New("api key is required (GOOGLE_PLACES_API_KEY)"))
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid base_url %q", c.BaseURL))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.EnrichConcurrency < 1 || c.EnrichConcurrency > MaxEnrichConcurrency {
		errs = append(errs, fmt.Errorf("enrich_concurrency must be between 1 and %d, got %d", MaxEnrichConcurrency, c.EnrichConcurrency))
	}
	if c.EnrichTimeout < 0 {
		errs = append(errs, fmt.Errorf("enrich_timeout must not be negative, got %v", c.EnrichTimeout))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache_ttl must be positive, got %v", c.CacheTTL))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.LogPretty
	return cfg
}

// Client returns the Places client configuration without a cache.
func (c *Config) Client() client.Config {
	cfg := client.DefaultConfig(c.APIKey, c.UserAgent)
	cfg.BaseURL = c.BaseURL
	if c.RequestTimeout > 0 {
		cfg.Timeout = c.RequestTimeout
	}
	return cfg
}

// Pipeline returns the pipeline options.
func (c *Config) Pipeline() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Enrich.MaxConcurrency = c.EnrichConcurrency
	opts.Enrich.Timeout = c.EnrichTimeout
	return opts
}

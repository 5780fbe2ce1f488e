// Package config loads orchestrator configuration from file and
// environment via viper, and initializes the global zap logger.
//
// Grounded on the teacher's internal/config/config.go: same
// viper.New()+SetEnvPrefix/AutomaticEnv/SetDefault layout, the same
// Validate(mode)/InitLogger shape, and github.com/rotisserie/eris for
// wrapping load/validation errors.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

// Config holds the full orchestrator configuration.
type Config struct {
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	RateLimits RateLimitsConfig `yaml:"rate_limits" mapstructure:"rate_limits"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ProvidersConfig holds per-provider credentials and defaults.
type ProvidersConfig struct {
	GoogleAPIKey   string        `yaml:"google_api_key" mapstructure:"google_api_key"`
	HEREAPIKey     string        `yaml:"here_api_key" mapstructure:"here_api_key"`
	OSMEmail       string        `yaml:"osm_email" mapstructure:"osm_email"`
	CountryBias    string        `yaml:"country_bias" mapstructure:"country_bias"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	Order          []string      `yaml:"order" mapstructure:"order"`
}

// RateLimitsConfig holds per-provider requests-per-second ceilings.
// OSM is clamped to its policy floor by package ratelimit regardless of
// what is configured here (spec §4.4).
type RateLimitsConfig struct {
	HERE   float64 `yaml:"here" mapstructure:"here"`
	Google float64 `yaml:"google" mapstructure:"google"`
	OSM    float64 `yaml:"osm" mapstructure:"osm"`
}

// BatchConfig configures the Batch Scheduler.
type BatchConfig struct {
	Size        int `yaml:"size" mapstructure:"size"`
	WorkerCount int `yaml:"worker_count" mapstructure:"worker_count"`
}

// CacheConfig configures the per-job response cache.
type CacheConfig struct {
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
}

// ServerConfig configures the MCP tool server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks required configuration fields for mode. Supported
// modes: "run", "retry", "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "retry":
		if c.Providers.GoogleAPIKey == "" && c.Providers.HEREAPIKey == "" && c.Providers.OSMEmail == "" {
			errs = append(errs, "at least one of providers.google_api_key, providers.here_api_key, providers.osm_email is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.WorkerCount < 1 {
		errs = append(errs, "batch.worker_count must be >= 1")
	}
	if c.Batch.Size < 1 {
		errs = append(errs, "batch.size must be >= 1")
	}
	if c.RateLimits.OSM > 0 && c.RateLimits.OSM > 1.0 {
		// not an error: ratelimit.New replaces any configured OSM rate
		// with its 1 rps policy rate, so there is nothing to validate.
		_ = c.RateLimits.OSM
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: validation failed: %s", strings.Join(errs, "; ")))
	}
	return nil
}

// ProviderOrder resolves the configured provider preference order,
// falling back to model.DefaultProviderOrder when unset or when it
// names an unrecognized provider.
func (c *Config) ProviderOrder() []model.ProviderName {
	if len(c.Providers.Order) == 0 {
		return model.DefaultProviderOrder
	}
	order := make([]model.ProviderName, 0, len(c.Providers.Order))
	for _, name := range c.Providers.Order {
		switch model.ProviderName(name) {
		case model.ProviderHERE, model.ProviderGoogle, model.ProviderOSM:
			order = append(order, model.ProviderName(name))
		default:
			return model.DefaultProviderOrder
		}
	}
	return order
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("providers.request_timeout", 10*time.Second)
	v.SetDefault("providers.order", []string{"here", "google", "osm"})
	v.SetDefault("rate_limits.osm", 1.0)
	v.SetDefault("batch.size", 100)
	v.SetDefault("batch.worker_count", 8)
	v.SetDefault("cache.capacity", 100_000)
	v.SetDefault("server.port", 8090)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger from cfg.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

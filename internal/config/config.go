// Package config loads application configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Vision   VisionConfig   `mapstructure:"vision" validate:"required"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Alerts   AlertConfig    `mapstructure:"alerts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// DatabaseConfig holds Postgres settings.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig holds cooldown cache settings. Empty Addr disables the cache.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	CooldownTTL time.Duration `mapstructure:"cooldown_ttl" validate:"min=0"`
}

// VisionConfig holds extraction model settings.
type VisionConfig struct {
	Provider        string        `mapstructure:"provider" validate:"required,oneof=anthropic openai"`
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"min=0"`
	DefaultCurrency string        `mapstructure:"default_currency"`
}

// CrawlConfig holds capture and batch settings.
type CrawlConfig struct {
	ArtifactsDir   string        `mapstructure:"artifacts_dir"`
	UserAgent      string        `mapstructure:"user_agent"`
	ProductTimeout time.Duration `mapstructure:"product_timeout" validate:"min=0"`
	SearchTimeout  time.Duration `mapstructure:"search_timeout" validate:"min=0"`
	SettleDelay    time.Duration `mapstructure:"settle_delay" validate:"min=0"`
	Pacing         time.Duration `mapstructure:"pacing" validate:"min=0"`
	MaxSearch      int           `mapstructure:"max_search_results" validate:"min=0"`
	Interval       time.Duration `mapstructure:"interval" validate:"min=0"`
}

// AlertConfig holds price-alert settings.
type AlertConfig struct {
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// Load reads configuration: defaults, then an optional YAML file, then
// PRICEWATCH_* environment variables, and validates the result. path may
// be empty, in which case pricewatch.yaml is searched in the working
// directory.
func Load(path string) (Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("pricewatch")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The config file is optional unless named explicitly.
	if err := v.ReadInConfig(); err != nil && path != "" {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.cooldown_ttl", time.Hour)
	v.SetDefault("vision.provider", "anthropic")
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.model", "")
	v.SetDefault("vision.base_url", "")
	v.SetDefault("vision.timeout", 60*time.Second)
	v.SetDefault("vision.default_currency", "VND")
	v.SetDefault("crawl.artifacts_dir", "screenshots")
	v.SetDefault("crawl.user_agent", "")
	v.SetDefault("crawl.product_timeout", 60*time.Second)
	v.SetDefault("crawl.search_timeout", 30*time.Second)
	v.SetDefault("crawl.settle_delay", 5*time.Second)
	v.SetDefault("crawl.pacing", 3*time.Second)
	v.SetDefault("crawl.max_search_results", 5)
	v.SetDefault("crawl.interval", time.Hour)
	v.SetDefault("alerts.stale_after", 24*time.Hour)
}

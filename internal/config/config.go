// Package config provides configuration management for the tariff tracker.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "tariff-tracker/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	API         APIConfig        `mapstructure:"api"`
	Duplicates  DuplicatesConfig `mapstructure:"duplicates"`
	Analytics   AnalyticsConfig  `mapstructure:"analytics"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Store       StoreConfig      `mapstructure:"store"`
	Server      ServerConfig     `mapstructure:"server"`
	Log         LogConfig        `mapstructure:"log"`
	Sample      SampleConfig     `mapstructure:"sample"`
	Credentials Credentials      `mapstructure:"-"` // Loaded separately
}

// APIConfig holds Events API connection settings.
type APIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	EventType     string        `mapstructure:"event_type"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	Backoff       time.Duration `mapstructure:"backoff"`
	MaxBackoff    time.Duration `mapstructure:"max_backoff"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	MaxPages      int           `mapstructure:"max_pages"`
	Lookback      time.Duration `mapstructure:"lookback"` // default extraction window
	UserAgent     string        `mapstructure:"user_agent"`
	// Consecutive transport failures before requests fail fast.
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// DuplicatesConfig holds duplicate detector settings.
type DuplicatesConfig struct {
	ToleranceDays int `mapstructure:"tolerance_days"`
}

// AnalyticsConfig holds aggregation defaults.
type AnalyticsConfig struct {
	TimeBucket    string `mapstructure:"time_bucket"` // day, week, month, quarter, year
	HistogramBins int    `mapstructure:"histogram_bins"`
	TopN          int    `mapstructure:"top_n"`
}

// CacheConfig controls the API response cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// StoreConfig holds local database settings.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// SampleConfig points at an offline events file used when no key is set.
type SampleConfig struct {
	Path string `mapstructure:"path"`
}

// Credentials holds API credentials.
type Credentials struct {
	EventsAPI EventsAPICredentials `mapstructure:"events_api"`
}

// EventsAPICredentials holds the Events API key.
type EventsAPICredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/tariff-tracker"
	}
	return filepath.Join(home, ".config", "tariff-tracker")
}

// Default returns a Config populated with defaults only. Tests and callers
// that do not read files start from here.
func Default() *Config {
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("api.base_url", "https://events.newscatcherapi.xyz")
	v.SetDefault("api.event_type", "tariffs_v2")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.max_retries", 1)
	v.SetDefault("api.backoff", 500*time.Millisecond)
	v.SetDefault("api.max_backoff", 5*time.Second)
	v.SetDefault("api.rate_per_second", 2.0)
	v.SetDefault("api.burst", 2)
	v.SetDefault("api.max_pages", 5)
	v.SetDefault("api.lookback", 30*24*time.Hour)
	v.SetDefault("api.user_agent", "tariff-tracker/"+Version)
	v.SetDefault("api.breaker_threshold", 5)
	v.SetDefault("api.breaker_cooldown", 30*time.Second)

	v.SetDefault("duplicates.tolerance_days", 2)

	v.SetDefault("analytics.time_bucket", "month")
	v.SetDefault("analytics.histogram_bins", 20)
	v.SetDefault("analytics.top_n", 10)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", time.Hour)

	v.SetDefault("store.path", filepath.Join(configDir, "tracker.db"))

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 45*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", false)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "tracker.log"))
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("sample.path", "")
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, write a template and continue on defaults
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EVENTS_API_KEY"); v != "" {
		cfg.Credentials.EventsAPI.APIKey = v
	}
	if v := os.Getenv("EVENTS_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("TARIFF_TRACKER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TARIFF_TRACKER_SAMPLE"); v != "" {
		cfg.Sample.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return apperrors.NewValidationError("api.base_url", c.API.BaseURL, "must not be empty")
	}
	if c.API.Timeout <= 0 {
		return apperrors.NewValidationError("api.timeout", c.API.Timeout, "must be positive")
	}
	if c.API.MaxRetries < 0 {
		return apperrors.NewValidationError("api.max_retries", c.API.MaxRetries, "must be non-negative")
	}
	if c.API.MaxPages <= 0 {
		return apperrors.NewValidationError("api.max_pages", c.API.MaxPages, "must be at least 1")
	}
	if c.Duplicates.ToleranceDays < 0 {
		return apperrors.NewValidationError("duplicates.tolerance_days", c.Duplicates.ToleranceDays, "must be non-negative")
	}
	switch c.Analytics.TimeBucket {
	case "day", "week", "month", "quarter", "year":
	default:
		return apperrors.NewValidationError("analytics.time_bucket", c.Analytics.TimeBucket, "must be day, week, month, quarter or year")
	}
	if c.Analytics.HistogramBins <= 0 {
		return apperrors.NewValidationError("analytics.histogram_bins", c.Analytics.HistogramBins, "must be positive")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return apperrors.NewValidationError("cache.ttl", c.Cache.TTL, "must be positive when cache is enabled")
	}
	return nil
}

// HasAPIKey reports whether an Events API key is configured.
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.Credentials.EventsAPI.APIKey) != ""
}

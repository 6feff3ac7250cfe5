// Package config loads and validates application configuration from a YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Backend names accepted by store.backend.
const (
	BackendSupabase = "supabase"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// StoreConfig selects and parameterizes the persistence backend.
type StoreConfig struct {
	Backend  string         `mapstructure:"backend"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SupabaseConfig holds remote data service connection settings.
type SupabaseConfig struct {
	URL            string        `mapstructure:"url"`
	Key            string        `mapstructure:"key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// SQLiteConfig holds the local backend settings.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig holds the direct-SQL backend settings.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// PipelineConfig holds the grading run behavior.
type PipelineConfig struct {
	// Mode is "restricted" (bound work to still-relevant events) or
	// "full" (process the entire history).
	Mode string `mapstructure:"mode"`
	// StalenessHorizon bounds how far in the past an event may be and
	// still be graded in restricted mode. Defaults to 48h.
	StalenessHorizon time.Duration `mapstructure:"staleness_horizon"`
	PageSize         int           `mapstructure:"page_size"`
	ChunkSize        int           `mapstructure:"chunk_size"`
	// RateLimitPause is the pause between successful chunk uploads.
	RateLimitPause time.Duration `mapstructure:"rate_limit_pause"`
}

// ScoringConfig holds scoring engine options.
type ScoringConfig struct {
	// TimingPolicy is "linear" (default) or "stepped".
	TimingPolicy string `mapstructure:"timing_policy"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("BETGRADER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Store defaults
	v.SetDefault("store.backend", BackendSupabase)
	v.SetDefault("store.supabase.timeout", "30s")
	v.SetDefault("store.supabase.max_retries", 3)
	v.SetDefault("store.supabase.retry_delay_base", "1s")
	v.SetDefault("store.sqlite.path", "./data/betgrader.db")

	// Pipeline defaults
	v.SetDefault("pipeline.mode", "restricted")
	v.SetDefault("pipeline.staleness_horizon", "48h")
	v.SetDefault("pipeline.page_size", 1000)
	v.SetDefault("pipeline.chunk_size", 100)
	v.SetDefault("pipeline.rate_limit_pause", "500ms")

	// Scoring defaults
	v.SetDefault("scoring.timing_policy", "linear")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSupabase:
		if c.Store.Supabase.URL == "" {
			return fmt.Errorf("store.supabase.url is required for the supabase backend")
		}
		if c.Store.Supabase.Key == "" {
			return fmt.Errorf("store.supabase.key is required for the supabase backend")
		}
		if c.Store.Supabase.Timeout < time.Second {
			return fmt.Errorf("store.supabase.timeout must be at least 1 second")
		}
	case BackendSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of: supabase, sqlite, postgres")
	}

	if c.Pipeline.Mode != "restricted" && c.Pipeline.Mode != "full" {
		return fmt.Errorf("pipeline.mode must be one of: restricted, full")
	}
	if c.Pipeline.StalenessHorizon < time.Hour {
		return fmt.Errorf("pipeline.staleness_horizon must be at least 1 hour")
	}
	if c.Pipeline.PageSize < 1 || c.Pipeline.PageSize > 10000 {
		return fmt.Errorf("pipeline.page_size must be between 1 and 10000")
	}
	if c.Pipeline.ChunkSize < 1 || c.Pipeline.ChunkSize > c.Pipeline.PageSize {
		return fmt.Errorf("pipeline.chunk_size must be between 1 and pipeline.page_size")
	}
	if c.Pipeline.RateLimitPause < 0 {
		return fmt.Errorf("pipeline.rate_limit_pause must not be negative")
	}

	if c.Scoring.TimingPolicy != "linear" && c.Scoring.TimingPolicy != "stepped" {
		return fmt.Errorf("scoring.timing_policy must be one of: linear, stepped")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

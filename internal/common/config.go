// Package common provides shared utilities for the A-share analytics service.
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the service
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Providers   ProvidersConfig `toml:"providers"`
	Cache       CacheConfig     `toml:"cache"`
	Engine      EngineConfig    `toml:"engine"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ProvidersConfig holds upstream quote provider configuration
type ProvidersConfig struct {
	Tushare   TushareConfig   `toml:"tushare"`
	Eastmoney EastmoneyConfig `toml:"eastmoney"`
}

// TushareConfig holds the primary provider configuration
type TushareConfig struct {
	BaseURL   string  `toml:"base_url"`
	Token     string  `toml:"token"`
	RateLimit float64 `toml:"rate_limit"` // requests per second
	Timeout   string  `toml:"timeout"`
}

// GetTimeout parses and returns the request timeout duration
func (c *TushareConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// EastmoneyConfig holds the secondary provider configuration
type EastmoneyConfig struct {
	BaseURL   string  `toml:"base_url"`
	RateLimit float64 `toml:"rate_limit"` // requests per second
	Timeout   string  `toml:"timeout"`
}

// GetTimeout parses and returns the request timeout duration
func (c *EastmoneyConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// CacheConfig holds quote cache sizing and TTLs
type CacheConfig struct {
	Size            int    `toml:"size"`
	TTLReference    string `toml:"ttl_reference"`
	TTLFundamentals string `toml:"ttl_fundamentals"`
	TTLSnapshot     string `toml:"ttl_snapshot"`
	TTLHistory      string `toml:"ttl_history"`
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetTTLReference returns the reference-universe cache TTL
func (c *CacheConfig) GetTTLReference() time.Duration {
	return parseDuration(c.TTLReference, time.Hour)
}

// GetTTLFundamentals returns the fundamentals cache TTL
func (c *CacheConfig) GetTTLFundamentals() time.Duration {
	return parseDuration(c.TTLFundamentals, 15*time.Minute)
}

// GetTTLSnapshot returns the snapshot cache TTL
func (c *CacheConfig) GetTTLSnapshot() time.Duration {
	return parseDuration(c.TTLSnapshot, 5*time.Minute)
}

// GetTTLHistory returns the history cache TTL
func (c *CacheConfig) GetTTLHistory() time.Duration {
	return parseDuration(c.TTLHistory, 15*time.Minute)
}

// EngineConfig holds strategy engine limits
type EngineConfig struct {
	DefaultWorkerCount int `toml:"default_worker_count"`
	MaxWorkerCount     int `toml:"max_worker_count"`
	MaxConcurrentJobs  int `toml:"max_concurrent_jobs"`
	JobRetention       int `toml:"job_retention"`
}

// SchedulerConfig holds cron schedules for background refresh
type SchedulerConfig struct {
	Enabled      bool   `toml:"enabled"`
	UniverseSpec string `toml:"universe_spec"` // cron spec for reference-universe refresh
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Providers: ProvidersConfig{
			Tushare: TushareConfig{
				BaseURL:   "https://api.tushare.pro",
				RateLimit: 5,
				Timeout:   "30s",
			},
			Eastmoney: EastmoneyConfig{
				BaseURL:   "https://push2.eastmoney.com",
				RateLimit: 3,
				Timeout:   "30s",
			},
		},
		Cache: CacheConfig{
			Size:            10000,
			TTLReference:    "1h",
			TTLFundamentals: "15m",
			TTLSnapshot:     "5m",
			TTLHistory:      "15m",
		},
		Engine: EngineConfig{
			DefaultWorkerCount: 5,
			MaxWorkerCount:     16,
			MaxConcurrentJobs:  4,
			JobRetention:       64,
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			UniverseSpec: "0 15 9 * * MON-FRI",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	clampEngineLimits(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ASHARE_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("ASHARE_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("ASHARE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("ASHARE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if token := os.Getenv("TUSHARE_TOKEN"); token != "" {
		config.Providers.Tushare.Token = token
	}

	if url := os.Getenv("ASHARE_SECONDARY_ENDPOINT"); url != "" {
		config.Providers.Eastmoney.BaseURL = url
	}

	if v := os.Getenv("ASHARE_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Cache.Size = n
		}
	}

	if v := os.Getenv("ASHARE_MAX_CONCURRENT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Engine.MaxConcurrentJobs = n
		}
	}

	if v := os.Getenv("ASHARE_JOB_RETENTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Engine.JobRetention = n
		}
	}
}

// clampEngineLimits keeps worker counts inside the supported range
func clampEngineLimits(config *Config) {
	if config.Engine.MaxWorkerCount < 1 || config.Engine.MaxWorkerCount > 16 {
		config.Engine.MaxWorkerCount = 16
	}
	if config.Engine.DefaultWorkerCount < 1 {
		config.Engine.DefaultWorkerCount = 5
	}
	if config.Engine.DefaultWorkerCount > config.Engine.MaxWorkerCount {
		config.Engine.DefaultWorkerCount = config.Engine.MaxWorkerCount
	}
	if config.Engine.MaxConcurrentJobs < 1 {
		config.Engine.MaxConcurrentJobs = 4
	}
	if config.Engine.JobRetention < 1 {
		config.Engine.JobRetention = 64
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

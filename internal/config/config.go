package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	CORS       CORSConfig
	Processing ProcessingConfig
	Export     ExportConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// ProcessingConfig controls record retrieval and retries.
type ProcessingConfig struct {
	DefaultVendor       string
	PageSize            int
	Concurrency         int
	RatePerSecond       float64
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
}

// ExportConfig holds report export settings.
type ExportConfig struct {
	Dir string
}

// Load reads configuration from environment variables with development
// defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "fieldtrack")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("FETCH_PAGE_SIZE", 1000)
	v.SetDefault("FETCH_CONCURRENCY", 4)
	v.SetDefault("FETCH_RATE_PER_SECOND", 20.0)
	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("RETRY_INITIAL_BACKOFF", "500ms")
	v.SetDefault("RETRY_MAX_BACKOFF", "10s")
	v.SetDefault("DEFAULT_VENDOR", "BRT")
	v.SetDefault("EXPORT_DIR", ".")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Processing: ProcessingConfig{
			DefaultVendor:       v.GetString("DEFAULT_VENDOR"),
			PageSize:            v.GetInt("FETCH_PAGE_SIZE"),
			Concurrency:         v.GetInt("FETCH_CONCURRENCY"),
			RatePerSecond:       v.GetFloat64("FETCH_RATE_PER_SECOND"),
			RetryMaxAttempts:    v.GetInt("RETRY_MAX_ATTEMPTS"),
			RetryInitialBackoff: v.GetDuration("RETRY_INITIAL_BACKOFF"),
			RetryMaxBackoff:     v.GetDuration("RETRY_MAX_BACKOFF"),
		},
		Export: ExportConfig{
			Dir: v.GetString("EXPORT_DIR"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return c.Processing.Validate()
}

// Validate checks the processing limits.
func (p ProcessingConfig) Validate() error {
	if p.PageSize < 1 {
		return fmt.Errorf("FETCH_PAGE_SIZE must be at least 1")
	}
	if p.Concurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be at least 1")
	}
	if p.RatePerSecond <= 0 {
		return fmt.Errorf("FETCH_RATE_PER_SECOND must be positive")
	}
	if p.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if p.RetryInitialBackoff <= 0 || p.RetryMaxBackoff < p.RetryInitialBackoff {
		return fmt.Errorf("RETRY_INITIAL_BACKOFF must be positive and not exceed RETRY_MAX_BACKOFF")
	}
	switch strings.ToLower(strings.TrimSpace(p.DefaultVendor)) {
	case "brt", "microsystems":
	default:
		return fmt.Errorf("DEFAULT_VENDOR must be BRT or Microsystems, got %q", p.DefaultVendor)
	}
	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

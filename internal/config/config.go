// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config is the complete process configuration.
type Config struct {
	// DatabaseURL may also be given as the first command line argument,
	// which takes precedence.
	DatabaseURL string `env:"DATABASE_URL"`

	ServerName    string `env:"MCP_SERVER_NAME,default=mcp-postgres"`
	ServerVersion string `env:"MCP_SERVER_VERSION,default=0.1.0"`

	LogLevel  slog.Level `env:"LOG_LEVEL,default=info"`
	LogFormat string     `env:"LOG_FORMAT,default=text"`

	// MaxLineBytes caps a single inbound line; 0 disables the cap.
	MaxLineBytes int `env:"MAX_LINE_BYTES,default=4194304"`
	// HandlerTimeout bounds each handler; 0 disables the bound.
	HandlerTimeout time.Duration `env:"HANDLER_TIMEOUT,default=0s"`

	// QueryRateLimit is the sustained number of query tool calls per
	// second; 0 disables limiting.
	QueryRateLimit float64 `env:"QUERY_RATE_LIMIT,default=0"`
	QueryRateBurst int     `env:"QUERY_RATE_BURST,default=5"`

	// PageSize bounds every list result.
	PageSize int `env:"PAGE_SIZE,default=50"`

	CacheBackend string        `env:"CACHE_BACKEND,default=memory"`
	CacheTTL     time.Duration `env:"CACHE_TTL,default=5m"`
	CacheSize    int           `env:"CACHE_SIZE,default=256"`
	RedisURL     string        `env:"REDIS_URL,default=redis://localhost:6379/0"`

	// CachePurge empties the redis cache at startup.
	CachePurge bool `env:"CACHE_PURGE,default=false"`
}

// Load reads an optional .env file from the working directory, decodes the
// environment and applies args. It does not validate; call Validate.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := envdecode.StrictDecode(cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if len(args) > 0 && args[0] != "" {
		cfg.DatabaseURL = args[0]
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.CacheBackend = strings.ToLower(cfg.CacheBackend)
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("a database URL is required (DATABASE_URL or first argument)"))
	}
	if c.ServerName == "" {
		errs = append(errs, errors.New("MCP_SERVER_NAME must not be empty"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	if c.MaxLineBytes < 0 {
		errs = append(errs, fmt.Errorf("MAX_LINE_BYTES must not be negative, got %d", c.MaxLineBytes))
	}
	if c.HandlerTimeout < 0 {
		errs = append(errs, fmt.Errorf("HANDLER_TIMEOUT must not be negative, got %s", c.HandlerTimeout))
	}
	if c.QueryRateLimit < 0 {
		errs = append(errs, fmt.Errorf("QUERY_RATE_LIMIT must not be negative, got %g", c.QueryRateLimit))
	}
	if c.QueryRateLimit > 0 && c.QueryRateBurst < 1 {
		errs = append(errs, fmt.Errorf("QUERY_RATE_BURST must be at least 1, got %d", c.QueryRateBurst))
	}
	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be at least 1, got %d", c.PageSize))
	}
	switch c.CacheBackend {
	case CacheMemory:
		if c.CacheSize < 1 {
			errs = append(errs, fmt.Errorf("CACHE_SIZE must be at least 1, got %d", c.CacheSize))
		}
	case CacheRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis cache"))
		}
	case CacheNone:
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be memory, redis or none, got %q", c.CacheBackend))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must not be negative, got %s", c.CacheTTL))
	}
	return errors.Join(errs...)
}

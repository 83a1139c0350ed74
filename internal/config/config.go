// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all service settings.
type Config struct {
	App       AppConfig
	DB        DBConfig
	JWT       JWTConfig
	Log       LogConfig
	Redis     RedisConfig
	Inventory InventoryConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port      string `envconfig:"PORT" default:"3000"`
	AdminUser string `envconfig:"ADMIN_USER" default:"admin"`
}

// Addr returns the listen address for Port.
func (a AppConfig) Addr() string {
	if strings.Contains(a.Port, ":") {
		return a.Port
	}
	return ":" + a.Port
}

type DBConfig struct {
	Path string `envconfig:"DB_PATH" default:"data/catalog.db"`
}

type JWTConfig struct {
	// Secret is read from the settings table when empty.
	Secret    string        `envconfig:"JWT_SECRET"`
	ExpiresIn time.Duration `envconfig:"JWT_EXPIRES_IN" default:"24h"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
	File   string `envconfig:"LOG_FILE"`
}

// Console reports whether logs should be human readable.
func (l LogConfig) Console() bool {
	return strings.EqualFold(l.Format, "console")
}

type RedisConfig struct {
	// URL enables the shared product lock and rate counters when set.
	URL     string        `envconfig:"REDIS_URL"`
	LockTTL time.Duration `envconfig:"LOCK_TTL" default:"5s"`
}

type InventoryConfig struct {
	LowStockThreshold   int `envconfig:"LOW_STOCK_THRESHOLD" default:"10"`
	HistoryDefaultLimit int `envconfig:"HISTORY_DEFAULT_LIMIT" default:"50"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

type RateLimitConfig struct {
	// Requests is the per IP budget for /api routes; 0 disables limiting.
	Requests int           `envconfig:"RATE_LIMIT_MAX" default:"100"`
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"15m"`
}

// Enabled reports whether /api requests are rate limited.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format)
	}
	if c.JWT.ExpiresIn <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive")
	}
	if c.Redis.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.Inventory.LowStockThreshold < 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD must not be negative")
	}
	if c.Inventory.HistoryDefaultLimit <= 0 {
		return fmt.Errorf("HISTORY_DEFAULT_LIMIT must be positive")
	}
	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must not be negative")
	}
	if c.RateLimit.Enabled() && c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

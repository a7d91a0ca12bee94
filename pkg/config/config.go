// Package config loads the offline proxy configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full proxy configuration.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	OriginURL  string `env:"ORIGIN_URL,required"`

	// Classification
	APIPrefix       string   `env:"API_PREFIX"        envDefault:"/api/"`
	DataServiceHost string   `env:"DATA_SERVICE_HOST" envDefault:"supabase"`
	AssetDirs       []string `env:"ASSET_DIRS"        envDefault:"/assets/,/lovable-uploads/" envSeparator:","`

	// Generations
	CacheVersion     int      `env:"CACHE_VERSION"     envDefault:"1"`
	PrecacheManifest []string `env:"PRECACHE_MANIFEST" envDefault:"/,/src/main.tsx,/lovable-uploads/c861a7c0-5ec9-4bac-83ea-319c40fcb001.png" envSeparator:","`
	SkipWaiting      bool     `env:"SKIP_WAITING"      envDefault:"true"`
	SeedConcurrency  int      `env:"SEED_CONCURRENCY"  envDefault:"4"`

	// Store
	StoreBackend string `env:"STORE_BACKEND" envDefault:"sqlite"`
	RedisURL     string `env:"REDIS_URL"     envDefault:"localhost:6379"`
	SQLitePath   string `env:"SQLITE_PATH"   envDefault:"offline-cache.db"`

	// Network
	NetworkTimeout   time.Duration `env:"NETWORK_TIMEOUT"`
	SingleFlight     bool          `env:"SINGLE_FLIGHT"     envDefault:"false"`
	OfflineThreshold int           `env:"OFFLINE_THRESHOLD" envDefault:"3"`

	// Push
	NotificationTitle   string `env:"NOTIFICATION_TITLE"   envDefault:"OurCreativity"`
	NotificationIcon    string `env:"NOTIFICATION_ICON"    envDefault:"/lovable-uploads/c861a7c0-5ec9-4bac-83ea-319c40fcb001.png"`
	NotificationChannel string `env:"NOTIFICATION_CHANNEL" envDefault:"offline:notifications"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	origin *url.URL
}

// Load parses the process environment and validates the result.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environment map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.AssetDirs = trimCSV(cfg.AssetDirs)
	cfg.PrecacheManifest = trimCSV(cfg.PrecacheManifest)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the parser cannot.
func (c *Config) Validate() error {
	origin, err := url.Parse(c.OriginURL)
	if err != nil || !origin.IsAbs() || origin.Host == "" {
		return fmt.Errorf("%w: ORIGIN_URL %q must be an absolute URL", ErrInvalid, c.OriginURL)
	}
	c.origin = origin

	if c.CacheVersion < 1 {
		return fmt.Errorf("%w: CACHE_VERSION must be >= 1, got %d", ErrInvalid, c.CacheVersion)
	}
	if c.SeedConcurrency < 1 {
		return fmt.Errorf("%w: SEED_CONCURRENCY must be >= 1, got %d", ErrInvalid, c.SeedConcurrency)
	}
	if c.OfflineThreshold < 1 {
		return fmt.Errorf("%w: OFFLINE_THRESHOLD must be >= 1, got %d", ErrInvalid, c.OfflineThreshold)
	}
	if c.NetworkTimeout < 0 {
		return fmt.Errorf("%w: NETWORK_TIMEOUT must not be negative", ErrInvalid)
	}
	for _, p := range c.PrecacheManifest {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: manifest path %q must start with /", ErrInvalid, p)
		}
	}

	switch c.StoreBackend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: REDIS_URL is required for the redis backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown STORE_BACKEND %q", ErrInvalid, c.StoreBackend)
	}
	return nil
}

// Origin returns the parsed ORIGIN_URL. Only valid after Validate.
func (c *Config) Origin() *url.URL {
	return c.origin
}

// trimCSV removes empty entries from a string slice.
func trimCSV(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}

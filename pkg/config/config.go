// Package config loads tzconv settings from an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name. Unprefixed names are accepted too.
const Prefix = "TZCONV"

// Config holds settings shared by the server and the CLI.
type Config struct {
	Port        string        `envconfig:"PORT" default:"8080"`
	CacheDir    string        `envconfig:"CACHE_DIR"`
	CatalogFile string        `envconfig:"CATALOG_FILE"`
	GeoEndpoint string        `envconfig:"GEO_ENDPOINT" default:"https://ipapi.co"`
	GeoTimeout  time.Duration `envconfig:"GEO_TIMEOUT" default:"5s"`
	GeoCacheTTL time.Duration `envconfig:"GEO_CACHE_TTL" default:"1h"`

	GoogleMapsAPIKey string `envconfig:"GOOGLE_MAPS_API_KEY"`
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	GeminiModel      string `envconfig:"GEMINI_MODEL"`
	GCPProject       string `envconfig:"GCP_PROJECT"`

	RedisURL string `envconfig:"REDIS_URL"`
	PairsDir string `envconfig:"PAIRS_DIR"`

	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"10"`
	RateBurst int     `envconfig:"RATE_BURST" default:"20"`

	// TrustProxy takes the client address from X-Forwarded-For. Enable only
	// behind a proxy that sets that header itself.
	TrustProxy bool `envconfig:"TRUST_PROXY"`

	Verbose bool `envconfig:"VERBOSE"`
}

// Load reads envFile into the environment, without overriding variables that are
// already set, then decodes the environment. A missing envFile is not an error.
func Load(envFile string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if envFile != "" {
		switch err := godotenv.Load(envFile); {
		case err == nil:
			logger.Debug("loaded environment file", "path", envFile)
		case errors.Is(err, fs.ErrNotExist):
			logger.Debug("no environment file", "path", envFile)
		default:
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.GeoTimeout <= 0 {
		errs = append(errs, fmt.Errorf("GEO_TIMEOUT must be positive, got %s", c.GeoTimeout))
	}
	if c.GeoCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("GEO_CACHE_TTL must not be negative, got %s", c.GeoCacheTTL))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT must not be negative, got %g", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_BURST must be at least 1, got %d", c.RateBurst))
	}
	return errors.Join(errs...)
}

// CachePath returns CacheDir, defaulting to tzconv under the user cache directory.
func (c *Config) CachePath() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tzconv")
	}
	return filepath.Join(dir, "tzconv")
}

// PairsPath returns PairsDir, defaulting to tzconv/pairs under the user config directory.
func (c *Config) PairsPath() string {
	if c.PairsDir != "" {
		return c.PairsDir
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tzconv", "pairs")
	}
	return filepath.Join(dir, "tzconv", "pairs")
}

// NewLogger returns a text logger on stderr at debug level when verbose.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

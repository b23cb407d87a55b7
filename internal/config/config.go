package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// Storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"sqlite"` // memory, sqlite, mysql or postgres
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"./data/phishing.db"`
	DatabaseURL    string `env:"DATABASE_URL"` // MySQL DSN or PostgreSQL connection string

	// Threat intel
	VirusTotalAPIKey     string        `env:"VIRUSTOTAL_API_KEY"`
	VirusTotalBaseURL    string        `env:"VIRUSTOTAL_BASE_URL"`
	VirusTotalRatePerMin int           `env:"VIRUSTOTAL_RATE_PER_MIN" envDefault:"4"` // public API quota
	OpenPhishEnabled     bool          `env:"OPENPHISH_ENABLED" envDefault:"false"`
	OpenPhishFeedURL     string        `env:"OPENPHISH_FEED_URL"`
	OpenPhishTTL         time.Duration `env:"OPENPHISH_TTL" envDefault:"12h"`
	IntelCacheTTL        time.Duration `env:"INTEL_CACHE_TTL" envDefault:"24h"`
	IntelSourceTimeout   time.Duration `env:"INTEL_SOURCE_TIMEOUT" envDefault:"10s"`

	// Link resolution
	ResolverTimeout      time.Duration `env:"RESOLVER_TIMEOUT" envDefault:"5s"`
	ResolverChainTimeout time.Duration `env:"RESOLVER_CHAIN_TIMEOUT" envDefault:"10s"` // whole redirect chain
	ResolverMaxHops      int           `env:"RESOLVER_MAX_HOPS" envDefault:"5"`
	ShortenerDomains     []string      `env:"SHORTENER_DOMAINS" envSeparator:","`

	// Concurrency
	MaxOutboundRequests int `env:"MAX_OUTBOUND_REQUESTS" envDefault:"10"`
	MaxURLsPerScan      int `env:"MAX_URLS_PER_SCAN" envDefault:"50"`
	URLConcurrency      int `env:"URL_CONCURRENCY" envDefault:"8"`

	// Scoring
	InternalDomains         []string `env:"INTERNAL_DOMAINS" envSeparator:","`
	TrustedDomains          []string `env:"TRUSTED_DOMAINS" envSeparator:"," envDefault:"paypal.com,microsoft.com,google.com,apple.com,amazon.com,netflix.com,linkedin.com"`
	ReputationSeedWhitelist []string `env:"REPUTATION_SEED_WHITELIST" envSeparator:","`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
	LogFile   string `env:"LOG_FILE"`                   // rotated file instead of stderr
}

// VirusTotalEnabled returns true if a VirusTotal key is configured
func (c *Config) VirusTotalEnabled() bool {
	return c.VirusTotalAPIKey != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.ShortenerDomains = trimList(c.ShortenerDomains)
	c.InternalDomains = trimList(c.InternalDomains)
	c.TrustedDomains = trimList(c.TrustedDomains)
	c.ReputationSeedWhitelist = trimList(c.ReputationSeedWhitelist)
}

// Validate checks values env parsing cannot
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case "memory":
	case "sqlite":
		if c.DatabasePath == "" {
			errs = append(errs, errors.New("DATABASE_PATH is required for the sqlite backend"))
		}
	case "mysql", "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for the %s backend", c.StorageBackend))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be memory, sqlite, mysql or postgres, got %q", c.StorageBackend))
	}

	if c.ResolverMaxHops < 1 || c.ResolverMaxHops > 20 {
		errs = append(errs, fmt.Errorf("RESOLVER_MAX_HOPS must be between 1 and 20, got %d", c.ResolverMaxHops))
	}
	positive := map[string]time.Duration{
		"RESOLVER_TIMEOUT":       c.ResolverTimeout,
		"RESOLVER_CHAIN_TIMEOUT": c.ResolverChainTimeout,
		"INTEL_SOURCE_TIMEOUT":   c.IntelSourceTimeout,
		"INTEL_CACHE_TTL":        c.IntelCacheTTL,
		"OPENPHISH_TTL":          c.OpenPhishTTL,
	}
	for _, key := range []string{"RESOLVER_TIMEOUT", "RESOLVER_CHAIN_TIMEOUT", "INTEL_SOURCE_TIMEOUT", "INTEL_CACHE_TTL", "OPENPHISH_TTL"} {
		if positive[key] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", key, positive[key]))
		}
	}
	counts := map[string]int{
		"MAX_OUTBOUND_REQUESTS": c.MaxOutboundRequests,
		"MAX_URLS_PER_SCAN":     c.MaxURLsPerScan,
		"URL_CONCURRENCY":       c.URLConcurrency,
	}
	for _, key := range []string{"MAX_OUTBOUND_REQUESTS", "MAX_URLS_PER_SCAN", "URL_CONCURRENCY"} {
		if counts[key] < 1 {
			errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", key, counts[key]))
		}
	}
	if c.VirusTotalRatePerMin < 0 {
		errs = append(errs, fmt.Errorf("VIRUSTOTAL_RATE_PER_MIN must not be negative, got %d", c.VirusTotalRatePerMin))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func trimList(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

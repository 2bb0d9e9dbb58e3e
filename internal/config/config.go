// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a YAML file and ARENA_ environment variables over New().
// - Validation failures wrap ErrInvalidConfig, loading failures wrap ErrLoadConfig.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Random sources.
const (
	RandomLocal    = "local"
	RandomOrg      = "random_org"
	defaultOrgURL  = "https://www.random.org/decimal-fractions/?num=1&dec=2&col=1&format=plain&rnd=new"
	defaultTimeout = 5000
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageDriver selects the entrant store: memory, sqlite or postgres.
	StorageDriver string `koanf:"storage_driver"`
	SQLitePath    string `koanf:"sqlite_path"`
	PostgresDSN   string `koanf:"postgres_dsn"`

	// RedisAddr enables the entrant read cache when non-empty.
	RedisAddr       string `koanf:"redis_addr"`
	RedisPassword   string `koanf:"redis_password"`
	RedisDB         int    `koanf:"redis_db"`
	CacheTTLSeconds int    `koanf:"cache_ttl_seconds"`

	// RandomSource selects the contest draw: local or random_org.
	RandomSource    string `koanf:"random_source"`
	RandomOrgURL    string `koanf:"random_org_url"`
	RandomTimeoutMS int    `koanf:"random_timeout_ms"`

	// Skill model tuning.
	SkillNormalizer   float64 `koanf:"skill_normalizer"`
	WeightCoefficient float64 `koanf:"weight_coefficient"`
	ReachBaseline     float64 `koanf:"reach_baseline"`
	ReachCoefficient  float64 `koanf:"reach_coefficient"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// IdempotencySize bounds the number of remembered fight results.
	IdempotencySize int `koanf:"idempotency_size"`

	// RateLimitRPS and RateLimitBurst configure the per-client limiter. Zero RPS disables it.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		StorageDriver:       DriverMemory,
		SQLitePath:          "arena.db",
		CacheTTLSeconds:     60,
		RandomSource:        RandomLocal,
		RandomOrgURL:        defaultOrgURL,
		RandomTimeoutMS:     defaultTimeout,
		SkillNormalizer:     20,
		WeightCoefficient:   1,
		ReachBaseline:       70,
		ReachCoefficient:    0.5,
		MaxLeaderboardLimit: 100,
		IdempotencySize:     10_000,
		RateLimitRPS:        0,
		RateLimitBurst:      20,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StorageDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path is required for the sqlite driver", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn is required for the postgres driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	}
	switch c.RandomSource {
	case RandomLocal:
	case RandomOrg:
		if c.RandomOrgURL == "" {
			return fmt.Errorf("%w: random_org_url is required for the random_org source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown random_source %q", ErrInvalidConfig, c.RandomSource)
	}
	if !(c.SkillNormalizer > 0) || math.IsInf(c.SkillNormalizer, 0) {
		return fmt.Errorf("%w: skill_normalizer must be positive", ErrInvalidConfig)
	}
	if !(c.WeightCoefficient > 0) || math.IsInf(c.WeightCoefficient, 0) {
		return fmt.Errorf("%w: weight_coefficient must be positive", ErrInvalidConfig)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("%w: rate_limit_rps must not be negative", ErrInvalidConfig)
	}
	return nil
}

// CacheTTL returns the entrant cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RandomTimeout returns the remote random source timeout.
func (c *Config) RandomTimeout() time.Duration {
	return time.Duration(c.RandomTimeoutMS) * time.Millisecond
}

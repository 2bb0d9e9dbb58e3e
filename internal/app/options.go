package service

import (
	"time"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/config"
	"github.com/okian/arena/internal/domain/arena"
	"github.com/okian/arena/internal/domain/skill"
	"github.com/okian/arena/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStorageDriver selects memory, sqlite or postgres storage.
func WithStorageDriver(driver string) Option {
	return func(s *Service) {
		if driver != "" {
			s.storageDriver = driver
		}
	}
}

// WithSQLitePath sets the database file for the sqlite driver.
func WithSQLitePath(path string) Option {
	return func(s *Service) {
		s.sqlitePath = path
	}
}

// WithPostgresDSN sets the connection string for the postgres driver.
func WithPostgresDSN(dsn string) Option {
	return func(s *Service) {
		s.postgresDSN = dsn
	}
}

// WithStore uses store instead of opening one from the storage driver. The
// service takes ownership and closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.injectedStore = store
	}
}

// WithRedis enables the entrant read cache.
func WithRedis(addr, password string, db int) Option {
	return func(s *Service) {
		s.redisAddr = addr
		s.redisPassword = password
		s.redisDB = db
	}
}

// WithCacheTTL sets how long cached entrants live.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithRandomSource selects the local generator or random.org.
func WithRandomSource(kind, url string, timeout time.Duration) Option {
	return func(s *Service) {
		if kind != "" {
			s.randomSource = kind
		}
		s.randomOrgURL = url
		if timeout > 0 {
			s.randomTimeout = timeout
		}
	}
}

// WithSource injects the contest draw directly, overriding WithRandomSource.
func WithSource(src arena.Source) Option {
	return func(s *Service) {
		s.source = src
	}
}

// WithSkillOptions tunes the skill model.
func WithSkillOptions(opts ...skill.Option) Option {
	return func(s *Service) {
		s.skillOpts = append(s.skillOpts, opts...)
	}
}

// WithIdempotencySize bounds the number of remembered fight results.
func WithIdempotencySize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.idempotencySize = size
		}
	}
}

// WithConfig applies every service related setting from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		for _, opt := range []Option{
			WithStorageDriver(cfg.StorageDriver),
			WithSQLitePath(cfg.SQLitePath),
			WithPostgresDSN(cfg.PostgresDSN),
			WithRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB),
			WithCacheTTL(cfg.CacheTTL()),
			WithRandomSource(cfg.RandomSource, cfg.RandomOrgURL, cfg.RandomTimeout()),
			WithSkillOptions(
				skill.WithNormalizer(cfg.SkillNormalizer),
				skill.WithWeightCoefficient(cfg.WeightCoefficient),
				skill.WithReach(cfg.ReachBaseline, cfg.ReachCoefficient),
			),
			WithIdempotencySize(cfg.IdempotencySize),
		} {
			opt(s)
		}
	}
}

// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/arena/internal/adapters/cache"
	"github.com/okian/arena/internal/adapters/randomorg"
	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/adapters/repository/postgres"
	"github.com/okian/arena/internal/adapters/repository/sqlite"
	"github.com/okian/arena/internal/config"
	"github.com/okian/arena/internal/domain/arena"
	"github.com/okian/arena/internal/domain/dedupe"
	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/skill"
	"github.com/okian/arena/internal/domain/types"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const (
	tracerName         = "github.com/okian/arena/internal/app"
	statsTimeout       = 2 * time.Second
	defaultIdempotency = 10_000
)

// components are built by Start and torn down by Stop.
type components struct {
	backing repository.Store // live reads and arena stats
	store   repository.Store // backing, or a cache wrapper around it
	cached  *cache.Store
	skill   *skill.Model
	arena   *arena.Arena
	board   *leaderboard.Leaderboard
	fights  dedupe.Store
}

// Service implements the API dependencies for the arena system.
type Service struct {
	mu sync.RWMutex
	c  *components

	// Configuration
	storageDriver   string
	sqlitePath      string
	postgresDSN     string
	injectedStore   repository.Store
	redisAddr       string
	redisPassword   string
	redisDB         int
	cacheTTL        time.Duration
	randomSource    string
	randomOrgURL    string
	randomTimeout   time.Duration
	source          arena.Source
	skillOpts       []skill.Option
	idempotencySize int

	tracer trace.Tracer
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storageDriver:   config.DriverMemory,
		cacheTTL:        time.Minute,
		randomSource:    config.RandomLocal,
		randomTimeout:   5 * time.Second,
		idempotencySize: defaultIdempotency,
		tracer:          otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens storage and builds the arena, leaderboard and idempotency store.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.c != nil {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting arena service...", logger.String("storage", s.storageDriver))

	source, err := s.buildSource()
	if err != nil {
		return err
	}
	backing, err := s.openStore(ctx)
	if err != nil {
		return err
	}

	c := &components{backing: backing, store: backing}
	if s.redisAddr != "" {
		client, err := cache.NewClient(ctx, cache.Options{Addr: s.redisAddr, Password: s.redisPassword, DB: s.redisDB})
		if err != nil {
			_ = backing.Close()
			return fmt.Errorf("start entrant cache: %w", err)
		}
		c.cached = cache.NewStore(backing, cache.New(client,
			cache.WithTTL(s.cacheTTL),
			cache.WithLogger(s.logger.Named("cache")),
		))
		c.store = c.cached
		s.logger.Info(ctx, "entrant cache enabled", logger.String("redis_addr", s.redisAddr))
	}

	c.skill = skill.New(s.skillOpts...)
	c.arena = arena.New(backing, arena.WithSkillModel(c.skill), arena.WithSource(source))
	c.board = leaderboard.New(backing)
	c.fights = dedupe.NewInMemoryStore(dedupe.WithMaxSize(s.idempotencySize))
	s.c = c

	s.logger.Info(ctx, "arena service started",
		logger.String("storage", s.storageDriver),
		logger.String("random_source", s.randomSource),
		logger.Bool("cache", c.cached != nil),
		logger.Int("idempotency_size", s.idempotencySize),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	if s.injectedStore != nil {
		return s.injectedStore, nil
	}
	switch s.storageDriver {
	case config.DriverMemory:
		return repository.NewMemoryStore(ctx), nil
	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, s.sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, s.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnknownDriver, s.storageDriver)
	}
}

func (s *Service) buildSource() (arena.Source, error) {
	if s.source != nil {
		return s.source, nil
	}
	switch s.randomSource {
	case config.RandomLocal:
		return arena.LocalSource{}, nil
	case config.RandomOrg:
		return randomorg.New(
			randomorg.WithURL(s.randomOrgURL),
			randomorg.WithTimeout(s.randomTimeout),
			randomorg.WithLogger(s.logger.Named("randomorg")),
		), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRandomSource, s.randomSource)
	}
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.c == nil {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping arena service...")
	if err := s.c.store.Close(); err != nil {
		s.logger.Error(ctx, "closing storage failed", logger.Error(err))
	}
	s.c = nil
	s.logger.Info(ctx, "arena service stopped")
}

func (s *Service) components() (*components, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.c == nil {
		return nil, ErrNotStarted
	}
	return s.c, nil
}

// span starts a span named op. The returned func ends it and records *errp.
func (s *Service) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(errp *error)) {
	ctx, span := s.tracer.Start(ctx, "Service."+op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}

// AddEntrant registers a new entrant.
func (s *Service) AddEntrant(ctx context.Context, attrs model.Attributes) (e model.Entrant, err error) {
	ctx, end := s.span(ctx, "AddEntrant", attribute.String("entrant.name", attrs.Name))
	defer end(&err)

	c, err := s.components()
	if err != nil {
		return model.Entrant{}, err
	}
	e, err = c.store.Add(ctx, attrs)
	if err != nil {
		metrics.RecordErrorByComponent("registry", errorType(err))
		return model.Entrant{}, err
	}
	metrics.RecordEntrantAdded()
	s.logger.Debug(ctx, "entrant added", logger.Int64("id", e.ID), logger.String("name", e.Name))
	return e, nil
}

// GetEntrant returns an entrant by id, including deleted ones.
func (s *Service) GetEntrant(ctx context.Context, id int64) (e model.Entrant, err error) {
	ctx, end := s.span(ctx, "GetEntrant", attribute.Int64("entrant.id", id))
	defer end(&err)

	c, err := s.components()
	if err != nil {
		return model.Entrant{}, err
	}
	return c.store.GetByID(ctx, id)
}

// GetEntrantByName returns the live entrant with this exact name.
func (s *Service) GetEntrantByName(ctx context.Context, name string) (e model.Entrant, err error) {
	ctx, end := s.span(ctx, "GetEntrantByName", attribute.String("entrant.name", name))
	defer end(&err)

	c, err := s.components()
	if err != nil {
		return model.Entrant{}, err
	}
	return c.store.GetByName(ctx, name)
}

// DeleteEntrant soft-deletes an entrant. An arena holding it fails its next
// Resolve with model.ErrNotFound.
func (s *Service) DeleteEntrant(ctx context.Context, id int64) (err error) {
	ctx, end := s.span(ctx, "DeleteEntrant", attribute.Int64("entrant.id", id))
	defer end(&err)

	c, err := s.components()
	if err != nil {
		return err
	}
	if err = c.store.Delete(ctx, id); err != nil {
		metrics.RecordErrorByComponent("registry", errorType(err))
		return err
	}
	metrics.RecordEntrantDeleted()
	s.logger.Debug(ctx, "entrant deleted", logger.Int64("id", id))
	return nil
}

// ListEntrants returns entrants in id order.
func (s *Service) ListEntrants(ctx context.Context, includeDeleted bool) (list []model.Entrant, err error) {
	ctx, end := s.span(ctx, "ListEntrants", attribute.Bool("include_deleted", includeDeleted))
	defer end(&err)

	c, err := s.components()
	if err != nil {
		return nil, err
	}
	return c.backing.List(ctx, includeDeleted)
}

// EnterArena places an entrant in the arena.
func (s *Service) EnterArena(ctx context.Context, id int64) (err error) {
	ctx, end := s.span(ctx, "EnterArena", attribute.Int64("entrant.id", id))
	defer end(&err)

	c, err := s.components()
	if err != nil {
		return err
	}
	if err = c.arena.Enter(ctx, id); err != nil {
		metrics.RecordArenaRejection(errorType(err))
		return err
	}
	metrics.UpdateArenaOccupancy(len(c.arena.Occupants()))
	return nil
}

// ClearArena empties the arena.
func (s *Service) ClearArena(ctx context.Context) {
	ctx, end := s.span(ctx, "ClearArena")
	defer end(nil)

	c, err := s.components()
	if err != nil {
		return
	}
	c.arena.Clear(ctx)
	metrics.UpdateArenaOccupancy(0)
}

// ArenaOccupants re-reads the arena occupants and reports its state.
func (s *Service) ArenaOccupants(ctx context.Context) (list []model.Entrant, state types.ArenaState, err error) {
	ctx, end := s.span(ctx, "ArenaOccupants")
	defer end(&err)

	c, err := s.components()
	if err != nil {
		return nil, "", err
	}
	list, err = c.arena.ListActive(ctx)
	if err != nil {
		return nil, "", err
	}
	return list, types.StateFor(len(list)), nil
}

// Fight resolves the arena once per idempotency key. An empty key always fights.
func (s *Service) Fight(ctx context.Context, key string) (res model.ContestResult, replayed bool, err error) {
	ctx, end := s.span(ctx, "Fight", attribute.String("idempotency_key", key))
	defer end(&err)

	c, err := s.components()
	if err != nil {
		return model.ContestResult{}, false, err
	}
	res, replayed, err = c.fights.Do(ctx, key, func(ctx context.Context) (model.ContestResult, error) {
		return s.resolve(ctx, c)
	})
	if replayed {
		metrics.RecordIdempotentReplay()
	}
	return res, replayed, err
}

func (s *Service) resolve(ctx context.Context, c *components) (model.ContestResult, error) {
	start := time.Now()
	res, err := c.arena.Resolve(ctx)
	if err != nil {
		metrics.RecordArenaRejection(errorType(err))
		metrics.RecordErrorLatency("arena", errorType(err), metrics.Since(start))
		s.logger.Warn(ctx, "contest not resolved", logger.Error(err))
		return model.ContestResult{}, err
	}
	if c.cached != nil {
		c.cached.Invalidate(ctx, res.WinnerID, res.LoserID)
	}

	class := "unknown"
	if w, err := c.backing.GetByID(ctx, res.WinnerID); err == nil {
		class = string(c.skill.Classify(w))
	}
	metrics.RecordContestResolved(class, metrics.Since(start))
	s.logger.Info(ctx, "contest resolved",
		logger.Int64("winner_id", res.WinnerID),
		logger.Int64("loser_id", res.LoserID),
		logger.Float64("first_win_probability", res.FirstWinProbability),
		logger.Float64("roll", res.Roll),
	)
	return res, nil
}

// Leaderboard ranks live entrants.
func (s *Service) Leaderboard(ctx context.Context, q leaderboard.Query) (rows []types.Standing, err error) {
	ctx, end := s.span(ctx, "Leaderboard",
		attribute.String("metric", string(q.Metric)),
		attribute.Int("limit", q.Limit),
	)
	defer end(&err)

	c, err := s.components()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err = c.board.Rank(ctx, q)
	if err != nil {
		return nil, err
	}
	metrics.RecordLeaderboardQuery(string(q.Metric), metrics.Since(start))
	return rows, nil
}

// Ping checks that storage answers.
func (s *Service) Ping(ctx context.Context) error {
	c, err := s.components()
	if err != nil {
		return err
	}
	return c.backing.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	c := s.c
	s.mu.RUnlock()

	stats := map[string]any{
		"started":         c != nil,
		"storageDriver":   s.storageDriver,
		"randomSource":    s.randomSource,
		"idempotencySize": s.idempotencySize,
	}
	if c == nil {
		return stats
	}

	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	occupants := len(c.arena.Occupants())
	stats["cacheEnabled"] = c.cached != nil
	stats["arenaState"] = string(types.StateFor(occupants))
	stats["arenaOccupancy"] = occupants
	stats["rememberedFights"] = c.fights.Size()
	if live, err := c.backing.List(ctx, false); err == nil {
		stats["totalEntrants"] = len(live)
		metrics.UpdateTotalEntrants(len(live))
	}
	metrics.UpdateArenaOccupancy(occupants)
	return stats
}

// errorType maps domain errors to a metric label.
func errorType(err error) string {
	switch {
	case errors.Is(err, model.ErrValidation):
		return "validation"
	case errors.Is(err, model.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrAlreadyPresent):
		return "already_present"
	case errors.Is(err, model.ErrCapacity):
		return "capacity"
	case errors.Is(err, model.ErrInsufficientEntrants):
		return "insufficient_entrants"
	case errors.Is(err, arena.ErrDraw), errors.Is(err, arena.ErrInvalidDraw):
		return "draw"
	default:
		return "internal"
	}
}

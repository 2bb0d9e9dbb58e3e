// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/types"
	"github.com/okian/arena/pkg/logger"
)

// EntrantService covers the entrant registry.
type EntrantService interface {
	AddEntrant(ctx context.Context, attrs model.Attributes) (model.Entrant, error)
	GetEntrant(ctx context.Context, id int64) (model.Entrant, error)
	GetEntrantByName(ctx context.Context, name string) (model.Entrant, error)
	DeleteEntrant(ctx context.Context, id int64) error
	ListEntrants(ctx context.Context, includeDeleted bool) ([]model.Entrant, error)
}

// ArenaService covers the contest arena.
type ArenaService interface {
	EnterArena(ctx context.Context, id int64) error
	ClearArena(ctx context.Context)
	ArenaOccupants(ctx context.Context) ([]model.Entrant, types.ArenaState, error)

	// Fight resolves the arena. Requests sharing a non-empty key get the
	// first result back with replayed set.
	Fight(ctx context.Context, idempotencyKey string) (res model.ContestResult, replayed bool, err error)
}

// LeaderboardService ranks entrants.
type LeaderboardService interface {
	Leaderboard(ctx context.Context, q leaderboard.Query) ([]types.Standing, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	EntrantService
	ArenaService
	LeaderboardService

	// Ping checks that storage answers.
	Ping(ctx context.Context) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps     Dependencies
	stats    *StatsHandler
	health   *HealthHandler
	maxLimit int
	limiter  *IPRateLimiter
	log      logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:     deps,
		stats:    NewStatsHandler(statsProvider),
		health:   NewHealthHandler(deps),
		maxLimit: defaultMaxLeaderboardLimit,
		log:      logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(middleware.Recoverer, RequestID(s.log))
	if s.limiter != nil {
		r.Use(RateLimitMiddleware(s.limiter))
	}

	r.Get("/health", MetricsMiddleware(s.health.HandleHealth, "health"))
	r.Get("/db-check", MetricsMiddleware(s.health.HandleDBCheck, "db_check"))
	r.Get("/metrics", s.health.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.stats.HandleStats, "stats"))

	r.Route("/entrants", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.handleAddEntrant, "entrants_add"))
		r.Get("/", MetricsMiddleware(s.handleListEntrants, "entrants_list"))
		r.Get("/by-name/{name}", MetricsMiddleware(s.handleGetEntrantByName, "entrants_by_name"))
		r.Get("/{id}", MetricsMiddleware(s.handleGetEntrant, "entrants_get"))
		r.Delete("/{id}", MetricsMiddleware(s.handleDeleteEntrant, "entrants_delete"))
	})

	r.Route("/arena", func(r chi.Router) {
		r.Get("/", MetricsMiddleware(s.handleGetArena, "arena_get"))
		r.Delete("/", MetricsMiddleware(s.handleClearArena, "arena_clear"))
		r.Post("/entrants", MetricsMiddleware(s.handleEnterArena, "arena_enter"))
		r.Post("/fight", MetricsMiddleware(s.handleFight, "arena_fight"))
	})

	r.Get("/leaderboard", MetricsMiddleware(s.handleLeaderboard, "leaderboard"))
}

// Handler returns a chi router with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type entrantResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Weight      int     `json:"weight"`
	Height      int     `json:"height"`
	Reach       float64 `json:"reach"`
	Age         int     `json:"age"`
	WeightClass string  `json:"weight_class"`
	Fights      int64   `json:"fights"`
	Wins        int64   `json:"wins"`
	Losses      int64   `json:"losses"`
	WinPct      float64 `json:"win_pct"`
	Deleted     bool    `json:"deleted"`
	CreatedAt   string  `json:"created_at"`
}

func toEntrantResponse(e model.Entrant) entrantResponse {
	return entrantResponse{
		ID:          e.ID,
		Name:        e.Name,
		Weight:      e.Weight,
		Height:      e.Height,
		Reach:       e.Reach,
		Age:         e.Age,
		WeightClass: string(e.WeightClass()),
		Fights:      e.Fights,
		Wins:        e.Wins,
		Losses:      e.Losses(),
		WinPct:      percent(e.WinPct()),
		Deleted:     e.Deleted,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// percent renders a ratio as a percentage with one decimal.
func percent(ratio float64) float64 {
	return math.Round(ratio*1000) / 10
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err onto a status and error code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrInvalidSort):
		return http.StatusBadRequest, "invalid_sort"
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, model.ErrAlreadyPresent):
		return http.StatusConflict, "already_present"
	case errors.Is(err, model.ErrCapacity):
		return http.StatusConflict, "arena_full"
	case errors.Is(err, model.ErrInsufficientEntrants):
		return http.StatusConflict, "insufficient_entrants"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/types"
)

type standingResponse struct {
	Rank        int     `json:"rank"`
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	WeightClass string  `json:"weight_class"`
	Fights      int64   `json:"fights"`
	Wins        int64   `json:"wins"`
	WinPct      float64 `json:"win_pct"`
	Value       float64 `json:"value"`
}

// handleLeaderboard handles GET /leaderboard?sort=wins|win_pct&include_zero=bool&limit=N.
// A missing limit returns up to the configured maximum.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	q := r.URL.Query()

	sort := q.Get("sort")
	if sort == "" {
		sort = string(model.MetricWins)
	}
	metric, err := model.ParseMetric(sort)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	includeZero, err := boolParam(r, "include_zero")
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	limit := s.maxLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > s.maxLimit {
			writeFailure(w, WrapKind(op, ErrBadRequest,
				fmt.Errorf("limit must be between 1 and %d, got %q", s.maxLimit, raw)))
			return
		}
		limit = n
	}

	rows, err := s.deps.Leaderboard(r.Context(), leaderboard.Query{
		Metric:            metric,
		IncludeZeroFights: includeZero,
		Limit:             limit,
	})
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out := make([]standingResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toStandingResponse(metric, row))
	}
	writeJSON(w, http.StatusOK, out)
}

func toStandingResponse(metric model.Metric, row types.Standing) standingResponse {
	value := row.Value
	if metric == model.MetricWinPct {
		value = percent(value)
	}
	return standingResponse{
		Rank:        row.Rank,
		ID:          row.Entrant.ID,
		Name:        row.Entrant.Name,
		WeightClass: string(row.Entrant.WeightClass()),
		Fights:      row.Entrant.Fights,
		Wins:        row.Entrant.Wins,
		WinPct:      percent(row.Entrant.WinPct()),
		Value:       value,
	}
}

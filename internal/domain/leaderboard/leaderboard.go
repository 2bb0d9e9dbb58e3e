// Package leaderboard ranks entrants by a statistic computed from their
// persisted record.
package leaderboard

import (
	"context"
	"slices"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/types"
)

// Source lists entrants. Implemented by every repository store.
type Source interface {
	List(ctx context.Context, includeDeleted bool) ([]model.Entrant, error)
}

// Query selects and shapes a ranking.
type Query struct {
	Metric            model.Metric
	IncludeZeroFights bool
	// Limit truncates the ranking after sorting; 0 means no limit.
	Limit int
}

// Leaderboard is a read-only projection over a Source.
type Leaderboard struct {
	source Source
}

// New creates a leaderboard over src.
func New(src Source) *Leaderboard {
	return &Leaderboard{source: src}
}

// Rank returns live entrants ordered by the metric value descending, then id
// ascending. Entrants without fights are reported with value 0 when
// IncludeZeroFights is set and omitted otherwise. Equal values share a rank.
func (l *Leaderboard) Rank(ctx context.Context, q Query) ([]types.Standing, error) {
	if _, err := model.ParseMetric(string(q.Metric)); err != nil {
		return nil, err
	}
	entrants, err := l.source.List(ctx, false)
	if err != nil {
		return nil, err
	}

	rows := make([]types.Standing, 0, len(entrants))
	for _, e := range entrants {
		if e.Deleted {
			continue
		}
		if e.Fights == 0 && !q.IncludeZeroFights {
			continue
		}
		rows = append(rows, types.Standing{Entrant: e, Value: value(q.Metric, e)})
	}

	slices.SortFunc(rows, func(a, b types.Standing) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		default:
			return 0
		}
	})
	assignRanks(rows)

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

func value(m model.Metric, e model.Entrant) float64 {
	if m == model.MetricWins {
		return float64(e.Wins)
	}
	return e.WinPct()
}

// less reports whether a should appear before b (higher values first).
func less(a, b types.Standing) bool {
	if a.Value != b.Value {
		return a.Value > b.Value
	}
	return a.Entrant.ID < b.Entrant.ID
}

// assignRanks gives equal values the same rank; the next distinct value
// takes the following rank.
func assignRanks(rows []types.Standing) {
	rank := 0
	for i := range rows {
		if i == 0 || rows[i].Value != rows[i-1].Value {
			rank++
		}
		rows[i].Rank = rank
	}
}

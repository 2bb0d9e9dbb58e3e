package smoketest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/arena/pkg/logger"
)

// tally is the record a boxer should have after the run's fights.
type tally struct {
	fights int64
	wins   int64
}

type runner struct {
	cfg    *Config
	client *Client
	gen    *Generator
	log    logger.Logger
	stats  *Stats

	entrants []Entrant
	tallies  map[int64]*tally
}

// Run drives a running service end to end and checks its answers. The
// service should not be taking other traffic during the run.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	r := &runner{
		cfg:     cfg,
		client:  NewClient(cfg.BaseURL, cfg.Timeout),
		gen:     NewGenerator(cfg.Seed),
		log:     logger.Get().Named("smoketest"),
		stats:   &Stats{StartTime: time.Now()},
		tallies: make(map[int64]*tally),
	}

	r.log.Info(ctx, "starting arena smoke test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("boxers", cfg.Boxers),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"health", r.checkHealth},
		{"register", r.register},
		{"fight", r.fight},
		{"records", r.verifyRecords},
		{"leaderboard", r.verifyLeaderboards},
		{"delete", r.deleteOne},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return r.stats, fmt.Errorf("%s step failed: %w", step.name, err)
		}
	}

	r.stats.Duration = time.Since(r.stats.StartTime)
	r.log.Info(ctx, "smoke test passed",
		logger.Int("boxersCreated", r.stats.BoxersCreated),
		logger.Int("fights", r.stats.Fights),
		logger.Int("replays", r.stats.Replays),
		logger.Int("deleted", r.stats.Deleted),
		logger.Int("standings", r.stats.Standings),
		logger.Duration("duration", r.stats.Duration))
	return r.stats, nil
}

func validate(cfg *Config) error {
	switch {
	case cfg == nil:
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	case cfg.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case cfg.Boxers < 3:
		return fmt.Errorf("%w: at least 3 boxers are required, got %d", ErrInvalidConfig, cfg.Boxers)
	case cfg.Rounds < 0:
		return fmt.Errorf("%w: rounds must not be negative", ErrInvalidConfig)
	case cfg.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case cfg.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

func (r *runner) checkHealth(ctx context.Context) error {
	if err := r.client.Health(ctx); err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if err := r.client.DBCheck(ctx); err != nil {
		return fmt.Errorf("database check: %w", err)
	}
	r.log.Info(ctx, "service is healthy")
	return nil
}

// register creates every boxer concurrently, then checks duplicate names are refused.
func (r *runner) register(ctx context.Context) error {
	boxers := r.gen.Boxers(r.cfg.Boxers)
	r.entrants = make([]Entrant, len(boxers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, b := range boxers {
		g.Go(func() error {
			e, err := r.client.AddEntrant(gctx, b)
			if err != nil {
				return fmt.Errorf("add %q: %w", b.Name, err)
			}
			if e.ID <= 0 || e.Name != b.Name || e.Fights != 0 || e.Wins != 0 {
				return checkFailed("unexpected new entrant %+v", e)
			}
			r.entrants[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, e := range r.entrants {
		r.tallies[e.ID] = &tally{}
	}
	r.stats.BoxersCreated = len(r.entrants)

	_, err := r.client.AddEntrant(ctx, boxers[0])
	if !IsStatus(err, http.StatusConflict) {
		return checkFailed("duplicate name: want 409, got %v", err)
	}
	r.log.Info(ctx, "boxers registered", logger.Int("count", len(r.entrants)))
	return nil
}

// fight runs the configured rounds, replaying each fight once under its key.
func (r *runner) fight(ctx context.Context) error {
	for round := range r.cfg.Rounds {
		a, b := r.gen.Pair(len(r.entrants))
		first, second := r.entrants[a], r.entrants[b]

		if err := r.client.ClearArena(ctx); err != nil {
			return err
		}
		if err := r.client.EnterByID(ctx, first.ID); err != nil {
			return fmt.Errorf("enter %d: %w", first.ID, err)
		}
		if err := r.client.EnterByID(ctx, first.ID); !IsStatus(err, http.StatusConflict) {
			return checkFailed("re-entering %d: want 409, got %v", first.ID, err)
		}
		if err := r.client.EnterByName(ctx, second.Name); err != nil {
			return fmt.Errorf("enter %q: %w", second.Name, err)
		}
		arena, err := r.client.Arena(ctx)
		if err != nil {
			return err
		}
		if arena.State != "FULL" || len(arena.Entrants) != 2 {
			return checkFailed("arena after two entries: %+v", arena)
		}
		if round == 0 {
			other := r.entrants[third(a, b)]
			if err := r.client.EnterByID(ctx, other.ID); !IsStatus(err, http.StatusConflict) {
				return checkFailed("full arena: want 409, got %v", err)
			}
		}

		key := r.gen.Key()
		res, err := r.client.Fight(ctx, key)
		if err != nil {
			return fmt.Errorf("round %d: %w", round+1, err)
		}
		if err := checkResult(res, first.ID, second.ID); err != nil {
			return err
		}
		r.tallies[res.WinnerID].fights++
		r.tallies[res.WinnerID].wins++
		r.tallies[res.LoserID].fights++
		r.stats.Fights++

		replay, err := r.client.Fight(ctx, key)
		if err != nil {
			return fmt.Errorf("replay round %d: %w", round+1, err)
		}
		if !replay.Replayed || replay.WinnerID != res.WinnerID || replay.Roll != res.Roll {
			return checkFailed("replay of %s differs: %+v vs %+v", key, replay, res)
		}
		r.stats.Replays++

		if r.cfg.Verbose {
			r.log.Info(ctx, "fight resolved",
				logger.Int("round", round+1),
				logger.Int64("winner", res.WinnerID),
				logger.Int64("loser", res.LoserID),
				logger.Float64("winnerProbability", res.WinnerProbability),
				logger.Float64("roll", res.Roll))
		}
	}
	if err := r.client.ClearArena(ctx); err != nil {
		return err
	}
	r.log.Info(ctx, "fights completed", logger.Int("fights", r.stats.Fights))
	return nil
}

// third returns the smallest index that is neither a nor b.
func third(a, b int) int {
	for i := 0; ; i++ {
		if i != a && i != b {
			return i
		}
	}
}

func checkResult(res Fight, a, b int64) error {
	pair := (res.WinnerID == a && res.LoserID == b) || (res.WinnerID == b && res.LoserID == a)
	switch {
	case !pair:
		return checkFailed("fight between %d and %d produced %+v", a, b, res)
	case res.Replayed:
		return checkFailed("first fight reported as replayed")
	case res.Roll < 0 || res.Roll >= 1:
		return checkFailed("roll %v outside [0,1)", res.Roll)
	case res.WinnerProbability < 0 || res.WinnerProbability > 1:
		return checkFailed("winner probability %v outside [0,1]", res.WinnerProbability)
	}
	return nil
}

// verifyRecords fetches every boxer concurrently and compares it with the run's tallies.
func (r *runner) verifyRecords(ctx context.Context) error {
	var mu sync.Mutex
	fetched := make(map[int64]Entrant, len(r.entrants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, e := range r.entrants {
		g.Go(func() error {
			got, err := r.client.GetEntrant(gctx, e.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			fetched[e.ID] = got
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for id, want := range r.tallies {
		if err := checkRecord(fetched[id], want); err != nil {
			return err
		}
	}
	return nil
}

func checkRecord(e Entrant, want *tally) error {
	switch {
	case e.Fights != want.fights || e.Wins != want.wins:
		return checkFailed("entrant %d: record %d/%d, want %d/%d", e.ID, e.Wins, e.Fights, want.wins, want.fights)
	case e.Wins > e.Fights:
		return checkFailed("entrant %d: wins %d exceed fights %d", e.ID, e.Wins, e.Fights)
	case e.Losses != e.Fights-e.Wins:
		return checkFailed("entrant %d: losses %d, want %d", e.ID, e.Losses, e.Fights-e.Wins)
	}
	return nil
}

func (r *runner) verifyLeaderboards(ctx context.Context) error {
	for _, metric := range []string{"wins", "win_pct"} {
		rows, err := r.client.Leaderboard(ctx, metric)
		if err != nil {
			return fmt.Errorf("leaderboard %s: %w", metric, err)
		}
		if err := CheckStandings(rows, metric == "wins"); err != nil {
			return fmt.Errorf("leaderboard %s: %w", metric, err)
		}
		for _, row := range rows {
			if t, ok := r.tallies[row.ID]; ok && metric == "wins" && row.Value != float64(t.wins) {
				return checkFailed("leaderboard wins for %d is %v, want %d", row.ID, row.Value, t.wins)
			}
		}
		r.stats.Standings = len(rows)
	}
	return nil
}

// CheckStandings verifies ordering and dense ranks. Rows must be sorted by
// value descending. With exact set, values are exact so equal values must be
// ordered by id and share a rank; win_pct values are rounded percentages and
// only the ordering and rank steps are checked.
func CheckStandings(rows []Standing, exact bool) error {
	for i, row := range rows {
		if row.Wins > row.Fights {
			return checkFailed("row %d: wins %d exceed fights %d", i, row.Wins, row.Fights)
		}
		if i == 0 {
			if row.Rank != 1 {
				return checkFailed("first rank is %d", row.Rank)
			}
			continue
		}
		prev := rows[i-1]
		if row.Value > prev.Value {
			return checkFailed("row %d: value %v above previous %v", i, row.Value, prev.Value)
		}
		if step := row.Rank - prev.Rank; step < 0 || step > 1 {
			return checkFailed("row %d: rank %d after %d", i, row.Rank, prev.Rank)
		}
		if !exact {
			continue
		}
		if row.Value == prev.Value {
			if row.Rank != prev.Rank || row.ID < prev.ID {
				return checkFailed("row %d: tie on %v not ordered by id with shared rank", i, row.Value)
			}
		} else if row.Rank != prev.Rank+1 {
			return checkFailed("row %d: rank %d after %d for a lower value", i, row.Rank, prev.Rank)
		}
	}
	return nil
}

// deleteOne soft-deletes the last boxer and checks it leaves every live view.
func (r *runner) deleteOne(ctx context.Context) error {
	victim := r.entrants[len(r.entrants)-1]
	if err := r.client.DeleteEntrant(ctx, victim.ID); err != nil {
		return err
	}
	r.stats.Deleted++

	got, err := r.client.GetEntrant(ctx, victim.ID)
	if err != nil {
		return err
	}
	if !got.Deleted {
		return checkFailed("entrant %d not marked deleted", victim.ID)
	}
	if _, err := r.client.GetEntrantByName(ctx, victim.Name); !IsStatus(err, http.StatusNotFound) {
		return checkFailed("deleted name lookup: want 404, got %v", err)
	}
	if err := r.client.DeleteEntrant(ctx, victim.ID); !IsStatus(err, http.StatusNotFound) {
		return checkFailed("second delete: want 404, got %v", err)
	}
	if err := r.client.ClearArena(ctx); err != nil {
		return err
	}
	if err := r.client.EnterByID(ctx, victim.ID); !IsStatus(err, http.StatusNotFound) {
		return checkFailed("entering deleted entrant: want 404, got %v", err)
	}

	live, err := r.client.ListEntrants(ctx)
	if err != nil {
		return err
	}
	for _, e := range live {
		if e.ID == victim.ID {
			return checkFailed("deleted entrant %d still listed", victim.ID)
		}
	}
	rows, err := r.client.Leaderboard(ctx, "wins")
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.ID == victim.ID {
			return checkFailed("deleted entrant %d still ranked", victim.ID)
		}
	}
	r.log.Info(ctx, "entrant deleted", logger.Int64("id", victim.ID))
	return nil
}

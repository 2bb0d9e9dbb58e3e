// Package arena holds up to two entrants and resolves contests between them.
package arena

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/skill"
	"github.com/okian/arena/internal/domain/types"
)

// Capacity is the number of slots in an arena.
const Capacity = 2

// Store is the storage the arena needs: live reads and the stats write.
type Store interface {
	GetByID(ctx context.Context, id int64) (model.Entrant, error)
	RecordResult(ctx context.Context, winnerID, loserID int64) error
}

// Option applies a configuration option to the Arena.
type Option func(*Arena)

// WithSkillModel sets the skill model used by Resolve.
func WithSkillModel(m *skill.Model) Option {
	return func(a *Arena) {
		if m != nil {
			a.skill = m
		}
	}
}

// WithSource sets the random source used by Resolve.
func WithSource(src Source) Option {
	return func(a *Arena) {
		if src != nil {
			a.source = src
		}
	}
}

// WithName labels the arena.
func WithName(name string) Option {
	return func(a *Arena) {
		if name != "" {
			a.name = name
		}
	}
}

// Arena is a two-slot contest area backed by an injected store. Every
// operation is serialised on one mutex; arenas share nothing but the store.
type Arena struct {
	mu     sync.Mutex
	name   string
	store  Store
	skill  *skill.Model
	source Source
	slots  []int64
}

// New creates an empty arena over store.
func New(store Store, opts ...Option) *Arena {
	a := &Arena{
		name:   "main",
		store:  store,
		skill:  skill.New(),
		source: LocalSource{},
		slots:  make([]int64, 0, Capacity),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the arena label.
func (a *Arena) Name() string { return a.name }

// Enter places entrant id into the next free slot.
func (a *Arena) Enter(ctx context.Context, id int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.slots) >= Capacity {
		return fmt.Errorf("%w: %s holds %d entrants", model.ErrCapacity, a.name, Capacity)
	}
	if slices.Contains(a.slots, id) {
		return fmt.Errorf("%w: id %d", model.ErrAlreadyPresent, id)
	}
	if _, err := a.live(ctx, id); err != nil {
		return err
	}
	a.slots = append(a.slots, id)
	return nil
}

// Clear empties the arena. Stats are untouched.
func (a *Arena) Clear(context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.slots = a.slots[:0]
}

// Occupants returns the ids in entry order.
func (a *Arena) Occupants() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.slots)
}

// State reports EMPTY, PARTIAL or FULL.
func (a *Arena) State() types.ArenaState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return types.StateFor(len(a.slots))
}

// ListActive re-reads the occupants from the store in entry order.
func (a *Arena) ListActive(ctx context.Context) ([]model.Entrant, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]model.Entrant, 0, len(a.slots))
	for _, id := range a.slots {
		e, err := a.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Resolve fights the two occupants, records the result and returns it. The
// arena keeps its occupants, so calling Resolve again runs a fresh contest.
func (a *Arena) Resolve(ctx context.Context) (model.ContestResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.slots) < Capacity {
		return model.ContestResult{}, fmt.Errorf("%w: %s holds %d", model.ErrInsufficientEntrants, a.name, len(a.slots))
	}
	first, err := a.live(ctx, a.slots[0])
	if err != nil {
		return model.ContestResult{}, err
	}
	second, err := a.live(ctx, a.slots[1])
	if err != nil {
		return model.ContestResult{}, err
	}

	skillA := a.skill.Skill(first)
	skillB := a.skill.Skill(second)
	p := a.skill.WinProbability(skillA, skillB)

	r, err := a.source.Draw(ctx)
	if err != nil {
		return model.ContestResult{}, fmt.Errorf("%w: %w", ErrDraw, err)
	}
	if r < 0 || r >= 1 {
		return model.ContestResult{}, fmt.Errorf("%w: %v", ErrInvalidDraw, r)
	}

	res := model.ContestResult{FirstID: first.ID, FirstWinProbability: p, Roll: r}
	if r < p {
		res.WinnerID, res.LoserID = first.ID, second.ID
		res.WinnerSkill, res.LoserSkill = skillA, skillB
		res.WinnerProbability = p
	} else {
		res.WinnerID, res.LoserID = second.ID, first.ID
		res.WinnerSkill, res.LoserSkill = skillB, skillA
		res.WinnerProbability = 1 - p
	}

	if err := a.store.RecordResult(ctx, res.WinnerID, res.LoserID); err != nil {
		return model.ContestResult{}, err
	}
	return res, nil
}

// live fetches id and rejects deleted entrants as not found.
func (a *Arena) live(ctx context.Context, id int64) (model.Entrant, error) {
	e, err := a.store.GetByID(ctx, id)
	if err != nil {
		return model.Entrant{}, err
	}
	if e.Deleted {
		return model.Entrant{}, fmt.Errorf("%w: id %d is deleted", model.ErrNotFound, id)
	}
	return e, nil
}

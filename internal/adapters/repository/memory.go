package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/metrics"
)

const defaultMetricsUpdateInterval = 5 * time.Second

// MemoryStore is a mutex-guarded in-memory Store. Ids are assigned from a
// monotonic counter and never reused.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[int64]*model.Entrant
	byName map[string]int64 // non-deleted only
	order  []int64
	nextID int64
	closed bool
	now    func() time.Time

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs an empty store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:                  make(map[int64]*model.Entrant),
		byName:                make(map[string]int64),
		now:                   time.Now,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Add implements EntrantStore.Add.
func (s *MemoryStore) Add(ctx context.Context, attrs model.Attributes) (model.Entrant, error) {
	start := time.Now()
	defer func() { metrics.RecordStorageLatency("add", metrics.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return model.Entrant{}, err
	}
	attrs, err := PrepareAttributes(attrs)
	if err != nil {
		return model.Entrant{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Entrant{}, ErrClosed
	}
	if _, ok := s.liveByNameLocked(attrs.Name); ok {
		return model.Entrant{}, Duplicate(attrs.Name)
	}

	s.nextID++
	e := &model.Entrant{
		ID:        s.nextID,
		Name:      attrs.Name,
		Weight:    attrs.Weight,
		Height:    attrs.Height,
		Reach:     attrs.Reach,
		Age:       attrs.Age,
		CreatedAt: s.now().UTC(),
	}
	s.byID[e.ID] = e
	s.byName[e.Name] = e.ID
	s.order = append(s.order, e.ID)
	return *e, nil
}

// GetByID implements EntrantStore.GetByID.
func (s *MemoryStore) GetByID(ctx context.Context, id int64) (model.Entrant, error) {
	if err := ctx.Err(); err != nil {
		return model.Entrant{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Entrant{}, ErrClosed
	}
	e, ok := s.byID[id]
	if !ok {
		return model.Entrant{}, NotFound(id)
	}
	return *e, nil
}

// GetByName implements EntrantStore.GetByName.
func (s *MemoryStore) GetByName(ctx context.Context, name string) (model.Entrant, error) {
	if err := ctx.Err(); err != nil {
		return model.Entrant{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Entrant{}, ErrClosed
	}
	e, ok := s.liveByNameLocked(name)
	if !ok {
		return model.Entrant{}, NameNotFound(name)
	}
	return *e, nil
}

// Delete implements EntrantStore.Delete.
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	e, ok := s.byID[id]
	if !ok || e.Deleted {
		return NotFound(id)
	}
	e.Deleted = true
	delete(s.byName, e.Name)
	return nil
}

// List implements EntrantStore.List.
func (s *MemoryStore) List(ctx context.Context, includeDeleted bool) ([]model.Entrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Entrant, 0, len(s.order))
	for _, id := range s.order {
		e := s.byID[id]
		if e.Deleted && !includeDeleted {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

// RecordResult implements StatsUpdater.RecordResult.
func (s *MemoryStore) RecordResult(ctx context.Context, winnerID, loserID int64) error {
	start := time.Now()
	defer func() { metrics.RecordStorageLatency("record_result", metrics.Since(start)) }()

	if err := CheckPair(winnerID, loserID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	w, ok := s.byID[winnerID]
	if !ok || w.Deleted {
		return NotFound(winnerID)
	}
	l, ok := s.byID[loserID]
	if !ok || l.Deleted {
		return NotFound(loserID)
	}
	w.Fights++
	w.Wins++
	l.Fights++
	return nil
}

// Ping implements Store.Ping.
func (s *MemoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close stops the metrics updater. Subsequent calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) liveByNameLocked(name string) (*model.Entrant, bool) {
	id, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.byID[id], true
}

// startMetricsUpdater periodically publishes the live entrant count.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	s.mu.RLock()
	live := len(s.byName)
	s.mu.RUnlock()
	metrics.UpdateTotalEntrants(live)
}

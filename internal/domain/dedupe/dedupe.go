// Package dedupe remembers contest results by idempotency key so a retried
// fight request replays the original outcome instead of fighting again.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/okian/arena/internal/domain/model"
)

const defaultMaxSize = 10_000

// ResolveFunc produces a fresh contest result.
type ResolveFunc func(ctx context.Context) (model.ContestResult, error)

// Store is an idempotency store for contest results.
type Store interface {
	// Do returns the result remembered for key, or runs fn once and
	// remembers its successful result. Concurrent calls with the same key
	// share a single execution. replayed reports whether this caller's fn
	// was skipped. An empty key always runs fn.
	Do(ctx context.Context, key string, fn ResolveFunc) (res model.ContestResult, replayed bool, err error)

	// Forget drops the result remembered for key.
	Forget(key string)

	Size() int64
}

type entry struct {
	key    string
	result model.ContestResult
}

// inMemoryStore keeps results in a map with FIFO eviction once maxSize is reached.
type inMemoryStore struct {
	mu      sync.Mutex
	byKey   map[string]*list.Element
	order   *list.List // front = oldest
	maxSize int
	size    atomic.Int64
	group   singleflight.Group
}

// NewInMemoryStore creates a bounded idempotency store.
func NewInMemoryStore(opts ...Option) Store {
	s := &inMemoryStore{
		byKey:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *inMemoryStore) Do(ctx context.Context, key string, fn ResolveFunc) (model.ContestResult, bool, error) {
	if key == "" {
		res, err := fn(ctx)
		return res, false, err
	}
	if res, ok := s.lookup(key); ok {
		return res, true, nil
	}

	ran := false
	ch := s.group.DoChan(key, func() (any, error) {
		if res, ok := s.lookup(key); ok {
			return res, nil
		}
		ran = true
		res, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		s.remember(key, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return model.ContestResult{}, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return model.ContestResult{}, false, r.Err
		}
		return r.Val.(model.ContestResult), !ran, nil
	}
}

func (s *inMemoryStore) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.byKey[key]; ok {
		s.order.Remove(el)
		delete(s.byKey, key)
		s.size.Add(-1)
	}
}

func (s *inMemoryStore) Size() int64 {
	return s.size.Load()
}

func (s *inMemoryStore) lookup(key string) (model.ContestResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.byKey[key]
	if !ok {
		return model.ContestResult{}, false
	}
	return el.Value.(*entry).result, true
}

func (s *inMemoryStore) remember(key string, res model.ContestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[key]; ok {
		return
	}
	if s.maxSize > 0 && s.order.Len() >= s.maxSize {
		s.evictOldest()
	}
	s.byKey[key] = s.order.PushBack(&entry{key: key, result: res})
	s.size.Add(1)
}

// evictOldest must be called with s.mu held.
func (s *inMemoryStore) evictOldest() {
	el := s.order.Front()
	if el == nil {
		return
	}
	s.order.Remove(el)
	delete(s.byKey, el.Value.(*entry).key)
	s.size.Add(-1)
}

package cache

import (
	"context"
	"errors"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Store is a repository.Store whose single-entrant reads go through the
// cache. Writes go straight to the backing store. Cache failures are logged
// and the backing store answers instead.
type Store struct {
	repository.Store
	cache *Cache
}

var _ repository.Store = (*Store)(nil)

// NewStore wraps backing with a read-through cache.
func NewStore(backing repository.Store, cache *Cache) *Store {
	return &Store{Store: backing, cache: cache}
}

// GetByID serves the entrant from the cache when present.
func (s *Store) GetByID(ctx context.Context, id int64) (model.Entrant, error) {
	e, err := s.cache.Get(ctx, id)
	if err == nil {
		metrics.RecordCacheHit()
		return e, nil
	}
	s.noteMiss(ctx, err)
	return s.load(ctx, id)
}

// GetByName resolves the name through the cached index. A stale index entry
// falls through to the backing store.
func (s *Store) GetByName(ctx context.Context, name string) (model.Entrant, error) {
	id, err := s.cache.IDByName(ctx, name)
	if err == nil {
		e, err := s.cache.Get(ctx, id)
		if err == nil && !e.Deleted && e.Name == name {
			metrics.RecordCacheHit()
			return e, nil
		}
		if err != nil {
			s.noteMiss(ctx, err)
		} else {
			metrics.RecordCacheMiss()
		}
	} else {
		s.noteMiss(ctx, err)
	}

	e, err := s.Store.GetByName(ctx, name)
	if err != nil {
		return model.Entrant{}, err
	}
	s.refill(ctx, e.ID)
	return e, nil
}

// Delete soft-deletes the entrant and drops its cache entries.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	if e, err := s.Store.GetByID(ctx, id); err == nil {
		s.logFailure(ctx, s.cache.InvalidateName(ctx, e.Name))
	}
	s.logFailure(ctx, s.cache.Invalidate(ctx, id))
	return nil
}

// RecordResult applies the result and drops both cached records.
func (s *Store) RecordResult(ctx context.Context, winnerID, loserID int64) error {
	if err := s.Store.RecordResult(ctx, winnerID, loserID); err != nil {
		return err
	}
	s.Invalidate(ctx, winnerID, loserID)
	return nil
}

// Invalidate drops the cached records for ids.
func (s *Store) Invalidate(ctx context.Context, ids ...int64) {
	s.logFailure(ctx, s.cache.Invalidate(ctx, ids...))
}

// Close closes the cache and the backing store.
func (s *Store) Close() error {
	cacheErr := s.cache.Close()
	if err := s.Store.Close(); err != nil {
		return err
	}
	return cacheErr
}

// load reads id from the backing store and caches it. When redis cannot
// start the fill the backing store answers alone.
func (s *Store) load(ctx context.Context, id int64) (model.Entrant, error) {
	var (
		e       model.Entrant
		loadErr error
		loaded  bool
	)
	err := s.cache.Fill(ctx, id, func(ctx context.Context) (model.Entrant, error) {
		e, loadErr = s.Store.GetByID(ctx, id)
		loaded = true
		return e, loadErr
	})
	if !loaded {
		s.logFailure(ctx, err)
		return s.Store.GetByID(ctx, id)
	}
	if loadErr != nil {
		return model.Entrant{}, loadErr
	}
	s.logFailure(ctx, err)
	return e, nil
}

// refill caches a fresh copy of id read under the version guard.
func (s *Store) refill(ctx context.Context, id int64) {
	var loadErr error
	err := s.cache.Fill(ctx, id, func(ctx context.Context) (model.Entrant, error) {
		var e model.Entrant
		e, loadErr = s.Store.GetByID(ctx, id)
		return e, loadErr
	})
	if loadErr == nil {
		s.logFailure(ctx, err)
	}
}

func (s *Store) noteMiss(ctx context.Context, err error) {
	metrics.RecordCacheMiss()
	if !errors.Is(err, ErrMiss) {
		s.logFailure(ctx, err)
	}
}

func (s *Store) logFailure(ctx context.Context, err error) {
	if err == nil {
		return
	}
	metrics.RecordErrorByComponent("cache", "redis")
	s.cache.log.Warn(ctx, "entrant cache unavailable", logger.Error(err))
}

package cache_test

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/cache"
	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/adapters/repository/storetest"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newCache(t *testing.T, mr *miniredis.Miniredis, opts ...cache.Option) *cache.Cache {
	t.Helper()
	client, err := cache.NewClient(context.Background(), cache.Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect miniredis: %v", err)
	}
	return cache.New(client, opts...)
}

// gatedStore holds the next armed GetByID after its read until release is
// closed, leaving a window between the backing read and the cache fill.
type gatedStore struct {
	repository.Store
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (g *gatedStore) GetByID(ctx context.Context, id int64) (model.Entrant, error) {
	e, err := g.Store.GetByID(ctx, id)
	if g.armed.CompareAndSwap(true, false) {
		g.read <- struct{}{}
		<-g.release
	}
	return e, err
}

func TestCachedStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		mr := miniredis.RunT(t)
		s := cache.NewStore(repository.NewMemoryStore(context.Background()), newCache(t, mr))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestNewClient(t *testing.T) {
	Convey("Given client options", t, func() {
		ctx := context.Background()

		Convey("An empty address is rejected", func() {
			_, err := cache.NewClient(ctx, cache.Options{})
			So(errors.Is(err, cache.ErrNoAddr), ShouldBeTrue)
		})

		Convey("An unreachable server fails the ping", func() {
			mr := miniredis.RunT(t)
			addr := mr.Addr()
			mr.Close()
			_, err := cache.NewClient(ctx, cache.Options{Addr: addr})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCache(t *testing.T) {
	Convey("Given a cache on miniredis", t, func() {
		ctx := context.Background()
		mr := miniredis.RunT(t)
		c := newCache(t, mr, cache.WithTTL(30*time.Second), cache.WithPrefix("test"))
		Reset(func() { _ = c.Close() })

		created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		e := model.Entrant{ID: 7, Name: "Ali", Weight: 180, Height: 72, Reach: 74.5, Age: 28, Fights: 3, Wins: 2, CreatedAt: created}

		Convey("Unknown keys miss", func() {
			_, err := c.Get(ctx, 7)
			So(err, ShouldEqual, cache.ErrMiss)
			_, err = c.IDByName(ctx, "Ali")
			So(err, ShouldEqual, cache.ErrMiss)
		})

		Convey("A stored entrant round trips with its name index", func() {
			So(c.Set(ctx, e), ShouldBeNil)

			got, err := c.Get(ctx, 7)
			So(err, ShouldBeNil)
			So(got.Name, ShouldEqual, "Ali")
			So(got.Reach, ShouldEqual, 74.5)
			So(got.Wins, ShouldEqual, int64(2))
			So(got.CreatedAt.Equal(created), ShouldBeTrue)

			id, err := c.IDByName(ctx, "Ali")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, int64(7))

			So(mr.Exists("test:entrant:7"), ShouldBeTrue)
			So(mr.TTL("test:entrant:7"), ShouldEqual, 30*time.Second)
		})

		Convey("Deleted entrants are not indexed by name", func() {
			e.Deleted = true
			So(c.Set(ctx, e), ShouldBeNil)
			_, err := c.IDByName(ctx, "Ali")
			So(err, ShouldEqual, cache.ErrMiss)
		})

		Convey("Entries expire with the TTL", func() {
			So(c.Set(ctx, e), ShouldBeNil)
			mr.FastForward(31 * time.Second)
			_, err := c.Get(ctx, 7)
			So(err, ShouldEqual, cache.ErrMiss)
		})

		Convey("Invalidate removes ids and names", func() {
			So(c.Set(ctx, e), ShouldBeNil)
			So(c.Invalidate(ctx, 7, 8), ShouldBeNil)
			So(c.Invalidate(ctx), ShouldBeNil)
			So(c.InvalidateName(ctx, "Ali"), ShouldBeNil)
			_, err := c.Get(ctx, 7)
			So(err, ShouldEqual, cache.ErrMiss)
			_, err = c.IDByName(ctx, "Ali")
			So(err, ShouldEqual, cache.ErrMiss)
		})

		Convey("Garbage payloads surface as decode errors", func() {
			So(mr.Set("test:entrant:9", "{"), ShouldBeNil)
			_, err := c.Get(ctx, 9)
			So(err, ShouldNotBeNil)
			So(err, ShouldNotEqual, cache.ErrMiss)
		})
	})
}

func TestCachedStore(t *testing.T) {
	Convey("Given a cached memory store", t, func() {
		ctx := context.Background()
		mr := miniredis.RunT(t)
		backing := repository.NewMemoryStore(ctx)
		s := cache.NewStore(backing, newCache(t, mr))
		Reset(func() { _ = s.Close() })

		ali, err := s.Add(ctx, storetest.Boxer("Ali"))
		So(err, ShouldBeNil)
		joe, err := s.Add(ctx, storetest.Boxer("Joe"))
		So(err, ShouldBeNil)

		Convey("A read fills the cache and later reads are served from it", func() {
			_, err := s.GetByID(ctx, ali.ID)
			So(err, ShouldBeNil)

			// Bypass the wrapper so the cached copy goes stale.
			So(backing.RecordResult(ctx, ali.ID, joe.ID), ShouldBeNil)

			got, err := s.GetByID(ctx, ali.ID)
			So(err, ShouldBeNil)
			So(got.Fights, ShouldEqual, int64(0))

			Convey("Invalidate forces a fresh read", func() {
				s.Invalidate(ctx, ali.ID)
				got, err := s.GetByID(ctx, ali.ID)
				So(err, ShouldBeNil)
				So(got.Fights, ShouldEqual, int64(1))
				So(got.Wins, ShouldEqual, int64(1))
			})
		})

		Convey("RecordResult through the wrapper invalidates both entrants", func() {
			_, _ = s.GetByID(ctx, ali.ID)
			_, _ = s.GetByID(ctx, joe.ID)
			So(s.RecordResult(ctx, joe.ID, ali.ID), ShouldBeNil)

			a, err := s.GetByID(ctx, ali.ID)
			So(err, ShouldBeNil)
			j, err := s.GetByID(ctx, joe.ID)
			So(err, ShouldBeNil)
			So(a.Fights, ShouldEqual, int64(1))
			So(j.Wins, ShouldEqual, int64(1))
		})

		Convey("Name lookups use the index until the entrant is deleted", func() {
			got, err := s.GetByName(ctx, "Ali")
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, ali.ID)

			So(s.Delete(ctx, ali.ID), ShouldBeNil)
			_, err = s.GetByName(ctx, "Ali")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

			deleted, err := s.GetByID(ctx, ali.ID)
			So(err, ShouldBeNil)
			So(deleted.Deleted, ShouldBeTrue)

			Convey("A re-added name resolves to the new entrant", func() {
				again, err := s.Add(ctx, storetest.Boxer("Ali"))
				So(err, ShouldBeNil)
				got, err := s.GetByName(ctx, "Ali")
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, again.ID)
			})
		})

		Convey("A stale name index entry falls through to the store", func() {
			So(mr.Set("arena:entrant-name:Joe", "999"), ShouldBeNil)
			got, err := s.GetByName(ctx, "Joe")
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, joe.ID)
		})

		Convey("When redis goes away reads fall back to the store", func() {
			mr.Close()
			got, err := s.GetByID(ctx, joe.ID)
			So(err, ShouldBeNil)
			So(got.Name, ShouldEqual, "Joe")
			got, err = s.GetByName(ctx, "Ali")
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, ali.ID)
			So(s.Delete(ctx, joe.ID), ShouldBeNil)
		})
	})
}

func TestCachedStoreOverlappingWrites(t *testing.T) {
	Convey("Given a cached read held between the store read and the fill", t, func() {
		ctx := context.Background()
		mr := miniredis.RunT(t)
		gated := &gatedStore{
			Store:   repository.NewMemoryStore(ctx),
			read:    make(chan struct{}),
			release: make(chan struct{}),
		}
		s := cache.NewStore(gated, newCache(t, mr))
		Reset(func() { _ = s.Close() })

		ali, err := s.Add(ctx, storetest.Boxer("Ali"))
		So(err, ShouldBeNil)
		joe, err := s.Add(ctx, storetest.Boxer("Joe"))
		So(err, ShouldBeNil)

		heldRead := func() <-chan model.Entrant {
			out := make(chan model.Entrant, 1)
			gated.armed.Store(true)
			go func() {
				e, _ := s.GetByID(ctx, ali.ID)
				out <- e
			}()
			<-gated.read
			return out
		}

		Convey("A delete in the window is not undone by the fill", func() {
			done := heldRead()
			So(s.Delete(ctx, ali.ID), ShouldBeNil)
			close(gated.release)
			So((<-done).Deleted, ShouldBeFalse)

			So(mr.Exists("arena:entrant-name:Ali"), ShouldBeFalse)
			_, err := s.GetByName(ctx, "Ali")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

			got, err := s.GetByID(ctx, ali.ID)
			So(err, ShouldBeNil)
			So(got.Deleted, ShouldBeTrue)
		})

		Convey("A recorded result in the window is not hidden by the fill", func() {
			done := heldRead()
			So(s.RecordResult(ctx, ali.ID, joe.ID), ShouldBeNil)
			close(gated.release)
			So((<-done).Fights, ShouldEqual, int64(0))

			got, err := s.GetByID(ctx, ali.ID)
			So(err, ShouldBeNil)
			So(got.Fights, ShouldEqual, int64(1))
			So(got.Wins, ShouldEqual, int64(1))
		})

		Convey("Without a concurrent write the fill lands", func() {
			done := heldRead()
			close(gated.release)
			So((<-done).Name, ShouldEqual, "Ali")
			So(mr.Exists("arena:entrant:"+strconv.FormatInt(ali.ID, 10)), ShouldBeTrue)
			So(mr.Exists("arena:entrant-name:Ali"), ShouldBeTrue)
		})
	})
}

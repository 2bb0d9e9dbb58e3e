package dedupe_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dedupe "github.com/okian/arena/internal/domain/dedupe"
	"github.com/okian/arena/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func resolver(calls *atomic.Int64, winner int64) dedupe.ResolveFunc {
	return func(context.Context) (model.ContestResult, error) {
		calls.Add(1)
		return model.ContestResult{WinnerID: winner, LoserID: winner + 1}, nil
	}
}

func TestIdempotencyStore(t *testing.T) {
	Convey("Given a new idempotency store", t, func() {
		ctx := context.Background()
		s := dedupe.NewInMemoryStore()
		var calls atomic.Int64

		So(s.Size(), ShouldEqual, int64(0))

		Convey("When a key is used for the first time", func() {
			res, replayed, err := s.Do(ctx, "k1", resolver(&calls, 1))

			Convey("Then the fight runs and is remembered", func() {
				So(err, ShouldBeNil)
				So(replayed, ShouldBeFalse)
				So(res.WinnerID, ShouldEqual, int64(1))
				So(calls.Load(), ShouldEqual, int64(1))
				So(s.Size(), ShouldEqual, int64(1))
			})

			Convey("And the same key is used again", func() {
				again, replayed, err := s.Do(ctx, "k1", resolver(&calls, 7))

				Convey("Then the stored result is replayed", func() {
					So(err, ShouldBeNil)
					So(replayed, ShouldBeTrue)
					So(again, ShouldResemble, res)
					So(calls.Load(), ShouldEqual, int64(1))
				})
			})

			Convey("And the key is forgotten", func() {
				s.Forget("k1")
				_, replayed, err := s.Do(ctx, "k1", resolver(&calls, 7))

				Convey("Then the fight runs again", func() {
					So(err, ShouldBeNil)
					So(replayed, ShouldBeFalse)
					So(calls.Load(), ShouldEqual, int64(2))
				})
			})
		})

		Convey("When no key is given", func() {
			for i := 0; i < 3; i++ {
				_, replayed, err := s.Do(ctx, "", resolver(&calls, 1))
				So(err, ShouldBeNil)
				So(replayed, ShouldBeFalse)
			}

			Convey("Then every call runs and nothing is stored", func() {
				So(calls.Load(), ShouldEqual, int64(3))
				So(s.Size(), ShouldEqual, int64(0))
			})
		})

		Convey("When the fight fails", func() {
			boom := errors.New("boom")
			_, _, err := s.Do(ctx, "k2", func(context.Context) (model.ContestResult, error) {
				return model.ContestResult{}, boom
			})

			Convey("Then the error is returned and not remembered", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				So(s.Size(), ShouldEqual, int64(0))

				_, replayed, err := s.Do(ctx, "k2", resolver(&calls, 3))
				So(err, ShouldBeNil)
				So(replayed, ShouldBeFalse)
			})
		})

		Convey("When the context is cancelled while waiting", func() {
			release := make(chan struct{})
			started := make(chan struct{})
			go func() {
				_, _, _ = s.Do(ctx, "slow", func(context.Context) (model.ContestResult, error) {
					close(started)
					<-release
					return model.ContestResult{WinnerID: 9}, nil
				})
			}()
			<-started

			cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			_, _, err := s.Do(cctx, "slow", resolver(&calls, 1))
			close(release)

			Convey("Then the waiter gives up with the context error", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, int64(0))
			})
		})
	})
}

func TestIdempotencyStoreEviction(t *testing.T) {
	Convey("Given a store bounded to three results", t, func() {
		ctx := context.Background()
		s := dedupe.NewInMemoryStore(dedupe.WithMaxSize(3))
		var calls atomic.Int64

		for i := 0; i < 5; i++ {
			_, _, err := s.Do(ctx, fmt.Sprintf("k%d", i), resolver(&calls, int64(i)))
			So(err, ShouldBeNil)
		}

		Convey("Then the oldest keys are evicted first", func() {
			So(s.Size(), ShouldEqual, int64(3))

			_, replayed, _ := s.Do(ctx, "k4", resolver(&calls, 0))
			So(replayed, ShouldBeTrue)

			_, replayed, _ = s.Do(ctx, "k0", resolver(&calls, 0))
			So(replayed, ShouldBeFalse)
		})
	})

	Convey("Given an unbounded store", t, func() {
		s := dedupe.NewInMemoryStore(dedupe.WithMaxSize(0))
		var calls atomic.Int64
		for i := 0; i < 50; i++ {
			_, _, _ = s.Do(context.Background(), fmt.Sprintf("k%d", i), resolver(&calls, 1))
		}
		So(s.Size(), ShouldEqual, int64(50))
	})
}

func TestIdempotencyStoreConcurrency(t *testing.T) {
	Convey("Given many concurrent requests with the same key", t, func() {
		ctx := context.Background()
		s := dedupe.NewInMemoryStore()
		var calls atomic.Int64
		gate := make(chan struct{})

		fn := func(context.Context) (model.ContestResult, error) {
			calls.Add(1)
			<-gate
			return model.ContestResult{WinnerID: 42}, nil
		}

		const n = 20
		var (
			wg        sync.WaitGroup
			fresh     atomic.Int64
			winners   sync.Map
			readyOnce sync.Once
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, replayed, err := s.Do(ctx, "same", fn)
				if err == nil {
					winners.Store(i, res.WinnerID)
				}
				if !replayed {
					fresh.Add(1)
				}
			}(i)
		}
		time.Sleep(20 * time.Millisecond)
		readyOnce.Do(func() { close(gate) })
		wg.Wait()

		Convey("Then exactly one fight ran and everyone saw its result", func() {
			So(calls.Load(), ShouldEqual, int64(1))
			So(fresh.Load(), ShouldEqual, int64(1))
			count := 0
			winners.Range(func(_, v any) bool {
				So(v, ShouldEqual, int64(42))
				count++
				return true
			})
			So(count, ShouldEqual, n)
		})
	})
}

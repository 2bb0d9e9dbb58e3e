package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/config"
	"github.com/okian/arena/internal/domain/arena"
	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/types"
	"github.com/okian/arena/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func boxer(name string, weight int) model.Attributes {
	return model.Attributes{Name: name, Weight: weight, Height: 70, Reach: 70, Age: 30}
}

func started(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	svc := service.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := service.New()

		Convey("Operations before Start report ErrNotStarted", func() {
			_, err := svc.AddEntrant(ctx, boxer("Ali", 180))
			So(err, ShouldEqual, service.ErrNotStarted)
			So(svc.Ping(ctx), ShouldEqual, service.ErrNotStarted)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("Start is idempotent and Stop releases everything", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			So(svc.Ping(ctx), ShouldBeNil)

			svc.Stop()
			svc.Stop()
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.Ping(ctx), ShouldEqual, service.ErrNotStarted)
		})

		Convey("Unknown drivers and random sources fail Start", func() {
			err := service.New(service.WithStorageDriver("mongo")).Start(ctx)
			So(errors.Is(err, repository.ErrUnknownDriver), ShouldBeTrue)

			err = service.New(service.WithRandomSource("dice", "", 0)).Start(ctx)
			So(errors.Is(err, service.ErrUnknownRandomSource), ShouldBeTrue)
		})

		Convey("An unreachable redis fails Start", func() {
			err := service.New(service.WithRedis("127.0.0.1:1", "", 0)).Start(ctx)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestService_WithConfig(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		cfg := config.New()
		svc := started(t, service.WithConfig(cfg))

		Convey("The service runs on the memory store with the local source", func() {
			stats := svc.GetStats()
			So(stats["storageDriver"], ShouldEqual, config.DriverMemory)
			So(stats["randomSource"], ShouldEqual, config.RandomLocal)
			So(stats["idempotencySize"], ShouldEqual, cfg.IdempotencySize)
			So(stats["cacheEnabled"], ShouldEqual, false)
			So(stats["totalEntrants"], ShouldEqual, 0)
		})
	})
}

func TestService_Contest(t *testing.T) {
	Convey("Given a started service with fixed draws", t, func() {
		ctx := context.Background()
		svc := started(t, service.WithSource(arena.Fixed(0.70, 0.75, 0.10)))

		light, err := svc.AddEntrant(ctx, boxer("Light", 180))
		So(err, ShouldBeNil)
		heavy, err := svc.AddEntrant(ctx, boxer("Heavy", 200))
		So(err, ShouldBeNil)

		Convey("Resolving an empty arena fails", func() {
			_, _, err := svc.Fight(ctx, "")
			So(errors.Is(err, model.ErrInsufficientEntrants), ShouldBeTrue)
		})

		Convey("When both enter and fight", func() {
			So(svc.EnterArena(ctx, light.ID), ShouldBeNil)
			So(svc.EnterArena(ctx, heavy.ID), ShouldBeNil)

			list, state, err := svc.ArenaOccupants(ctx)
			So(err, ShouldBeNil)
			So(state, ShouldEqual, types.ArenaFull)
			So(len(list), ShouldEqual, 2)

			res, replayed, err := svc.Fight(ctx, "bout-1")
			So(err, ShouldBeNil)
			So(replayed, ShouldBeFalse)

			Convey("Then the heavier entrant wins on a 0.70 roll", func() {
				So(res.FirstID, ShouldEqual, light.ID)
				So(res.WinnerID, ShouldEqual, heavy.ID)
				So(res.Roll, ShouldEqual, 0.70)

				h, err := svc.GetEntrant(ctx, heavy.ID)
				So(err, ShouldBeNil)
				So(h.Fights, ShouldEqual, int64(1))
				So(h.Wins, ShouldEqual, int64(1))
			})

			Convey("Then the same key replays without fighting", func() {
				again, replayed, err := svc.Fight(ctx, "bout-1")
				So(err, ShouldBeNil)
				So(replayed, ShouldBeTrue)
				So(again, ShouldResemble, res)

				l, err := svc.GetEntrant(ctx, light.ID)
				So(err, ShouldBeNil)
				So(l.Fights, ShouldEqual, int64(1))
			})

			Convey("Then the arena stays full for another round", func() {
				_, _, err := svc.Fight(ctx, "")
				So(err, ShouldBeNil)
				l, _ := svc.GetEntrant(ctx, light.ID)
				So(l.Fights, ShouldEqual, int64(2))
			})

			Convey("Then the leaderboard ranks the winner first", func() {
				rows, err := svc.Leaderboard(ctx, leaderboard.Query{Metric: model.MetricWins})
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 2)
				So(rows[0].Entrant.ID, ShouldEqual, heavy.ID)
				So(rows[0].Rank, ShouldEqual, 1)
				So(rows[1].Rank, ShouldEqual, 2)
			})

			Convey("Then deleting an occupant makes the next fight fail without changes", func() {
				So(svc.DeleteEntrant(ctx, heavy.ID), ShouldBeNil)
				_, _, err := svc.Fight(ctx, "")
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

				l, _ := svc.GetEntrant(ctx, light.ID)
				So(l.Fights, ShouldEqual, int64(1))
			})

			Convey("Then clearing empties the arena", func() {
				svc.ClearArena(ctx)
				_, state, err := svc.ArenaOccupants(ctx)
				So(err, ShouldBeNil)
				So(state, ShouldEqual, types.ArenaEmpty)
			})
		})

		Convey("Arena rules are enforced", func() {
			So(svc.EnterArena(ctx, light.ID), ShouldBeNil)
			So(errors.Is(svc.EnterArena(ctx, light.ID), model.ErrAlreadyPresent), ShouldBeTrue)
			So(errors.Is(svc.EnterArena(ctx, 99), model.ErrNotFound), ShouldBeTrue)
			So(svc.EnterArena(ctx, heavy.ID), ShouldBeNil)

			third, err := svc.AddEntrant(ctx, boxer("Third", 150))
			So(err, ShouldBeNil)
			So(errors.Is(svc.EnterArena(ctx, third.ID), model.ErrCapacity), ShouldBeTrue)
		})
	})
}

func TestService_Registry(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := started(t)

		Convey("Entrants are validated, unique and soft-deleted", func() {
			_, err := svc.AddEntrant(ctx, boxer("Tiny", 100))
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)

			ali, err := svc.AddEntrant(ctx, boxer("Ali", 180))
			So(err, ShouldBeNil)
			_, err = svc.AddEntrant(ctx, boxer("Ali", 190))
			So(errors.Is(err, model.ErrDuplicate), ShouldBeTrue)

			byName, err := svc.GetEntrantByName(ctx, "Ali")
			So(err, ShouldBeNil)
			So(byName.ID, ShouldEqual, ali.ID)

			So(svc.DeleteEntrant(ctx, ali.ID), ShouldBeNil)
			So(errors.Is(svc.DeleteEntrant(ctx, ali.ID), model.ErrNotFound), ShouldBeTrue)

			live, err := svc.ListEntrants(ctx, false)
			So(err, ShouldBeNil)
			So(live, ShouldBeEmpty)
			all, err := svc.ListEntrants(ctx, true)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 1)
		})

		Convey("Concurrent keyed fights collapse into one contest", func() {
			a, _ := svc.AddEntrant(ctx, boxer("A", 180))
			b, _ := svc.AddEntrant(ctx, boxer("B", 180))
			So(svc.EnterArena(ctx, a.ID), ShouldBeNil)
			So(svc.EnterArena(ctx, b.ID), ShouldBeNil)

			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _, _ = svc.Fight(ctx, "same-key")
				}()
			}
			wg.Wait()

			got, err := svc.GetEntrant(ctx, a.ID)
			So(err, ShouldBeNil)
			So(got.Fights, ShouldEqual, int64(1))
			So(svc.GetStats()["rememberedFights"], ShouldEqual, int64(1))
		})

		Convey("A cancelled context stops a read", func() {
			cctx, cancel := context.WithTimeout(ctx, time.Nanosecond)
			defer cancel()
			<-cctx.Done()
			_, err := svc.ListEntrants(cctx, false)
			So(err, ShouldNotBeNil)
		})
	})
}

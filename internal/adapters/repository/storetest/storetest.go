// Package storetest holds the behavioural contract every repository.Store
// implementation must satisfy.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/model"
)

// Factory returns a fresh, empty store. The factory owns cleanup.
type Factory func(t *testing.T) repository.Store

// Boxer returns valid attributes with the given name.
func Boxer(name string) model.Attributes {
	return model.Attributes{Name: name, Weight: 180, Height: 72, Reach: 74, Age: 28}
}

// Run executes the contract suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s repository.Store)
	}{
		{"AddThenGetHasZeroStats", testAddThenGet},
		{"AddTrimsName", testAddTrimsName},
		{"AddRejectsInvalid", testAddRejectsInvalid},
		{"DuplicateName", testDuplicateName},
		{"NamesAreCaseSensitive", testCaseSensitive},
		{"ReAddAfterDelete", testReAddAfterDelete},
		{"DeleteTwiceIsNotFound", testDeleteTwice},
		{"DeletedStillReadableByID", testDeletedReadableByID},
		{"GetUnknown", testGetUnknown},
		{"ListOrderAndFilter", testList},
		{"RecordResult", testRecordResult},
		{"RecordResultUnknownLeavesStats", testRecordResultUnknown},
		{"RecordResultDeletedLeavesStats", testRecordResultDeleted},
		{"RecordResultSameEntrant", testRecordResultSame},
		{"RecordResultConcurrent", testRecordResultConcurrent},
		{"Ping", testPing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func testAddThenGet(t *testing.T, s repository.Store) {
	ctx := context.Background()
	e, err := s.Add(ctx, Boxer("Ali"))
	require.NoError(t, err)
	require.Positive(t, e.ID)
	require.Zero(t, e.Fights)
	require.Zero(t, e.Wins)
	require.False(t, e.Deleted)
	require.False(t, e.CreatedAt.IsZero())

	got, err := s.GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, e.ID, got.ID)
	require.Equal(t, "Ali", got.Name)
	require.Equal(t, 180, got.Weight)
	require.Equal(t, 72, got.Height)
	require.InDelta(t, 74.0, got.Reach, 1e-9)
	require.Equal(t, 28, got.Age)
	require.Zero(t, got.Fights)
	require.Zero(t, got.Wins)

	byName, err := s.GetByName(ctx, "Ali")
	require.NoError(t, err)
	require.Equal(t, e.ID, byName.ID)
}

func testAddTrimsName(t *testing.T, s repository.Store) {
	ctx := context.Background()
	e, err := s.Add(ctx, Boxer("  Frazier "))
	require.NoError(t, err)
	require.Equal(t, "Frazier", e.Name)

	_, err = s.Add(ctx, Boxer("Frazier"))
	require.ErrorIs(t, err, model.ErrDuplicate)
}

func testAddRejectsInvalid(t *testing.T, s repository.Store) {
	ctx := context.Background()
	bad := Boxer("Light")
	bad.Weight = 100
	_, err := s.Add(ctx, bad)
	require.ErrorIs(t, err, model.ErrValidation)

	bad = Boxer("Kid")
	bad.Age = 16
	_, err = s.Add(ctx, bad)
	require.ErrorIs(t, err, model.ErrValidation)

	list, err := s.List(ctx, true)
	require.NoError(t, err)
	require.Empty(t, list)
}

func testDuplicateName(t *testing.T, s repository.Store) {
	ctx := context.Background()
	_, err := s.Add(ctx, Boxer("Ali"))
	require.NoError(t, err)
	_, err = s.Add(ctx, Boxer("Ali"))
	require.ErrorIs(t, err, model.ErrDuplicate)
}

func testCaseSensitive(t *testing.T, s repository.Store) {
	ctx := context.Background()
	_, err := s.Add(ctx, Boxer("Ali"))
	require.NoError(t, err)
	_, err = s.Add(ctx, Boxer("ali"))
	require.NoError(t, err)

	_, err = s.GetByName(ctx, "ALI")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func testReAddAfterDelete(t *testing.T, s repository.Store) {
	ctx := context.Background()
	first, err := s.Add(ctx, Boxer("Ali"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, first.ID))

	second, err := s.Add(ctx, Boxer("Ali"))
	require.NoError(t, err)
	require.Greater(t, second.ID, first.ID)

	got, err := s.GetByName(ctx, "Ali")
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)
}

func testDeleteTwice(t *testing.T, s repository.Store) {
	ctx := context.Background()
	e, err := s.Add(ctx, Boxer("Ali"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, e.ID))
	require.ErrorIs(t, s.Delete(ctx, e.ID), model.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, e.ID+1000), model.ErrNotFound)
}

func testDeletedReadableByID(t *testing.T, s repository.Store) {
	ctx := context.Background()
	e, err := s.Add(ctx, Boxer("Ali"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, e.ID))

	got, err := s.GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, got.Deleted)

	_, err = s.GetByName(ctx, "Ali")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func testGetUnknown(t *testing.T, s repository.Store) {
	ctx := context.Background()
	_, err := s.GetByID(ctx, 42)
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.GetByName(ctx, "nobody")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func testList(t *testing.T, s repository.Store) {
	ctx := context.Background()
	var ids []int64
	for i := 0; i < 4; i++ {
		e, err := s.Add(ctx, Boxer(fmt.Sprintf("boxer-%d", i)))
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	require.NoError(t, s.Delete(ctx, ids[1]))

	live, err := s.List(ctx, false)
	require.NoError(t, err)
	require.Equal(t, []int64{ids[0], ids[2], ids[3]}, entrantIDs(live))

	all, err := s.List(ctx, true)
	require.NoError(t, err)
	require.Equal(t, ids, entrantIDs(all))
	require.True(t, all[1].Deleted)
}

func testRecordResult(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a, err := s.Add(ctx, Boxer("A"))
	require.NoError(t, err)
	b, err := s.Add(ctx, Boxer("B"))
	require.NoError(t, err)

	require.NoError(t, s.RecordResult(ctx, a.ID, b.ID))
	require.NoError(t, s.RecordResult(ctx, a.ID, b.ID))
	require.NoError(t, s.RecordResult(ctx, b.ID, a.ID))

	a, err = s.GetByID(ctx, a.ID)
	require.NoError(t, err)
	b, err = s.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), a.Fights)
	require.Equal(t, int64(2), a.Wins)
	require.Equal(t, int64(3), b.Fights)
	require.Equal(t, int64(1), b.Wins)
}

func testRecordResultUnknown(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a, err := s.Add(ctx, Boxer("A"))
	require.NoError(t, err)

	require.ErrorIs(t, s.RecordResult(ctx, a.ID, a.ID+99), model.ErrNotFound)
	require.ErrorIs(t, s.RecordResult(ctx, a.ID+99, a.ID), model.ErrNotFound)

	a, err = s.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Zero(t, a.Fights)
	require.Zero(t, a.Wins)
}

func testRecordResultDeleted(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a, err := s.Add(ctx, Boxer("A"))
	require.NoError(t, err)
	b, err := s.Add(ctx, Boxer("B"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, b.ID))

	require.ErrorIs(t, s.RecordResult(ctx, a.ID, b.ID), model.ErrNotFound)
	require.ErrorIs(t, s.RecordResult(ctx, b.ID, a.ID), model.ErrNotFound)

	a, err = s.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Zero(t, a.Fights)
	b, err = s.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Zero(t, b.Fights)
}

func testRecordResultSame(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a, err := s.Add(ctx, Boxer("A"))
	require.NoError(t, err)
	require.ErrorIs(t, s.RecordResult(ctx, a.ID, a.ID), model.ErrValidation)

	a, err = s.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Zero(t, a.Fights)
}

func testRecordResultConcurrent(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a, err := s.Add(ctx, Boxer("A"))
	require.NoError(t, err)
	b, err := s.Add(ctx, Boxer("B"))
	require.NoError(t, err)

	const rounds = 20
	var wg sync.WaitGroup
	errs := make(chan error, rounds)
	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, l := a.ID, b.ID
			if i%2 == 1 {
				w, l = l, w
			}
			errs <- s.RecordResult(ctx, w, l)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	a, err = s.GetByID(ctx, a.ID)
	require.NoError(t, err)
	b, err = s.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, int64(rounds), a.Fights)
	require.Equal(t, int64(rounds), b.Fights)
	require.Equal(t, int64(rounds), a.Wins+b.Wins)
	require.LessOrEqual(t, a.Wins, a.Fights)
}

func testPing(t *testing.T, s repository.Store) {
	require.NoError(t, s.Ping(context.Background()))
}

func entrantIDs(list []model.Entrant) []int64 {
	out := make([]int64, 0, len(list))
	for _, e := range list {
		out = append(out, e.ID)
	}
	return out
}

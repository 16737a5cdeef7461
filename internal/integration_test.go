package internal

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/clock"
	"makequeue-backend/internal/course"
	"makequeue-backend/internal/machine"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/permission"
	"makequeue-backend/internal/reservation"
	"makequeue-backend/internal/store"
	"makequeue-backend/internal/testutil"
)

// TestConcurrentBookingOfOneSlot races several users for the same interval and checks
// that exactly one reservation is admitted.
func TestConcurrentBookingOfOneSlot(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	f := testutil.NewFixture(t, db)
	perms, err := permission.NewMemoryEnforcer()
	require.NoError(t, err)
	s := store.NewGormStore(db)
	svc := reservation.NewService(s, course.NewGate(perms), perms, clock.NewFrozen(testutil.Now), time.UTC)

	const racers = 8
	users := []*model.User{f.User}
	for i := 1; i < racers; i++ {
		u := f.AddUser(t, fmt.Sprintf("racer%d", i))
		f.AddCourse(t, u)
		users = append(users, u)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		overlaps int
	)
	for _, u := range users {
		wg.Add(1)
		go func(u *model.User) {
			defer wg.Done()
			_, err := svc.Create(ctx, u, reservation.CreateRequest{
				MachineID: f.Machine.ID,
				Start:     testutil.At(0, 13, 0),
				End:       testutil.At(0, 15, 0),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case apperr.Is(err, apperr.KindOverlapsExistingReservation):
				overlaps++
			default:
				t.Errorf("unexpected error for %s: %v", u.Username, err)
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, racers-1, overlaps)

	stored, err := s.ListReservationsBetween(ctx, f.Machine.ID, testutil.At(0, 0, 0), testutil.At(1, 0, 0))
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

// TestReservationDay walks one reservation from booking through use to the machine listing.
func TestReservationDay(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	f := testutil.NewFixture(t, db)
	perms, err := permission.NewMemoryEnforcer()
	require.NoError(t, err)
	s := store.NewGormStore(db)
	clk := clock.NewFrozen(testutil.Now)
	gate := course.NewGate(perms)
	reservations := reservation.NewService(s, gate, perms, clk, time.UTC)
	machines := machine.NewService(s, gate, perms, clk)

	r, err := reservations.Create(ctx, f.User, reservation.CreateRequest{
		MachineID: f.Machine.ID,
		Start:     testutil.At(0, 13, 0),
		End:       testutil.At(0, 16, 0),
	})
	require.NoError(t, err)

	listings, err := machines.List(ctx, f.User)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, model.StatusAvailable, listings[0].Status)
	require.NotNil(t, listings[0].NextReservation)
	assert.Equal(t, r.ID, listings[0].NextReservation.ID)

	clk.Set(testutil.At(0, 14, 0))
	listings, err = machines.List(ctx, f.User)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, listings[0].Status)

	_, err = reservations.Update(ctx, f.User, r.ID, reservation.UpdateRequest{Start: ptr(testutil.At(0, 13, 30))})
	assert.True(t, apperr.Is(err, apperr.KindCannotChangeStarted))

	err = reservations.Cancel(ctx, f.User, r.ID)
	assert.True(t, apperr.Is(err, apperr.KindCannotDeleteStarted))

	finished, err := reservations.MarkFinished(ctx, f.User, r.ID)
	require.NoError(t, err)
	assert.True(t, finished.EndTime.Equal(testutil.At(0, 14, 0)))

	listings, err = machines.List(ctx, f.User)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, listings[0].Status)
	assert.Nil(t, listings[0].NextReservation)
}

func ptr[T any](v T) *T {
	return &v
}

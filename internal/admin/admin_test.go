package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/store"
	"makequeue-backend/internal/testutil"
)

func tod(t *testing.T, s string) model.TimeOfDay {
	t.Helper()
	v, err := model.ParseTimeOfDay(s)
	require.NoError(t, err)
	return v
}

func TestMachineTypes(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	f := testutil.NewFixture(t, db)
	svc := NewService(store.NewGormStore(db))

	mt, err := svc.CreateMachineType(ctx, MachineTypeInput{Name: "Laser cutter", UsageRequirement: model.PermissionAuthenticated, Priority: 4})
	require.NoError(t, err)
	assert.Equal(t, model.PermissionAuthenticated, mt.UsageRequirement.ShortName)

	_, err = svc.CreateMachineType(ctx, MachineTypeInput{Name: "Laser cutter", UsageRequirement: model.PermissionAuthenticated})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.CreateMachineType(ctx, MachineTypeInput{Name: "Lathe", UsageRequirement: "NOPE"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	err = svc.DeleteMachineType(ctx, f.MachineType.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "machines still use the type")

	require.NoError(t, svc.DeleteMachineType(ctx, mt.ID))
}

func TestRules(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	f := testutil.NewFixture(t, db)
	svc := NewService(store.NewGormStore(db))

	mt := f.AddMachineType(t, "Embroidery", model.PermissionAuthenticated, 2)
	weekday := model.ReservationRule{
		StartTime:              tod(t, "08:00"),
		EndTime:                tod(t, "16:00"),
		StartDays:              model.WeekdaysOf(1, 2, 3, 4, 5),
		MaxHours:               4,
		MaxInsideBorderCrossed: 2,
	}
	created, err := svc.CreateRule(ctx, mt.ID, weekday)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	night := model.ReservationRule{
		StartTime:              tod(t, "16:00"),
		EndTime:                tod(t, "08:00"),
		DaysChanged:            1,
		StartDays:              model.WeekdaysOf(1, 2, 3, 4),
		MaxHours:               16,
		MaxInsideBorderCrossed: 4,
	}
	_, err = svc.CreateRule(ctx, mt.ID, night)
	require.NoError(t, err, "touching periods do not overlap")

	clash := weekday
	clash.StartTime = tod(t, "12:00")
	clash.EndTime = tod(t, "20:00")
	clash.StartDays = model.WeekdaysOf(3)
	_, err = svc.CreateRule(ctx, mt.ID, clash)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	longer := weekday
	longer.MaxHours = 6
	updated, err := svc.UpdateRule(ctx, mt.ID, created.ID, longer)
	require.NoError(t, err, "a rule does not clash with its stored self")
	assert.Equal(t, 6.0, updated.MaxHours)

	_, err = svc.UpdateRule(ctx, f.MachineType.ID, created.ID, longer)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.True(t, apperr.Is(svc.DeleteRule(ctx, f.MachineType.ID, created.ID), apperr.KindNotFound))
	require.NoError(t, svc.DeleteRule(ctx, mt.ID, created.ID))

	_, err = svc.CreateRule(ctx, 999, weekday)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestQuotas(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	f := testutil.NewFixture(t, db)
	s := store.NewGormStore(db)
	svc := NewService(s)

	testCases := []struct {
		name  string
		in    QuotaInput
		field string
	}{
		{"neither user nor all", QuotaInput{MachineTypeID: f.MachineType.ID, NumberOfReservations: 1}, "user"},
		{"both user and all", QuotaInput{MachineTypeID: f.MachineType.ID, UserID: &f.User.ID, All: true, NumberOfReservations: 1}, "user"},
		{"zero reservations", QuotaInput{MachineTypeID: f.MachineType.ID, All: true}, "number_of_reservations"},
		{"unknown machine type", QuotaInput{MachineTypeID: 999, All: true, NumberOfReservations: 1}, "machine_type"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateQuota(ctx, tc.in)
			appErr := apperr.From(err)
			require.NotNil(t, appErr)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			assert.Equal(t, tc.field, appErr.Field)
		})
	}

	q, err := svc.CreateQuota(ctx, QuotaInput{MachineTypeID: f.MachineType.ID, UserID: &f.User.ID, NumberOfReservations: 3, IgnoreRules: true})
	require.NoError(t, err)

	q, err = svc.UpdateQuota(ctx, q.ID, QuotaInput{MachineTypeID: f.MachineType.ID, UserID: &f.User.ID, NumberOfReservations: 1, Diminishing: true})
	require.NoError(t, err)
	assert.True(t, q.Diminishing)
	assert.False(t, q.IgnoreRules)

	r := f.AddReservation(t, &model.Reservation{UserID: f.User.ID, MachineID: f.Machine.ID, StartTime: testutil.At(0, 13, 0), EndTime: testutil.At(0, 14, 0), QuotaID: &q.ID})
	require.NoError(t, svc.DeleteQuota(ctx, q.ID))

	stored, err := s.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.QuotaID, "reservations outlive their quota")
	assert.True(t, apperr.Is(svc.DeleteQuota(ctx, q.ID), apperr.KindNotFound))
}

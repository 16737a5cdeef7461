package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/testutil"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}

func TestGormStore_LockOverlappingReservationsSQL(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB)

	start := time.Date(2018, 3, 12, 13, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "reservations" WHERE`) +
		`.*machine_id = \$1 AND end_time > \$2 AND start_time < \$3.*id <> \$4.*` +
		regexp.QuoteMeta(`ORDER BY start_time FOR UPDATE`)).
		WithArgs(7, Any{}, Any{}, 42).
		WillReturnRows(sqlmock.NewRows([]string{"id", "machine_id", "user_id", "start_time", "end_time", "kind"}).
			AddRow(41, 7, 1, start.Add(time.Hour), end.Add(time.Hour), "PERSONAL"))

	reservations, err := s.LockOverlappingReservations(context.Background(), 7, start, end, 42)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, int64(41), reservations[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_LockMachineSQL(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "machines" WHERE "machines"."id" = $1`) + `.*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "machine_type_id", "status"}).AddRow(3, "Prusa", 1, "O"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "machine_types" WHERE "machine_types"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "usage_requirement_id"}).AddRow(1, "3D printer", 2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "course_permissions" WHERE "course_permissions"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "short_name", "name"}).AddRow(2, "3DPR", "3D printer course"))

	machine, err := s.LockMachine(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOutOfOrder, machine.Status)
	assert.Equal(t, "3DPR", machine.MachineType.UsageRequirement.ShortName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsSerializationFailure(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped", errors.Join(errors.New("commit"), &pgconn.PgError{Code: "40001"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isSerializationFailure(tc.err))
		})
	}
}

func TestGormStore_WithTxRetries(t *testing.T) {
	s := NewGormStore(testutil.NewDB(t), WithRetries(3))
	ctx := context.Background()

	attempts := 0
	err := s.WithTx(ctx, func(tx Store) error {
		attempts++
		if attempts < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = s.WithTx(ctx, func(tx Store) error {
		attempts++
		return apperr.New(apperr.KindQuotaExhausted, "")
	})
	assert.True(t, apperr.Is(err, apperr.KindQuotaExhausted))
	assert.Equal(t, 1, attempts, "domain errors are not retried")

	attempts = 0
	err = s.WithTx(ctx, func(tx Store) error {
		attempts++
		return &pgconn.PgError{Code: "40P01"}
	})
	assert.True(t, isSerializationFailure(err))
	assert.Equal(t, 3, attempts, "retries are bounded")
}

func TestGormStore_WithTxRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.NewFixture(t, db)
	s := NewGormStore(db)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx Store) error {
		r := &model.Reservation{UserID: f.User.ID, MachineID: f.Machine.ID, StartTime: testutil.At(0, 13, 0), EndTime: testutil.At(0, 15, 0), Kind: model.KindPersonal}
		require.NoError(t, tx.CreateReservation(ctx, r))
		return apperr.New(apperr.KindQuotaExhausted, "")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&model.Reservation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGormStore_CountQuotaReservations(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.NewFixture(t, db)
	s := NewGormStore(db)
	ctx := context.Background()
	other := f.AddUser(t, "other")

	charge := func(user *model.User, q *model.Quota, start, end time.Time) {
		f.AddReservation(t, &model.Reservation{UserID: user.ID, MachineID: f.Machine.ID, StartTime: start, EndTime: end, QuotaID: &q.ID})
	}

	allUsers := f.Quota
	personal := f.AddQuota(t, &model.Quota{MachineTypeID: f.MachineType.ID, UserID: &f.User.ID, NumberOfReservations: 3})
	diminishing := f.AddQuota(t, &model.Quota{MachineTypeID: f.MachineType.ID, UserID: &f.User.ID, NumberOfReservations: 3, Diminishing: true})

	charge(f.User, allUsers, testutil.At(0, 13, 0), testutil.At(0, 14, 0))
	charge(other, allUsers, testutil.At(0, 14, 0), testutil.At(0, 15, 0))
	charge(f.User, allUsers, testutil.At(-2, 10, 0), testutil.At(-2, 11, 0))
	charge(f.User, personal, testutil.At(1, 10, 0), testutil.At(1, 11, 0))
	charge(f.User, personal, testutil.At(-1, 10, 0), testutil.At(-1, 11, 0))
	charge(f.User, diminishing, testutil.At(-3, 10, 0), testutil.At(-3, 11, 0))
	charge(f.User, diminishing, testutil.At(2, 10, 0), testutil.At(2, 11, 0))

	testCases := []struct {
		name     string
		quota    *model.Quota
		expected int64
	}{
		{"all-users quota counts only the user's unfinished reservations", allUsers, 1},
		{"personal quota counts unfinished reservations", personal, 1},
		{"diminishing quota counts everything", diminishing, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := s.CountQuotaReservations(ctx, tc.quota, f.User.ID, testutil.Now)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, n)
		})
	}
}

func TestGormStore_ListQuotasFor(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.NewFixture(t, db)
	s := NewGormStore(db)
	other := f.AddUser(t, "other")
	own := f.AddQuota(t, &model.Quota{MachineTypeID: f.MachineType.ID, UserID: &f.User.ID, NumberOfReservations: 1})
	f.AddQuota(t, &model.Quota{MachineTypeID: f.MachineType.ID, UserID: &other.ID, NumberOfReservations: 1})

	quotas, err := s.ListQuotasFor(context.Background(), f.MachineType.ID, f.User.ID)
	require.NoError(t, err)
	require.Len(t, quotas, 2)
	assert.Equal(t, f.Quota.ID, quotas[0].ID)
	assert.Equal(t, own.ID, quotas[1].ID)
}

func TestGormStore_Occupancy(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.NewFixture(t, db)
	s := NewGormStore(db)
	ctx := context.Background()

	f.AddReservation(t, &model.Reservation{UserID: f.User.ID, MachineID: f.Machine.ID, StartTime: testutil.At(0, 11, 0), EndTime: testutil.At(0, 12, 0)})
	next := f.AddReservation(t, &model.Reservation{UserID: f.User.ID, MachineID: f.Machine.ID, StartTime: testutil.At(0, 13, 0), EndTime: testutil.At(0, 15, 0)})

	busy, err := s.HasReservationAt(ctx, f.Machine.ID, testutil.Now)
	require.NoError(t, err)
	assert.False(t, busy, "a reservation ending at now does not cover now")

	busy, err = s.HasReservationAt(ctx, f.Machine.ID, testutil.At(0, 14, 0))
	require.NoError(t, err)
	assert.True(t, busy)

	found, err := s.NextReservation(ctx, f.Machine.ID, testutil.Now)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, next.ID, found.ID)

	found, err = s.NextReservation(ctx, f.Machine.ID, testutil.At(0, 16, 0))
	require.NoError(t, err)
	assert.Nil(t, found)

	overlapping, err := s.LockOverlappingReservations(ctx, f.Machine.ID, testutil.At(0, 12, 0), testutil.At(0, 13, 0), 0)
	require.NoError(t, err)
	assert.Empty(t, overlapping, "touching reservations do not overlap")

	overlapping, err = s.LockOverlappingReservations(ctx, f.Machine.ID, testutil.At(0, 14, 0), testutil.At(0, 16, 0), 0)
	require.NoError(t, err)
	assert.Len(t, overlapping, 1)

	overlapping, err = s.LockOverlappingReservations(ctx, f.Machine.ID, testutil.At(0, 14, 0), testutil.At(0, 16, 0), next.ID)
	require.NoError(t, err)
	assert.Empty(t, overlapping)
}

func TestGormStore_DeleteMachineType(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.NewFixture(t, db)
	s := NewGormStore(db)
	ctx := context.Background()

	err := s.DeleteMachineType(ctx, f.MachineType.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "type is still used by a machine")

	unused := f.AddMachineType(t, "Laser cutter", model.PermissionAuthenticated, 2)
	require.NoError(t, s.DeleteMachineType(ctx, unused.ID))

	_, err = s.GetMachineType(ctx, unused.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGormStore_Courses(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.NewFixture(t, db)
	s := NewGormStore(db)
	ctx := context.Background()

	course, err := s.FindCourseForUser(ctx, f.User.ID)
	require.NoError(t, err)
	require.NotNil(t, course)
	assert.Equal(t, f.Course.ID, course.ID)

	missing, err := s.FindCourseByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	card := "0123456789"
	pending := &model.Printer3DCourse{Username: "pending", DateTaken: testutil.Now, CardNumber: &card,
		CoursePermissions: []model.CoursePermission{*f.Permissions[model.PermissionSLA]}}
	require.NoError(t, s.CreateCourse(ctx, pending))

	stored, err := s.GetCourse(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasPermission(model.PermissionSLA))

	inUse, err := s.CardNumberInUse(ctx, card, 0, 0)
	require.NoError(t, err)
	assert.True(t, inUse)

	inUse, err = s.CardNumberInUse(ctx, card, 0, pending.ID)
	require.NoError(t, err)
	assert.False(t, inUse, "a course does not conflict with itself")

	stored.CoursePermissions = nil
	require.NoError(t, s.SaveCourse(ctx, stored))
	stored, err = s.GetCourse(ctx, pending.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasPermission(model.PermissionSLA))
}

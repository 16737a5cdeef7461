package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/logger"
	"makequeue-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	// WithTx runs fn inside one transaction. Serialization failures are retried.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	SaveUser(ctx context.Context, user *model.User) error
	CardNumberInUse(ctx context.Context, card string, exceptUserID, exceptCourseID int64) (bool, error)

	GetMachine(ctx context.Context, id int64) (*model.Machine, error)
	LockMachine(ctx context.Context, id int64) (*model.Machine, error)
	ListMachines(ctx context.Context) ([]model.Machine, error)
	ListMachinesOfType(ctx context.Context, machineTypeID int64) ([]model.Machine, error)
	CreateMachine(ctx context.Context, machine *model.Machine) error
	SaveMachine(ctx context.Context, machine *model.Machine) error
	DeleteMachine(ctx context.Context, id int64) error

	GetMachineType(ctx context.Context, id int64) (*model.MachineType, error)
	ListMachineTypes(ctx context.Context) ([]model.MachineType, error)
	CreateMachineType(ctx context.Context, machineType *model.MachineType) error
	DeleteMachineType(ctx context.Context, id int64) error

	GetCoursePermission(ctx context.Context, shortName string) (*model.CoursePermission, error)
	ListCoursePermissions(ctx context.Context, shortNames []string) ([]model.CoursePermission, error)
	UpsertCoursePermission(ctx context.Context, permission *model.CoursePermission) error

	GetCourse(ctx context.Context, id int64) (*model.Printer3DCourse, error)
	FindCourseForUser(ctx context.Context, userID int64) (*model.Printer3DCourse, error)
	FindCourseByUsername(ctx context.Context, username string) (*model.Printer3DCourse, error)
	CreateCourse(ctx context.Context, course *model.Printer3DCourse) error
	SaveCourse(ctx context.Context, course *model.Printer3DCourse) error

	GetRule(ctx context.Context, id int64) (*model.ReservationRule, error)
	ListRules(ctx context.Context, machineTypeID int64) ([]model.ReservationRule, error)
	CreateRule(ctx context.Context, rule *model.ReservationRule) error
	SaveRule(ctx context.Context, rule *model.ReservationRule) error
	DeleteRule(ctx context.Context, id int64) error

	GetQuota(ctx context.Context, id int64) (*model.Quota, error)
	ListQuotas(ctx context.Context, machineTypeID int64) ([]model.Quota, error)
	ListQuotasFor(ctx context.Context, machineTypeID, userID int64) ([]model.Quota, error)
	CreateQuota(ctx context.Context, quota *model.Quota) error
	SaveQuota(ctx context.Context, quota *model.Quota) error
	DeleteQuota(ctx context.Context, id int64) error
	CountQuotaReservations(ctx context.Context, quota *model.Quota, userID int64, now time.Time) (int64, error)

	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	LockOverlappingReservations(ctx context.Context, machineID int64, start, end time.Time, exceptID int64) ([]model.Reservation, error)
	ListReservationsBetween(ctx context.Context, machineID int64, start, end time.Time) ([]model.Reservation, error)
	ListReservationsEndingAfter(ctx context.Context, machineID int64, t time.Time) ([]model.Reservation, error)
	ListUserReservations(ctx context.Context, userID int64) ([]model.Reservation, error)
	ListNonPersonalReservations(ctx context.Context) ([]model.Reservation, error)
	HasReservationAt(ctx context.Context, machineID int64, t time.Time) (bool, error)
	NextReservation(ctx context.Context, machineID int64, after time.Time) (*model.Reservation, error)
	CreateReservation(ctx context.Context, reservation *model.Reservation) error
	SaveReservation(ctx context.Context, reservation *model.Reservation) error
	DeleteReservation(ctx context.Context, id int64) error
}

// Option configures a gormStore.
type Option func(*gormStore)

// WithRetries bounds how many times a transaction is attempted on serialization failure.
func WithRetries(n int) Option {
	return func(s *gormStore) {
		if n > 0 {
			s.retries = n
		}
	}
}

// WithSerializable runs transactions at SERIALIZABLE isolation. Only meaningful on postgres.
func WithSerializable() Option {
	return func(s *gormStore) {
		s.txOptions = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db        *gorm.DB
	retries   int
	txOptions *sql.TxOptions
	inTx      bool
	logger    *slog.Logger
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts ...Option) Store {
	s := &gormStore{db: db, retries: 3, logger: logger.WithComponent("store")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *gormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	var err error
	for attempt := 1; attempt <= s.retries; attempt++ {
		err = s.transaction(ctx, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
		s.logger.Warn("transaction conflict, retrying", "attempt", attempt, "error", err)
	}
	return err
}

func (s *gormStore) transaction(ctx context.Context, fn func(tx Store) error) error {
	body := func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, retries: 1, inTx: true, logger: s.logger})
	}
	if s.txOptions != nil {
		return s.db.WithContext(ctx).Transaction(body, s.txOptions)
	}
	return s.db.WithContext(ctx).Transaction(body)
}

// isSerializationFailure matches postgres serialization_failure and deadlock_detected.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// isExclusionViolation matches the reservation overlap exclusion constraint on postgres.
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// notFound converts gorm's missing-row error into the API error for entity.
func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity)
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}

// utc normalizes instants before they reach the database so that text-backed
// time columns compare correctly.
func utc(t time.Time) time.Time {
	return t.UTC()
}

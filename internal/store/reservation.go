package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/model"
)

func (s *gormStore) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	var reservation model.Reservation
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Machine.MachineType.UsageRequirement").
		First(&reservation, id).Error
	if err != nil {
		return nil, notFound(err, "Reservation")
	}
	return &reservation, nil
}

// LockOverlappingReservations returns the reservations on machineID that intersect
// [start, end), locking them FOR UPDATE. exceptID is skipped when non-zero.
func (s *gormStore) LockOverlappingReservations(ctx context.Context, machineID int64, start, end time.Time, exceptID int64) ([]model.Reservation, error) {
	query := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("machine_id = ? AND end_time > ? AND start_time < ?", machineID, utc(start), utc(end))
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}

	var reservations []model.Reservation
	if err := query.Order("start_time").Find(&reservations).Error; err != nil {
		return nil, fmt.Errorf("failed to lock reservations of machine %d: %w", machineID, err)
	}
	return reservations, nil
}

// ListReservationsBetween returns reservations on machineID that intersect [start, end).
func (s *gormStore) ListReservationsBetween(ctx context.Context, machineID int64, start, end time.Time) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("machine_id = ? AND end_time > ? AND start_time < ?", machineID, utc(start), utc(end)).
		Order("start_time").
		Find(&reservations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations of machine %d: %w", machineID, err)
	}
	return reservations, nil
}

// ListReservationsEndingAfter returns reservations on machineID with end_time >= t, ordered by start.
func (s *gormStore) ListReservationsEndingAfter(ctx context.Context, machineID int64, t time.Time) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Where("machine_id = ? AND end_time >= ?", machineID, utc(t)).
		Order("start_time").
		Find(&reservations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list future reservations of machine %d: %w", machineID, err)
	}
	return reservations, nil
}

func (s *gormStore) ListUserReservations(ctx context.Context, userID int64) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Machine.MachineType.UsageRequirement").
		Where("user_id = ?", userID).
		Order("end_time DESC").Order("start_time DESC").
		Find(&reservations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations of user %d: %w", userID, err)
	}
	return reservations, nil
}

func (s *gormStore) ListNonPersonalReservations(ctx context.Context) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Machine.MachineType.UsageRequirement").
		Where("kind <> ?", model.KindPersonal).
		Order("end_time DESC").Order("start_time DESC").
		Find(&reservations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list event reservations: %w", err)
	}
	return reservations, nil
}

// HasReservationAt reports whether a reservation on machineID covers [t, t+1s).
func (s *gormStore) HasReservationAt(ctx context.Context, machineID int64, t time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("machine_id = ? AND start_time < ? AND end_time > ?", machineID, utc(t.Add(time.Second)), utc(t)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check occupancy of machine %d: %w", machineID, err)
	}
	return count > 0, nil
}

// NextReservation returns the first reservation starting after the given instant, or nil.
func (s *gormStore) NextReservation(ctx context.Context, machineID int64, after time.Time) (*model.Reservation, error) {
	var reservation model.Reservation
	err := s.db.WithContext(ctx).
		Where("machine_id = ? AND start_time > ?", machineID, utc(after)).
		Order("start_time").
		First(&reservation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find next reservation of machine %d: %w", machineID, err)
	}
	return &reservation, nil
}

func (s *gormStore) CreateReservation(ctx context.Context, reservation *model.Reservation) error {
	reservation.StartTime = utc(reservation.StartTime)
	reservation.EndTime = utc(reservation.EndTime)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(reservation).Error; err != nil {
		if isExclusionViolation(err) {
			return apperr.New(apperr.KindOverlapsExistingReservation, "")
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (s *gormStore) SaveReservation(ctx context.Context, reservation *model.Reservation) error {
	reservation.StartTime = utc(reservation.StartTime)
	reservation.EndTime = utc(reservation.EndTime)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(reservation).Error; err != nil {
		if isExclusionViolation(err) {
			return apperr.New(apperr.KindOverlapsExistingReservation, "")
		}
		return fmt.Errorf("failed to save reservation %d: %w", reservation.ID, err)
	}
	return nil
}

func (s *gormStore) DeleteReservation(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.Reservation{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete reservation %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Reservation")
	}
	return nil
}

package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/model"
)

func (s *gormStore) GetRule(ctx context.Context, id int64) (*model.ReservationRule, error) {
	var rule model.ReservationRule
	if err := s.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		return nil, notFound(err, "Rule")
	}
	return &rule, nil
}

func (s *gormStore) ListRules(ctx context.Context, machineTypeID int64) ([]model.ReservationRule, error) {
	var rules []model.ReservationRule
	if err := s.db.WithContext(ctx).Where("machine_type_id = ?", machineTypeID).Order("id").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list rules of machine type %d: %w", machineTypeID, err)
	}
	return rules, nil
}

func (s *gormStore) CreateRule(ctx context.Context, rule *model.ReservationRule) error {
	if err := s.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

func (s *gormStore) SaveRule(ctx context.Context, rule *model.ReservationRule) error {
	if err := s.db.WithContext(ctx).Save(rule).Error; err != nil {
		return fmt.Errorf("failed to save rule %d: %w", rule.ID, err)
	}
	return nil
}

func (s *gormStore) DeleteRule(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.ReservationRule{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete rule %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Rule")
	}
	return nil
}

func (s *gormStore) GetQuota(ctx context.Context, id int64) (*model.Quota, error) {
	var quota model.Quota
	if err := s.db.WithContext(ctx).First(&quota, id).Error; err != nil {
		return nil, notFound(err, "Quota")
	}
	return &quota, nil
}

func (s *gormStore) ListQuotas(ctx context.Context, machineTypeID int64) ([]model.Quota, error) {
	var quotas []model.Quota
	if err := s.db.WithContext(ctx).Where("machine_type_id = ?", machineTypeID).Order("id").Find(&quotas).Error; err != nil {
		return nil, fmt.Errorf("failed to list quotas of machine type %d: %w", machineTypeID, err)
	}
	return quotas, nil
}

// ListQuotasFor returns the quotas of machineTypeID that apply to userID: their own and the all-users ones.
func (s *gormStore) ListQuotasFor(ctx context.Context, machineTypeID, userID int64) ([]model.Quota, error) {
	var quotas []model.Quota
	err := s.db.WithContext(ctx).
		Where("machine_type_id = ? AND (user_id = ? OR all_users = ?)", machineTypeID, userID, true).
		Order("id").
		Find(&quotas).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list quotas of user %d: %w", userID, err)
	}
	return quotas, nil
}

func (s *gormStore) CreateQuota(ctx context.Context, quota *model.Quota) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(quota).Error; err != nil {
		return fmt.Errorf("failed to create quota: %w", err)
	}
	return nil
}

func (s *gormStore) SaveQuota(ctx context.Context, quota *model.Quota) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(quota).Error; err != nil {
		return fmt.Errorf("failed to save quota %d: %w", quota.ID, err)
	}
	return nil
}

// DeleteQuota detaches the reservations the quota carried before removing it.
func (s *gormStore) DeleteQuota(ctx context.Context, id int64) error {
	if err := s.db.WithContext(ctx).Model(&model.Reservation{}).Where("quota_id = ?", id).Update("quota_id", nil).Error; err != nil {
		return fmt.Errorf("failed to detach reservations from quota %d: %w", id, err)
	}
	res := s.db.WithContext(ctx).Delete(&model.Quota{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete quota %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Quota")
	}
	return nil
}

// CountQuotaReservations counts the reservations that occupy quota for userID.
// Diminishing quotas count everything ever charged; others only reservations not yet ended,
// narrowed to the user for all-users quotas.
func (s *gormStore) CountQuotaReservations(ctx context.Context, quota *model.Quota, userID int64, now time.Time) (int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Reservation{}).Where("quota_id = ?", quota.ID)
	if !quota.Diminishing {
		if quota.All {
			query = query.Where("user_id = ?", userID)
		}
		query = query.Where("end_time >= ?", utc(now))
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count reservations on quota %d: %w", quota.ID, err)
	}
	return count, nil
}

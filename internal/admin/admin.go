// Package admin maintains machine types, their reservation rules and quotas.
package admin

import (
	"context"
	"log/slog"
	"strings"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/logger"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/rules"
	"makequeue-backend/internal/store"
)

type Service struct {
	store  store.Store
	logger *slog.Logger
}

func NewService(s store.Store) *Service {
	return &Service{store: s, logger: logger.WithComponent("admin")}
}

// MachineTypeInput carries the fields of a new machine type.
type MachineTypeInput struct {
	Name             string
	UsageRequirement string
	CannotUseText    string
	HasStream        bool
	Priority         int
}

func (s *Service) CreateMachineType(ctx context.Context, in MachineTypeInput) (*model.MachineType, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.New(apperr.KindValidation, "This field is required.").OnField("name")
	}
	requirement, err := s.store.GetCoursePermission(ctx, in.UsageRequirement)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.New(apperr.KindValidation, "Unknown course permission.").OnField("usage_requirement")
		}
		return nil, err
	}

	mt := &model.MachineType{
		Name:               name,
		CannotUseText:      in.CannotUseText,
		UsageRequirementID: requirement.ID,
		UsageRequirement:   *requirement,
		HasStream:          in.HasStream,
		Priority:           in.Priority,
	}
	if err := s.store.CreateMachineType(ctx, mt); err != nil {
		if apperr.IsDuplicate(err) {
			return nil, apperr.New(apperr.KindValidation, "A machine type with this name already exists.").OnField("name")
		}
		return nil, err
	}
	s.logger.Info("machine type created", "machine_type_id", mt.ID, "name", mt.Name)
	return mt, nil
}

func (s *Service) DeleteMachineType(ctx context.Context, id int64) error {
	return s.store.DeleteMachineType(ctx, id)
}

// CreateRule validates rule against the other rules of its machine type and stores it.
func (s *Service) CreateRule(ctx context.Context, machineTypeID int64, rule model.ReservationRule) (*model.ReservationRule, error) {
	rule.ID = 0
	rule.MachineTypeID = machineTypeID
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetMachineType(ctx, machineTypeID); err != nil {
			return err
		}
		others, err := tx.ListRules(ctx, machineTypeID)
		if err != nil {
			return err
		}
		if err := rules.ValidateRule(&rule, others); err != nil {
			return err
		}
		return tx.CreateRule(ctx, &rule)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("rule created", "rule_id", rule.ID, "machine_type_id", machineTypeID)
	return &rule, nil
}

func (s *Service) UpdateRule(ctx context.Context, machineTypeID, ruleID int64, rule model.ReservationRule) (*model.ReservationRule, error) {
	rule.ID = ruleID
	rule.MachineTypeID = machineTypeID
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		stored, err := tx.GetRule(ctx, ruleID)
		if err != nil {
			return err
		}
		if stored.MachineTypeID != machineTypeID {
			return apperr.NotFound("Rule")
		}
		others, err := tx.ListRules(ctx, machineTypeID)
		if err != nil {
			return err
		}
		if err := rules.ValidateRule(&rule, others); err != nil {
			return err
		}
		return tx.SaveRule(ctx, &rule)
	})
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *Service) DeleteRule(ctx context.Context, machineTypeID, ruleID int64) error {
	return s.store.WithTx(ctx, func(tx store.Store) error {
		stored, err := tx.GetRule(ctx, ruleID)
		if err != nil {
			return err
		}
		if stored.MachineTypeID != machineTypeID {
			return apperr.NotFound("Rule")
		}
		return tx.DeleteRule(ctx, ruleID)
	})
}

// QuotaInput carries the fields of a quota. Exactly one of UserID and All must be set.
type QuotaInput struct {
	MachineTypeID        int64
	UserID               *int64
	All                  bool
	NumberOfReservations int
	Diminishing          bool
	IgnoreRules          bool
}

func (s *Service) CreateQuota(ctx context.Context, in QuotaInput) (*model.Quota, error) {
	q := &model.Quota{}
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := applyQuota(ctx, tx, q, in); err != nil {
			return err
		}
		return tx.CreateQuota(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("quota created", "quota_id", q.ID, "machine_type_id", q.MachineTypeID, "all", q.All)
	return q, nil
}

func (s *Service) UpdateQuota(ctx context.Context, id int64, in QuotaInput) (*model.Quota, error) {
	var q *model.Quota
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		q, err = tx.GetQuota(ctx, id)
		if err != nil {
			return err
		}
		if err := applyQuota(ctx, tx, q, in); err != nil {
			return err
		}
		return tx.SaveQuota(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) DeleteQuota(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(tx store.Store) error {
		return tx.DeleteQuota(ctx, id)
	})
}

func applyQuota(ctx context.Context, tx store.Store, q *model.Quota, in QuotaInput) error {
	if (in.UserID == nil) == !in.All {
		return apperr.New(apperr.KindValidation, "A quota must apply to either one user or all users.").OnField("user")
	}
	if in.NumberOfReservations < 1 {
		return apperr.New(apperr.KindValidation, "Ensure this value is greater than or equal to 1.").OnField("number_of_reservations")
	}
	if _, err := tx.GetMachineType(ctx, in.MachineTypeID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.New(apperr.KindValidation, "Unknown machine type.").OnField("machine_type")
		}
		return err
	}
	if in.UserID != nil {
		if _, err := tx.GetUser(ctx, *in.UserID); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.New(apperr.KindValidation, "Unknown user.").OnField("user")
			}
			return err
		}
	}

	q.MachineTypeID = in.MachineTypeID
	q.UserID = in.UserID
	q.All = in.All
	q.NumberOfReservations = in.NumberOfReservations
	q.Diminishing = in.Diminishing
	q.IgnoreRules = in.IgnoreRules
	return nil
}

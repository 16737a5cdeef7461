package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/model"
)

func (s *gormStore) GetMachine(ctx context.Context, id int64) (*model.Machine, error) {
	var machine model.Machine
	if err := s.db.WithContext(ctx).Preload("MachineType.UsageRequirement").First(&machine, id).Error; err != nil {
		return nil, notFound(err, "Machine")
	}
	return &machine, nil
}

// LockMachine re-reads the machine row and holds it until the surrounding transaction ends.
func (s *gormStore) LockMachine(ctx context.Context, id int64) (*model.Machine, error) {
	var machine model.Machine
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&machine, id).Error
	if err != nil {
		return nil, notFound(err, "Machine")
	}

	var machineType model.MachineType
	if err := s.db.WithContext(ctx).Preload("UsageRequirement").First(&machineType, machine.MachineTypeID).Error; err != nil {
		return nil, notFound(err, "Machine type")
	}
	machine.MachineType = machineType
	return &machine, nil
}

func (s *gormStore) ListMachines(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Preload("MachineType.UsageRequirement").Order("id").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	return machines, nil
}

func (s *gormStore) ListMachinesOfType(ctx context.Context, machineTypeID int64) ([]model.Machine, error) {
	var machines []model.Machine
	err := s.db.WithContext(ctx).
		Preload("MachineType.UsageRequirement").
		Where("machine_type_id = ?", machineTypeID).
		Order("id").
		Find(&machines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list machines of type %d: %w", machineTypeID, err)
	}
	return machines, nil
}

func (s *gormStore) CreateMachine(ctx context.Context, machine *model.Machine) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(machine).Error; err != nil {
		if apperr.IsDuplicate(err) {
			return apperr.New(apperr.KindValidation, "A machine with this name already exists.").OnField("name")
		}
		return fmt.Errorf("failed to create machine: %w", err)
	}
	return nil
}

func (s *gormStore) SaveMachine(ctx context.Context, machine *model.Machine) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(machine).Error; err != nil {
		if apperr.IsDuplicate(err) {
			return apperr.New(apperr.KindValidation, "A machine with this name already exists.").OnField("name")
		}
		return fmt.Errorf("failed to save machine %d: %w", machine.ID, err)
	}
	return nil
}

func (s *gormStore) DeleteMachine(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("machine_id = ?", id).Delete(&model.Reservation{}).Error; err != nil {
			return fmt.Errorf("failed to delete reservations of machine %d: %w", id, err)
		}
		res := tx.Delete(&model.Machine{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete machine %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Machine")
		}
		return nil
	})
}

func (s *gormStore) GetMachineType(ctx context.Context, id int64) (*model.MachineType, error) {
	var machineType model.MachineType
	if err := s.db.WithContext(ctx).Preload("UsageRequirement").First(&machineType, id).Error; err != nil {
		return nil, notFound(err, "Machine type")
	}
	return &machineType, nil
}

func (s *gormStore) ListMachineTypes(ctx context.Context) ([]model.MachineType, error) {
	var machineTypes []model.MachineType
	if err := s.db.WithContext(ctx).Preload("UsageRequirement").Order("priority").Order("id").Find(&machineTypes).Error; err != nil {
		return nil, fmt.Errorf("failed to list machine types: %w", err)
	}
	return machineTypes, nil
}

func (s *gormStore) CreateMachineType(ctx context.Context, machineType *model.MachineType) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(machineType).Error; err != nil {
		return fmt.Errorf("failed to create machine type: %w", err)
	}
	return nil
}

// DeleteMachineType refuses while any machine still references the type.
func (s *gormStore) DeleteMachineType(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Machine{}).Where("machine_type_id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count machines of type %d: %w", id, err)
		}
		if count > 0 {
			return apperr.Newf(apperr.KindConflict, "The machine type is used by %d machine(s).", count)
		}
		for _, dependent := range []any{&model.ReservationRule{}, &model.Quota{}} {
			if err := tx.Where("machine_type_id = ?", id).Delete(dependent).Error; err != nil {
				return fmt.Errorf("failed to delete dependents of machine type %d: %w", id, err)
			}
		}
		res := tx.Delete(&model.MachineType{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete machine type %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Machine type")
		}
		return nil
	})
}

// Package machine derives the live state of machines and manages the machine records.
package machine

import (
	"context"
	"sort"
	"strings"
	"time"

	"makequeue-backend/internal/model"
	"makequeue-backend/internal/permission"
)

// Occupancy is the part of the store the derived status needs.
type Occupancy interface {
	HasReservationAt(ctx context.Context, machineID int64, t time.Time) (bool, error)
}

// DerivedStatus combines the stored status with current occupancy.
func DerivedStatus(ctx context.Context, occ Occupancy, m *model.Machine, now time.Time) (model.MachineStatus, error) {
	if m.Status == model.StatusOutOfOrder || m.Status == model.StatusMaintenance {
		return m.Status, nil
	}
	reserved, err := occ.HasReservationAt(ctx, m.ID, now)
	if err != nil {
		return "", err
	}
	if reserved {
		return model.StatusReserved, nil
	}
	return model.StatusAvailable, nil
}

// Reservable reports whether new time may be booked on a machine in the given derived status.
func Reservable(status model.MachineStatus) bool {
	switch status {
	case model.StatusAvailable, model.StatusReserved, model.StatusInUse:
		return true
	}
	return false
}

// VisibleTo filters machines down to the ones u may see. c is u's course, possibly nil.
func VisibleTo(machines []model.Machine, u *model.User, c *model.Printer3DCourse, perms permission.Checker) []model.Machine {
	if perms.Can(u, permission.InternalMember) {
		return machines
	}

	hasSLA := c.HasPermission(model.PermissionSLA)
	visible := make([]model.Machine, 0, len(machines))
	for _, m := range machines {
		if m.Internal {
			continue
		}
		if m.MachineType.UsageRequirement.ShortName == model.PermissionSLA && !hasSLA {
			continue
		}
		visible = append(visible, m)
	}
	return visible
}

// SortDefault orders machines by type priority, then machine priority with unset last, then name.
func SortDefault(machines []model.Machine) {
	sort.SliceStable(machines, func(i, j int) bool {
		a, b := &machines[i], &machines[j]
		if a.MachineType.Priority != b.MachineType.Priority {
			return a.MachineType.Priority < b.MachineType.Priority
		}
		switch {
		case a.Priority != nil && b.Priority == nil:
			return true
		case a.Priority == nil && b.Priority != nil:
			return false
		case a.Priority != nil && *a.Priority != *b.Priority:
			return *a.Priority < *b.Priority
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

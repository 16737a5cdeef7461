package reservation

import (
	"context"
	"math"
	"sort"
	"time"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/machine"
	"makequeue-backend/internal/model"
)

// Slot is a free stretch of time on one machine.
type Slot struct {
	Machine model.Machine
	Start   time.Time
	End     time.Time
}

// DurationHours is the slot length rounded up to whole hours.
func (s Slot) DurationHours() int {
	return int(math.Ceil(s.End.Sub(s.Start).Hours()))
}

// FindFreeSlots lists the gaps of at least hours on every usable machine of a type,
// earliest first. hours may not exceed the booking horizon. The open-ended slot after the last reservation is included regardless of
// its length unless the last reservation already reaches past the booking horizon.
func (s *Service) FindFreeSlots(ctx context.Context, machineTypeID int64, hours float64) ([]Slot, error) {
	if math.IsNaN(hours) || hours <= 0 {
		return nil, apperr.New(apperr.KindValidation, "The duration must be positive.").OnField("hours")
	}
	if hours > model.FutureLimit.Hours() {
		return nil, apperr.Newf(apperr.KindValidation, "The duration cannot exceed %g hours.", model.FutureLimit.Hours()).OnField("hours")
	}
	if _, err := s.store.GetMachineType(ctx, machineTypeID); err != nil {
		return nil, err
	}

	machines, err := s.store.ListMachinesOfType(ctx, machineTypeID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	horizon := now.Add(model.FutureLimit)

	var slots []Slot
	for _, m := range machines {
		status, err := machine.DerivedStatus(ctx, s.store, &m, now)
		if err != nil {
			return nil, err
		}
		if status == model.StatusOutOfOrder {
			continue
		}

		reservations, err := s.store.ListReservationsEndingAfter(ctx, m.ID, now)
		if err != nil {
			return nil, err
		}
		slots = append(slots, machineSlots(m, reservations, now, horizon, hours)...)
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots, nil
}

// machineSlots expects reservations ordered by start. Gaps are compared in float hours so
// no duration conversion can overflow.
func machineSlots(m model.Machine, reservations []model.Reservation, now, horizon time.Time, hours float64) []Slot {
	if len(reservations) == 0 {
		return []Slot{{Machine: m, Start: now, End: horizon}}
	}

	var slots []Slot
	if first := reservations[0]; first.StartTime.Sub(now).Hours() >= hours {
		slots = append(slots, Slot{Machine: m, Start: now, End: first.StartTime})
	}
	for i := 0; i+1 < len(reservations); i++ {
		a, b := reservations[i], reservations[i+1]
		if b.StartTime.Sub(a.EndTime).Hours() >= hours {
			slots = append(slots, Slot{Machine: m, Start: a.EndTime, End: b.StartTime})
		}
	}
	if last := reservations[len(reservations)-1]; last.EndTime.Before(horizon) {
		slots = append(slots, Slot{Machine: m, Start: last.EndTime, End: horizon})
	}
	return slots
}

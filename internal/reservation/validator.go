package reservation

import (
	"context"
	"time"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/course"
	"makequeue-backend/internal/machine"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/permission"
	"makequeue-backend/internal/quota"
	"makequeue-backend/internal/store"
)

// Validator runs the admission checks for a reservation against a locked snapshot.
type Validator struct {
	gate  *course.Gate
	perms permission.Checker
	loc   *time.Location
}

func NewValidator(gate *course.Gate, perms permission.Checker, loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	return &Validator{gate: gate, perms: perms, loc: loc}
}

// Check describes one admission decision.
type Check struct {
	Actor *model.User
	// Owner is the user the reservation belongs to.
	Owner   *model.User
	Machine *model.Machine
	// Candidate holds the proposed values. Its QuotaID is set on success.
	Candidate *model.Reservation
	// Existing is the stored reservation when updating, nil when creating.
	Existing *model.Reservation
	Now      time.Time
}

// Validate admits or rejects c.Candidate. tx must be the transaction that locked c.Machine.
func (v *Validator) Validate(ctx context.Context, tx store.Store, c Check) error {
	r := c.Candidate

	canUse, err := v.gate.CanUserUse(ctx, tx, &c.Machine.MachineType, c.Owner)
	if err != nil {
		return err
	}
	if !canUse {
		return apperr.New(apperr.KindNotAuthorizedForMachineType, c.Machine.MachineType.CannotUseText)
	}

	var exceptID int64
	if c.Existing != nil {
		exceptID = c.Existing.ID
	}
	overlapping, err := tx.LockOverlappingReservations(ctx, c.Machine.ID, r.StartTime, r.EndTime, exceptID)
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		return apperr.New(apperr.KindOverlapsExistingReservation, "")
	}

	if !r.StartTime.Before(r.EndTime) {
		return apperr.New(apperr.KindInvalidInterval, "")
	}

	if !r.IsPersonal() {
		return v.checkNonPersonal(c)
	}

	if r.EndTime.After(c.Now.Add(model.FutureLimit)) {
		return apperr.New(apperr.KindExceedsFutureLimit, "")
	}
	if r.Duration() > model.MaxReservationLength {
		return apperr.New(apperr.KindExceedsRuleMaxSingle, "Reservations cannot be longer than one week.")
	}

	status, err := machine.DerivedStatus(ctx, tx, c.Machine, c.Now)
	if err != nil {
		return err
	}
	if !machine.Reservable(status) && !shortens(c.Existing, r) {
		return apperr.New(apperr.KindMachineNotReservable, "")
	}

	if c.Existing != nil {
		if err := v.checkChange(c); err != nil {
			return err
		}
	} else if r.StartTime.Before(c.Now.Add(-model.GracePeriod)) {
		return apperr.New(apperr.KindStartInPast, "")
	}

	return v.chargeQuota(ctx, tx, c)
}

func (v *Validator) checkNonPersonal(c Check) error {
	r := c.Candidate
	if !v.perms.Can(c.Actor, permission.CreateEventReservation) {
		return apperr.New(apperr.KindMissingEventPermission, "")
	}
	switch r.Kind {
	case model.KindEvent:
		if r.EventID == nil {
			return apperr.New(apperr.KindValidation, "An event reservation must reference an event.").OnField("event")
		}
	case model.KindSpecial:
		if r.SpecialText == "" {
			return apperr.New(apperr.KindValidation, "A special reservation needs a text.").OnField("special_text")
		}
	}
	r.QuotaID = nil
	return nil
}

func (v *Validator) checkChange(c Check) error {
	old, r := c.Existing, c.Candidate
	if r.MachineID != old.MachineID {
		return apperr.New(apperr.KindCannotChangeMachine, "")
	}
	if CanChange(old, c.Actor, v.perms, c.Now) {
		return nil
	}
	if !CanChangeEndTime(old, c.Actor, c.Now) {
		return apperr.New(apperr.KindForbidden, "You cannot change this reservation.")
	}
	if !r.StartTime.Equal(old.StartTime) {
		return apperr.New(apperr.KindCannotChangeStarted, "")
	}
	if r.EndTime.Before(c.Now.Add(-model.GracePeriod)) {
		return apperr.New(apperr.KindInvalidInterval, "The end time can't be earlier than now.")
	}
	return nil
}

func (v *Validator) chargeQuota(ctx context.Context, tx store.Store, c Check) error {
	r := c.Candidate
	mt := c.Machine.MachineType

	candidates, err := tx.ListQuotasFor(ctx, mt.ID, c.Owner.ID)
	if err != nil {
		return err
	}
	ruleSet, err := tx.ListRules(ctx, mt.ID)
	if err != nil {
		return err
	}

	req := quota.Request{
		UserID:     c.Owner.ID,
		Start:      r.StartTime,
		End:        r.EndTime,
		Candidates: candidates,
		Rules:      ruleSet,
		Now:        c.Now,
	}
	if c.Existing != nil {
		req.CurrentQuotaID = c.Existing.QuotaID
		req.KeepCurrent = r.StartTime.Equal(c.Existing.StartTime) && r.EndTime.Equal(c.Existing.EndTime)
	}

	best, err := quota.NewEngine(tx, v.loc).Best(ctx, req)
	if err != nil {
		return err
	}
	r.QuotaID = &best.ID
	return nil
}

// shortens reports whether r keeps to the machine and time of old while giving some of it back.
func shortens(old, r *model.Reservation) bool {
	if old == nil || old.MachineID != r.MachineID {
		return false
	}
	inside := !r.StartTime.Before(old.StartTime) && !r.EndTime.After(old.EndTime)
	return inside && r.Duration() < old.Duration()
}

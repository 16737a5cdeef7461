// Package reservation admits, records and mutates machine reservations and projects
// them into the calendar read models.
package reservation

import (
	"context"
	"log/slog"
	"time"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/clock"
	"makequeue-backend/internal/course"
	"makequeue-backend/internal/logger"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/permission"
	"makequeue-backend/internal/store"
)

// Service is the command and query surface of the reservation core.
type Service struct {
	store     store.Store
	gate      *course.Gate
	perms     permission.Checker
	validator *Validator
	clock     clock.Clock
	loc       *time.Location
	logger    *slog.Logger
}

// NewService wires the core. loc is the zone rules are written in.
func NewService(s store.Store, gate *course.Gate, perms permission.Checker, clk clock.Clock, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:     s,
		gate:      gate,
		perms:     perms,
		validator: NewValidator(gate, perms, loc),
		clock:     clk,
		loc:       loc,
		logger:    logger.WithComponent("reservation"),
	}
}

// CreateRequest holds the fields of a new reservation.
type CreateRequest struct {
	MachineID   int64
	Start       time.Time
	End         time.Time
	Kind        model.ReservationKind
	EventID     *int64
	EventTitle  string
	EventLink   string
	SpecialText string
	Comment     string
}

// UpdateRequest is a patch; nil fields keep their stored value.
type UpdateRequest struct {
	MachineID   *int64
	Start       *time.Time
	End         *time.Time
	Comment     *string
	EventID     *int64
	EventTitle  *string
	EventLink   *string
	SpecialText *string
}

func requireActor(actor *model.User) error {
	if !actor.IsAuthenticated() {
		return apperr.New(apperr.KindUnauthorized, "")
	}
	return nil
}

// Create admits and stores a reservation owned by actor.
func (s *Service) Create(ctx context.Context, actor *model.User, req CreateRequest) (*model.Reservation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	kind := req.Kind
	if kind == "" {
		kind = model.KindPersonal
	}
	if !kind.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "%q is not a valid reservation kind.", string(kind)).OnField("kind")
	}

	r := &model.Reservation{
		UserID:      actor.ID,
		MachineID:   req.MachineID,
		StartTime:   req.Start,
		EndTime:     req.End,
		Kind:        kind,
		EventID:     req.EventID,
		EventTitle:  req.EventTitle,
		EventLink:   req.EventLink,
		SpecialText: req.SpecialText,
		Comment:     req.Comment,
	}

	err := s.store.WithTx(ctx, func(tx store.Store) error {
		m, err := tx.LockMachine(ctx, req.MachineID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.New(apperr.KindValidation, "Unknown machine.").OnField("machine")
			}
			return err
		}

		check := Check{Actor: actor, Owner: actor, Machine: m, Candidate: r, Now: s.clock.Now()}
		if err := s.validator.Validate(ctx, tx, check); err != nil {
			return err
		}
		if err := tx.CreateReservation(ctx, r); err != nil {
			return err
		}
		r.Machine = *m
		r.User = *actor
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation created",
		"reservation_id", r.ID, "machine_id", r.MachineID, "user_id", r.UserID, "kind", r.Kind,
		"start", r.StartTime, "end", r.EndTime)
	return r, nil
}

// Update applies patch to reservation id on behalf of actor.
func (s *Service) Update(ctx context.Context, actor *model.User, id int64, patch UpdateRequest) (*model.Reservation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var r *model.Reservation
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		existing, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if patch.MachineID != nil && *patch.MachineID != existing.MachineID {
			return apperr.New(apperr.KindCannotChangeMachine, "")
		}

		m, err := tx.LockMachine(ctx, existing.MachineID)
		if err != nil {
			return err
		}

		candidate := *existing
		applyPatch(&candidate, patch)

		check := Check{
			Actor:     actor,
			Owner:     &existing.User,
			Machine:   m,
			Candidate: &candidate,
			Existing:  existing,
			Now:       s.clock.Now(),
		}
		if err := s.validator.Validate(ctx, tx, check); err != nil {
			return err
		}
		if err := tx.SaveReservation(ctx, &candidate); err != nil {
			return err
		}
		r = &candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation updated", "reservation_id", r.ID, "actor_id", actor.ID, "start", r.StartTime, "end", r.EndTime)
	return r, nil
}

func applyPatch(r *model.Reservation, patch UpdateRequest) {
	if patch.Start != nil {
		r.StartTime = *patch.Start
	}
	if patch.End != nil {
		r.EndTime = *patch.End
	}
	if patch.Comment != nil {
		r.Comment = *patch.Comment
	}
	switch r.Kind {
	case model.KindEvent:
		if patch.EventID != nil {
			r.EventID = patch.EventID
		}
		if patch.EventTitle != nil {
			r.EventTitle = *patch.EventTitle
		}
		if patch.EventLink != nil {
			r.EventLink = *patch.EventLink
		}
	case model.KindSpecial:
		if patch.SpecialText != nil {
			r.SpecialText = *patch.SpecialText
		}
	}
}

// MarkFinished ends an ongoing reservation now.
func (s *Service) MarkFinished(ctx context.Context, actor *model.User, id int64) (*model.Reservation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var r *model.Reservation
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		r, err = tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if !ownedBy(r, actor) && !s.perms.Can(actor, permission.ChangeReservation) {
			return apperr.New(apperr.KindForbidden, "")
		}
		m, err := tx.LockMachine(ctx, r.MachineID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if !CanMarkFinished(r, now) {
			if r.StartTime.After(now) {
				return apperr.New(apperr.KindCannotFinishOutsideWindow, "Cannot mark reservation as finished when it has not started yet.")
			}
			if !r.EndTime.After(now) {
				return apperr.New(apperr.KindCannotFinishOutsideWindow, "Cannot mark reservation as finished when it has already ended.")
			}
			return apperr.New(apperr.KindCannotFinishOutsideWindow, "")
		}

		candidate := *r
		candidate.EndTime = now
		// Finishing is checked as the owner shortening their own reservation.
		check := Check{
			Actor:     &r.User,
			Owner:     &r.User,
			Machine:   m,
			Candidate: &candidate,
			Existing:  r,
			Now:       now,
		}
		if err := s.validator.Validate(ctx, tx, check); err != nil {
			return err
		}
		if err := tx.SaveReservation(ctx, &candidate); err != nil {
			return err
		}
		r = &candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation finished", "reservation_id", r.ID, "actor_id", actor.ID, "end", r.EndTime)
	return r, nil
}

// Cancel deletes a reservation.
func (s *Service) Cancel(ctx context.Context, actor *model.User, id int64) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	err := s.store.WithTx(ctx, func(tx store.Store) error {
		r, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if !ownedBy(r, actor) && !s.perms.Can(actor, permission.DeleteReservation) {
			return apperr.New(apperr.KindForbidden, "")
		}

		now := s.clock.Now()
		if !CanDelete(r, actor, s.perms, now) {
			if r.EndTime.After(now) {
				return apperr.New(apperr.KindCannotDeleteStarted, "Cannot delete reservation when it has already started. Mark it as finished instead.")
			}
			return apperr.New(apperr.KindCannotDeleteStarted, "Cannot delete reservation when it has already ended.")
		}
		return tx.DeleteReservation(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("reservation cancelled", "reservation_id", id, "actor_id", actor.ID)
	return nil
}

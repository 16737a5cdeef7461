package machine

import (
	"context"
	"log/slog"
	"strings"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/clock"
	"makequeue-backend/internal/course"
	"makequeue-backend/internal/logger"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/parse"
	"makequeue-backend/internal/permission"
	"makequeue-backend/internal/store"
)

// Service lists machines for the calendar and maintains them for admins.
type Service struct {
	store  store.Store
	gate   *course.Gate
	perms  permission.Checker
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(s store.Store, gate *course.Gate, perms permission.Checker, clk clock.Clock) *Service {
	return &Service{
		store:  s,
		gate:   gate,
		perms:  perms,
		clock:  clk,
		logger: logger.WithComponent("machine"),
	}
}

// Listing is a machine as shown to one actor.
type Listing struct {
	Machine         model.Machine
	Status          model.MachineStatus
	CanUserUse      bool
	NextReservation *model.Reservation
}

// List returns the machines visible to actor in default order.
func (s *Service) List(ctx context.Context, actor *model.User) ([]Listing, error) {
	machines, err := s.store.ListMachines(ctx)
	if err != nil {
		return nil, err
	}
	c, err := course.CourseFor(ctx, s.store, actor)
	if err != nil {
		return nil, err
	}

	machines = VisibleTo(machines, actor, c, s.perms)
	SortDefault(machines)

	now := s.clock.Now()
	usable := make(map[int64]bool)
	listings := make([]Listing, 0, len(machines))
	for i := range machines {
		m := &machines[i]

		status, err := DerivedStatus(ctx, s.store, m, now)
		if err != nil {
			return nil, err
		}

		canUse, ok := usable[m.MachineTypeID]
		if !ok {
			canUse, err = s.gate.CanUserUse(ctx, s.store, &m.MachineType, actor)
			if err != nil {
				return nil, err
			}
			usable[m.MachineTypeID] = canUse
		}

		next, err := s.store.NextReservation(ctx, m.ID, now)
		if err != nil {
			return nil, err
		}

		listings = append(listings, Listing{Machine: *m, Status: status, CanUserUse: canUse, NextReservation: next})
	}
	return listings, nil
}

// Input carries the editable fields of a machine.
type Input struct {
	Name          string
	MachineTypeID int64
	MachineModel  string
	StreamName    string
	Location      string
	LocationURL   string
	Internal      bool
	Status        model.MachineStatus
	Priority      *int
	InfoMessage   string
}

func (s *Service) Create(ctx context.Context, in Input) (*model.Machine, error) {
	m := &model.Machine{}
	if err := s.apply(ctx, m, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateMachine(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("machine created", "machine_id", m.ID, "name", m.Name)
	return m, nil
}

func (s *Service) Update(ctx context.Context, id int64, in Input) (*model.Machine, error) {
	m, err := s.store.GetMachine(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, m, in); err != nil {
		return nil, err
	}
	if err := s.store.SaveMachine(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteMachine(ctx, id); err != nil {
		return err
	}
	s.logger.Info("machine deleted", "machine_id", id)
	return nil
}

func (s *Service) apply(ctx context.Context, m *model.Machine, in Input) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperr.New(apperr.KindValidation, "This field is required.").OnField("name")
	}

	status := in.Status
	if status == "" {
		status = model.StatusAvailable
	}
	if !status.Storable() {
		return apperr.Newf(apperr.KindValidation, "%q is not a valid choice.", string(status)).OnField("status")
	}

	mt, err := s.store.GetMachineType(ctx, in.MachineTypeID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.New(apperr.KindValidation, "Unknown machine type.").OnField("machine_type")
		}
		return err
	}

	stream := ""
	if mt.HasStream {
		stream = strings.TrimSpace(in.StreamName)
		if !parse.ValidStreamName(stream) {
			return apperr.New(apperr.KindValidation, "Enter a valid stream name consisting of lowercase letters, numbers, underscores or hyphens.").OnField("stream_name")
		}
	}

	if m.InfoMessage != in.InfoMessage {
		now := s.clock.Now()
		m.InfoMessageDate = &now
	}

	m.Name = name
	m.MachineTypeID = mt.ID
	m.MachineType = *mt
	m.MachineModel = in.MachineModel
	m.StreamName = stream
	m.Location = in.Location
	m.LocationURL = in.LocationURL
	m.Internal = in.Internal
	m.Status = status
	m.Priority = in.Priority
	m.InfoMessage = in.InfoMessage
	return nil
}

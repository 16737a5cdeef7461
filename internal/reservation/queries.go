package reservation

import (
	"context"
	"time"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/calendar"
	"makequeue-backend/internal/course"
	"makequeue-backend/internal/machine"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/permission"
	"makequeue-backend/internal/quota"
	"makequeue-backend/internal/rules"
)

// Calendar entry types.
const (
	TypeOwn    = "own"
	TypeNormal = "normal"
	TypeEvent  = "event"
	TypeMake   = "make"
)

// CalendarEntry is a reservation as drawn in a machine calendar.
type CalendarEntry struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Type        string    `json:"type"`
	DisplayText string    `json:"displayText,omitempty"`
	EventLink   string    `json:"eventLink,omitempty"`
	User        string    `json:"user,omitempty"`
	Email       string    `json:"email,omitempty"`
}

func (s *Service) calendarEntry(r *model.Reservation, actor *model.User) CalendarEntry {
	entry := CalendarEntry{Start: r.StartTime.In(s.loc), End: r.EndTime.In(s.loc)}
	switch {
	case r.Kind == model.KindSpecial:
		entry.Type = TypeMake
	case r.Kind == model.KindEvent:
		entry.Type = TypeEvent
	case ownedBy(r, actor):
		entry.Type = TypeOwn
	default:
		entry.Type = TypeNormal
	}

	switch {
	case r.Kind == model.KindEvent:
		entry.EventLink = r.EventLink
		entry.DisplayText = r.EventTitle
	case r.Kind == model.KindSpecial:
		entry.DisplayText = r.SpecialText
	case s.perms.Can(actor, permission.ViewReservationUser):
		entry.User = r.User.FullName()
		entry.Email = r.User.Email
		entry.DisplayText = r.Comment
	}
	return entry
}

// ListReservations returns the reservations of a machine that intersect [start, end).
func (s *Service) ListReservations(ctx context.Context, actor *model.User, machineID int64, start, end time.Time) ([]CalendarEntry, error) {
	if start.After(end) {
		return nil, apperr.New(apperr.KindValidation, "The start date must not be after the end date.").OnField("start_date")
	}
	if _, err := s.store.GetMachine(ctx, machineID); err != nil {
		return nil, err
	}

	reservations, err := s.store.ListReservationsBetween(ctx, machineID, start, end)
	if err != nil {
		return nil, err
	}
	entries := make([]CalendarEntry, 0, len(reservations))
	for i := range reservations {
		entries = append(entries, s.calendarEntry(&reservations[i], actor))
	}
	return entries, nil
}

// RuleView is a rule as drawn on the calendar. Periods are wrapped onto [0, 7) with Sunday at 0.
type RuleView struct {
	Periods    [][2]float64 `json:"periods"`
	MaxInside  float64      `json:"max_inside"`
	MaxCrossed float64      `json:"max_crossed"`
}

// RuleSet lists the rules of a machine type.
type RuleSet struct {
	Rules   []RuleView `json:"rules"`
	HasGaps bool       `json:"has_gaps"`
}

func ruleViews(ruleSet []model.ReservationRule) []RuleView {
	views := make([]RuleView, 0, len(ruleSet))
	for i := range ruleSet {
		views = append(views, RuleView{
			Periods:    rules.WrappedPeriods(&ruleSet[i]),
			MaxInside:  ruleSet[i].MaxHours,
			MaxCrossed: ruleSet[i].MaxInsideBorderCrossed,
		})
	}
	return views
}

// ListRules returns the rules of a machine type and whether they leave parts of the week uncovered.
func (s *Service) ListRules(ctx context.Context, machineTypeID int64) (*RuleSet, error) {
	if _, err := s.store.GetMachineType(ctx, machineTypeID); err != nil {
		return nil, err
	}
	ruleSet, err := s.store.ListRules(ctx, machineTypeID)
	if err != nil {
		return nil, err
	}
	return &RuleSet{Rules: ruleViews(ruleSet), HasGaps: rules.HasGaps(ruleSet)}, nil
}

// ListMachineRules is ListRules for the type of a machine.
func (s *Service) ListMachineRules(ctx context.Context, machineID int64) (*RuleSet, error) {
	m, err := s.store.GetMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	return s.ListRules(ctx, m.MachineTypeID)
}

// Interval is a bare reserved stretch of time.
type Interval struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

// DataRule is a rule as consumed by the reservation form.
type DataRule struct {
	Periods         [][2]float64 `json:"periods"`
	MaxHours        float64      `json:"max_hours"`
	MaxHoursCrossed float64      `json:"max_hours_crossed"`
}

// MachineData is what the reservation form needs to pre-check a proposed interval.
type MachineData struct {
	Reservations   []Interval `json:"reservations"`
	CanIgnoreRules bool       `json:"can_ignore_rules"`
	Rules          []DataRule `json:"rules"`
}

// MachineData returns the future reservations of a machine, skipping excludeID, and its rules.
// excludeID must be a reservation on the machine when non-zero.
func (s *Service) MachineData(ctx context.Context, actor *model.User, machineID, excludeID int64) (*MachineData, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	m, err := s.store.GetMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	if excludeID != 0 {
		excluded, err := s.store.GetReservation(ctx, excludeID)
		if err != nil {
			return nil, err
		}
		if excluded.MachineID != machineID {
			return nil, apperr.NotFound("Reservation")
		}
	}

	now := s.clock.Now()
	reservations, err := s.store.ListReservationsEndingAfter(ctx, machineID, now)
	if err != nil {
		return nil, err
	}
	data := &MachineData{Reservations: []Interval{}, Rules: []DataRule{}}
	for _, r := range reservations {
		if r.ID == excludeID {
			continue
		}
		data.Reservations = append(data.Reservations, Interval{Start: r.StartTime.In(s.loc), End: r.EndTime.In(s.loc)})
	}

	data.CanIgnoreRules, err = s.canIgnoreRules(ctx, actor, m.MachineTypeID, now)
	if err != nil {
		return nil, err
	}

	ruleSet, err := s.store.ListRules(ctx, m.MachineTypeID)
	if err != nil {
		return nil, err
	}
	for i := range ruleSet {
		data.Rules = append(data.Rules, DataRule{
			Periods:         rules.WrappedPeriods(&ruleSet[i]),
			MaxHours:        ruleSet[i].MaxHours,
			MaxHoursCrossed: ruleSet[i].MaxInsideBorderCrossed,
		})
	}
	return data, nil
}

func (s *Service) canIgnoreRules(ctx context.Context, actor *model.User, machineTypeID int64, now time.Time) (bool, error) {
	if !actor.IsAuthenticated() {
		return false, nil
	}
	quotas, err := s.store.ListQuotasFor(ctx, machineTypeID, actor.ID)
	if err != nil {
		return false, err
	}
	return quota.NewEngine(s.store, s.loc).CanIgnoreRules(ctx, quotas, actor.ID, now)
}

// canCreateReservation reports whether one of the actor's quotas for the type still has room.
func (s *Service) canCreateReservation(ctx context.Context, actor *model.User, machineTypeID int64, now time.Time) (bool, error) {
	if !actor.IsAuthenticated() {
		return false, nil
	}
	quotas, err := s.store.ListQuotasFor(ctx, machineTypeID, actor.ID)
	if err != nil {
		return false, err
	}
	return quota.NewEngine(s.store, s.loc).CanCreateNew(ctx, quotas, actor.ID, now)
}

// WeekView is the calendar page of one machine for one ISO week.
type WeekView struct {
	Machine        model.Machine       `json:"machine"`
	Status         model.MachineStatus `json:"status"`
	Year           int                 `json:"year"`
	Week           int                 `json:"week"`
	Monday         time.Time           `json:"monday"`
	Reservations   []CalendarEntry     `json:"reservations"`
	OtherMachines  []model.Machine     `json:"other_machines"`
	CanUserUse     bool                `json:"can_user_use"`
	CanIgnoreRules bool                `json:"can_ignore_rules"`

	// CanCreateReservation is false once every quota of the actor for this type is used up.
	CanCreateReservation bool `json:"can_create_reservation"`
}

// MachineDetailForWeek builds the calendar page of a machine. year and week must both be
// given or both be nil, in which case the current week is shown.
func (s *Service) MachineDetailForWeek(ctx context.Context, actor *model.User, machineID int64, year, week *int) (*WeekView, error) {
	now := s.clock.Now()

	var y, w int
	switch {
	case year == nil && week == nil:
		y, w = calendar.CurrentYearAndWeek(now.In(s.loc))
	case year != nil && week != nil:
		y, w = *year, *week
		if !calendar.IsValidWeek(y, w) {
			return nil, apperr.Newf(apperr.KindValidation, "Week %d does not exist in %d.", w, y).OnField("calendar_week")
		}
	default:
		return nil, apperr.New(apperr.KindValidation, "Both calendar_year and calendar_week must be given.").OnField("calendar_week")
	}

	machines, err := s.store.ListMachines(ctx)
	if err != nil {
		return nil, err
	}
	c, err := course.CourseFor(ctx, s.store, actor)
	if err != nil {
		return nil, err
	}
	visible := machine.VisibleTo(machines, actor, c, s.perms)
	machine.SortDefault(visible)

	view := &WeekView{Year: y, Week: w, Reservations: []CalendarEntry{}, OtherMachines: []model.Machine{}}
	found := false
	for _, m := range visible {
		if m.ID == machineID {
			view.Machine = m
			found = true
		}
	}
	if !found {
		return nil, apperr.NotFound("Machine")
	}
	for _, m := range visible {
		if m.ID != machineID && m.MachineTypeID == view.Machine.MachineTypeID {
			view.OtherMachines = append(view.OtherMachines, m)
		}
	}

	view.Status, err = machine.DerivedStatus(ctx, s.store, &view.Machine, now)
	if err != nil {
		return nil, err
	}
	view.CanUserUse, err = s.gate.CanUserUse(ctx, s.store, &view.Machine.MachineType, actor)
	if err != nil {
		return nil, err
	}
	view.CanIgnoreRules, err = s.canIgnoreRules(ctx, actor, view.Machine.MachineTypeID, now)
	if err != nil {
		return nil, err
	}
	view.CanCreateReservation, err = s.canCreateReservation(ctx, actor, view.Machine.MachineTypeID, now)
	if err != nil {
		return nil, err
	}

	view.Monday = calendar.YearAndWeekToMonday(y, w, s.loc)
	view.Reservations, err = s.ListReservations(ctx, actor, machineID, view.Monday, view.Monday.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Owner selects whose reservations ListMine returns.
type Owner string

const (
	OwnerMe   Owner = "ME"
	OwnerMake Owner = "MAKE"
)

// Listed is a reservation with what the actor may do with it.
type Listed struct {
	Reservation      model.Reservation
	CanChange        bool
	CanChangeEndTime bool
	CanDelete        bool
	CanMarkFinished  bool
}

// ListMine returns the actor's own reservations, or the makerspace's event and special ones.
func (s *Service) ListMine(ctx context.Context, actor *model.User, owner Owner) ([]Listed, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	isAdmin := s.perms.Can(actor, permission.CreateEventReservation)

	var (
		reservations []model.Reservation
		err          error
	)
	switch owner {
	case OwnerMe, "":
		reservations, err = s.store.ListUserReservations(ctx, actor.ID)
		if err == nil && !isAdmin {
			personal := reservations[:0]
			for _, r := range reservations {
				if r.IsPersonal() {
					personal = append(personal, r)
				}
			}
			reservations = personal
		}
	case OwnerMake:
		if !isAdmin {
			return nil, apperr.New(apperr.KindForbidden, "")
		}
		reservations, err = s.store.ListNonPersonalReservations(ctx)
	default:
		return nil, apperr.Newf(apperr.KindValidation, "%q is not a valid choice.", string(owner)).OnField("owner")
	}
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	listed := make([]Listed, 0, len(reservations))
	for i := range reservations {
		r := &reservations[i]
		listed = append(listed, Listed{
			Reservation:      *r,
			CanChange:        CanChange(r, actor, s.perms, now),
			CanChangeEndTime: CanChangeEndTime(r, actor, now),
			CanDelete:        CanDelete(r, actor, s.perms, now),
			CanMarkFinished:  CanMarkFinished(r, now),
		})
	}
	return listed, nil
}

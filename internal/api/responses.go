package api

import (
	"time"

	"makequeue-backend/internal/machine"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/permission"
	"makequeue-backend/internal/reservation"
)

type machineTypeResponse struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	UsageRequirement string `json:"usage_requirement"`
	CannotUseText    string `json:"cannot_use_text"`
	HasStream        bool   `json:"has_stream"`
	Priority         int    `json:"priority"`
}

func newMachineTypeResponse(mt *model.MachineType) machineTypeResponse {
	return machineTypeResponse{
		ID:               mt.ID,
		Name:             mt.Name,
		UsageRequirement: mt.UsageRequirement.ShortName,
		CannotUseText:    mt.CannotUseText,
		HasStream:        mt.HasStream,
		Priority:         mt.Priority,
	}
}

type intervalResponse struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

type machineResponse struct {
	ID              int64               `json:"id"`
	Name            string              `json:"name"`
	MachineType     machineTypeResponse `json:"machine_type"`
	MachineModel    string              `json:"machine_model"`
	StreamName      string              `json:"stream_name,omitempty"`
	Location        string              `json:"location"`
	LocationURL     string              `json:"location_url"`
	Internal        bool                `json:"internal"`
	Status          model.MachineStatus `json:"status"`
	Priority        *int                `json:"priority"`
	InfoMessage     string              `json:"info_message"`
	InfoMessageDate *time.Time          `json:"info_message_date"`
}

func newMachineResponse(m *model.Machine) machineResponse {
	return machineResponse{
		ID:              m.ID,
		Name:            m.Name,
		MachineType:     newMachineTypeResponse(&m.MachineType),
		MachineModel:    m.MachineModel,
		StreamName:      m.StreamName,
		Location:        m.Location,
		LocationURL:     m.LocationURL,
		Internal:        m.Internal,
		Status:          m.Status,
		Priority:        m.Priority,
		InfoMessage:     m.InfoMessage,
		InfoMessageDate: m.InfoMessageDate,
	}
}

type machineListingResponse struct {
	machineResponse
	CanUserUse      bool              `json:"can_user_use"`
	NextReservation *intervalResponse `json:"next_reservation"`
}

func newMachineListingResponse(l *machine.Listing) machineListingResponse {
	resp := machineListingResponse{
		machineResponse: newMachineResponse(&l.Machine),
		CanUserUse:      l.CanUserUse,
	}
	resp.Status = l.Status
	if l.NextReservation != nil {
		resp.NextReservation = &intervalResponse{Start: l.NextReservation.StartTime, End: l.NextReservation.EndTime}
	}
	return resp
}

type reservationResponse struct {
	ID          int64                 `json:"id"`
	Machine     int64                 `json:"machine"`
	MachineName string                `json:"machine_name,omitempty"`
	User        string                `json:"user,omitempty"`
	Start       time.Time             `json:"start_time"`
	End         time.Time             `json:"end_time"`
	Kind        model.ReservationKind `json:"kind"`
	Event       *int64                `json:"event,omitempty"`
	EventTitle  string                `json:"event_title,omitempty"`
	EventLink   string                `json:"event_link,omitempty"`
	SpecialText string                `json:"special_text,omitempty"`
	Comment     string                `json:"comment"`
	Quota       *int64                `json:"quota"`
}

// newReservationResponse hides the owner unless the viewer owns the reservation or may
// see who reserved.
func newReservationResponse(r *model.Reservation, viewer *model.User, perms permission.Checker) reservationResponse {
	resp := reservationResponse{
		ID:          r.ID,
		Machine:     r.MachineID,
		MachineName: r.Machine.Name,
		Start:       r.StartTime,
		End:         r.EndTime,
		Kind:        r.Kind,
		Event:       r.EventID,
		EventTitle:  r.EventTitle,
		EventLink:   r.EventLink,
		SpecialText: r.SpecialText,
		Comment:     r.Comment,
		Quota:       r.QuotaID,
	}
	switch {
	case r.UserID == viewer.ID:
		resp.User = viewer.Username
	case perms.Can(viewer, permission.ViewReservationUser):
		resp.User = r.User.Username
	}
	return resp
}

type listedReservationResponse struct {
	reservationResponse
	CanChange        bool `json:"can_change"`
	CanChangeEndTime bool `json:"can_change_end_time"`
	CanDelete        bool `json:"can_delete"`
	CanMarkFinished  bool `json:"can_mark_finished"`
}

type slotResponse struct {
	Machine       int64     `json:"machine_id"`
	MachineName   string    `json:"machine_name"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	DurationHours int       `json:"duration_hours"`
}

func newSlotResponse(s *reservation.Slot) slotResponse {
	return slotResponse{
		Machine:       s.Machine.ID,
		MachineName:   s.Machine.Name,
		Start:         s.Start,
		End:           s.End,
		DurationHours: s.DurationHours(),
	}
}

type weekResponse struct {
	Machine        machineResponse             `json:"machine"`
	Year           int                         `json:"calendar_year"`
	Week           int                         `json:"calendar_week"`
	Monday         time.Time                   `json:"monday"`
	Reservations   []reservation.CalendarEntry `json:"reservations"`
	OtherMachines  []machineResponse           `json:"other_machines"`
	CanUserUse     bool                        `json:"can_user_use"`
	CanIgnoreRules bool                        `json:"can_ignore_rules"`
	CanCreate      bool                        `json:"can_create_reservation"`
}

func newWeekResponse(v *reservation.WeekView) weekResponse {
	resp := weekResponse{
		Machine:        newMachineResponse(&v.Machine),
		Year:           v.Year,
		Week:           v.Week,
		Monday:         v.Monday,
		Reservations:   v.Reservations,
		OtherMachines:  make([]machineResponse, 0, len(v.OtherMachines)),
		CanUserUse:     v.CanUserUse,
		CanIgnoreRules: v.CanIgnoreRules,
		CanCreate:      v.CanCreateReservation,
	}
	resp.Machine.Status = v.Status
	for i := range v.OtherMachines {
		resp.OtherMachines = append(resp.OtherMachines, newMachineResponse(&v.OtherMachines[i]))
	}
	return resp
}

type ruleResponse struct {
	ID                     int64           `json:"id"`
	MachineType            int64           `json:"machine_type"`
	StartTime              model.TimeOfDay `json:"start_time"`
	EndTime                model.TimeOfDay `json:"end_time"`
	DaysChanged            int             `json:"days_changed"`
	StartDays              model.Weekdays  `json:"start_days"`
	MaxHours               float64         `json:"max_hours"`
	MaxInsideBorderCrossed float64         `json:"max_inside_border_crossed"`
}

func newRuleResponse(r *model.ReservationRule) ruleResponse {
	return ruleResponse{
		ID:                     r.ID,
		MachineType:            r.MachineTypeID,
		StartTime:              r.StartTime,
		EndTime:                r.EndTime,
		DaysChanged:            r.DaysChanged,
		StartDays:              r.StartDays,
		MaxHours:               r.MaxHours,
		MaxInsideBorderCrossed: r.MaxInsideBorderCrossed,
	}
}

type quotaResponse struct {
	ID                   int64  `json:"id"`
	MachineType          int64  `json:"machine_type"`
	User                 *int64 `json:"user"`
	All                  bool   `json:"all"`
	NumberOfReservations int    `json:"number_of_reservations"`
	Diminishing          bool   `json:"diminishing"`
	IgnoreRules          bool   `json:"ignore_rules"`
}

func newQuotaResponse(q *model.Quota) quotaResponse {
	return quotaResponse{
		ID:                   q.ID,
		MachineType:          q.MachineTypeID,
		User:                 q.UserID,
		All:                  q.All,
		NumberOfReservations: q.NumberOfReservations,
		Diminishing:          q.Diminishing,
		IgnoreRules:          q.IgnoreRules,
	}
}

type courseResponse struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	User        *int64    `json:"user"`
	Name        string    `json:"name"`
	DateTaken   time.Time `json:"date"`
	CardNumber  *string   `json:"card_number"`
	Permissions []string  `json:"course_permissions"`
}

func newCourseResponse(c *model.Printer3DCourse) courseResponse {
	resp := courseResponse{
		ID:          c.ID,
		Username:    c.Username,
		User:        c.UserID,
		Name:        c.Name,
		DateTaken:   c.DateTaken,
		CardNumber:  c.CardNumber,
		Permissions: make([]string, 0, len(c.CoursePermissions)),
	}
	for _, p := range c.CoursePermissions {
		resp.Permissions = append(resp.Permissions, p.ShortName)
	}
	return resp
}

package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"makequeue-backend/internal/model"
)

// Now is the frozen instant used across tests: Monday 2018-03-12 12:00 UTC.
var Now = time.Date(2018, 3, 12, 12, 0, 0, 0, time.UTC)

// Fixture is a small makerspace: one printer type with a week-long rule, one machine,
// and a user who has taken the printer course and holds a quota of two.
type Fixture struct {
	DB          *gorm.DB
	Permissions map[string]*model.CoursePermission
	MachineType *model.MachineType
	Machine     *model.Machine
	Rule        *model.ReservationRule
	User        *model.User
	Course      *model.Printer3DCourse
	Quota       *model.Quota
}

// NewFixture seeds db with the standard scenario.
func NewFixture(t testing.TB, db *gorm.DB) *Fixture {
	t.Helper()

	f := &Fixture{DB: db, Permissions: map[string]*model.CoursePermission{}}
	for _, p := range []model.CoursePermission{
		{ShortName: model.PermissionAuthenticated, Name: "Authenticated"},
		{ShortName: model.Permission3DPrinter, Name: "3D printer course"},
		{ShortName: model.PermissionRaise3D, Name: "Raise3D course"},
		{ShortName: model.PermissionSLA, Name: "SLA course"},
	} {
		perm := p
		require.NoError(t, db.Create(&perm).Error)
		f.Permissions[perm.ShortName] = &perm
	}

	f.MachineType = f.AddMachineType(t, "3D printer", model.Permission3DPrinter, 1)
	f.Machine = f.AddMachine(t, "Prusa", f.MachineType)

	end, err := model.ParseTimeOfDay("23:59")
	require.NoError(t, err)
	f.Rule = &model.ReservationRule{
		MachineTypeID:          f.MachineType.ID,
		StartTime:              0,
		EndTime:                end,
		DaysChanged:            6,
		StartDays:              model.WeekdaysOf(1),
		MaxHours:               5,
		MaxInsideBorderCrossed: 5,
	}
	require.NoError(t, db.Create(f.Rule).Error)

	f.User = f.AddUser(t, "user")
	f.Course = f.AddCourse(t, f.User)
	f.Quota = f.AddQuota(t, &model.Quota{MachineTypeID: f.MachineType.ID, All: true, NumberOfReservations: 2})
	return f
}

func (f *Fixture) AddMachineType(t testing.TB, name, requirement string, priority int) *model.MachineType {
	t.Helper()
	mt := &model.MachineType{
		Name:               name,
		UsageRequirementID: f.Permissions[requirement].ID,
		Priority:           priority,
	}
	require.NoError(t, f.DB.Omit(clause.Associations).Create(mt).Error)
	mt.UsageRequirement = *f.Permissions[requirement]
	return mt
}

func (f *Fixture) AddMachine(t testing.TB, name string, mt *model.MachineType) *model.Machine {
	t.Helper()
	m := &model.Machine{Name: name, MachineTypeID: mt.ID, Status: model.StatusAvailable}
	require.NoError(t, f.DB.Omit(clause.Associations).Create(m).Error)
	m.MachineType = *mt
	return m
}

func (f *Fixture) AddUser(t testing.TB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", FirstName: username, LastName: "Test"}
	require.NoError(t, f.DB.Create(u).Error)
	return u
}

func (f *Fixture) AddCourse(t testing.TB, u *model.User, extra ...string) *model.Printer3DCourse {
	t.Helper()
	c := &model.Printer3DCourse{UserID: &u.ID, Username: u.Username, Name: u.FullName(), DateTaken: Now.AddDate(0, -1, 0)}
	for _, short := range extra {
		c.CoursePermissions = append(c.CoursePermissions, *f.Permissions[short])
	}
	require.NoError(t, f.DB.Omit("User").Create(c).Error)
	return c
}

func (f *Fixture) AddQuota(t testing.TB, q *model.Quota) *model.Quota {
	t.Helper()
	require.NoError(t, f.DB.Omit(clause.Associations).Create(q).Error)
	return q
}

// AddReservation inserts a reservation directly, bypassing validation.
func (f *Fixture) AddReservation(t testing.TB, r *model.Reservation) *model.Reservation {
	t.Helper()
	if r.Kind == "" {
		r.Kind = model.KindPersonal
	}
	r.StartTime = r.StartTime.UTC()
	r.EndTime = r.EndTime.UTC()
	require.NoError(t, f.DB.Omit(clause.Associations).Create(r).Error)
	return r
}

// At returns the given wall-clock time on the day offset from Now's Monday.
func At(dayOffset, hour, minute int) time.Time {
	return time.Date(2018, 3, 12+dayOffset, hour, minute, 0, 0, time.UTC)
}

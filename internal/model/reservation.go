package model

import "time"

const (
	// FutureLimit is how far ahead a personal reservation may end.
	FutureLimit = 28 * 24 * time.Hour
	// GracePeriod is the slack allowed when setting times slightly in the past.
	GracePeriod = 5 * time.Minute
	// MaxReservationLength is the longest reservation the rule engine will consider.
	MaxReservationLength = 7 * 24 * time.Hour
)

// ReservationKind separates personal reservations from ones made on behalf of the makerspace.
type ReservationKind string

const (
	KindPersonal ReservationKind = "PERSONAL"
	KindEvent    ReservationKind = "EVENT"
	KindSpecial  ReservationKind = "SPECIAL"
)

func (k ReservationKind) Valid() bool {
	return k == KindPersonal || k == KindEvent || k == KindSpecial
}

// Quota caps the number of unfinished reservations a user may hold on a machine type.
// Exactly one of UserID and All is set.
type Quota struct {
	ID                   int64  `gorm:"primaryKey"`
	MachineTypeID        int64  `gorm:"index;not null"`
	UserID               *int64 `gorm:"index"`
	All                  bool   `gorm:"column:all_users;not null;default:false"`
	NumberOfReservations int    `gorm:"not null;default:1"`
	Diminishing          bool   `gorm:"not null;default:false"`
	IgnoreRules          bool   `gorm:"not null;default:false"`

	// Associations
	MachineType MachineType `gorm:"constraint:OnDelete:CASCADE"`
}

func (Quota) TableName() string {
	return "quotas"
}

// Reservation is a half-open interval [StartTime, EndTime) on one machine.
type Reservation struct {
	ID          int64           `gorm:"primaryKey"`
	UserID      int64           `gorm:"index;not null"`
	MachineID   int64           `gorm:"index:idx_reservation_machine_period,priority:1;not null"`
	StartTime   time.Time       `gorm:"index:idx_reservation_machine_period,priority:2;not null"`
	EndTime     time.Time       `gorm:"index:idx_reservation_machine_period,priority:3;not null"`
	Kind        ReservationKind `gorm:"size:16;not null;default:'PERSONAL'"`
	EventID     *int64          `gorm:"index"`
	EventTitle  string          `gorm:"size:256"`
	EventLink   string          `gorm:"size:2048"`
	SpecialText string          `gorm:"type:text"`
	Comment     string          `gorm:"type:text"`
	QuotaID     *int64          `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Associations
	User    User    `gorm:"constraint:OnDelete:CASCADE"`
	Machine Machine `gorm:"constraint:OnDelete:CASCADE"`
	Quota   *Quota  `gorm:"constraint:OnDelete:SET NULL"`
}

// IsPersonal is false for event and special reservations.
func (r *Reservation) IsPersonal() bool {
	return r.Kind == KindPersonal || r.Kind == ""
}

// Overlaps reports whether the half-open intervals intersect.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && start.Before(r.EndTime)
}

func (r *Reservation) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

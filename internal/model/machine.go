package model

import "time"

// MachineStatus is the one-letter status code of a machine.
// Only Available, OutOfOrder and Maintenance are ever stored; Reserved and InUse are derived.
type MachineStatus string

const (
	StatusReserved    MachineStatus = "R"
	StatusAvailable   MachineStatus = "F"
	StatusInUse       MachineStatus = "I"
	StatusOutOfOrder  MachineStatus = "O"
	StatusMaintenance MachineStatus = "M"
)

var statusLabels = map[MachineStatus]string{
	StatusReserved:    "Reserved",
	StatusAvailable:   "Available",
	StatusInUse:       "In use",
	StatusOutOfOrder:  "Out of order",
	StatusMaintenance: "Maintenance",
}

func (s MachineStatus) Label() string {
	return statusLabels[s]
}

// Storable reports whether s may be written to the status column.
func (s MachineStatus) Storable() bool {
	return s == StatusAvailable || s == StatusOutOfOrder || s == StatusMaintenance
}

// MachineType groups machines that share rules, quotas and a usage requirement.
type MachineType struct {
	ID                 int64  `gorm:"primaryKey"`
	Name               string `gorm:"uniqueIndex;size:256;not null"`
	CannotUseText      string `gorm:"type:text"`
	UsageRequirementID int64  `gorm:"index;not null"`
	HasStream          bool   `gorm:"not null;default:false"`
	Priority           int    `gorm:"not null;default:0"`

	// Associations
	UsageRequirement CoursePermission `gorm:"constraint:OnDelete:RESTRICT"`
}

// Machine represents a reservable physical machine.
type Machine struct {
	ID              int64         `gorm:"primaryKey"`
	Name            string        `gorm:"uniqueIndex;size:256;not null"`
	MachineTypeID   int64         `gorm:"index;not null"`
	MachineModel    string        `gorm:"size:256"`
	StreamName      string        `gorm:"size:50;not null;default:''"`
	Location        string        `gorm:"size:256"`
	LocationURL     string        `gorm:"size:2048"`
	Internal        bool          `gorm:"not null;default:false"`
	Status          MachineStatus `gorm:"size:1;not null;default:'F'"`
	Priority        *int
	InfoMessage     string `gorm:"type:text"`
	InfoMessageDate *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Associations
	MachineType MachineType `gorm:"constraint:OnDelete:RESTRICT"`
}

package model

import "time"

// Short names of the course permissions the core knows about.
const (
	PermissionAuthenticated = "AUTH"
	Permission3DPrinter     = "3DPR"
	PermissionRaise3D       = "R3DP"
	PermissionSLA           = "SLAP"
)

// CoursePermission is a nominal capability granted by completing a course.
type CoursePermission struct {
	ID        int64  `gorm:"primaryKey"`
	ShortName string `gorm:"uniqueIndex;size:32;not null"`
	Name      string `gorm:"size:256;not null"`
}

// Printer3DCourse records that someone has taken the printer course.
// Until UserID is set the record is matched on Username only.
type Printer3DCourse struct {
	ID         int64     `gorm:"primaryKey"`
	UserID     *int64    `gorm:"uniqueIndex"`
	Username   string    `gorm:"uniqueIndex;size:150;not null"`
	Name       string    `gorm:"size:256"`
	DateTaken  time.Time `gorm:"not null"`
	CardNumber *string   `gorm:"uniqueIndex;size:10"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Associations
	User              *User              `gorm:"constraint:OnDelete:SET NULL"`
	CoursePermissions []CoursePermission `gorm:"many2many:printer3d_course_permissions;joinForeignKey:CourseID;joinReferences:CoursePermissionID"`
}

func (Printer3DCourse) TableName() string {
	return "printer3d_courses"
}

// HasPermission reports whether the course grants shortName. 3DPR is implied by the course itself.
func (c *Printer3DCourse) HasPermission(shortName string) bool {
	if c == nil {
		return false
	}
	if shortName == Permission3DPrinter {
		return true
	}
	for _, p := range c.CoursePermissions {
		if p.ShortName == shortName {
			return true
		}
	}
	return false
}

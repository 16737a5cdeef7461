package model

import (
	"strings"
	"time"
)

// User mirrors the account records owned by the login service.
type User struct {
	ID          int64   `gorm:"primaryKey"`
	Username    string  `gorm:"uniqueIndex;size:150;not null"`
	Email       string  `gorm:"size:254"`
	FirstName   string  `gorm:"size:150"`
	LastName    string  `gorm:"size:150"`
	IsSuperuser bool    `gorm:"not null;default:false"`
	CardNumber  *string `gorm:"uniqueIndex;size:10"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAuthenticated is false for the zero user used for anonymous requests.
func (u *User) IsAuthenticated() bool {
	return u != nil && u.ID != 0
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

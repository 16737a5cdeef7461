package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time stored as seconds since midnight.
type TimeOfDay int

// NewTimeOfDay panics on out-of-range input; use ParseTimeOfDay for user data.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		panic(fmt.Sprintf("time of day out of range: %02d:%02d:%02d", hour, minute, second))
	}
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// ParseTimeOfDay accepts "15:04" and "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	if t.Second() == 0 {
		return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
	}
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Weekdays is a set of ISO weekdays. Bit d-1 is set when weekday d (Monday=1) is present.
type Weekdays uint8

func WeekdaysOf(days ...int) Weekdays {
	var w Weekdays
	for _, d := range days {
		if d >= 1 && d <= 7 {
			w |= 1 << (d - 1)
		}
	}
	return w
}

func (w Weekdays) Has(day int) bool {
	return day >= 1 && day <= 7 && w&(1<<(day-1)) != 0
}

// List returns the weekdays in ascending order.
func (w Weekdays) List() []int {
	days := make([]int, 0, 7)
	for d := 1; d <= 7; d++ {
		if w.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (w Weekdays) Empty() bool { return w&0x7f == 0 }

func (w Weekdays) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.List())
}

func (w *Weekdays) UnmarshalJSON(data []byte) error {
	var days []int
	if err := json.Unmarshal(data, &days); err != nil {
		return err
	}
	sort.Ints(days)
	for _, d := range days {
		if d < 1 || d > 7 {
			return fmt.Errorf("weekday %d out of range 1..7", d)
		}
	}
	*w = WeekdaysOf(days...)
	return nil
}

// ReservationRule is a weekly recurring window on a machine type.
// Each weekday in StartDays spawns one period from StartTime to EndTime, DaysChanged midnights later.
type ReservationRule struct {
	ID                     int64     `gorm:"primaryKey"`
	MachineTypeID          int64     `gorm:"index;not null"`
	StartTime              TimeOfDay `gorm:"not null"`
	EndTime                TimeOfDay `gorm:"not null"`
	DaysChanged            int       `gorm:"not null;default:0"`
	StartDays              Weekdays  `gorm:"not null;default:0"`
	MaxHours               float64   `gorm:"not null"`
	MaxInsideBorderCrossed float64   `gorm:"not null"`
}

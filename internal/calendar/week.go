// Package calendar holds ISO week and weekday arithmetic.
package calendar

import "time"

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// CurrentYearAndWeek returns the ISO year and week containing now.
func CurrentYearAndWeek(now time.Time) (int, int) {
	return now.ISOWeek()
}

// YearAndWeekToMonday returns Monday 00:00 of the given ISO week in loc.
// January 4th always falls in week 1, so week 1 may start in December of the previous year.
func YearAndWeekToMonday(year, week int, loc *time.Location) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	firstMonday := jan4.AddDate(0, 0, 1-ISOWeekday(jan4))
	return firstMonday.AddDate(0, 0, (week-1)*7)
}

// LastWeekOfYear returns 52 or 53. December 28th is always in the last ISO week.
func LastWeekOfYear(year int) int {
	_, week := time.Date(year, time.December, 28, 12, 0, 0, 0, time.UTC).ISOWeek()
	return week
}

// IsValidWeek reports whether week exists in the ISO year.
func IsValidWeek(year, week int) bool {
	return week > 0 && week <= LastWeekOfYear(year)
}

// Package rules decides whether a reservation interval is permitted by the weekly
// rule set of a machine type.
//
// Instants are placed on a week ring as exact weekdays: the ISO weekday plus the
// time of day as a fraction of a day. A period that crosses into the next week
// ends above 7, so values live in [1, 15) and all comparisons are made modulo 7.
package rules

import (
	"math"
	"sort"
	"time"

	"makequeue-backend/internal/calendar"
	"makequeue-backend/internal/model"
)

const daysPerWeek = 7.0

// Period is one expansion of a rule onto a single start weekday.
type Period struct {
	Start float64
	End   float64
	Rule  *model.ReservationRule
}

func exactTime(hour, minute, second int) float64 {
	return float64(hour)/24 + float64(minute)/(24*60) + float64(second)/(24*60*60)
}

// ExactWeekday projects t onto the week ring using t's own location.
func ExactWeekday(t time.Time) float64 {
	return float64(calendar.ISOWeekday(t)) + exactTime(t.Hour(), t.Minute(), t.Second())
}

func exactTimeOfDay(t model.TimeOfDay) float64 {
	return exactTime(t.Hour(), t.Minute(), t.Second())
}

// Periods expands rule into one period per start weekday, ordered by weekday.
func Periods(rule *model.ReservationRule) []Period {
	days := rule.StartDays.List()
	periods := make([]Period, 0, len(days))
	for _, day := range days {
		periods = append(periods, Period{
			Start: float64(day) + exactTimeOfDay(rule.StartTime),
			End:   float64(day+rule.DaysChanged) + exactTimeOfDay(rule.EndTime),
			Rule:  rule,
		})
	}
	return periods
}

func mod7(x float64) float64 {
	m := math.Mod(x, daysPerWeek)
	if m < 0 {
		m += daysPerWeek
	}
	return m
}

// HoursOverlap returns the hours two exact-weekday ranges share on the week ring,
// measured relative to the start of the first range.
func HoursOverlap(start1, end1, start2, end2 float64) float64 {
	a := mod7(end1 - start1)
	b := mod7(start2 - start1)
	c := mod7(end2 - start1)
	if b > c {
		return math.Min(a, c) * 24
	}
	return (math.Min(a, c) - math.Min(a, b)) * 24
}

// Overlaps reports whether two periods share any time. Touching endpoints do not overlap.
func (p Period) Overlaps(other Period) bool {
	return HoursOverlap(p.Start, p.End, other.Start, other.End) > 0
}

// HoursInside returns how many hours of [start, end) fall inside the period.
func (p Period) HoursInside(start, end time.Time) float64 {
	return HoursOverlap(p.Start, p.End, ExactWeekday(start), ExactWeekday(end))
}

// HoursInside sums the overlap of [start, end) with every period of rule.
func HoursInside(rule *model.ReservationRule, start, end time.Time) float64 {
	var total float64
	for _, p := range Periods(rule) {
		total += p.HoursInside(start, end)
	}
	return total
}

// WrappedPeriods returns each period as [start mod 7, end mod 7], the shape calendars draw from.
func WrappedPeriods(rule *model.ReservationRule) [][2]float64 {
	periods := Periods(rule)
	out := make([][2]float64, 0, len(periods))
	for _, p := range periods {
		out = append(out, [2]float64{mod7(p.Start), mod7(p.End)})
	}
	return out
}

const gapEpsilon = 1e-9

// HasGaps reports whether some instant of the week is covered by no rule.
func HasGaps(rules []model.ReservationRule) bool {
	var periods []Period
	for i := range rules {
		periods = append(periods, Periods(&rules[i])...)
	}
	if len(periods) == 0 {
		return true
	}
	sort.Slice(periods, func(i, j int) bool {
		return mod7(periods[i].Start) < mod7(periods[j].Start)
	})
	for i, p := range periods {
		next := periods[(i+1)%len(periods)]
		d := mod7(next.Start - p.End)
		if d > gapEpsilon && d < daysPerWeek-gapEpsilon {
			return true
		}
	}
	return false
}

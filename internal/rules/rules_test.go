package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/model"
)

func at(day, hour, minute int) time.Time {
	// 2018-03-12 is a Monday.
	return time.Date(2018, 3, 11+day, hour, minute, 0, 0, time.UTC)
}

func rule(id int64, days model.Weekdays, start, end string, daysChanged int, maxHours, maxCrossed float64) model.ReservationRule {
	s, err := model.ParseTimeOfDay(start)
	if err != nil {
		panic(err)
	}
	e, err := model.ParseTimeOfDay(end)
	if err != nil {
		panic(err)
	}
	return model.ReservationRule{
		ID:                     id,
		MachineTypeID:          1,
		StartTime:              s,
		EndTime:                e,
		DaysChanged:            daysChanged,
		StartDays:              days,
		MaxHours:               maxHours,
		MaxInsideBorderCrossed: maxCrossed,
	}
}

func TestHoursOverlap(t *testing.T) {
	testCases := []struct {
		name     string
		r1, r2   [2]float64
		expected float64
	}{
		{"inside", [2]float64{1.25, 1.5}, [2]float64{1.25, 1.4}, 3.6},
		{"inside wrapping week", [2]float64{7, 2}, [2]float64{1, 2}, 24},
		{"inside wrapping week from start", [2]float64{7, 2}, [2]float64{7, 1}, 24},
		{"inside wrapping both", [2]float64{7, 2}, [2]float64{7.4, 1.6}, 28.8},
		{"touching start", [2]float64{1.2, 1.4}, [2]float64{1, 1.2}, 0},
		{"touching end", [2]float64{1.2, 1.4}, [2]float64{1.4, 1.8}, 0},
		{"disjoint after wrap", [2]float64{7, 2}, [2]float64{3, 4}, 0},
		{"disjoint before wrap", [2]float64{2, 3}, [2]float64{7, 2}, 0},
		{"crossing start", [2]float64{1.2, 1.4}, [2]float64{1.1, 1.35}, 3.6},
		{"crossing end", [2]float64{1.2, 1.4}, [2]float64{1.25, 2.6}, 3.6},
		{"covering", [2]float64{1.2, 1.4}, [2]float64{7, 3}, 4.8},
		{"inside long period", [2]float64{7, 2}, [2]float64{1.1, 1.35}, 6},
		{"crossing start of wrapping period", [2]float64{7, 2}, [2]float64{6.25, 7.25}, 6},
		{"covering wrapping period", [2]float64{7, 2}, [2]float64{6.25, 2.25}, 48},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := HoursOverlap(tc.r1[0], tc.r1[1], tc.r2[0], tc.r2[1])
			assert.InDelta(t, tc.expected, got, 0.01)
		})
	}
}

func TestPeriodOverlaps(t *testing.T) {
	r1 := rule(1, model.WeekdaysOf(1), "10:00", "14:00", 0, 4, 4)
	r2 := rule(2, model.WeekdaysOf(1), "08:00", "10:00", 0, 4, 4)
	r3 := rule(3, model.WeekdaysOf(1), "09:00", "11:00", 0, 4, 4)
	r4 := rule(4, model.WeekdaysOf(2), "08:00", "12:00", 0, 4, 4)

	p1, p2, p3, p4 := Periods(&r1)[0], Periods(&r2)[0], Periods(&r3)[0], Periods(&r4)[0]

	assert.True(t, p1.Overlaps(p1), "a period overlaps itself")
	assert.False(t, p1.Overlaps(p2), "starting at another's end is not an overlap")
	assert.False(t, p2.Overlaps(p1), "ending at another's start is not an overlap")
	assert.True(t, p1.Overlaps(p3))
	assert.True(t, p3.Overlaps(p1))
	assert.False(t, p1.Overlaps(p4), "periods on distinct days do not overlap")
	assert.False(t, p4.Overlaps(p1))
}

func TestPeriods(t *testing.T) {
	r := rule(1, model.WeekdaysOf(1, 5), "18:00", "06:00", 1, 12, 12)

	periods := Periods(&r)
	require.Len(t, periods, 2)
	assert.InDelta(t, 1.75, periods[0].Start, 1e-9)
	assert.InDelta(t, 2.25, periods[0].End, 1e-9)
	assert.InDelta(t, 5.75, periods[1].Start, 1e-9)
	assert.InDelta(t, 6.25, periods[1].End, 1e-9)
}

func TestWrappedPeriods(t *testing.T) {
	r := rule(1, model.WeekdaysOf(7), "18:00", "06:00", 1, 12, 12)

	wrapped := WrappedPeriods(&r)
	require.Len(t, wrapped, 1)
	assert.InDelta(t, 0.75, wrapped[0][0], 1e-9)
	assert.InDelta(t, 1.25, wrapped[0][1], 1e-9)
}

func TestValidTime_SingleWeekLongRule(t *testing.T) {
	ruleSet := []model.ReservationRule{rule(1, model.WeekdaysOf(1), "00:00", "23:59", 6, 5, 5)}

	assert.NoError(t, ValidTime(at(1, 13, 0), at(1, 15, 0), ruleSet))

	err := ValidTime(at(1, 13, 0), at(1, 19, 30), ruleSet)
	assert.True(t, apperr.Is(err, apperr.KindExceedsRuleMaxSingle), "6.5 hours is above max_hours")

	err = ValidTime(at(7, 23, 59), at(7, 23, 59).Add(30*time.Second), ruleSet)
	assert.True(t, apperr.Is(err, apperr.KindNotCoveredByAnyRule), "the last minute of sunday is not covered")
}

func TestValidTime_TwoRules(t *testing.T) {
	ruleSet := []model.ReservationRule{
		rule(1, model.WeekdaysOf(1), "00:00", "18:00", 0, 6, 6),
		rule(2, model.WeekdaysOf(1), "18:00", "00:00", 7, 10, 6),
	}

	t.Run("inside the first rule", func(t *testing.T) {
		assert.NoError(t, ValidTime(at(1, 12, 0), at(1, 18, 0), ruleSet))
	})

	t.Run("inside the second rule", func(t *testing.T) {
		assert.NoError(t, ValidTime(at(1, 18, 0), at(2, 3, 0), ruleSet))
	})

	t.Run("crossing with too much time in the first rule", func(t *testing.T) {
		err := ValidTime(at(1, 11, 0), at(1, 20, 0), ruleSet)
		assert.True(t, apperr.Is(err, apperr.KindExceedsRuleMaxCrossed), "7 hours inside the first rule is above its crossed limit")
	})

	t.Run("crossing within both limits", func(t *testing.T) {
		assert.NoError(t, ValidTime(at(1, 13, 0), at(1, 21, 0), ruleSet))
	})

	t.Run("crossing and longer than every max", func(t *testing.T) {
		err := ValidTime(at(1, 12, 0), at(1, 23, 0), ruleSet)
		assert.True(t, apperr.Is(err, apperr.KindExceedsRuleMaxSingle), "11 hours is above the largest max_hours")
	})
}

func TestValidTime_LongerThanAWeek(t *testing.T) {
	ruleSet := []model.ReservationRule{rule(1, model.WeekdaysOf(1), "00:00", "00:00", 7, 500, 500)}

	err := ValidTime(at(1, 0, 0), at(8, 1, 0), ruleSet)
	assert.True(t, apperr.Is(err, apperr.KindExceedsRuleMaxSingle))
}

func TestValidTime_NoRules(t *testing.T) {
	err := ValidTime(at(1, 10, 0), at(1, 11, 0), nil)
	assert.True(t, apperr.Is(err, apperr.KindNotCoveredByAnyRule))
}

func TestValidateRule(t *testing.T) {
	existing := []model.ReservationRule{rule(1, model.WeekdaysOf(1, 2, 3), "08:00", "16:00", 0, 8, 8)}

	testCases := []struct {
		name    string
		rule    model.ReservationRule
		wantErr bool
	}{
		{"valid evening rule", rule(0, model.WeekdaysOf(1, 2, 3), "16:00", "08:00", 1, 16, 8), false},
		{"start after end without day change", rule(0, model.WeekdaysOf(4), "16:00", "08:00", 0, 8, 8), true},
		{"more than seven days", rule(0, model.WeekdaysOf(4), "08:00", "09:00", 8, 8, 8), true},
		{"seven days with start before end", rule(0, model.WeekdaysOf(4), "08:00", "09:00", 7, 8, 8), true},
		{"zero length", rule(0, model.WeekdaysOf(4), "08:00", "08:00", 0, 8, 8), true},
		{"internal overlap", rule(0, model.WeekdaysOf(4, 5), "08:00", "09:00", 1, 8, 8), true},
		{"back to back periods", rule(0, model.WeekdaysOf(4, 5), "08:00", "08:00", 1, 8, 8), false},
		{"overlaps other rule", rule(0, model.WeekdaysOf(2), "12:00", "18:00", 0, 8, 8), true},
		{"no start days", rule(0, 0, "08:00", "09:00", 0, 8, 8), true},
		{"updating itself is not an overlap", rule(1, model.WeekdaysOf(1, 2, 3), "08:00", "17:00", 0, 8, 8), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.rule
			err := ValidateRule(&r, existing)
			if tc.wantErr {
				assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHasGaps(t *testing.T) {
	full := []model.ReservationRule{
		rule(1, model.WeekdaysOf(1), "00:00", "18:00", 0, 6, 6),
		rule(2, model.WeekdaysOf(1), "18:00", "00:00", 7, 10, 6),
	}
	assert.False(t, HasGaps(full))

	almost := []model.ReservationRule{rule(1, model.WeekdaysOf(1), "00:00", "23:59", 6, 5, 5)}
	assert.True(t, HasGaps(almost))

	weekdaysOnly := []model.ReservationRule{rule(1, model.WeekdaysOf(1, 2, 3, 4, 5), "00:00", "00:00", 1, 24, 24)}
	assert.True(t, HasGaps(weekdaysOnly))

	everyDay := []model.ReservationRule{rule(1, model.WeekdaysOf(1, 2, 3, 4, 5, 6, 7), "07:00", "07:00", 1, 24, 24)}
	assert.False(t, HasGaps(everyDay))

	assert.True(t, HasGaps(nil))
}

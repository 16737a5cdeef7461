package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestISOWeekday(t *testing.T) {
	monday := time.Date(2018, 3, 12, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, ISOWeekday(monday))
	assert.Equal(t, 7, ISOWeekday(monday.AddDate(0, 0, 6)))
}

func TestYearAndWeekToMonday(t *testing.T) {
	testCases := []struct {
		name string
		year int
		week int
		want time.Time
	}{
		{"week 1 starting in previous december", 2019, 1, time.Date(2018, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"week 1 starting in january", 2018, 1, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"mid year", 2018, 11, time.Date(2018, 3, 12, 0, 0, 0, 0, time.UTC)},
		{"week 53", 2020, 53, time.Date(2020, 12, 28, 0, 0, 0, 0, time.UTC)},
		{"week 1 starting in january of long year", 2021, 1, time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, YearAndWeekToMonday(tc.year, tc.week, time.UTC))
		})
	}
}

func TestLastWeekOfYear(t *testing.T) {
	assert.Equal(t, 52, LastWeekOfYear(2019))
	assert.Equal(t, 53, LastWeekOfYear(2020))
	assert.Equal(t, 53, LastWeekOfYear(2015))
	assert.Equal(t, 52, LastWeekOfYear(2018))
}

func TestIsValidWeek(t *testing.T) {
	assert.False(t, IsValidWeek(2019, 53))
	assert.True(t, IsValidWeek(2020, 53))
	assert.False(t, IsValidWeek(2020, 0))
	assert.True(t, IsValidWeek(2019, 1))
}

func TestCurrentYearAndWeek(t *testing.T) {
	year, week := CurrentYearAndWeek(time.Date(2018, 12, 31, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, 2019, year)
	assert.Equal(t, 1, week)
}

package generic

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2025-12-22", "2025-12-22"}, // Monday
		{"2025-12-25", "2025-12-22"},
		{"2025-12-28", "2025-12-22"}, // Sunday
		{"2026-01-01", "2025-12-29"}, // across the year boundary
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, MustParseDate(tt.date).WeekStart().String())
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-12-25")
	require.NoError(t, err)
	assert.Equal(t, time.December, d.Time.Month())

	for _, bad := range []string{"", "25-12-2025", "2025-02-30", "2025-12-25T10:00:00Z"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestFromTime_DropsClock(t *testing.T) {
	warsaw := time.FixedZone("CET", 3600)

	// 00:30 in Warsaw is still the previous day in UTC
	d := FromTime(time.Date(2025, 12, 25, 0, 30, 0, 0, warsaw))
	assert.Equal(t, "2025-12-25", d.String())
	assert.True(t, d.Equal(MustParseDate("2025-12-25")))
}

func TestWithin(t *testing.T) {
	from, to := MustParseDate("2025-12-22"), MustParseDate("2025-12-28")

	assert.True(t, from.Within(from, to), "bounds are inclusive")
	assert.True(t, to.Within(from, to))
	assert.False(t, MustParseDate("2025-12-29").Within(from, to))
	assert.True(t, MustParseDate("2030-01-01").Within(from, TimePoint{}), "zero bound is open")
}

func TestHolidaySet(t *testing.T) {
	xmas := MustParseDate("2025-12-25")
	hs := NewHolidaySet(xmas, xmas)

	assert.Equal(t, 1, hs.Len())
	assert.True(t, hs.IsHoliday(xmas))
	assert.False(t, hs.IsHoliday(MustParseDate("2025-12-27")))

	assert.False(t, hs.Add(xmas))
	assert.True(t, hs.Add(MustParseDate("2025-12-24")))
	assert.Equal(t, []TimePoint{MustParseDate("2025-12-24"), xmas}, hs.Dates())

	assert.True(t, hs.Remove(xmas))
	assert.False(t, hs.Remove(xmas))

	var empty *HolidaySet
	assert.False(t, empty.IsHoliday(xmas))
}

func TestHolidaySet_ConcurrentAccess(t *testing.T) {
	hs := NewHolidaySet()
	start := MustParseDate("2025-01-01")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := start.AddDays(i % 10)
			hs.Add(d)
			hs.IsHoliday(d)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, hs.Len())
}

func TestSum(t *testing.T) {
	assert.True(t, Sum().Equal(Money(decimal.Zero)), "empty sum is zero PLN")

	total := Sum(
		Money(decimal.RequireFromString("43.325")),
		Money(decimal.RequireFromString("43.325")),
		Money(decimal.RequireFromString("43.325")),
	)
	assert.Equal(t, "129.975", total.Value.String())
	assert.Equal(t, "129.98 PLN", total.Display())
}

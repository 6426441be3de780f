package generic

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// =============================================================================
// TIME POINT - A calendar day (work dates and holidays have no time part)
// =============================================================================

type TimePoint struct {
	Time time.Time
}

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day in t's own location.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return FromTime(t), nil
}

func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool  { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool  { return tp.Time.After(other.Time) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }
func (tp TimePoint) String() string        { return tp.Time.Format(DateLayout) }

// WeekStart returns the Monday of the week containing tp.
func (tp TimePoint) WeekStart() TimePoint {
	offset := (int(tp.Weekday()) + 6) % 7
	return tp.AddDays(-offset)
}

// Within reports whether tp lies in [from, to]. A zero bound is open.
func (tp TimePoint) Within(from, to TimePoint) bool {
	if !from.IsZero() && tp.Before(from) {
		return false
	}
	if !to.IsZero() && tp.After(to) {
		return false
	}
	return true
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// HolidayCalendar answers whether a date is a holiday.
type HolidayCalendar interface {
	IsHoliday(date TimePoint) bool
}

// HolidaySet is a de-duplicated set of holiday dates. Safe for concurrent use.
type HolidaySet struct {
	mu    sync.RWMutex
	dates map[string]TimePoint
}

func NewHolidaySet(dates ...TimePoint) *HolidaySet {
	hs := &HolidaySet{dates: make(map[string]TimePoint, len(dates))}
	for _, d := range dates {
		hs.dates[d.String()] = d
	}
	return hs
}

// Add inserts date and reports whether it was new.
func (hs *HolidaySet) Add(date TimePoint) bool {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	key := date.String()
	if _, ok := hs.dates[key]; ok {
		return false
	}
	hs.dates[key] = date
	return true
}

// Remove deletes date and reports whether it was present.
func (hs *HolidaySet) Remove(date TimePoint) bool {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	key := date.String()
	if _, ok := hs.dates[key]; !ok {
		return false
	}
	delete(hs.dates, key)
	return true
}

func (hs *HolidaySet) IsHoliday(date TimePoint) bool {
	if hs == nil {
		return false
	}
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	_, ok := hs.dates[date.String()]
	return ok
}

func (hs *HolidaySet) Len() int {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return len(hs.dates)
}

// Dates returns the holidays in ascending order.
func (hs *HolidaySet) Dates() []TimePoint {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	out := make([]TimePoint, 0, len(hs.dates))
	for _, d := range hs.dates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

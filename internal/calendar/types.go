package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the civil date format used in workspace files and reports.
const DateLayout = "2006-01-02"

// DefaultCapacityFactor is the share of a nominal workday assumed productive.
const DefaultCapacityFactor = 0.85

// HalfDayWeight is the fraction of a day a half-day leave consumes.
const HalfDayWeight = 0.5

// ErrInvalidDate marks caller-supplied dates that cannot be used for planning.
var ErrInvalidDate = errors.New("invalid date")

// HolidayType distinguishes company-wide closures from optional collective days.
type HolidayType string

const (
	HolidayNational   HolidayType = "national"
	HolidayCollective HolidayType = "collective"
)

// LeaveType distinguishes full-day absences from half-day ones.
type LeaveType string

const (
	LeaveFull LeaveType = "full"
	LeaveHalf LeaveType = "half"
)

// Holiday is a single day or an inclusive range of days off for everyone.
type Holiday struct {
	Name string      `json:"name,omitempty" yaml:"name,omitempty"`
	Date time.Time   `json:"date" yaml:"date"`
	End  time.Time   `json:"end,omitempty" yaml:"end,omitempty"`
	Type HolidayType `json:"type" yaml:"type"`
}

// Leave is a personal absence owned by a single member.
type Leave struct {
	Member string    `json:"member" yaml:"member"`
	Start  time.Time `json:"start" yaml:"start"`
	End    time.Time `json:"end,omitempty" yaml:"end,omitempty"`
	Type   LeaveType `json:"type" yaml:"type"`
}

// Days expands the holiday into individual civil dates.
func (h Holiday) Days() ([]time.Time, error) {
	return expandRange(h.Date, h.End)
}

// Days expands the leave into individual civil dates.
func (l Leave) Days() ([]time.Time, error) {
	return expandRange(l.Start, l.End)
}

// Day truncates t to its civil date in UTC, dropping any time-of-day component.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Key returns the same-day comparison key for t.
func Key(t time.Time) string {
	return Day(t).Format(DateLayout)
}

// ParseDate parses a strict YYYY-MM-DD civil date.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", ErrInvalidDate)
	}
	parsed, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, value, err)
	}
	return parsed, nil
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

// DateSet is a same-day lookup set.
type DateSet map[string]struct{}

// NewDateSet builds a set from the provided dates.
func NewDateSet(dates ...time.Time) DateSet {
	set := make(DateSet, len(dates))
	for _, d := range dates {
		set.Add(d)
	}
	return set
}

// Add inserts the civil date of t.
func (s DateSet) Add(t time.Time) {
	s[Key(t)] = struct{}{}
}

// Contains reports whether the civil date of t is in the set.
func (s DateSet) Contains(t time.Time) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[Key(t)]
	return ok
}

func expandRange(start, end time.Time) ([]time.Time, error) {
	if start.IsZero() {
		return nil, fmt.Errorf("%w: missing start date", ErrInvalidDate)
	}
	first := Day(start)
	if end.IsZero() {
		return []time.Time{first}, nil
	}
	last := Day(end)
	if last.Before(first) {
		return nil, fmt.Errorf("%w: range end %s precedes start %s", ErrInvalidDate, Key(last), Key(first))
	}
	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

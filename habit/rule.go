/*
Package habit provides the recurring-habit engine: recurrence rules,
occurrence expansion, and the reconciler that keeps stored occurrences
in line with a template's current rule.

PURPOSE:
  A habit template describes how a habit repeats (its RecurrenceRule) plus
  the defaults every generated occurrence snapshots (title, energy, points,
  quest). The engine turns that description into concrete dated occurrences
  and keeps them consistent when the template is edited, (de)activated, or
  extended.

KEY CONCEPTS IN THIS FILE (rule.go):
  - RecurrenceRule: when a template fires (weekday set, time-of-day, window)
  - TimeOfDay: wall-clock time without a date ("09:00")
  - Weekday codes: two-letter codes MO..SU plus DAILY/WEEKLY sentinels

DESIGN PRINCIPLES:
  1. Rules are plain values - the expander is a pure function over them
  2. Dates are UTC midnights; instants are full UTC timestamps
  3. Validation happens before any mutation is attempted

SEE ALSO:
  - expander.go: RecurrenceRule + window -> firing dates
  - reconciler.go: orchestrates expansion against stored occurrences
*/
package habit

import (
	"fmt"
	"time"
)

// =============================================================================
// WEEKDAY CODES
// =============================================================================

// Two-letter weekday codes used in RecurrenceRule.ByDay, Monday first.
const (
	CodeMonday    = "MO"
	CodeTuesday   = "TU"
	CodeWednesday = "WE"
	CodeThursday  = "TH"
	CodeFriday    = "FR"
	CodeSaturday  = "SA"
	CodeSunday    = "SU"

	// Sentinels. DAILY fires every day. WEEKLY with no explicit weekday
	// codes degrades to daily within the window.
	CodeDaily  = "DAILY"
	CodeWeekly = "WEEKLY"
)

var weekdayCodes = map[time.Weekday]string{
	time.Monday:    CodeMonday,
	time.Tuesday:   CodeTuesday,
	time.Wednesday: CodeWednesday,
	time.Thursday:  CodeThursday,
	time.Friday:    CodeFriday,
	time.Saturday:  CodeSaturday,
	time.Sunday:    CodeSunday,
}

// WeekdayCode returns the two-letter code for a Go weekday.
func WeekdayCode(d time.Weekday) string { return weekdayCodes[d] }

// IsWeekdayCode reports whether s is one of MO..SU (not a sentinel).
func IsWeekdayCode(s string) bool {
	switch s {
	case CodeMonday, CodeTuesday, CodeWednesday, CodeThursday, CodeFriday, CodeSaturday, CodeSunday:
		return true
	}
	return false
}

// =============================================================================
// TIME OF DAY
// =============================================================================

// TimeOfDay is a wall-clock time with minute precision, e.g. 09:00.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On combines the time-of-day with a calendar date in UTC.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, time.UTC)
}

// =============================================================================
// RECURRENCE RULE
// =============================================================================

// DefaultDurationMinutes applies when a timed rule has no explicit duration.
const DefaultDurationMinutes = 60

// RecurrenceRule is the immutable description of how a template repeats.
//
// ByDay holds weekday codes and/or sentinels. An empty ByDay means daily.
// StartTime nil means the occurrences are all-day. DurationMinutes zero
// means "unset" and falls back to DefaultDurationMinutes for timed rules.
// PatternStart/PatternEnd are inclusive calendar dates (UTC midnights);
// PatternEnd nil means the pattern is open-ended.
type RecurrenceRule struct {
	ByDay           []string
	StartTime       *TimeOfDay
	DurationMinutes int
	PatternStart    time.Time
	PatternEnd      *time.Time
}

// AllDay reports whether the rule produces all-day occurrences.
func (r RecurrenceRule) AllDay() bool { return r.StartTime == nil }

// Duration returns the occurrence duration for timed rules, applying the
// default when unset or non-positive.
func (r RecurrenceRule) Duration() time.Duration {
	minutes := r.DurationMinutes
	if minutes <= 0 {
		minutes = DefaultDurationMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Validate checks the rule before any generation is attempted.
// Violations surface as *ValidationError.
func (r RecurrenceRule) Validate() error {
	for _, code := range r.ByDay {
		if code != CodeDaily && code != CodeWeekly && !IsWeekdayCode(code) {
			return &ValidationError{Field: "byDay", Message: fmt.Sprintf("unknown weekday code %q", code)}
		}
	}
	if r.PatternStart.IsZero() {
		return &ValidationError{Field: "patternStartDate", Message: "pattern start date is required"}
	}
	if r.PatternEnd != nil && DateOf(*r.PatternEnd).Before(DateOf(r.PatternStart)) {
		return &ValidationError{Field: "patternEndDate", Message: "pattern end date is before start date"}
	}
	if r.DurationMinutes < 0 {
		return &ValidationError{Field: "durationMinutes", Message: "duration must be positive"}
	}
	return nil
}

// FiresOn reports whether the rule fires on the given date's weekday.
// Date window bounds are the expander's concern, not this predicate's.
func (r RecurrenceRule) FiresOn(date time.Time) bool {
	if len(r.ByDay) == 0 {
		return true
	}
	code := WeekdayCode(date.Weekday())
	hasWeekly := false
	hasExplicit := false
	for _, d := range r.ByDay {
		switch {
		case d == CodeDaily:
			return true
		case d == CodeWeekly:
			hasWeekly = true
		case IsWeekdayCode(d):
			hasExplicit = true
			if d == code {
				return true
			}
		}
	}
	// "Repeats weekly" with no particular day degrades to daily.
	if hasWeekly && !hasExplicit {
		return true
	}
	return false
}

// =============================================================================
// DATE HELPERS
// =============================================================================

// DateOf truncates an instant to its UTC calendar date (midnight).
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last representable instant of the date's UTC day.
func EndOfDay(date time.Time) time.Time {
	return DateOf(date).Add(24*time.Hour - time.Nanosecond)
}

// SameDate reports whether two instants fall on the same UTC calendar date.
func SameDate(a, b time.Time) bool { return DateOf(a).Equal(DateOf(b)) }

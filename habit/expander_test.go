package habit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/questlog/habit-engine/habit"
)

func TestExpand_WeekdaySelection(t *testing.T) {
	// GIVEN: a Monday/Wednesday rule starting Monday 2024-01-01
	// WHEN: expanding the first two weeks
	// THEN: exactly Jan 1, 3, 8, 10 fire

	rule := habit.RecurrenceRule{
		ByDay:        []string{habit.CodeMonday, habit.CodeWednesday},
		PatternStart: date(2024, time.January, 1),
	}

	got := habit.Expand(rule, date(2024, time.January, 1), date(2024, time.January, 14))

	want := []time.Time{
		date(2024, time.January, 1),
		date(2024, time.January, 3),
		date(2024, time.January, 8),
		date(2024, time.January, 10),
	}
	assert.Equal(t, want, got)
}

func TestExpand_Daily(t *testing.T) {
	rule := habit.RecurrenceRule{
		ByDay:        []string{habit.CodeDaily},
		PatternStart: date(2024, time.March, 1),
	}

	got := habit.Expand(rule, date(2024, time.March, 1), date(2024, time.March, 7))
	assert.Len(t, got, 7)
	for i, d := range got {
		assert.Equal(t, date(2024, time.March, 1+i), d)
	}
}

func TestExpand_EmptyAndInvertedWindows(t *testing.T) {
	rule := habit.RecurrenceRule{PatternStart: date(2024, time.January, 1)}

	// Single day window.
	got := habit.Expand(rule, date(2024, time.January, 5), date(2024, time.January, 5))
	assert.Equal(t, []time.Time{date(2024, time.January, 5)}, got)

	// Inverted window yields nothing.
	got = habit.Expand(rule, date(2024, time.January, 10), date(2024, time.January, 5))
	assert.Empty(t, got)
}

func TestExpand_TruncatesInstantsToDates(t *testing.T) {
	// Expansion works on calendar dates even when the window bounds carry
	// a time of day.
	rule := habit.RecurrenceRule{
		ByDay:        []string{habit.CodeFriday},
		PatternStart: date(2024, time.January, 1),
	}

	from := time.Date(2024, time.January, 5, 23, 50, 0, 0, time.UTC) // a Friday, late
	to := time.Date(2024, time.January, 12, 0, 10, 0, 0, time.UTC)   // next Friday, early

	got := habit.Expand(rule, from, to)
	want := []time.Time{date(2024, time.January, 5), date(2024, time.January, 12)}
	assert.Equal(t, want, got)
}

func TestExpand_OrderedAndUnique(t *testing.T) {
	rule := habit.RecurrenceRule{
		ByDay:        []string{habit.CodeWeekly, habit.CodeSaturday, habit.CodeSunday},
		PatternStart: date(2024, time.June, 1),
	}

	got := habit.Expand(rule, date(2024, time.June, 1), date(2024, time.June, 30))

	seen := map[time.Time]bool{}
	for i, d := range got {
		assert.False(t, seen[d], "duplicate date %v", d)
		seen[d] = true
		if i > 0 {
			assert.True(t, got[i-1].Before(d), "dates out of order")
		}
	}
}

package habit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog/habit-engine/habit"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// TIME OF DAY
// =============================================================================

func TestParseTimeOfDay(t *testing.T) {
	tod, err := habit.ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, tod.Hour)
	assert.Equal(t, 30, tod.Minute)
	assert.Equal(t, "09:30", tod.String())

	_, err = habit.ParseTimeOfDay("25:00")
	assert.Error(t, err)
	_, err = habit.ParseTimeOfDay("9am")
	assert.Error(t, err)
}

func TestTimeOfDay_On(t *testing.T) {
	tod := habit.TimeOfDay{Hour: 14, Minute: 15}
	got := tod.On(date(2024, time.January, 3))
	assert.Equal(t, time.Date(2024, time.January, 3, 14, 15, 0, 0, time.UTC), got)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestRuleValidate(t *testing.T) {
	valid := habit.RecurrenceRule{
		ByDay:        []string{habit.CodeMonday, habit.CodeWednesday},
		PatternStart: date(2024, time.January, 1),
	}
	assert.NoError(t, valid.Validate())

	t.Run("unknown weekday code", func(t *testing.T) {
		r := valid
		r.ByDay = []string{"XX"}
		err := r.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, habit.ErrInvalidRule)
		assert.True(t, habit.IsClientError(err))
	})

	t.Run("missing pattern start", func(t *testing.T) {
		r := valid
		r.PatternStart = time.Time{}
		assert.ErrorIs(t, r.Validate(), habit.ErrInvalidRule)
	})

	t.Run("end before start", func(t *testing.T) {
		r := valid
		end := date(2023, time.December, 31)
		r.PatternEnd = &end
		assert.ErrorIs(t, r.Validate(), habit.ErrInvalidRule)
	})

	t.Run("negative duration", func(t *testing.T) {
		r := valid
		r.DurationMinutes = -5
		assert.ErrorIs(t, r.Validate(), habit.ErrInvalidRule)
	})

	t.Run("zero duration means unset", func(t *testing.T) {
		r := valid
		r.DurationMinutes = 0
		assert.NoError(t, r.Validate())
		assert.Equal(t, time.Duration(habit.DefaultDurationMinutes)*time.Minute, r.Duration())
	})
}

// =============================================================================
// FIRING PREDICATE
// =============================================================================

func TestFiresOn(t *testing.T) {
	monday := date(2024, time.January, 1) // 2024-01-01 is a Monday
	tuesday := monday.AddDate(0, 0, 1)

	t.Run("empty ByDay fires daily", func(t *testing.T) {
		r := habit.RecurrenceRule{PatternStart: monday}
		assert.True(t, r.FiresOn(monday))
		assert.True(t, r.FiresOn(tuesday))
	})

	t.Run("DAILY sentinel fires daily", func(t *testing.T) {
		r := habit.RecurrenceRule{ByDay: []string{habit.CodeDaily}, PatternStart: monday}
		assert.True(t, r.FiresOn(tuesday))
	})

	t.Run("explicit weekdays", func(t *testing.T) {
		r := habit.RecurrenceRule{ByDay: []string{habit.CodeMonday}, PatternStart: monday}
		assert.True(t, r.FiresOn(monday))
		assert.False(t, r.FiresOn(tuesday))
	})

	t.Run("WEEKLY without weekdays degrades to daily", func(t *testing.T) {
		r := habit.RecurrenceRule{ByDay: []string{habit.CodeWeekly}, PatternStart: monday}
		assert.True(t, r.FiresOn(monday))
		assert.True(t, r.FiresOn(tuesday))
	})

	t.Run("WEEKLY with weekdays respects them", func(t *testing.T) {
		r := habit.RecurrenceRule{
			ByDay:        []string{habit.CodeWeekly, habit.CodeMonday},
			PatternStart: monday,
		}
		assert.True(t, r.FiresOn(monday))
		assert.False(t, r.FiresOn(tuesday))
	})
}

func TestTemplateValidate(t *testing.T) {
	tpl := habit.Template{
		ID:      "tpl-1",
		UserID:  "user-1",
		QuestID: "quest-1",
		Title:   "Morning run",
		Rule:    habit.RecurrenceRule{PatternStart: date(2024, time.January, 1)},
	}
	assert.NoError(t, tpl.Validate())

	noQuest := tpl
	noQuest.QuestID = ""
	assert.ErrorIs(t, noQuest.Validate(), habit.ErrInvalidRule)

	negative := tpl
	negative.DefaultPoints = -10
	assert.ErrorIs(t, negative.Validate(), habit.ErrInvalidRule)
}

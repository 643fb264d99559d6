package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog/habit-engine/gamification"
	"github.com/questlog/habit-engine/habit"
	"github.com/questlog/habit-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveUser(ctx, sqlite.User{ID: "user-1", Username: "ada"}))
	require.NoError(t, store.SaveQuest(ctx, sqlite.Quest{
		ID: "quest-1", UserID: "user-1", Name: "General", IsDefault: true,
	}))
	return store
}

func testTemplate() habit.Template {
	return habit.Template{
		ID:            "tpl-1",
		UserID:        "user-1",
		QuestID:       "quest-1",
		Title:         "Stretch",
		DefaultEnergy: 5,
		DefaultPoints: 10,
		Rule: habit.RecurrenceRule{
			ByDay:        []string{habit.CodeMonday, habit.CodeWednesday},
			PatternStart: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		IsActive: true,
	}
}

func testOccurrence(id string, start time.Time) habit.Occurrence {
	return habit.Occurrence{
		ID:             habit.OccurrenceID(id),
		TemplateID:     "tpl-1",
		UserID:         "user-1",
		QuestID:        "quest-1",
		Title:          "Stretch",
		EnergyValue:    5,
		PointsValue:    10,
		ScheduledStart: start,
		ScheduledEnd:   start.Add(time.Hour),
		Status:         habit.StatusPending,
	}
}

// =============================================================================
// TEMPLATE ROUND-TRIP
// =============================================================================

func TestTemplateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tpl := testTemplate()
	start := &habit.TimeOfDay{Hour: 7, Minute: 30}
	tpl.Rule.StartTime = start
	tpl.Rule.DurationMinutes = 45
	end := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	tpl.Rule.PatternEnd = &end

	require.NoError(t, store.SaveTemplate(ctx, tpl))

	got, err := store.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tpl.Rule.ByDay, got.Rule.ByDay)
	require.NotNil(t, got.Rule.StartTime)
	assert.Equal(t, *start, *got.Rule.StartTime)
	assert.Equal(t, 45, got.Rule.DurationMinutes)
	assert.True(t, tpl.Rule.PatternStart.Equal(got.Rule.PatternStart))
	require.NotNil(t, got.Rule.PatternEnd)
	assert.True(t, end.Equal(*got.Rule.PatternEnd))
	assert.True(t, got.IsActive)
}

func TestGetTemplate_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTemplate(context.Background(), "missing")
	assert.ErrorIs(t, err, habit.ErrTemplateNotFound)
}

// =============================================================================
// OCCURRENCE UNIQUENESS BACKSTOP
// =============================================================================

func TestInsertOccurrences_DuplicateStartRejected(t *testing.T) {
	// GIVEN: an occurrence stored at a given scheduled start
	// WHEN: a second insert hits the same (template, scheduled_start)
	// THEN: the unique index reports habit.ErrDuplicateOccurrence

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTemplate(ctx, testTemplate()))

	start := time.Date(2024, time.January, 1, 7, 30, 0, 0, time.UTC)
	require.NoError(t, store.InsertOccurrences(ctx, []habit.Occurrence{testOccurrence("occ-1", start)}))

	err := store.InsertOccurrences(ctx, []habit.Occurrence{testOccurrence("occ-2", start)})
	assert.ErrorIs(t, err, habit.ErrDuplicateOccurrence)
}

func TestDeletePendingFrom_SparesHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTemplate(ctx, testTemplate()))

	day := func(d int) time.Time {
		return time.Date(2024, time.January, d, 7, 0, 0, 0, time.UTC)
	}
	completed := testOccurrence("occ-done", day(2))
	completed.Status = habit.StatusCompleted
	require.NoError(t, store.InsertOccurrences(ctx, []habit.Occurrence{
		testOccurrence("occ-1", day(1)),
		completed,
		testOccurrence("occ-3", day(3)),
	}))

	deleted, err := store.DeletePendingFrom(ctx, "tpl-1", time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted) // only occ-3: occ-1 is before the cutoff, occ-done is not PENDING

	starts, err := store.ScheduledStarts(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Len(t, starts, 2)
}

func TestLatestScheduledStart(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTemplate(ctx, testTemplate()))

	_, ok, err := store.LatestScheduledStart(ctx, "tpl-1")
	require.NoError(t, err)
	assert.False(t, ok)

	later := time.Date(2024, time.January, 8, 7, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertOccurrences(ctx, []habit.Occurrence{
		testOccurrence("occ-1", time.Date(2024, time.January, 1, 7, 0, 0, 0, time.UTC)),
		testOccurrence("occ-2", later),
	}))

	got, ok, err := store.LatestScheduledStart(ctx, "tpl-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, later.Equal(got))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestTransact_RollsBackOnError(t *testing.T) {
	// GIVEN: a transaction that writes then fails
	// WHEN: Transact returns the error
	// THEN: none of the writes are visible

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTemplate(ctx, testTemplate()))

	boom := errors.New("boom")
	err := store.Transact(ctx, func(tx *sqlite.Tx) error {
		occ := testOccurrence("occ-1", time.Date(2024, time.January, 1, 7, 0, 0, 0, time.UTC))
		if err := tx.InsertOccurrences(ctx, []habit.Occurrence{occ}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	starts, err := store.ScheduledStarts(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Empty(t, starts)
}

// =============================================================================
// ENERGY LOG CONSTRAINTS
// =============================================================================

func TestEnergyLog_OneActiveEntryPerSource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := gamification.EnergyLogEntry{
		ID:         "e-1",
		UserID:     "user-1",
		SourceType: gamification.SourceHabitOccurrence,
		SourceID:   "occ-1",
		Value:      -10,
		Reason:     "Completed Habit: Meditate",
		IsActive:   true,
		RecordedAt: time.Now().UTC(),
	}
	require.NoError(t, store.InsertEnergyLog(ctx, entry))

	dup := entry
	dup.ID = "e-2"
	assert.Error(t, store.InsertEnergyLog(ctx, dup), "second active entry for the same source must be rejected")

	// After deactivating the first, a fresh active entry is allowed again.
	require.NoError(t, store.DeactivateEntry(ctx, "e-1"))
	require.NoError(t, store.InsertEnergyLog(ctx, dup))

	latest, ok, err := store.LatestActiveEntry(ctx, "user-1", gamification.SourceHabitOccurrence, "occ-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, gamification.EntryID("e-2"), latest.ID)
	assert.Equal(t, "Completed Habit: Meditate", latest.Reason)
}

func TestUserStatsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stats, err := store.GetUserStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalPoints)
	assert.Equal(t, 1, stats.Level)

	stats.TotalPoints = 350
	stats.Level = 3
	stats.UpdatedAt = time.Now().UTC()
	require.NoError(t, store.UpdateUserStats(ctx, stats))

	got, err := store.GetUserStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 350, got.TotalPoints)
	assert.Equal(t, 3, got.Level)

	_, err = store.GetUserStats(ctx, "ghost")
	assert.ErrorIs(t, err, gamification.ErrUserNotFound)
}

func TestDefaultQuestLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	quest, err := store.DefaultQuest(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "quest-1", quest.ID)
	assert.True(t, quest.IsDefault)

	_, err = store.DefaultQuest(ctx, "ghost")
	assert.ErrorIs(t, err, sqlite.ErrNotFound)
}

func TestListEnergyLog_NewestFirstWithFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	for i, src := range []gamification.SourceType{
		gamification.SourcePoolMission,
		gamification.SourceHabitOccurrence,
		gamification.SourcePoolMission,
	} {
		require.NoError(t, store.InsertEnergyLog(ctx, gamification.EnergyLogEntry{
			ID:         gamification.EntryID(fmt.Sprintf("e-%d", i)),
			UserID:     "user-1",
			SourceType: src,
			SourceID:   fmt.Sprintf("src-%d", i),
			Value:      10,
			IsActive:   true,
			RecordedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	entries, err := store.ListEnergyLog(ctx, "user-1", "", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, gamification.EntryID("e-2"), entries[0].ID, "newest first")
	assert.Equal(t, gamification.EntryID("e-0"), entries[2].ID)

	entries, err = store.ListEnergyLog(ctx, "user-1", gamification.SourceHabitOccurrence, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, gamification.EntryID("e-1"), entries[0].ID)
}

func TestEnergyLog_ManualEntriesBypassActiveIndex(t *testing.T) {
	// Entries without a source id are manual; several may be active at once.
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, store.InsertEnergyLog(ctx, gamification.EnergyLogEntry{
			ID:         gamification.EntryID(fmt.Sprintf("manual-%d", i)),
			UserID:     "user-1",
			SourceType: gamification.SourcePoolMission,
			SourceID:   "",
			Value:      5,
			IsActive:   true,
			RecordedAt: time.Now().UTC(),
		}))
	}
}

func TestAgendaScheduledMissions_AllDayOverlapsWindow(t *testing.T) {
	// GIVEN: an all-day mission spanning three days, a timed one before the
	//        window, and a completed all-day one inside it
	// WHEN: the middle day's agenda window is queried
	// THEN: only the pending spanning mission comes back

	store := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC)
	dayEnd := day.Add(24*time.Hour - time.Nanosecond)

	require.NoError(t, store.SaveScheduledMission(ctx, sqlite.ScheduledMission{
		ID: "sm-span", UserID: "user-1", QuestID: "quest-1", Title: "Conference",
		ScheduledStart: day.AddDate(0, 0, -1),
		ScheduledEnd:   day.AddDate(0, 0, 2),
		IsAllDay:       true,
		Status:         sqlite.MissionPending,
	}))
	require.NoError(t, store.SaveScheduledMission(ctx, sqlite.ScheduledMission{
		ID: "sm-early", UserID: "user-1", QuestID: "quest-1", Title: "Yesterday call",
		ScheduledStart: day.AddDate(0, 0, -1).Add(9 * time.Hour),
		ScheduledEnd:   day.AddDate(0, 0, -1).Add(10 * time.Hour),
		Status:         sqlite.MissionPending,
	}))
	require.NoError(t, store.SaveScheduledMission(ctx, sqlite.ScheduledMission{
		ID: "sm-done", UserID: "user-1", QuestID: "quest-1", Title: "Done already",
		ScheduledStart: day,
		ScheduledEnd:   dayEnd,
		IsAllDay:       true,
		Status:         sqlite.MissionCompleted,
	}))

	missions, err := store.AgendaScheduledMissions(ctx, "user-1", day, dayEnd)
	require.NoError(t, err)
	require.Len(t, missions, 1)
	assert.Equal(t, "sm-span", missions[0].ID)
}

func TestRecentActivity_MergesSourcesNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)
	earlier := base.Add(-time.Hour)

	require.NoError(t, store.SavePoolMission(ctx, sqlite.PoolMission{
		ID: "pm-1", UserID: "user-1", QuestID: "quest-1", Title: "Inbox zero",
		PointsValue: 10, Status: sqlite.MissionCompleted, CompletedAt: &earlier,
	}))

	require.NoError(t, store.SaveTemplate(ctx, testTemplate()))
	occ := testOccurrence("occ-1", base)
	occ.Status = habit.StatusCompleted
	occ.CompletedAt = &base
	require.NoError(t, store.InsertOccurrences(ctx, []habit.Occurrence{occ}))

	// Still-pending work stays out of the feed.
	require.NoError(t, store.SavePoolMission(ctx, sqlite.PoolMission{
		ID: "pm-2", UserID: "user-1", QuestID: "quest-1", Title: "Open task",
		Status: sqlite.MissionTodo,
	}))

	items, err := store.RecentActivity(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "occ-1", items[0].ID, "newest first")
	assert.Equal(t, "HABIT_OCCURRENCE", items[0].Type)
	assert.Equal(t, "pm-1", items[1].ID)
	assert.Equal(t, "POOL_MISSION", items[1].Type)

	items, err = store.RecentActivity(ctx, "user-1", 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

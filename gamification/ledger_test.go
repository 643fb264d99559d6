package gamification_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog/habit-engine/gamification"
	"github.com/questlog/habit-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var ledgerNow = time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)

func newTestLedger() (*gamification.StatsLedger, *memory.Store) {
	store := memory.New()
	store.SeedStats(gamification.UserStats{UserID: "user-1", TotalPoints: 0, Level: 1})

	seq := 0
	ledger := &gamification.StatsLedger{
		Now: func() time.Time { return ledgerNow },
		NewID: func() gamification.EntryID {
			seq++
			return gamification.EntryID(fmt.Sprintf("entry-%d", seq))
		},
	}
	return ledger, store
}

func missionOutcome(points, energy int) gamification.Outcome {
	return gamification.Outcome{
		SourceType: gamification.SourcePoolMission,
		SourceID:   "mission-1",
		Energy:     energy,
		Points:     points,
		Reason:     "Completed Pool Mission: Inbox zero",
	}
}

// =============================================================================
// APPLY
// =============================================================================

func TestLedger_Apply_CreditsPointsAndLogsEnergy(t *testing.T) {
	// GIVEN: a fresh user
	// WHEN: a 150-point, -20 energy outcome is applied
	// THEN: points and level move, and one active energy entry exists

	ledger, store := newTestLedger()
	ctx := context.Background()

	err := ledger.Apply(ctx, store, "user-1", missionOutcome(150, -20))
	require.NoError(t, err)

	stats, err := store.GetUserStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 150, stats.TotalPoints)
	assert.Equal(t, 2, stats.Level)

	entries := store.EnergyEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, -20, entries[0].Value)
	assert.Equal(t, "Completed Pool Mission: Inbox zero", entries[0].Reason)
	assert.True(t, entries[0].IsActive)
	assert.Equal(t, gamification.SourcePoolMission, entries[0].SourceType)
}

func TestLedger_Apply_UnknownUser(t *testing.T) {
	ledger, store := newTestLedger()

	err := ledger.Apply(context.Background(), store, "nobody", missionOutcome(10, 5))
	assert.ErrorIs(t, err, gamification.ErrUserNotFound)
}

// =============================================================================
// REVERSE
// =============================================================================

func TestLedger_ReverseRoundTrip(t *testing.T) {
	// GIVEN: an applied outcome
	// WHEN: it is reversed
	// THEN: points return to zero and the entry is kept, deactivated

	ledger, store := newTestLedger()
	ctx := context.Background()

	require.NoError(t, ledger.Apply(ctx, store, "user-1", missionOutcome(150, -20)))
	require.NoError(t, ledger.Reverse(ctx, store, "user-1", missionOutcome(150, -20)))

	stats, err := store.GetUserStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalPoints)
	assert.Equal(t, 1, stats.Level)

	// Append-only: the entry still exists, just inactive.
	entries := store.EnergyEntries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsActive)
}

func TestLedger_Reverse_ClampsAtZero(t *testing.T) {
	// A reversal larger than the remaining total floors at zero rather
	// than going negative.

	ledger, store := newTestLedger()
	ctx := context.Background()

	require.NoError(t, ledger.Apply(ctx, store, "user-1", missionOutcome(50, 0)))

	// Simulate an out-of-band deduction shrinking the total first.
	stats, err := store.GetUserStats(ctx, "user-1")
	require.NoError(t, err)
	stats.TotalPoints = 20
	require.NoError(t, store.UpdateUserStats(ctx, stats))

	require.NoError(t, ledger.Reverse(ctx, store, "user-1", missionOutcome(50, 0)))

	stats, err = store.GetUserStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalPoints)
	assert.Equal(t, 1, stats.Level)
}

func TestLedger_Reverse_NoActiveEntryIsHarmless(t *testing.T) {
	// Reversing a source with no active entry logs a warning and still
	// settles the points side; it is not an error.

	ledger, store := newTestLedger()
	ctx := context.Background()

	err := ledger.Reverse(ctx, store, "user-1", missionOutcome(30, 10))
	require.NoError(t, err)

	stats, err := store.GetUserStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalPoints)
	assert.Empty(t, store.EnergyEntries())
}

func TestLedger_Reverse_TargetsMostRecentActive(t *testing.T) {
	ledger, store := newTestLedger()
	ctx := context.Background()

	// Apply, reverse, apply again: two rows, one active.
	require.NoError(t, ledger.Apply(ctx, store, "user-1", missionOutcome(10, 5)))
	require.NoError(t, ledger.Reverse(ctx, store, "user-1", missionOutcome(10, 5)))
	require.NoError(t, ledger.Apply(ctx, store, "user-1", missionOutcome(10, 5)))

	require.NoError(t, ledger.Reverse(ctx, store, "user-1", missionOutcome(10, 5)))

	active := 0
	for _, e := range store.EnergyEntries() {
		if e.IsActive {
			active++
		}
	}
	assert.Equal(t, 0, active)
	assert.Len(t, store.EnergyEntries(), 2)
}

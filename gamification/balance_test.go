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

var balanceNow = time.Date(2024, time.May, 8, 12, 0, 0, 0, time.UTC)

func newBalanceFixture() (*gamification.BalanceCalculator, *memory.Store) {
	store := memory.New()
	calc := &gamification.BalanceCalculator{Now: func() time.Time { return balanceNow }}
	return calc, store
}

func seedEntry(store *memory.Store, i, value int, age time.Duration, active bool) {
	store.InsertEnergyLog(context.Background(), gamification.EnergyLogEntry{
		ID:         gamification.EntryID(fmt.Sprintf("e-%d", i)),
		UserID:     "user-1",
		SourceType: gamification.SourceHabitOccurrence,
		SourceID:   fmt.Sprintf("occ-%d", i),
		Value:      value,
		IsActive:   active,
		RecordedAt: balanceNow.Add(-age),
	})
}

func TestBalance_QuietWeekIsNeutralGreen(t *testing.T) {
	// No movement at all reads as a balanced 50.00 GREEN, not a division
	// by zero.
	calc, store := newBalanceFixture()

	b, err := calc.Balance(context.Background(), store, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "50.00", b.Percentage.StringFixed(2))
	assert.Equal(t, gamification.ZoneGreen, b.Zone)
	assert.Equal(t, 0, b.TotalEnergyMoved)
	assert.Equal(t, 7, b.WindowDays)
}

func TestBalance_MostlyDrainingIsRed(t *testing.T) {
	// GIVEN: 20 positive against 80 draining in the window
	// THEN: 20.00 percent, RED

	calc, store := newBalanceFixture()
	seedEntry(store, 1, 20, time.Hour, true)
	seedEntry(store, 2, -80, 2*time.Hour, true)

	b, err := calc.Balance(context.Background(), store, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "20.00", b.Percentage.StringFixed(2))
	assert.Equal(t, gamification.ZoneRed, b.Zone)
	assert.Equal(t, 100, b.TotalEnergyMoved)
	assert.Equal(t, 20, b.PositiveEnergy)
}

func TestBalance_MostlyRestorativeIsYellow(t *testing.T) {
	calc, store := newBalanceFixture()
	seedEntry(store, 1, 70, time.Hour, true)
	seedEntry(store, 2, -30, 2*time.Hour, true)

	b, err := calc.Balance(context.Background(), store, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "70.00", b.Percentage.StringFixed(2))
	assert.Equal(t, gamification.ZoneYellow, b.Zone)
}

func TestBalance_BoundariesAreGreen(t *testing.T) {
	// Exactly 40 and exactly 60 both sit inside the GREEN band.
	calc, store := newBalanceFixture()
	seedEntry(store, 1, 40, time.Hour, true)
	seedEntry(store, 2, -60, 2*time.Hour, true)

	b, err := calc.Balance(context.Background(), store, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "40.00", b.Percentage.StringFixed(2))
	assert.Equal(t, gamification.ZoneGreen, b.Zone)
}

func TestBalance_IgnoresReversedAndStaleEntries(t *testing.T) {
	calc, store := newBalanceFixture()
	seedEntry(store, 1, 50, time.Hour, true)
	seedEntry(store, 2, -500, 2*time.Hour, false)          // reversed
	seedEntry(store, 3, -500, 8*24*time.Hour, true)        // outside window
	seedEntry(store, 4, -50, 6*24*time.Hour, true)         // inside window

	b, err := calc.Balance(context.Background(), store, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 100, b.TotalEnergyMoved)
	assert.Equal(t, "50.00", b.Percentage.StringFixed(2))
	assert.Equal(t, gamification.ZoneGreen, b.Zone)
}

func TestBalance_RoundsToTwoDecimals(t *testing.T) {
	// 1 of 3 -> 33.333... -> 33.33
	calc, store := newBalanceFixture()
	seedEntry(store, 1, 1, time.Hour, true)
	seedEntry(store, 2, -2, 2*time.Hour, true)

	b, err := calc.Balance(context.Background(), store, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "33.33", b.Percentage.StringFixed(2))
	assert.Equal(t, gamification.ZoneRed, b.Zone)
}

/*
ledger.go - Append-only energy log and user stats mutations

PURPOSE:
  StatsLedger is the single writer of user_stats and energy_log. Completing
  a mission or habit occurrence applies an Outcome; undoing that completion
  reverses it. Both paths keep the energy log append-only.

KEY CONCEPTS:
  - Clamp: lifetime points never drop below zero, even when a reversal is
    larger than the remaining total.
  - Reversal: flips the most recent active energy entry for the source to
    inactive. A reversal with no matching active entry is logged and
    otherwise ignored; it is not an error.
*/
package gamification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TYPES
// =============================================================================

type UserID string
type EntryID string

// SourceType names what kind of work produced an energy entry.
type SourceType string

const (
	SourcePoolMission      SourceType = "POOL_MISSION"
	SourceScheduledMission SourceType = "SCHEDULED_MISSION"
	SourceHabitOccurrence  SourceType = "HABIT_OCCURRENCE"
)

// EnergyLogEntry is one signed energy movement. Negative values drain,
// positive values restore.
type EnergyLogEntry struct {
	ID         EntryID
	UserID     UserID
	SourceType SourceType
	SourceID   string
	Value      int
	Reason     string
	IsActive   bool
	RecordedAt time.Time
}

// UserStats is the per-user progress row.
type UserStats struct {
	UserID      UserID
	TotalPoints int
	Level       int
	UpdatedAt   time.Time
}

// Outcome is the gamification effect of completing one mission or habit
// occurrence.
type Outcome struct {
	SourceType SourceType
	SourceID   string
	Energy     int // signed
	Points     int // non-negative

	// Reason is the human-readable line shown in the energy log, e.g.
	// "Completed Habit: Meditate". Only Apply records it; a reversal
	// deactivates the original entry rather than writing a new one.
	Reason string
}

// =============================================================================
// LEDGER
// =============================================================================

// StatsLedger applies and reverses outcomes against a Store supplied per
// call, so the caller controls transactional scope.
type StatsLedger struct {
	// Now returns the current instant. Tests pin it; nil means time.Now.
	Now func() time.Time

	// NewID mints energy entry IDs. Nil means random UUIDs.
	NewID func() EntryID

	Logger *slog.Logger
}

func (l *StatsLedger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}

func (l *StatsLedger) newID() EntryID {
	if l.NewID != nil {
		return l.NewID()
	}
	return EntryID(uuid.NewString())
}

func (l *StatsLedger) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Apply records the outcome: one new active energy entry plus a points
// credit, with the level recomputed from the new total.
func (l *StatsLedger) Apply(ctx context.Context, s Store, userID UserID, out Outcome) error {
	entry := EnergyLogEntry{
		ID:         l.newID(),
		UserID:     userID,
		SourceType: out.SourceType,
		SourceID:   out.SourceID,
		Value:      out.Energy,
		Reason:     out.Reason,
		IsActive:   true,
		RecordedAt: l.now(),
	}
	if err := s.InsertEnergyLog(ctx, entry); err != nil {
		return err
	}
	return l.adjustPoints(ctx, s, userID, out.Points)
}

// Reverse undoes a previously applied outcome: the most recent active
// energy entry for the source is deactivated and the points are clawed
// back, clamped at zero. A missing entry is logged as a warning and the
// points side still runs, so repeated un-completions stay harmless.
func (l *StatsLedger) Reverse(ctx context.Context, s Store, userID UserID, out Outcome) error {
	entry, ok, err := s.LatestActiveEntry(ctx, userID, out.SourceType, out.SourceID)
	if err != nil {
		return err
	}
	if ok {
		if err := s.DeactivateEntry(ctx, entry.ID); err != nil {
			return err
		}
	} else {
		l.logger().Warn("energy reversal found no active entry",
			"userId", userID, "sourceType", out.SourceType, "sourceId", out.SourceID)
	}
	return l.adjustPoints(ctx, s, userID, -out.Points)
}

// adjustPoints moves the lifetime total by delta, clamping at zero, and
// recomputes the level from the result.
func (l *StatsLedger) adjustPoints(ctx context.Context, s Store, userID UserID, delta int) error {
	stats, err := s.GetUserStats(ctx, userID)
	if err != nil {
		return err
	}
	stats.TotalPoints += delta
	if stats.TotalPoints < 0 {
		stats.TotalPoints = 0
	}
	stats.Level = LevelForPoints(stats.TotalPoints)
	stats.UpdatedAt = l.now()
	return s.UpdateUserStats(ctx, stats)
}

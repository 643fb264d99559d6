package gamification

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when a stats row does not exist for the user.
var ErrUserNotFound = errors.New("user stats not found")

// Store is the persistence surface for stats and the energy log. The
// ledger takes a Store per call so the caller decides the transaction
// scope; passing a transaction-bound store makes stats updates atomic
// with whatever mission change triggered them.
type Store interface {
	GetUserStats(ctx context.Context, userID UserID) (UserStats, error)
	UpdateUserStats(ctx context.Context, stats UserStats) error

	InsertEnergyLog(ctx context.Context, entry EnergyLogEntry) error

	// LatestActiveEntry returns the most recent active entry for the
	// source, or ok=false when no active entry exists.
	LatestActiveEntry(ctx context.Context, userID UserID, sourceType SourceType, sourceID string) (EnergyLogEntry, bool, error)

	// DeactivateEntry flips the entry's IsActive flag off. The row itself
	// is never deleted.
	DeactivateEntry(ctx context.Context, id EntryID) error

	// ActiveEntriesSince returns active entries recorded at or after the
	// cutoff, newest first.
	ActiveEntriesSince(ctx context.Context, userID UserID, since time.Time) ([]EnergyLogEntry, error)
}

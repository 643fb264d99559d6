package habit

import (
	"context"
	"time"
)

// Store is the persistence surface the reconciler needs. Implementations
// scope every query to a single template.
type Store interface {
	// InsertOccurrences persists the batch. Returns ErrDuplicateOccurrence
	// (possibly wrapped) when a (template, scheduledStart) pair already
	// exists; the reconciler treats that as a lost race, not corruption.
	InsertOccurrences(ctx context.Context, occs []Occurrence) error

	// DeletePendingFrom removes PENDING occurrences of the template whose
	// ScheduledStart is at or after from. COMPLETED and SKIPPED rows are
	// never touched. Returns the number of rows removed.
	DeletePendingFrom(ctx context.Context, tpl TemplateID, from time.Time) (int, error)

	// ScheduledStarts returns the ScheduledStart of every occurrence of the
	// template regardless of status, for idempotent generation.
	ScheduledStarts(ctx context.Context, tpl TemplateID) ([]time.Time, error)

	// LatestScheduledStart returns the most recent ScheduledStart across all
	// occurrences of the template, or ok=false when none exist.
	LatestScheduledStart(ctx context.Context, tpl TemplateID) (time.Time, bool, error)
}

// TxStore runs reconciliation plans atomically. The delete and insert
// phases of a single Reconcile call must commit or roll back together.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

/*
reconciler.go - Template lifecycle events turned into occurrence changes

PURPOSE:
  The Reconciler is the only writer of occurrence rows. Every template
  lifecycle event (create, edit, activate, deactivate, extend) flows through
  Reconcile, which computes a plan (delete some PENDING rows, insert some new
  ones) and applies the whole plan in one storage transaction.

KEY CONCEPTS:
  - Two-phase plan: deletes always run before inserts inside the same
    transaction, so a regeneration never briefly doubles up occurrences.
  - Idempotency: a date that already has an occurrence at the exact
    ScheduledStart is skipped, so re-running an event is harmless.
  - History safety: only PENDING rows are ever deleted, and only those
    scheduled today or later. COMPLETED and SKIPPED rows are permanent.

SEE ALSO:
  - rule.go for the recurrence predicate and scheduling windows
  - expander.go for the pure date-expansion walk
*/
package habit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind names what happened to a template.
type EventKind string

const (
	EventCreated     EventKind = "created"
	EventEdited      EventKind = "edited"
	EventActivated   EventKind = "activated"
	EventDeactivated EventKind = "deactivated"
	EventExtend      EventKind = "extend"
)

// Event describes a template lifecycle change.
type Event struct {
	Kind EventKind

	// FieldsChanged reports whether an edit touched fields that flow into
	// occurrences: the recurrence (rule, start time, duration, pattern
	// bounds) or the snapshotted values (title, description, energy,
	// points, quest). Edits that touched neither keep existing
	// occurrences as-is.
	FieldsChanged bool

	// LimitDays caps generation for this event. Zero means use the
	// reconciler's default horizon.
	LimitDays int
}

// =============================================================================
// RECONCILER
// =============================================================================

// DefaultGenerationDays is how far ahead occurrences are materialized when
// the caller does not say otherwise.
const DefaultGenerationDays = 30

// maxHorizon bounds any single generation pass to a year from its anchor,
// so an open-ended pattern cannot produce an unbounded batch.
const maxHorizon = 365 * 24 * time.Hour

// Reconciler applies template lifecycle events to the occurrence table.
type Reconciler struct {
	Store TxStore

	// GenerationDays is the default look-ahead horizon. Zero means
	// DefaultGenerationDays.
	GenerationDays int

	// Now returns the current instant. Tests pin it; nil means time.Now.
	Now func() time.Time

	// NewID mints occurrence IDs. Nil means random UUIDs.
	NewID func() OccurrenceID

	Logger *slog.Logger
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func (r *Reconciler) newID() OccurrenceID {
	if r.NewID != nil {
		return r.NewID()
	}
	return OccurrenceID(uuid.NewString())
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Reconciler) horizon(ev Event) int {
	if ev.LimitDays > 0 {
		return ev.LimitDays
	}
	if r.GenerationDays > 0 {
		return r.GenerationDays
	}
	return DefaultGenerationDays
}

// Reconcile applies one lifecycle event for tpl and returns the occurrences
// it inserted. The delete and insert phases run inside a single transaction.
func (r *Reconciler) Reconcile(ctx context.Context, tpl Template, ev Event) ([]Occurrence, error) {
	if err := tpl.Validate(); err != nil {
		return nil, err
	}

	var inserted []Occurrence
	err := r.Store.WithTx(ctx, func(s Store) error {
		var err error
		inserted, err = r.reconcile(ctx, s, tpl, ev)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func (r *Reconciler) reconcile(ctx context.Context, s Store, tpl Template, ev Event) ([]Occurrence, error) {
	today := DateOf(r.now())

	switch ev.Kind {
	case EventCreated:
		if !tpl.IsActive {
			return nil, nil
		}
		// A pattern that started in the past generates from today; the
		// missed stretch is not backfilled.
		anchor := today
		if tpl.Rule.PatternStart.After(anchor) {
			anchor = DateOf(tpl.Rule.PatternStart)
		}
		return r.generate(ctx, s, tpl, anchor, r.horizon(ev))

	case EventEdited:
		if !tpl.IsActive {
			// Edits to a dormant template take effect on reactivation.
			return nil, nil
		}
		if !ev.FieldsChanged {
			return nil, nil
		}
		return r.regenerateFrom(ctx, s, tpl, today, r.horizon(ev))

	case EventActivated:
		if !tpl.IsActive {
			return nil, fmt.Errorf("activated event for inactive template %s", tpl.ID)
		}
		return r.regenerateFrom(ctx, s, tpl, today, r.horizon(ev))

	case EventDeactivated:
		n, err := s.DeletePendingFrom(ctx, tpl.ID, today)
		if err != nil {
			return nil, err
		}
		r.logger().Info("habit deactivated, future pending occurrences removed",
			"templateId", tpl.ID, "deleted", n)
		return nil, nil

	case EventExtend:
		if !tpl.IsActive {
			return nil, nil
		}
		anchor, err := r.extendAnchor(ctx, s, tpl, today)
		if err != nil {
			return nil, err
		}
		return r.generate(ctx, s, tpl, anchor, r.horizon(ev))

	default:
		return nil, fmt.Errorf("unknown reconcile event %q", ev.Kind)
	}
}

// regenerateFrom removes still-PENDING occurrences scheduled at or after
// from, then generates fresh ones. History before today is never touched.
func (r *Reconciler) regenerateFrom(ctx context.Context, s Store, tpl Template, today time.Time, limit int) ([]Occurrence, error) {
	anchor := today
	if tpl.Rule.PatternStart.After(anchor) {
		anchor = DateOf(tpl.Rule.PatternStart)
	}
	if _, err := s.DeletePendingFrom(ctx, tpl.ID, anchor); err != nil {
		return nil, err
	}
	return r.generate(ctx, s, tpl, anchor, limit)
}

// extendAnchor picks the first date after the latest known occurrence,
// bounded below so a long-idle template resumes from today rather than
// backfilling the gap.
func (r *Reconciler) extendAnchor(ctx context.Context, s Store, tpl Template, today time.Time) (time.Time, error) {
	anchor := today
	if tpl.Rule.PatternStart.After(anchor) {
		anchor = DateOf(tpl.Rule.PatternStart)
	}
	latest, ok, err := s.LatestScheduledStart(ctx, tpl.ID)
	if err != nil {
		return time.Time{}, err
	}
	if ok {
		next := DateOf(latest).AddDate(0, 0, 1)
		if next.After(anchor) {
			anchor = next
		}
	}
	return anchor, nil
}

// generate materializes occurrences from anchor forward, capped by the
// pattern end, the yearly horizon, and the per-call day limit, skipping
// dates that already have a row at the exact scheduled start.
func (r *Reconciler) generate(ctx context.Context, s Store, tpl Template, anchor time.Time, limitDays int) ([]Occurrence, error) {
	anchor = DateOf(anchor)
	end := r.effectiveEnd(tpl.Rule, anchor, limitDays)
	if end.Before(anchor) {
		return nil, nil
	}

	existing, err := s.ScheduledStarts(ctx, tpl.ID)
	if err != nil {
		return nil, err
	}
	seen := make(map[time.Time]struct{}, len(existing))
	for _, ts := range existing {
		seen[ts.UTC()] = struct{}{}
	}

	var batch []Occurrence
	for _, date := range Expand(tpl.Rule, anchor, end) {
		occ := occurrenceOn(tpl, date, r.newID())
		if _, dup := seen[occ.ScheduledStart.UTC()]; dup {
			continue
		}
		batch = append(batch, occ)
	}
	if len(batch) == 0 {
		return nil, nil
	}
	if err := s.InsertOccurrences(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// effectiveEnd is the last date (inclusive) generation may reach: the
// earliest of the pattern end, anchor plus a year, and anchor plus the
// day limit.
func (r *Reconciler) effectiveEnd(rule RecurrenceRule, anchor time.Time, limitDays int) time.Time {
	end := DateOf(anchor.Add(maxHorizon))
	if byLimit := anchor.AddDate(0, 0, limitDays-1); byLimit.Before(end) {
		end = byLimit
	}
	if rule.PatternEnd != nil {
		if patternEnd := DateOf(*rule.PatternEnd); patternEnd.Before(end) {
			end = patternEnd
		}
	}
	return end
}

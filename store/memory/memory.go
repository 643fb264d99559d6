// Package memory provides in-memory Store implementations (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/questlog/habit-engine/gamification"
	"github.com/questlog/habit-engine/habit"
)

// =============================================================================
// MEMORY STORE - habit.TxStore + gamification.Store
// =============================================================================

// Store keeps everything in maps. WithTx offers no rollback; tests that
// care about atomicity use the sqlite store.
type Store struct {
	mu          sync.RWMutex
	occurrences map[habit.TemplateID][]habit.Occurrence
	stats       map[gamification.UserID]gamification.UserStats
	energy      []gamification.EnergyLogEntry
}

func New() *Store {
	return &Store{
		occurrences: make(map[habit.TemplateID][]habit.Occurrence),
		stats:       make(map[gamification.UserID]gamification.UserStats),
	}
}

// SeedStats installs a stats row, for tests.
func (m *Store) SeedStats(stats gamification.UserStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[stats.UserID] = stats
}

// Occurrences returns a copy of the template's occurrences in scheduled order.
func (m *Store) Occurrences(tpl habit.TemplateID) []habit.Occurrence {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]habit.Occurrence, len(m.occurrences[tpl]))
	copy(out, m.occurrences[tpl])
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledStart.Before(out[j].ScheduledStart)
	})
	return out
}

// EnergyEntries returns a copy of the full energy log.
func (m *Store) EnergyEntries() []gamification.EnergyLogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]gamification.EnergyLogEntry, len(m.energy))
	copy(out, m.energy)
	return out
}

// =============================================================================
// habit.Store
// =============================================================================

func (m *Store) InsertOccurrences(_ context.Context, occs []habit.Occurrence) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, occ := range occs {
		for _, existing := range m.occurrences[occ.TemplateID] {
			if existing.ScheduledStart.Equal(occ.ScheduledStart) {
				return fmt.Errorf("occurrence at %s: %w",
					occ.ScheduledStart.Format(time.RFC3339), habit.ErrDuplicateOccurrence)
			}
		}
		m.occurrences[occ.TemplateID] = append(m.occurrences[occ.TemplateID], occ)
	}
	return nil
}

func (m *Store) DeletePendingFrom(_ context.Context, tpl habit.TemplateID, from time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.occurrences[tpl][:0]
	deleted := 0
	for _, occ := range m.occurrences[tpl] {
		if occ.Status == habit.StatusPending && !occ.ScheduledStart.Before(from) {
			deleted++
			continue
		}
		kept = append(kept, occ)
	}
	m.occurrences[tpl] = kept
	return deleted, nil
}

func (m *Store) ScheduledStarts(_ context.Context, tpl habit.TemplateID) ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	starts := make([]time.Time, 0, len(m.occurrences[tpl]))
	for _, occ := range m.occurrences[tpl] {
		starts = append(starts, occ.ScheduledStart)
	}
	return starts, nil
}

func (m *Store) LatestScheduledStart(_ context.Context, tpl habit.TemplateID) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest time.Time
	found := false
	for _, occ := range m.occurrences[tpl] {
		if !found || occ.ScheduledStart.After(latest) {
			latest = occ.ScheduledStart
			found = true
		}
	}
	return latest, found, nil
}

// WithTx satisfies habit.TxStore. Not transactional: a mid-plan failure
// leaves earlier writes in place. Each method takes its own lock, which is
// enough for tests.
func (m *Store) WithTx(_ context.Context, fn func(habit.Store) error) error {
	return fn(m)
}

// MarkStatus sets an occurrence's status directly, for tests that need
// completed history in place.
func (m *Store) MarkStatus(tpl habit.TemplateID, id habit.OccurrenceID, status habit.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, occ := range m.occurrences[tpl] {
		if occ.ID == id {
			m.occurrences[tpl][i].Status = status
			return
		}
	}
}

// =============================================================================
// gamification.Store
// =============================================================================

func (m *Store) GetUserStats(_ context.Context, userID gamification.UserID) (gamification.UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.stats[userID]
	if !ok {
		return gamification.UserStats{}, gamification.ErrUserNotFound
	}
	return stats, nil
}

func (m *Store) UpdateUserStats(_ context.Context, stats gamification.UserStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stats[stats.UserID]; !ok {
		return gamification.ErrUserNotFound
	}
	m.stats[stats.UserID] = stats
	return nil
}

func (m *Store) InsertEnergyLog(_ context.Context, entry gamification.EnergyLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.energy = append(m.energy, entry)
	return nil
}

func (m *Store) LatestActiveEntry(_ context.Context, userID gamification.UserID, sourceType gamification.SourceType, sourceID string) (gamification.EnergyLogEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.energy) - 1; i >= 0; i-- {
		e := m.energy[i]
		if e.UserID == userID && e.SourceType == sourceType && e.SourceID == sourceID && e.IsActive {
			return e, true, nil
		}
	}
	return gamification.EnergyLogEntry{}, false, nil
}

func (m *Store) DeactivateEntry(_ context.Context, id gamification.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.energy {
		if m.energy[i].ID == id {
			m.energy[i].IsActive = false
			return nil
		}
	}
	return nil
}

func (m *Store) ActiveEntriesSince(_ context.Context, userID gamification.UserID, since time.Time) ([]gamification.EnergyLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []gamification.EnergyLogEntry
	for _, e := range m.energy {
		if e.UserID == userID && e.IsActive && !e.RecordedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	return out, nil
}

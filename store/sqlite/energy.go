package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/questlog/habit-engine/gamification"
)

// =============================================================================
// USER STATS (gamification.Store interface)
// =============================================================================

// GetUserStats retrieves the stats row for a user.
func (s *Store) GetUserStats(ctx context.Context, userID gamification.UserID) (gamification.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetUserStats(ctx, userID)
}

func (tx *Tx) GetUserStats(ctx context.Context, userID gamification.UserID) (gamification.UserStats, error) {
	var stats gamification.UserStats
	var updatedAt string
	err := tx.q.QueryRowContext(ctx,
		"SELECT user_id, total_points, level, updated_at FROM user_stats WHERE user_id = ?",
		userID,
	).Scan(&stats.UserID, &stats.TotalPoints, &stats.Level, &updatedAt)
	if err == sql.ErrNoRows {
		return gamification.UserStats{}, gamification.ErrUserNotFound
	}
	if err != nil {
		return gamification.UserStats{}, err
	}
	stats.UpdatedAt = parseTime(updatedAt)
	return stats, nil
}

// UpdateUserStats overwrites the stats row.
func (s *Store) UpdateUserStats(ctx context.Context, stats gamification.UserStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpdateUserStats(ctx, stats)
}

func (tx *Tx) UpdateUserStats(ctx context.Context, stats gamification.UserStats) error {
	res, err := tx.q.ExecContext(ctx,
		"UPDATE user_stats SET total_points = ?, level = ?, updated_at = ? WHERE user_id = ?",
		stats.TotalPoints, stats.Level, formatTime(stats.UpdatedAt), stats.UserID)
	if err != nil {
		return fmt.Errorf("failed to update user stats: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return gamification.ErrUserNotFound
	}
	return nil
}

// =============================================================================
// ENERGY LOG (gamification.Store interface)
// =============================================================================

const energyColumns = `id, user_id, source_type, source_id, value, reason, is_active, recorded_at`

// InsertEnergyLog appends one entry. The partial unique index rejects a
// second active entry for the same source.
func (s *Store) InsertEnergyLog(ctx context.Context, entry gamification.EnergyLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().InsertEnergyLog(ctx, entry)
}

func (tx *Tx) InsertEnergyLog(ctx context.Context, entry gamification.EnergyLogEntry) error {
	_, err := tx.q.ExecContext(ctx, `
		INSERT INTO energy_log (id, user_id, source_type, source_id, value, reason, is_active, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.SourceType, entry.SourceID,
		entry.Value, entry.Reason, entry.IsActive, formatTime(entry.RecordedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("active energy entry already exists for %s %s: %w",
				entry.SourceType, entry.SourceID, err)
		}
		return fmt.Errorf("failed to insert energy log entry: %w", err)
	}
	return nil
}

// LatestActiveEntry returns the most recent active entry for the source.
func (s *Store) LatestActiveEntry(ctx context.Context, userID gamification.UserID, sourceType gamification.SourceType, sourceID string) (gamification.EnergyLogEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().LatestActiveEntry(ctx, userID, sourceType, sourceID)
}

func (tx *Tx) LatestActiveEntry(ctx context.Context, userID gamification.UserID, sourceType gamification.SourceType, sourceID string) (gamification.EnergyLogEntry, bool, error) {
	row := tx.q.QueryRowContext(ctx, `
		SELECT `+energyColumns+` FROM energy_log
		WHERE user_id = ? AND source_type = ? AND source_id = ? AND is_active = TRUE
		ORDER BY recorded_at DESC
		LIMIT 1`,
		userID, sourceType, sourceID)

	entry, err := scanEnergyEntry(row)
	if err == sql.ErrNoRows {
		return gamification.EnergyLogEntry{}, false, nil
	}
	if err != nil {
		return gamification.EnergyLogEntry{}, false, err
	}
	return entry, true, nil
}

// DeactivateEntry flips is_active off. The row stays for the audit trail.
func (s *Store) DeactivateEntry(ctx context.Context, id gamification.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().DeactivateEntry(ctx, id)
}

func (tx *Tx) DeactivateEntry(ctx context.Context, id gamification.EntryID) error {
	_, err := tx.q.ExecContext(ctx,
		"UPDATE energy_log SET is_active = FALSE WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to deactivate energy entry: %w", err)
	}
	return nil
}

// ActiveEntriesSince returns active entries recorded at or after the
// cutoff, newest first.
func (s *Store) ActiveEntriesSince(ctx context.Context, userID gamification.UserID, since time.Time) ([]gamification.EnergyLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ActiveEntriesSince(ctx, userID, since)
}

func (tx *Tx) ActiveEntriesSince(ctx context.Context, userID gamification.UserID, since time.Time) ([]gamification.EnergyLogEntry, error) {
	rows, err := tx.q.QueryContext(ctx, `
		SELECT `+energyColumns+` FROM energy_log
		WHERE user_id = ? AND is_active = TRUE AND recorded_at >= ?
		ORDER BY recorded_at DESC`,
		userID, formatTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []gamification.EnergyLogEntry
	for rows.Next() {
		entry, err := scanEnergyEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListEnergyLog returns entries for the user, active or not, newest
// first. An empty sourceType matches all entries. This is the audit view.
func (s *Store) ListEnergyLog(ctx context.Context, userID gamification.UserID, sourceType gamification.SourceType, limit int) ([]gamification.EnergyLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + energyColumns + ` FROM energy_log WHERE user_id = ?`
	args := []any{userID}
	if sourceType != "" {
		query += " AND source_type = ?"
		args = append(args, sourceType)
	}
	query += " ORDER BY recorded_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []gamification.EnergyLogEntry
	for rows.Next() {
		entry, err := scanEnergyEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEnergyEntry(row rowScanner) (gamification.EnergyLogEntry, error) {
	var entry gamification.EnergyLogEntry
	var recordedAt string
	err := row.Scan(&entry.ID, &entry.UserID, &entry.SourceType, &entry.SourceID,
		&entry.Value, &entry.Reason, &entry.IsActive, &recordedAt)
	if err != nil {
		return entry, err
	}
	entry.RecordedAt = parseTime(recordedAt)
	return entry, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/questlog/habit-engine/habit"
)

// =============================================================================
// HABIT TEMPLATES
// =============================================================================

// SaveTemplate inserts or updates a habit template.
func (s *Store) SaveTemplate(ctx context.Context, tpl habit.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().SaveTemplate(ctx, tpl)
}

func (tx *Tx) SaveTemplate(ctx context.Context, tpl habit.Template) error {
	var startTime *string
	if tpl.Rule.StartTime != nil {
		v := tpl.Rule.StartTime.String()
		startTime = &v
	}

	query := `
		INSERT INTO habit_templates
		(id, user_id, quest_id, title, description, default_energy, default_points,
		 by_day, start_time, duration_minutes, pattern_start, pattern_end,
		 is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quest_id = excluded.quest_id,
			title = excluded.title,
			description = excluded.description,
			default_energy = excluded.default_energy,
			default_points = excluded.default_points,
			by_day = excluded.by_day,
			start_time = excluded.start_time,
			duration_minutes = excluded.duration_minutes,
			pattern_start = excluded.pattern_start,
			pattern_end = excluded.pattern_end,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	now := formatTime(time.Now())
	_, err := tx.q.ExecContext(ctx, query,
		tpl.ID, tpl.UserID, tpl.QuestID, tpl.Title, tpl.Description,
		tpl.DefaultEnergy, tpl.DefaultPoints,
		strings.Join(tpl.Rule.ByDay, ","),
		startTime,
		tpl.Rule.DurationMinutes,
		formatTime(tpl.Rule.PatternStart),
		nullTime(tpl.Rule.PatternEnd),
		tpl.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save habit template: %w", err)
	}
	return nil
}

const templateColumns = `id, user_id, quest_id, title, description, default_energy,
	default_points, by_day, start_time, duration_minutes, pattern_start,
	pattern_end, is_active`

// GetTemplate retrieves a template by ID. Returns habit.ErrTemplateNotFound
// when no row exists.
func (s *Store) GetTemplate(ctx context.Context, id habit.TemplateID) (habit.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetTemplate(ctx, id)
}

func (tx *Tx) GetTemplate(ctx context.Context, id habit.TemplateID) (habit.Template, error) {
	row := tx.q.QueryRowContext(ctx,
		"SELECT "+templateColumns+" FROM habit_templates WHERE id = ?", id)
	tpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return habit.Template{}, habit.ErrTemplateNotFound
	}
	return tpl, err
}

// ListTemplates returns all templates for a user, newest pattern first.
func (s *Store) ListTemplates(ctx context.Context, userID habit.UserID) ([]habit.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+templateColumns+" FROM habit_templates WHERE user_id = ? ORDER BY pattern_start DESC, title",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []habit.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// ListActiveTemplates returns every active template across all users, for
// the background horizon extender.
func (s *Store) ListActiveTemplates(ctx context.Context) ([]habit.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+templateColumns+" FROM habit_templates WHERE is_active = TRUE")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []habit.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (habit.Template, error) {
	var (
		tpl          habit.Template
		byDay        string
		startTime    sql.NullString
		patternStart string
		patternEnd   sql.NullString
	)
	err := row.Scan(
		&tpl.ID, &tpl.UserID, &tpl.QuestID, &tpl.Title, &tpl.Description,
		&tpl.DefaultEnergy, &tpl.DefaultPoints,
		&byDay, &startTime, &tpl.Rule.DurationMinutes,
		&patternStart, &patternEnd, &tpl.IsActive,
	)
	if err != nil {
		return tpl, err
	}

	if byDay != "" {
		tpl.Rule.ByDay = strings.Split(byDay, ",")
	}
	if startTime.Valid && startTime.String != "" {
		tod, err := habit.ParseTimeOfDay(startTime.String)
		if err != nil {
			return tpl, fmt.Errorf("corrupt start_time for template %s: %w", tpl.ID, err)
		}
		tpl.Rule.StartTime = &tod
	}
	tpl.Rule.PatternStart = parseTime(patternStart)
	tpl.Rule.PatternEnd = scanNullTime(patternEnd)
	return tpl, nil
}

// =============================================================================
// HABIT OCCURRENCES (habit.Store interface)
// =============================================================================

const occurrenceColumns = `id, habit_template_id, user_id, quest_id, title, description,
	energy_value, points_value, scheduled_start, scheduled_end, is_all_day,
	status, completed_at`

// InsertOccurrences persists the batch, mapping unique-index violations to
// habit.ErrDuplicateOccurrence.
func (s *Store) InsertOccurrences(ctx context.Context, occs []habit.Occurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().InsertOccurrences(ctx, occs)
}

func (tx *Tx) InsertOccurrences(ctx context.Context, occs []habit.Occurrence) error {
	query := `
		INSERT INTO habit_occurrences
		(id, habit_template_id, user_id, quest_id, title, description,
		 energy_value, points_value, scheduled_start, scheduled_end, is_all_day,
		 status, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := formatTime(time.Now())
	for _, occ := range occs {
		_, err := tx.q.ExecContext(ctx, query,
			occ.ID, occ.TemplateID, occ.UserID, occ.QuestID,
			occ.Title, occ.Description, occ.EnergyValue, occ.PointsValue,
			formatTime(occ.ScheduledStart), formatTime(occ.ScheduledEnd),
			occ.IsAllDay, occ.Status, nullTime(occ.CompletedAt), now,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("occurrence at %s: %w",
					occ.ScheduledStart.Format(time.RFC3339), habit.ErrDuplicateOccurrence)
			}
			return fmt.Errorf("failed to insert occurrence: %w", err)
		}
	}
	return nil
}

// DeletePendingFrom removes PENDING occurrences scheduled at or after from.
func (s *Store) DeletePendingFrom(ctx context.Context, tpl habit.TemplateID, from time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().DeletePendingFrom(ctx, tpl, from)
}

func (tx *Tx) DeletePendingFrom(ctx context.Context, tpl habit.TemplateID, from time.Time) (int, error) {
	res, err := tx.q.ExecContext(ctx, `
		DELETE FROM habit_occurrences
		WHERE habit_template_id = ? AND status = ? AND scheduled_start >= ?`,
		tpl, habit.StatusPending, formatTime(from),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending occurrences: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ScheduledStarts returns every occurrence start for the template.
func (s *Store) ScheduledStarts(ctx context.Context, tpl habit.TemplateID) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ScheduledStarts(ctx, tpl)
}

func (tx *Tx) ScheduledStarts(ctx context.Context, tpl habit.TemplateID) ([]time.Time, error) {
	rows, err := tx.q.QueryContext(ctx,
		"SELECT scheduled_start FROM habit_occurrences WHERE habit_template_id = ?", tpl)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var starts []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		starts = append(starts, parseTime(s))
	}
	return starts, rows.Err()
}

// LatestScheduledStart returns the most recent start, ok=false when none.
func (s *Store) LatestScheduledStart(ctx context.Context, tpl habit.TemplateID) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().LatestScheduledStart(ctx, tpl)
}

func (tx *Tx) LatestScheduledStart(ctx context.Context, tpl habit.TemplateID) (time.Time, bool, error) {
	// MAX over zero rows yields a single NULL row, not sql.ErrNoRows.
	var latest sql.NullString
	err := tx.q.QueryRowContext(ctx,
		"SELECT MAX(scheduled_start) FROM habit_occurrences WHERE habit_template_id = ?", tpl,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, false, err
	}
	if !latest.Valid || latest.String == "" {
		return time.Time{}, false, nil
	}
	return parseTime(latest.String), true, nil
}

// =============================================================================
// OCCURRENCE QUERIES (read side for the API)
// =============================================================================

// GetOccurrence retrieves an occurrence by ID. Returns
// habit.ErrOccurrenceNotFound when no row exists.
func (s *Store) GetOccurrence(ctx context.Context, id habit.OccurrenceID) (habit.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetOccurrence(ctx, id)
}

func (tx *Tx) GetOccurrence(ctx context.Context, id habit.OccurrenceID) (habit.Occurrence, error) {
	row := tx.q.QueryRowContext(ctx,
		"SELECT "+occurrenceColumns+" FROM habit_occurrences WHERE id = ?", id)
	occ, err := scanOccurrence(row)
	if err == sql.ErrNoRows {
		return habit.Occurrence{}, habit.ErrOccurrenceNotFound
	}
	return occ, err
}

// OccurrenceFilter narrows ListOccurrences. Zero-value fields match
// everything.
type OccurrenceFilter struct {
	TemplateID habit.TemplateID
	Status     habit.Status
}

// ListOccurrences returns the user's occurrences whose scheduled start
// falls in [from, to], ordered chronologically.
func (s *Store) ListOccurrences(ctx context.Context, userID habit.UserID, from, to time.Time, filter OccurrenceFilter) ([]habit.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + occurrenceColumns + ` FROM habit_occurrences
		WHERE user_id = ? AND scheduled_start >= ? AND scheduled_start <= ?`
	args := []any{userID, formatTime(from), formatTime(to)}
	if filter.TemplateID != "" {
		query += " AND habit_template_id = ?"
		args = append(args, filter.TemplateID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY scheduled_start ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occs []habit.Occurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		occs = append(occs, occ)
	}
	return occs, rows.Err()
}

// UpdateOccurrenceStatus sets the status and completion timestamp.
func (tx *Tx) UpdateOccurrenceStatus(ctx context.Context, id habit.OccurrenceID, status habit.Status, completedAt *time.Time) error {
	res, err := tx.q.ExecContext(ctx,
		"UPDATE habit_occurrences SET status = ?, completed_at = ? WHERE id = ?",
		status, nullTime(completedAt), id)
	if err != nil {
		return fmt.Errorf("failed to update occurrence status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return habit.ErrOccurrenceNotFound
	}
	return nil
}

func scanOccurrence(row rowScanner) (habit.Occurrence, error) {
	var (
		occ            habit.Occurrence
		scheduledStart string
		scheduledEnd   string
		completedAt    sql.NullString
	)
	err := row.Scan(
		&occ.ID, &occ.TemplateID, &occ.UserID, &occ.QuestID,
		&occ.Title, &occ.Description, &occ.EnergyValue, &occ.PointsValue,
		&scheduledStart, &scheduledEnd, &occ.IsAllDay, &occ.Status, &completedAt,
	)
	if err != nil {
		return occ, err
	}
	occ.ScheduledStart = parseTime(scheduledStart)
	occ.ScheduledEnd = parseTime(scheduledEnd)
	occ.CompletedAt = scanNullTime(completedAt)
	return occ, nil
}

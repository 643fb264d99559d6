package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Mission status values shared by pool and scheduled missions.
const (
	MissionTodo      = "TODO"
	MissionPending   = "PENDING"
	MissionCompleted = "COMPLETED"
	MissionSkipped   = "SKIPPED"
)

// ErrNotFound is returned by the record getters when no row exists.
var ErrNotFound = errors.New("record not found")

// =============================================================================
// USERS
// =============================================================================

// User is an account record.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// SaveUser creates the user together with an empty stats row.
func (s *Store) SaveUser(ctx context.Context, u User) error {
	return s.Transact(ctx, func(tx *Tx) error {
		now := formatTime(time.Now())
		_, err := tx.q.ExecContext(ctx, `
			INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET username = excluded.username`,
			u.ID, u.Username, now)
		if err != nil {
			return fmt.Errorf("failed to save user: %w", err)
		}
		_, err = tx.q.ExecContext(ctx, `
			INSERT INTO user_stats (user_id, total_points, level, updated_at)
			VALUES (?, 0, 1, ?)
			ON CONFLICT(user_id) DO NOTHING`,
			u.ID, now)
		return err
	})
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u User
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Username, &createdAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

// =============================================================================
// QUESTS
// =============================================================================

// Quest groups missions and habits. DefaultQuest marks the fallback
// "General" quest created with the user.
type Quest struct {
	ID        string
	UserID    string
	Name      string
	Desc      string
	IsDefault bool
	CreatedAt time.Time
}

// SaveQuest inserts or updates a quest.
func (s *Store) SaveQuest(ctx context.Context, q Quest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().SaveQuest(ctx, q)
}

func (tx *Tx) SaveQuest(ctx context.Context, q Quest) error {
	_, err := tx.q.ExecContext(ctx, `
		INSERT INTO quests (id, user_id, name, description, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description`,
		q.ID, q.UserID, q.Name, q.Desc, q.IsDefault, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save quest: %w", err)
	}
	return nil
}

// GetQuest retrieves a quest by ID.
func (s *Store) GetQuest(ctx context.Context, id string) (Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetQuest(ctx, id)
}

func (tx *Tx) GetQuest(ctx context.Context, id string) (Quest, error) {
	row := tx.q.QueryRowContext(ctx,
		"SELECT id, user_id, name, description, is_default, created_at FROM quests WHERE id = ?", id)
	return scanQuest(row)
}

// DefaultQuest returns the user's default quest.
func (s *Store) DefaultQuest(ctx context.Context, userID string) (Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().DefaultQuest(ctx, userID)
}

func (tx *Tx) DefaultQuest(ctx context.Context, userID string) (Quest, error) {
	row := tx.q.QueryRowContext(ctx,
		"SELECT id, user_id, name, description, is_default, created_at FROM quests WHERE user_id = ? AND is_default = TRUE",
		userID)
	return scanQuest(row)
}

// ListQuests returns all quests for a user.
func (s *Store) ListQuests(ctx context.Context, userID string) ([]Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, description, is_default, created_at FROM quests WHERE user_id = ? ORDER BY is_default DESC, name",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quests []Quest
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, err
		}
		quests = append(quests, q)
	}
	return quests, rows.Err()
}

func scanQuest(row rowScanner) (Quest, error) {
	var q Quest
	var createdAt string
	err := row.Scan(&q.ID, &q.UserID, &q.Name, &q.Desc, &q.IsDefault, &createdAt)
	if err == sql.ErrNoRows {
		return Quest{}, ErrNotFound
	}
	if err != nil {
		return Quest{}, err
	}
	q.CreatedAt = parseTime(createdAt)
	return q, nil
}

// =============================================================================
// POOL MISSIONS
// =============================================================================

// PoolMission is an undated one-off mission waiting in the backlog.
type PoolMission struct {
	ID          string
	UserID      string
	QuestID     string
	Title       string
	Desc        string
	EnergyValue int
	PointsValue int
	Status      string
	CompletedAt *time.Time
	CreatedAt   time.Time
}

const poolMissionColumns = `id, user_id, quest_id, title, description,
	energy_value, points_value, status, completed_at, created_at`

// SavePoolMission inserts or updates a pool mission.
func (s *Store) SavePoolMission(ctx context.Context, m PoolMission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().SavePoolMission(ctx, m)
}

func (tx *Tx) SavePoolMission(ctx context.Context, m PoolMission) error {
	now := formatTime(time.Now())
	_, err := tx.q.ExecContext(ctx, `
		INSERT INTO pool_missions
		(id, user_id, quest_id, title, description, energy_value, points_value,
		 status, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quest_id = excluded.quest_id,
			title = excluded.title,
			description = excluded.description,
			energy_value = excluded.energy_value,
			points_value = excluded.points_value,
			status = excluded.status,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		m.ID, m.UserID, m.QuestID, m.Title, m.Desc,
		m.EnergyValue, m.PointsValue, m.Status, nullTime(m.CompletedAt), now, now)
	if err != nil {
		return fmt.Errorf("failed to save pool mission: %w", err)
	}
	return nil
}

// GetPoolMission retrieves a pool mission by ID.
func (s *Store) GetPoolMission(ctx context.Context, id string) (PoolMission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetPoolMission(ctx, id)
}

func (tx *Tx) GetPoolMission(ctx context.Context, id string) (PoolMission, error) {
	row := tx.q.QueryRowContext(ctx,
		"SELECT "+poolMissionColumns+" FROM pool_missions WHERE id = ?", id)

	var m PoolMission
	var completedAt sql.NullString
	var createdAt string
	err := row.Scan(&m.ID, &m.UserID, &m.QuestID, &m.Title, &m.Desc,
		&m.EnergyValue, &m.PointsValue, &m.Status, &completedAt, &createdAt)
	if err == sql.ErrNoRows {
		return PoolMission{}, ErrNotFound
	}
	if err != nil {
		return PoolMission{}, err
	}
	m.CompletedAt = scanNullTime(completedAt)
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

// DeletePoolMission removes a pool mission row.
func (tx *Tx) DeletePoolMission(ctx context.Context, id string) error {
	res, err := tx.q.ExecContext(ctx, "DELETE FROM pool_missions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete pool mission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPoolMissions returns the user's pool missions, open ones first.
func (s *Store) ListPoolMissions(ctx context.Context, userID string) ([]PoolMission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+poolMissionColumns+` FROM pool_missions
		WHERE user_id = ?
		ORDER BY status = 'TODO' DESC, created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missions []PoolMission
	for rows.Next() {
		var m PoolMission
		var completedAt sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.UserID, &m.QuestID, &m.Title, &m.Desc,
			&m.EnergyValue, &m.PointsValue, &m.Status, &completedAt, &createdAt); err != nil {
			return nil, err
		}
		m.CompletedAt = scanNullTime(completedAt)
		m.CreatedAt = parseTime(createdAt)
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// =============================================================================
// SCHEDULED MISSIONS
// =============================================================================

// ScheduledMission is a dated one-off mission on the calendar.
type ScheduledMission struct {
	ID             string
	UserID         string
	QuestID        string
	Title          string
	Desc           string
	EnergyValue    int
	PointsValue    int
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	IsAllDay       bool
	Status         string
	CompletedAt    *time.Time
	CreatedAt      time.Time
}

const scheduledMissionColumns = `id, user_id, quest_id, title, description,
	energy_value, points_value, scheduled_start, scheduled_end, is_all_day,
	status, completed_at, created_at`

// SaveScheduledMission inserts or updates a scheduled mission.
func (s *Store) SaveScheduledMission(ctx context.Context, m ScheduledMission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().SaveScheduledMission(ctx, m)
}

func (tx *Tx) SaveScheduledMission(ctx context.Context, m ScheduledMission) error {
	now := formatTime(time.Now())
	_, err := tx.q.ExecContext(ctx, `
		INSERT INTO scheduled_missions
		(id, user_id, quest_id, title, description, energy_value, points_value,
		 scheduled_start, scheduled_end, is_all_day, status, completed_at,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quest_id = excluded.quest_id,
			title = excluded.title,
			description = excluded.description,
			energy_value = excluded.energy_value,
			points_value = excluded.points_value,
			scheduled_start = excluded.scheduled_start,
			scheduled_end = excluded.scheduled_end,
			is_all_day = excluded.is_all_day,
			status = excluded.status,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		m.ID, m.UserID, m.QuestID, m.Title, m.Desc,
		m.EnergyValue, m.PointsValue,
		formatTime(m.ScheduledStart), formatTime(m.ScheduledEnd), m.IsAllDay,
		m.Status, nullTime(m.CompletedAt), now, now)
	if err != nil {
		return fmt.Errorf("failed to save scheduled mission: %w", err)
	}
	return nil
}

// GetScheduledMission retrieves a scheduled mission by ID.
func (s *Store) GetScheduledMission(ctx context.Context, id string) (ScheduledMission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetScheduledMission(ctx, id)
}

func (tx *Tx) GetScheduledMission(ctx context.Context, id string) (ScheduledMission, error) {
	row := tx.q.QueryRowContext(ctx,
		"SELECT "+scheduledMissionColumns+" FROM scheduled_missions WHERE id = ?", id)
	m, err := scanScheduledMission(row)
	if err == sql.ErrNoRows {
		return ScheduledMission{}, ErrNotFound
	}
	return m, err
}

// DeleteScheduledMission removes a scheduled mission row.
func (tx *Tx) DeleteScheduledMission(ctx context.Context, id string) error {
	res, err := tx.q.ExecContext(ctx, "DELETE FROM scheduled_missions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete scheduled mission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListScheduledMissions returns missions whose start falls in [from, to].
func (s *Store) ListScheduledMissions(ctx context.Context, userID string, from, to time.Time) ([]ScheduledMission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scheduledMissionColumns+` FROM scheduled_missions
		WHERE user_id = ? AND scheduled_start >= ? AND scheduled_start <= ?
		ORDER BY scheduled_start ASC`,
		userID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missions []ScheduledMission
	for rows.Next() {
		m, err := scanScheduledMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

func scanScheduledMission(row rowScanner) (ScheduledMission, error) {
	var m ScheduledMission
	var start, end, createdAt string
	var completedAt sql.NullString
	err := row.Scan(&m.ID, &m.UserID, &m.QuestID, &m.Title, &m.Desc,
		&m.EnergyValue, &m.PointsValue, &start, &end, &m.IsAllDay,
		&m.Status, &completedAt, &createdAt)
	if err != nil {
		return m, err
	}
	m.ScheduledStart = parseTime(start)
	m.ScheduledEnd = parseTime(end)
	m.CompletedAt = scanNullTime(completedAt)
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

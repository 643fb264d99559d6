package sqlite

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// DASHBOARD READ MODELS
// =============================================================================

// ActivityItem is one completed piece of work in the recent-activity feed.
type ActivityItem struct {
	ID          string
	Title       string
	Type        string // POOL_MISSION, SCHEDULED_MISSION or HABIT_OCCURRENCE
	QuestID     string
	EnergyValue int
	PointsValue int
	CompletedAt time.Time
}

// RecentActivity returns the user's most recently completed missions and
// habit occurrences across all three tables, newest first.
func (s *Store) RecentActivity(ctx context.Context, userID string, limit int) ([]ActivityItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, 'POOL_MISSION' AS item_type, quest_id,
		       energy_value, points_value, completed_at
		FROM pool_missions
		WHERE user_id = ? AND status = 'COMPLETED' AND completed_at IS NOT NULL
		UNION ALL
		SELECT id, title, 'SCHEDULED_MISSION', quest_id,
		       energy_value, points_value, completed_at
		FROM scheduled_missions
		WHERE user_id = ? AND status = 'COMPLETED' AND completed_at IS NOT NULL
		UNION ALL
		SELECT id, title, 'HABIT_OCCURRENCE', quest_id,
		       energy_value, points_value, completed_at
		FROM habit_occurrences
		WHERE user_id = ? AND status = 'COMPLETED' AND completed_at IS NOT NULL
		ORDER BY completed_at DESC
		LIMIT ?`,
		userID, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent activity: %w", err)
	}
	defer rows.Close()

	var items []ActivityItem
	for rows.Next() {
		var item ActivityItem
		var completedAt string
		if err := rows.Scan(&item.ID, &item.Title, &item.Type, &item.QuestID,
			&item.EnergyValue, &item.PointsValue, &completedAt); err != nil {
			return nil, err
		}
		item.CompletedAt = parseTime(completedAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

// AgendaScheduledMissions returns the PENDING scheduled missions relevant
// to one day: all-day missions whose window overlaps it, plus timed
// missions starting within it. All-day first, then by start time.
func (s *Store) AgendaScheduledMissions(ctx context.Context, userID string, dayStart, dayEnd time.Time) ([]ScheduledMission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scheduledMissionColumns+` FROM scheduled_missions
		WHERE user_id = ? AND status = 'PENDING'
		  AND ((is_all_day AND scheduled_start <= ? AND scheduled_end >= ?)
		   OR (NOT is_all_day AND scheduled_start >= ? AND scheduled_start <= ?))
		ORDER BY is_all_day DESC, scheduled_start ASC, title ASC`,
		userID, formatTime(dayEnd), formatTime(dayStart),
		formatTime(dayStart), formatTime(dayEnd))
	if err != nil {
		return nil, fmt.Errorf("failed to query agenda missions: %w", err)
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

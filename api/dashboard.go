/*
dashboard.go - Aggregated read models for the dashboard

ENDPOINTS (this file):
  GET /api/users/{id}/today-agenda     Today's pending work, grouped
  GET /api/users/{id}/recent-activity  Recently completed items

Both endpoints are pure reads over rows the mutation handlers own. The
agenda groups today's work the way the dashboard renders it: all-day
missions first, then the day's habit occurrences, then timed missions.
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/questlog/habit-engine/habit"
	"github.com/questlog/habit-engine/store/sqlite"
)

// TodayAgenda returns the user's pending work for the current day:
// all-day scheduled missions overlapping today, today's PENDING habit
// occurrences, and timed scheduled missions starting today.
func (h *Handler) TodayAgenda(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	now := time.Now().UTC()
	dayStart := habit.DateOf(now)
	dayEnd := habit.EndOfDay(now)

	missions, err := h.Store.AgendaScheduledMissions(r.Context(), userID, dayStart, dayEnd)
	if err != nil {
		writeDomainError(w, "Failed to load today's missions", err)
		return
	}

	occs, err := h.Store.ListOccurrences(r.Context(), habit.UserID(userID), dayStart, dayEnd,
		sqlite.OccurrenceFilter{Status: habit.StatusPending})
	if err != nil {
		writeDomainError(w, "Failed to load today's habits", err)
		return
	}

	agenda := AgendaDTO{
		AllDayMissions: []MissionDTO{},
		TodaysHabits:   toOccurrenceDTOs(occs),
		TimedMissions:  []MissionDTO{},
	}
	for _, m := range missions {
		dto := toScheduledMissionDTO(m)
		if m.IsAllDay {
			agenda.AllDayMissions = append(agenda.AllDayMissions, dto)
		} else {
			agenda.TimedMissions = append(agenda.TimedMissions, dto)
		}
	}
	writeJSON(w, http.StatusOK, agenda)
}

// RecentActivity returns the user's most recently completed missions and
// habit occurrences, newest first. Optional ?limit= caps the feed
// (default 10).
func (h *Handler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	items, err := h.Store.RecentActivity(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, "Failed to load recent activity", err)
		return
	}

	dtos := make([]ActivityItemDTO, len(items))
	for i, item := range items {
		dtos[i] = ActivityItemDTO{
			ID:          item.ID,
			Title:       item.Title,
			Type:        item.Type,
			QuestID:     item.QuestID,
			EnergyValue: item.EnergyValue,
			PointsValue: item.PointsValue,
			CompletedAt: item.CompletedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

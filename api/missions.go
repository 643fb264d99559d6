/*
missions.go - Quest and one-off mission handlers

ENDPOINTS (this file):
  Quests:
    GET    /api/users/{id}/quests              List quests
    POST   /api/users/{id}/quests              Create quest

  Pool missions (undated backlog):
    GET    /api/users/{id}/pool-missions       List
    POST   /api/users/{id}/pool-missions       Create
    POST   /api/pool-missions/{id}/status      Change status
    DELETE /api/pool-missions/{id}             Delete (reverses if completed)

  Scheduled missions (dated):
    GET    /api/users/{id}/scheduled-missions  List in a date range
    POST   /api/users/{id}/scheduled-missions  Create
    POST   /api/scheduled-missions/{id}/status Change status
    DELETE /api/scheduled-missions/{id}        Delete (reverses if completed)

STATUS TRANSITIONS:
  Moving a mission into COMPLETED applies its gamification outcome (points
  credit + active energy entry); moving it back out reverses that outcome.
  The status write and the ledger writes share one storage transaction.
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/questlog/habit-engine/gamification"
	"github.com/questlog/habit-engine/store/sqlite"
)

// =============================================================================
// QUESTS
// =============================================================================

// ListQuests returns the user's quests, default first.
func (h *Handler) ListQuests(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	quests, err := h.Store.ListQuests(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "Failed to list quests", err)
		return
	}

	dtos := make([]QuestDTO, len(quests))
	for i, q := range quests {
		dtos[i] = toQuestDTO(q)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateQuest creates a non-default quest for the user.
func (h *Handler) CreateQuest(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req CreateQuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	quest := sqlite.Quest{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   req.Name,
		Desc:   req.Description,
	}
	if err := h.Store.SaveQuest(r.Context(), quest); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create quest", err)
		return
	}
	writeJSON(w, http.StatusCreated, toQuestDTO(quest))
}

// resolveQuest returns the requested quest ID, falling back to the user's
// default quest when the caller picked none.
func (h *Handler) resolveQuest(r *http.Request, userID, questID string) (string, error) {
	if questID != "" {
		if _, err := h.Store.GetQuest(r.Context(), questID); err != nil {
			return "", err
		}
		return questID, nil
	}
	quest, err := h.Store.DefaultQuest(r.Context(), userID)
	if err != nil {
		return "", err
	}
	return quest.ID, nil
}

// =============================================================================
// POOL MISSIONS
// =============================================================================

// ListPoolMissions returns the user's backlog, open missions first.
func (h *Handler) ListPoolMissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	missions, err := h.Store.ListPoolMissions(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "Failed to list pool missions", err)
		return
	}

	dtos := make([]MissionDTO, len(missions))
	for i, m := range missions {
		dtos[i] = toPoolMissionDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePoolMission creates an undated mission in the backlog.
func (h *Handler) CreatePoolMission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req CreateMissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required", nil)
		return
	}
	if req.PointsValue < 0 {
		writeError(w, http.StatusBadRequest, "points value cannot be negative", nil)
		return
	}

	questID, err := h.resolveQuest(r, userID, req.QuestID)
	if err != nil {
		writeDomainError(w, "Failed to resolve quest", err)
		return
	}

	mission := sqlite.PoolMission{
		ID:          uuid.NewString(),
		UserID:      userID,
		QuestID:     questID,
		Title:       req.Title,
		Desc:        req.Description,
		EnergyValue: req.EnergyValue,
		PointsValue: req.PointsValue,
		Status:      sqlite.MissionTodo,
	}
	if err := h.Store.SavePoolMission(r.Context(), mission); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create pool mission", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPoolMissionDTO(mission))
}

// UpdatePoolMissionStatus changes a pool mission's status, applying or
// reversing its gamification outcome in the same transaction.
func (h *Handler) UpdatePoolMissionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Status != sqlite.MissionTodo && req.Status != sqlite.MissionCompleted {
		writeError(w, http.StatusBadRequest, "status must be TODO or COMPLETED", nil)
		return
	}

	var updated sqlite.PoolMission
	err := h.Store.Transact(r.Context(), func(tx *sqlite.Tx) error {
		mission, err := tx.GetPoolMission(r.Context(), id)
		if err != nil {
			return err
		}

		outcome := gamification.Outcome{
			SourceType: gamification.SourcePoolMission,
			SourceID:   mission.ID,
			Energy:     mission.EnergyValue,
			Points:     mission.PointsValue,
		}
		userID := gamification.UserID(mission.UserID)

		switch {
		case mission.Status != sqlite.MissionCompleted && req.Status == sqlite.MissionCompleted:
			now := time.Now().UTC()
			mission.CompletedAt = &now
			outcome.Reason = "Completed Pool Mission: " + mission.Title
			if err := h.Ledger.Apply(r.Context(), tx, userID, outcome); err != nil {
				return err
			}
		case mission.Status == sqlite.MissionCompleted && req.Status != sqlite.MissionCompleted:
			mission.CompletedAt = nil
			if err := h.Ledger.Reverse(r.Context(), tx, userID, outcome); err != nil {
				return err
			}
		}

		mission.Status = req.Status
		updated = mission
		return tx.SavePoolMission(r.Context(), mission)
	})
	if err != nil {
		writeDomainError(w, "Failed to update pool mission", err)
		return
	}
	writeJSON(w, http.StatusOK, toPoolMissionDTO(updated))
}

// DeletePoolMission removes a pool mission. Deleting a COMPLETED mission
// reverses its gamification outcome first, in the same transaction.
func (h *Handler) DeletePoolMission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.Store.Transact(r.Context(), func(tx *sqlite.Tx) error {
		mission, err := tx.GetPoolMission(r.Context(), id)
		if err != nil {
			return err
		}
		if mission.Status == sqlite.MissionCompleted {
			outcome := gamification.Outcome{
				SourceType: gamification.SourcePoolMission,
				SourceID:   mission.ID,
				Energy:     mission.EnergyValue,
				Points:     mission.PointsValue,
			}
			if err := h.Ledger.Reverse(r.Context(), tx, gamification.UserID(mission.UserID), outcome); err != nil {
				return err
			}
		}
		return tx.DeletePoolMission(r.Context(), id)
	})
	if err != nil {
		writeDomainError(w, "Failed to delete pool mission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SCHEDULED MISSIONS
// =============================================================================

// ListScheduledMissions returns missions in the from/to query range.
func (h *Handler) ListScheduledMissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	from, to, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use YYYY-MM-DD)", err)
		return
	}

	missions, err := h.Store.ListScheduledMissions(r.Context(), userID, from, to)
	if err != nil {
		writeDomainError(w, "Failed to list scheduled missions", err)
		return
	}

	dtos := make([]MissionDTO, len(missions))
	for i, m := range missions {
		dtos[i] = toScheduledMissionDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateScheduledMission creates a dated one-off mission.
func (h *Handler) CreateScheduledMission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req CreateMissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required", nil)
		return
	}
	if req.PointsValue < 0 {
		writeError(w, http.StatusBadRequest, "points value cannot be negative", nil)
		return
	}

	start, err := time.Parse(time.RFC3339, req.ScheduledStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scheduledStart (use RFC3339)", err)
		return
	}
	end := start.Add(time.Hour)
	if req.IsAllDay {
		end = start.Add(24*time.Hour - time.Nanosecond)
	}
	if req.ScheduledEnd != "" {
		end, err = time.Parse(time.RFC3339, req.ScheduledEnd)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid scheduledEnd (use RFC3339)", err)
			return
		}
		if end.Before(start) {
			writeError(w, http.StatusBadRequest, "scheduledEnd is before scheduledStart", nil)
			return
		}
	}

	questID, err := h.resolveQuest(r, userID, req.QuestID)
	if err != nil {
		writeDomainError(w, "Failed to resolve quest", err)
		return
	}

	mission := sqlite.ScheduledMission{
		ID:             uuid.NewString(),
		UserID:         userID,
		QuestID:        questID,
		Title:          req.Title,
		Desc:           req.Description,
		EnergyValue:    req.EnergyValue,
		PointsValue:    req.PointsValue,
		ScheduledStart: start.UTC(),
		ScheduledEnd:   end.UTC(),
		IsAllDay:       req.IsAllDay,
		Status:         sqlite.MissionPending,
	}
	if err := h.Store.SaveScheduledMission(r.Context(), mission); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create scheduled mission", err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduledMissionDTO(mission))
}

// UpdateScheduledMissionStatus changes a scheduled mission's status with
// the same gamification coupling as pool missions. SKIPPED earns nothing.
func (h *Handler) UpdateScheduledMissionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	switch req.Status {
	case sqlite.MissionPending, sqlite.MissionCompleted, sqlite.MissionSkipped:
	default:
		writeError(w, http.StatusBadRequest, "status must be PENDING, COMPLETED or SKIPPED", nil)
		return
	}

	var updated sqlite.ScheduledMission
	err := h.Store.Transact(r.Context(), func(tx *sqlite.Tx) error {
		mission, err := tx.GetScheduledMission(r.Context(), id)
		if err != nil {
			return err
		}

		outcome := gamification.Outcome{
			SourceType: gamification.SourceScheduledMission,
			SourceID:   mission.ID,
			Energy:     mission.EnergyValue,
			Points:     mission.PointsValue,
		}
		userID := gamification.UserID(mission.UserID)

		switch {
		case mission.Status != sqlite.MissionCompleted && req.Status == sqlite.MissionCompleted:
			now := time.Now().UTC()
			mission.CompletedAt = &now
			outcome.Reason = "Completed Scheduled Mission: " + mission.Title
			if err := h.Ledger.Apply(r.Context(), tx, userID, outcome); err != nil {
				return err
			}
		case mission.Status == sqlite.MissionCompleted && req.Status != sqlite.MissionCompleted:
			mission.CompletedAt = nil
			if err := h.Ledger.Reverse(r.Context(), tx, userID, outcome); err != nil {
				return err
			}
		}

		mission.Status = req.Status
		updated = mission
		return tx.SaveScheduledMission(r.Context(), mission)
	})
	if err != nil {
		writeDomainError(w, "Failed to update scheduled mission", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduledMissionDTO(updated))
}

// DeleteScheduledMission removes a scheduled mission, reversing its
// outcome first when it was COMPLETED.
func (h *Handler) DeleteScheduledMission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.Store.Transact(r.Context(), func(tx *sqlite.Tx) error {
		mission, err := tx.GetScheduledMission(r.Context(), id)
		if err != nil {
			return err
		}
		if mission.Status == sqlite.MissionCompleted {
			outcome := gamification.Outcome{
				SourceType: gamification.SourceScheduledMission,
				SourceID:   mission.ID,
				Energy:     mission.EnergyValue,
				Points:     mission.PointsValue,
			}
			if err := h.Ledger.Reverse(r.Context(), tx, gamification.UserID(mission.UserID), outcome); err != nil {
				return err
			}
		}
		return tx.DeleteScheduledMission(r.Context(), id)
	})
	if err != nil {
		writeDomainError(w, "Failed to delete scheduled mission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

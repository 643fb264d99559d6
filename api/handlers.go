/*
handlers.go - HTTP API handlers for users, stats, and the energy log

PURPOSE:
  Exposes the habit engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS (this file):
  Users:
    POST   /api/users                    Create user (+default quest, stats row)
    GET    /api/users/{id}               Get user
    GET    /api/users/{id}/stats         Lifetime points, level, progress
    GET    /api/users/{id}/energy-balance Rolling 7-day balance
    GET    /api/users/{id}/energy-log    Audit view of energy movements

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (reconciler, ledger, calculator)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Conflict (duplicate occurrence, double completion)
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - missions.go: quest and mission handlers
  - habits.go: habit template and occurrence handlers
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/questlog/habit-engine/gamification"
	"github.com/questlog/habit-engine/habit"
	"github.com/questlog/habit-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// DefaultQuestName is given to the quest auto-created with each user.
const DefaultQuestName = "General"

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Reconciler *habit.Reconciler
	Ledger     *gamification.StatsLedger
	Balance    *gamification.BalanceCalculator
	Logger     *slog.Logger
}

// NewHandler creates a new handler wired to the given store.
func NewHandler(store *sqlite.Store, logger *slog.Logger) *Handler {
	return &Handler{
		Store:      store,
		Reconciler: &habit.Reconciler{Store: store, Logger: logger},
		Ledger:     &gamification.StatsLedger{Logger: logger},
		Balance:    &gamification.BalanceCalculator{},
		Logger:     logger,
	}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// CreateUser creates a user plus their stats row and default quest.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required", nil)
		return
	}

	user := sqlite.User{ID: uuid.NewString(), Username: req.Username}
	if err := h.Store.SaveUser(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user", err)
		return
	}

	quest := sqlite.Quest{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Name:      DefaultQuestName,
		IsDefault: true,
	}
	if err := h.Store.SaveQuest(r.Context(), quest); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create default quest", err)
		return
	}

	writeJSON(w, http.StatusCreated, UserDTO{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetUser returns a single user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get user", err)
		return
	}

	writeJSON(w, http.StatusOK, UserDTO{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// STATS AND ENERGY HANDLERS
// =============================================================================

// GetStats returns lifetime points, level, and in-level progress bounds.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID := gamification.UserID(chi.URLParam(r, "id"))

	stats, err := h.Store.GetUserStats(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "Failed to get stats", err)
		return
	}

	writeJSON(w, http.StatusOK, StatsDTO{
		UserID:       string(stats.UserID),
		TotalPoints:  stats.TotalPoints,
		Level:        stats.Level,
		LevelStartXP: gamification.LevelStartXP(stats.TotalPoints),
		NextLevelXP:  gamification.NextLevelXP(stats.TotalPoints),
		UpdatedAt:    stats.UpdatedAt.Format(time.RFC3339),
	})
}

// GetEnergyBalance returns the rolling 7-day energy balance.
func (h *Handler) GetEnergyBalance(w http.ResponseWriter, r *http.Request) {
	userID := gamification.UserID(chi.URLParam(r, "id"))

	balance, err := h.Balance.Balance(r.Context(), h.Store, userID)
	if err != nil {
		writeDomainError(w, "Failed to compute energy balance", err)
		return
	}

	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// GetEnergyLog returns the audit view of the user's energy movements,
// reversed entries included. Optional ?sourceType= narrows by origin.
func (h *Handler) GetEnergyLog(w http.ResponseWriter, r *http.Request) {
	userID := gamification.UserID(chi.URLParam(r, "id"))

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	sourceType := gamification.SourceType(r.URL.Query().Get("sourceType"))

	entries, err := h.Store.ListEnergyLog(r.Context(), userID, sourceType, limit)
	if err != nil {
		writeDomainError(w, "Failed to list energy log", err)
		return
	}

	dtos := make([]EnergyEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = EnergyEntryDTO{
			ID:         string(e.ID),
			SourceType: string(e.SourceType),
			SourceID:   e.SourceID,
			Value:      e.Value,
			Reason:     e.Reason,
			IsActive:   e.IsActive,
			RecordedAt: e.RecordedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// parseDateRange reads optional from/to query params (YYYY-MM-DD) and
// returns the closed instant window they cover, defaulting to the 30 days
// around today.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := habit.DateOf(now.AddDate(0, 0, -7))
	to := habit.EndOfDay(now.AddDate(0, 0, 30))

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = habit.DateOf(t)
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = habit.EndOfDay(t)
	}
	return from, to, nil
}

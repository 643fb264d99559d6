/*
habits.go - Habit template and occurrence handlers

ENDPOINTS (this file):
  Templates:
    GET    /api/users/{id}/habits          List templates
    POST   /api/users/{id}/habits          Create template (+ generate)
    GET    /api/habits/{id}                Get template
    PUT    /api/habits/{id}                Edit template (regenerate if the
                                           recurrence or snapshot fields
                                           changed)
    POST   /api/habits/{id}/activate       Resume generation
    POST   /api/habits/{id}/deactivate     Stop + drop future PENDING
    POST   /api/habits/{id}/extend         Generate further ahead

  Occurrences:
    GET    /api/users/{id}/occurrences     List in a date range
    POST   /api/occurrences/{id}/status    Change status (drives gamification)

LIFECYCLE:
  Every mutation funnels through the Reconciler so occurrence generation
  stays idempotent and history is never rewritten. Completing an occurrence
  applies its snapshot outcome; un-completing reverses it, in one storage
  transaction with the status write.
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/questlog/habit-engine/gamification"
	"github.com/questlog/habit-engine/habit"
	"github.com/questlog/habit-engine/store/sqlite"
)

// =============================================================================
// TEMPLATE HANDLERS
// =============================================================================

// ListHabits returns the user's habit templates.
func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	userID := habit.UserID(chi.URLParam(r, "id"))

	templates, err := h.Store.ListTemplates(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "Failed to list habits", err)
		return
	}

	dtos := make([]HabitTemplateDTO, len(templates))
	for i, tpl := range templates {
		dtos[i] = toTemplateDTO(tpl)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetHabit returns a single habit template.
func (h *Handler) GetHabit(w http.ResponseWriter, r *http.Request) {
	id := habit.TemplateID(chi.URLParam(r, "id"))

	tpl, err := h.Store.GetTemplate(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get habit", err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateDTO(tpl))
}

// CreateHabit creates a template and generates its initial occurrences.
func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req HabitTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	questID, err := h.resolveQuest(r, userID, req.QuestID)
	if err != nil {
		writeDomainError(w, "Failed to resolve quest", err)
		return
	}

	tpl := habit.Template{
		ID:       habit.TemplateID(uuid.NewString()),
		UserID:   habit.UserID(userID),
		QuestID:  habit.QuestID(questID),
		IsActive: true,
	}
	if err := applyTemplateRequest(&tpl, req); err != nil {
		writeDomainError(w, "Invalid habit template", err)
		return
	}
	if err := tpl.Validate(); err != nil {
		writeDomainError(w, "Invalid habit template", err)
		return
	}

	if err := h.Store.SaveTemplate(r.Context(), tpl); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create habit", err)
		return
	}

	generated, err := h.Reconciler.Reconcile(r.Context(), tpl, habit.Event{Kind: habit.EventCreated})
	if err != nil {
		writeDomainError(w, "Failed to generate occurrences", err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		HabitTemplateDTO
		Generated int `json:"generatedOccurrences"`
	}{toTemplateDTO(tpl), len(generated)})
}

// UpdateHabit edits a template. When the recurrence or the snapshot fields
// (title, description, energy, points, quest) changed, future PENDING
// occurrences are regenerated; history stays untouched.
func (h *Handler) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	id := habit.TemplateID(chi.URLParam(r, "id"))

	var req HabitTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tpl, err := h.Store.GetTemplate(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get habit", err)
		return
	}

	before := tpl
	if req.QuestID != "" {
		questID, err := h.resolveQuest(r, string(tpl.UserID), req.QuestID)
		if err != nil {
			writeDomainError(w, "Failed to resolve quest", err)
			return
		}
		tpl.QuestID = habit.QuestID(questID)
	}
	if err := applyTemplateRequest(&tpl, req); err != nil {
		writeDomainError(w, "Invalid habit template", err)
		return
	}
	if err := tpl.Validate(); err != nil {
		writeDomainError(w, "Invalid habit template", err)
		return
	}

	if err := h.Store.SaveTemplate(r.Context(), tpl); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update habit", err)
		return
	}

	_, err = h.Reconciler.Reconcile(r.Context(), tpl, habit.Event{
		Kind:          habit.EventEdited,
		FieldsChanged: ruleChanged(before.Rule, tpl.Rule) || snapshotChanged(before, tpl),
	})
	if err != nil {
		writeDomainError(w, "Failed to regenerate occurrences", err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateDTO(tpl))
}

// ActivateHabit resumes generation for a dormant template.
func (h *Handler) ActivateHabit(w http.ResponseWriter, r *http.Request) {
	h.setHabitActive(w, r, true)
}

// DeactivateHabit stops generation and removes future PENDING occurrences.
// Completed and skipped history stays for the audit trail.
func (h *Handler) DeactivateHabit(w http.ResponseWriter, r *http.Request) {
	h.setHabitActive(w, r, false)
}

func (h *Handler) setHabitActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := habit.TemplateID(chi.URLParam(r, "id"))

	tpl, err := h.Store.GetTemplate(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get habit", err)
		return
	}
	if tpl.IsActive == active {
		writeJSON(w, http.StatusOK, toTemplateDTO(tpl))
		return
	}

	tpl.IsActive = active
	if err := h.Store.SaveTemplate(r.Context(), tpl); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update habit", err)
		return
	}

	kind := habit.EventActivated
	if !active {
		kind = habit.EventDeactivated
	}
	if _, err := h.Reconciler.Reconcile(r.Context(), tpl, habit.Event{Kind: kind}); err != nil {
		writeDomainError(w, "Failed to reconcile occurrences", err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateDTO(tpl))
}

// ExtendHabit generates occurrences past the latest one already known.
func (h *Handler) ExtendHabit(w http.ResponseWriter, r *http.Request) {
	id := habit.TemplateID(chi.URLParam(r, "id"))

	var req ExtendRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	if req.LimitDays < 0 {
		writeError(w, http.StatusBadRequest, "limitDays cannot be negative", nil)
		return
	}

	tpl, err := h.Store.GetTemplate(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get habit", err)
		return
	}

	generated, err := h.Reconciler.Reconcile(r.Context(), tpl, habit.Event{
		Kind:      habit.EventExtend,
		LimitDays: req.LimitDays,
	})
	if err != nil {
		writeDomainError(w, "Failed to extend occurrences", err)
		return
	}

	writeJSON(w, http.StatusOK, ReconcileResponse{
		Generated:   len(generated),
		Occurrences: toOccurrenceDTOs(generated),
	})
}

// =============================================================================
// OCCURRENCE HANDLERS
// =============================================================================

// ListOccurrences returns the user's occurrences in the from/to range.
// Optional ?habitTemplateId= and ?status= narrow the result.
func (h *Handler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	userID := habit.UserID(chi.URLParam(r, "id"))

	from, to, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use YYYY-MM-DD)", err)
		return
	}

	filter := sqlite.OccurrenceFilter{
		TemplateID: habit.TemplateID(r.URL.Query().Get("habitTemplateId")),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := habit.Status(v)
		if !habit.ValidStatus(status) {
			writeError(w, http.StatusBadRequest, "status must be PENDING, COMPLETED or SKIPPED", nil)
			return
		}
		filter.Status = status
	}

	occs, err := h.Store.ListOccurrences(r.Context(), userID, from, to, filter)
	if err != nil {
		writeDomainError(w, "Failed to list occurrences", err)
		return
	}
	writeJSON(w, http.StatusOK, toOccurrenceDTOs(occs))
}

// UpdateOccurrenceStatus changes an occurrence's status. Completion applies
// the occurrence's snapshot outcome; leaving COMPLETED reverses it. Both
// writes share one transaction.
func (h *Handler) UpdateOccurrenceStatus(w http.ResponseWriter, r *http.Request) {
	id := habit.OccurrenceID(chi.URLParam(r, "id"))

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	status := habit.Status(req.Status)
	if !habit.ValidStatus(status) {
		writeError(w, http.StatusBadRequest, "status must be PENDING, COMPLETED or SKIPPED", nil)
		return
	}

	var updated habit.Occurrence
	err := h.Store.Transact(r.Context(), func(tx *sqlite.Tx) error {
		occ, err := tx.GetOccurrence(r.Context(), id)
		if err != nil {
			return err
		}

		outcome := gamification.Outcome{
			SourceType: gamification.SourceHabitOccurrence,
			SourceID:   string(occ.ID),
			Energy:     occ.EnergyValue,
			Points:     occ.PointsValue,
		}
		userID := gamification.UserID(occ.UserID)

		var completedAt *time.Time
		switch {
		case occ.Status != habit.StatusCompleted && status == habit.StatusCompleted:
			now := time.Now().UTC()
			completedAt = &now
			outcome.Reason = "Completed Habit: " + occ.Title
			if err := h.Ledger.Apply(r.Context(), tx, userID, outcome); err != nil {
				return err
			}
		case occ.Status == habit.StatusCompleted && status != habit.StatusCompleted:
			if err := h.Ledger.Reverse(r.Context(), tx, userID, outcome); err != nil {
				return err
			}
		case occ.Status == habit.StatusCompleted:
			completedAt = occ.CompletedAt
		}

		if err := tx.UpdateOccurrenceStatus(r.Context(), occ.ID, status, completedAt); err != nil {
			return err
		}
		occ.Status = status
		occ.CompletedAt = completedAt
		updated = occ
		return nil
	})
	if err != nil {
		writeDomainError(w, "Failed to update occurrence", err)
		return
	}
	writeJSON(w, http.StatusOK, toOccurrenceDTO(updated))
}

// =============================================================================
// REQUEST MAPPING
// =============================================================================

// applyTemplateRequest copies request fields onto the template, parsing
// the wire formats. Zero-value request fields for dates and title are
// treated as "leave unchanged" on edits where tpl already has values.
func applyTemplateRequest(tpl *habit.Template, req HabitTemplateRequest) error {
	if req.Title != "" {
		tpl.Title = req.Title
	}
	tpl.Description = req.Description
	tpl.DefaultEnergy = req.DefaultEnergy
	tpl.DefaultPoints = req.DefaultPoints

	tpl.Rule.ByDay = req.ByDay
	tpl.Rule.DurationMinutes = req.DurationMin

	if req.StartTime != "" {
		tod, err := habit.ParseTimeOfDay(req.StartTime)
		if err != nil {
			return &habit.ValidationError{Field: "startTime", Message: err.Error()}
		}
		tpl.Rule.StartTime = &tod
	} else {
		tpl.Rule.StartTime = nil
	}

	if req.PatternStart != "" {
		start, err := time.Parse("2006-01-02", req.PatternStart)
		if err != nil {
			return &habit.ValidationError{Field: "patternStartDate", Message: "use YYYY-MM-DD"}
		}
		tpl.Rule.PatternStart = habit.DateOf(start)
	}
	if req.PatternEnd != "" {
		end, err := time.Parse("2006-01-02", req.PatternEnd)
		if err != nil {
			return &habit.ValidationError{Field: "patternEndDate", Message: "use YYYY-MM-DD"}
		}
		d := habit.DateOf(end)
		tpl.Rule.PatternEnd = &d
	} else {
		tpl.Rule.PatternEnd = nil
	}

	if req.IsActive != nil {
		tpl.IsActive = *req.IsActive
	}
	return nil
}

// ruleChanged reports whether an edit touched recurrence-affecting fields.
func ruleChanged(a, b habit.RecurrenceRule) bool {
	if len(a.ByDay) != len(b.ByDay) {
		return true
	}
	for i := range a.ByDay {
		if a.ByDay[i] != b.ByDay[i] {
			return true
		}
	}
	if (a.StartTime == nil) != (b.StartTime == nil) {
		return true
	}
	if a.StartTime != nil && *a.StartTime != *b.StartTime {
		return true
	}
	if a.DurationMinutes != b.DurationMinutes {
		return true
	}
	if !a.PatternStart.Equal(b.PatternStart) {
		return true
	}
	if (a.PatternEnd == nil) != (b.PatternEnd == nil) {
		return true
	}
	if a.PatternEnd != nil && !a.PatternEnd.Equal(*b.PatternEnd) {
		return true
	}
	return false
}

// snapshotChanged reports whether an edit touched the fields occurrences
// snapshot at generation time. Future PENDING rows must be regenerated to
// pick the new values up; otherwise they would keep the old title and
// reward values forever.
func snapshotChanged(a, b habit.Template) bool {
	return a.Title != b.Title ||
		a.Description != b.Description ||
		a.DefaultEnergy != b.DefaultEnergy ||
		a.DefaultPoints != b.DefaultPoints ||
		a.QuestID != b.QuestID
}

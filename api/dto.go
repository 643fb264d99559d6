/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

CONVENTIONS:
  - Instants are RFC3339 strings in UTC
  - Times of day are "HH:MM" 24-hour strings
  - Percentages are JSON numbers with two decimals

SEE ALSO:
  - handlers.go: users, stats, energy handlers
  - missions.go: quest and mission handlers
  - habits.go: habit template and occurrence handlers
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/questlog/habit-engine/gamification"
	"github.com/questlog/habit-engine/habit"
	"github.com/questlog/habit-engine/store/sqlite"
)

// =============================================================================
// REQUESTS
// =============================================================================

type CreateUserRequest struct {
	Username string `json:"username"`
}

type CreateQuestRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CreateMissionRequest struct {
	QuestID     string `json:"questId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	EnergyValue int    `json:"energyValue"`
	PointsValue int    `json:"pointsValue"`

	// Scheduled missions only.
	ScheduledStart string `json:"scheduledStart,omitempty"`
	ScheduledEnd   string `json:"scheduledEnd,omitempty"`
	IsAllDay       bool   `json:"isAllDay,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type HabitTemplateRequest struct {
	QuestID       string   `json:"questId"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	DefaultEnergy int      `json:"defaultEnergyValue"`
	DefaultPoints int      `json:"defaultPointsValue"`
	ByDay         []string `json:"byDay"`
	StartTime     string   `json:"startTime,omitempty"` // "HH:MM", empty = all-day
	DurationMin   int      `json:"durationMinutes,omitempty"`
	PatternStart  string   `json:"patternStartDate"` // "2006-01-02"
	PatternEnd    string   `json:"patternEndDate,omitempty"`
	IsActive      *bool    `json:"isActive,omitempty"`
}

type ExtendRequest struct {
	LimitDays int `json:"limitDays,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type UserDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"createdAt"`
}

type StatsDTO struct {
	UserID       string `json:"userId"`
	TotalPoints  int    `json:"totalPoints"`
	Level        int    `json:"level"`
	LevelStartXP int    `json:"levelStartXp"`
	NextLevelXP  int    `json:"nextLevelXp"`
	UpdatedAt    string `json:"updatedAt"`
}

type BalanceDTO struct {
	Percentage       json.Number `json:"percentage"`
	Zone             string      `json:"zone"`
	TotalEnergyMoved int         `json:"totalEnergyMoved"`
	PositiveEnergy   int         `json:"positiveEnergy"`
	WindowDays       int         `json:"windowDays"`
}

type EnergyEntryDTO struct {
	ID         string `json:"id"`
	SourceType string `json:"sourceType"`
	SourceID   string `json:"sourceId"`
	Value      int    `json:"value"`
	Reason     string `json:"reason"`
	IsActive   bool   `json:"isActive"`
	RecordedAt string `json:"recordedAt"`
}

type QuestDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `json:"isDefault"`
	CreatedAt   string `json:"createdAt"`
}

type MissionDTO struct {
	ID             string  `json:"id"`
	QuestID        string  `json:"questId"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	EnergyValue    int     `json:"energyValue"`
	PointsValue    int     `json:"pointsValue"`
	Status         string  `json:"status"`
	ScheduledStart *string `json:"scheduledStart,omitempty"`
	ScheduledEnd   *string `json:"scheduledEnd,omitempty"`
	IsAllDay       *bool   `json:"isAllDay,omitempty"`
	CompletedAt    *string `json:"completedAt,omitempty"`
}

type HabitTemplateDTO struct {
	ID            string   `json:"id"`
	QuestID       string   `json:"questId"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	DefaultEnergy int      `json:"defaultEnergyValue"`
	DefaultPoints int      `json:"defaultPointsValue"`
	ByDay         []string `json:"byDay"`
	StartTime     *string  `json:"startTime,omitempty"`
	DurationMin   int      `json:"durationMinutes"`
	PatternStart  string   `json:"patternStartDate"`
	PatternEnd    *string  `json:"patternEndDate,omitempty"`
	IsActive      bool     `json:"isActive"`
}

type AgendaDTO struct {
	AllDayMissions []MissionDTO    `json:"allDayMissions"`
	TodaysHabits   []OccurrenceDTO `json:"todaysHabits"`
	TimedMissions  []MissionDTO    `json:"timedMissions"`
}

type ActivityItemDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	QuestID     string `json:"questId"`
	EnergyValue int    `json:"energyValue"`
	PointsValue int    `json:"pointsValue"`
	CompletedAt string `json:"completedAt"`
}

type OccurrenceDTO struct {
	ID             string  `json:"id"`
	TemplateID     string  `json:"habitTemplateId"`
	QuestID        string  `json:"questId"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	EnergyValue    int     `json:"energyValue"`
	PointsValue    int     `json:"pointsValue"`
	ScheduledStart string  `json:"scheduledStart"`
	ScheduledEnd   string  `json:"scheduledEnd"`
	IsAllDay       bool    `json:"isAllDay"`
	Status         string  `json:"status"`
	CompletedAt    *string `json:"completedAt,omitempty"`
}

type ReconcileResponse struct {
	Generated   int             `json:"generated"`
	Occurrences []OccurrenceDTO `json:"occurrences"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toQuestDTO(q sqlite.Quest) QuestDTO {
	return QuestDTO{
		ID:          q.ID,
		Name:        q.Name,
		Description: q.Desc,
		IsDefault:   q.IsDefault,
		CreatedAt:   q.CreatedAt.Format(time.RFC3339),
	}
}

func toPoolMissionDTO(m sqlite.PoolMission) MissionDTO {
	return MissionDTO{
		ID:          m.ID,
		QuestID:     m.QuestID,
		Title:       m.Title,
		Description: m.Desc,
		EnergyValue: m.EnergyValue,
		PointsValue: m.PointsValue,
		Status:      m.Status,
		CompletedAt: timePtrString(m.CompletedAt),
	}
}

func toScheduledMissionDTO(m sqlite.ScheduledMission) MissionDTO {
	start := m.ScheduledStart.Format(time.RFC3339)
	end := m.ScheduledEnd.Format(time.RFC3339)
	allDay := m.IsAllDay
	return MissionDTO{
		ID:             m.ID,
		QuestID:        m.QuestID,
		Title:          m.Title,
		Description:    m.Desc,
		EnergyValue:    m.EnergyValue,
		PointsValue:    m.PointsValue,
		Status:         m.Status,
		ScheduledStart: &start,
		ScheduledEnd:   &end,
		IsAllDay:       &allDay,
		CompletedAt:    timePtrString(m.CompletedAt),
	}
}

func toTemplateDTO(tpl habit.Template) HabitTemplateDTO {
	dto := HabitTemplateDTO{
		ID:            string(tpl.ID),
		QuestID:       string(tpl.QuestID),
		Title:         tpl.Title,
		Description:   tpl.Description,
		DefaultEnergy: tpl.DefaultEnergy,
		DefaultPoints: tpl.DefaultPoints,
		ByDay:         tpl.Rule.ByDay,
		DurationMin:   tpl.Rule.DurationMinutes,
		PatternStart:  tpl.Rule.PatternStart.Format("2006-01-02"),
		IsActive:      tpl.IsActive,
	}
	if dto.ByDay == nil {
		dto.ByDay = []string{}
	}
	if tpl.Rule.StartTime != nil {
		s := tpl.Rule.StartTime.String()
		dto.StartTime = &s
	}
	if tpl.Rule.PatternEnd != nil {
		s := tpl.Rule.PatternEnd.Format("2006-01-02")
		dto.PatternEnd = &s
	}
	return dto
}

func toOccurrenceDTO(occ habit.Occurrence) OccurrenceDTO {
	return OccurrenceDTO{
		ID:             string(occ.ID),
		TemplateID:     string(occ.TemplateID),
		QuestID:        string(occ.QuestID),
		Title:          occ.Title,
		Description:    occ.Description,
		EnergyValue:    occ.EnergyValue,
		PointsValue:    occ.PointsValue,
		ScheduledStart: occ.ScheduledStart.Format(time.RFC3339),
		ScheduledEnd:   occ.ScheduledEnd.Format(time.RFC3339),
		IsAllDay:       occ.IsAllDay,
		Status:         string(occ.Status),
		CompletedAt:    timePtrString(occ.CompletedAt),
	}
}

func toOccurrenceDTOs(occs []habit.Occurrence) []OccurrenceDTO {
	dtos := make([]OccurrenceDTO, len(occs))
	for i, occ := range occs {
		dtos[i] = toOccurrenceDTO(occ)
	}
	return dtos
}

func toBalanceDTO(b gamification.Balance) BalanceDTO {
	return BalanceDTO{
		Percentage:       json.Number(b.Percentage.StringFixed(2)),
		Zone:             string(b.Zone),
		TotalEnergyMoved: b.TotalEnergyMoved,
		PositiveEnergy:   b.PositiveEnergy,
		WindowDays:       b.WindowDays,
	}
}

func timePtrString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP statuses: not-found to 404,
// validation to 400, duplicates to 409, everything else to 500.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case habit.IsNotFound(err) || errors.Is(err, sqlite.ErrNotFound) || errors.Is(err, gamification.ErrUserNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, habit.ErrDuplicateOccurrence):
		writeError(w, http.StatusConflict, message, err)
	case habit.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

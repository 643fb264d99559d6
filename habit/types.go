/*
types.go - Habit templates and their generated occurrences

KEY CONCEPTS:
  - Template: the recurring description a user edits
  - Occurrence: one concrete dated instance generated from a template
  - Status: PENDING until acted on, then COMPLETED or SKIPPED

SNAPSHOT SEMANTICS:
  An occurrence copies title/description/energy/points/quest from its
  template at generation time. Editing the template later does NOT touch
  existing occurrences unless the edit forces a regeneration, and even then
  only still-PENDING future occurrences are replaced.
*/
package habit

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TemplateID string
type OccurrenceID string
type UserID string
type QuestID string

// =============================================================================
// TEMPLATE
// =============================================================================

// Template is a recurring habit description owned by a user.
//
// QuestID must already be resolved by the caller (the default "General"
// quest when the user picked none). The engine never searches for a
// fallback quest itself.
type Template struct {
	ID          TemplateID
	UserID      UserID
	QuestID     QuestID
	Title       string
	Description string

	// Defaults snapshotted into each generated occurrence.
	DefaultEnergy int // signed: negative = draining, positive = restoring
	DefaultPoints int // non-negative gamification score

	Rule     RecurrenceRule
	IsActive bool
}

// Validate checks the template before reconciliation.
func (t Template) Validate() error {
	if t.QuestID == "" {
		return &ValidationError{Field: "questId", Message: "quest id must be resolved before reconciliation"}
	}
	if t.DefaultPoints < 0 {
		return &ValidationError{Field: "defaultPointsValue", Message: "points value cannot be negative"}
	}
	return t.Rule.Validate()
}

// =============================================================================
// OCCURRENCE
// =============================================================================

// Status of a habit occurrence.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusSkipped   Status = "SKIPPED"
)

// ValidStatus reports whether s is a known occurrence status.
func ValidStatus(s Status) bool {
	return s == StatusPending || s == StatusCompleted || s == StatusSkipped
}

// Occurrence is one dated instance generated from a template.
//
// INVARIANT: for a given template, no two occurrences share the same
// ScheduledStart. The reconciler skips duplicates before inserting and the
// storage layer enforces a uniqueness constraint as the race backstop.
type Occurrence struct {
	ID         OccurrenceID
	TemplateID TemplateID
	UserID     UserID
	QuestID    QuestID

	// Snapshot taken at generation time.
	Title       string
	Description string
	EnergyValue int
	PointsValue int

	ScheduledStart time.Time // UTC instant
	ScheduledEnd   time.Time // UTC instant
	IsAllDay       bool

	Status      Status
	CompletedAt *time.Time // set only while Status == COMPLETED
}

// occurrenceOn builds the occurrence for a firing date, computing the
// scheduled window from the template's rule.
func occurrenceOn(tpl Template, date time.Time, id OccurrenceID) Occurrence {
	occ := Occurrence{
		ID:          id,
		TemplateID:  tpl.ID,
		UserID:      tpl.UserID,
		QuestID:     tpl.QuestID,
		Title:       tpl.Title,
		Description: tpl.Description,
		EnergyValue: tpl.DefaultEnergy,
		PointsValue: tpl.DefaultPoints,
		IsAllDay:    tpl.Rule.AllDay(),
		Status:      StatusPending,
	}
	if tpl.Rule.AllDay() {
		occ.ScheduledStart = DateOf(date)
		occ.ScheduledEnd = EndOfDay(date)
	} else {
		occ.ScheduledStart = tpl.Rule.StartTime.On(date)
		occ.ScheduledEnd = occ.ScheduledStart.Add(tpl.Rule.Duration())
	}
	return occ
}

package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog/habit-engine/habit"
	"github.com/questlog/habit-engine/store/sqlite"
)

func TestHorizonScheduler_RunOnceExtendsActiveTemplates(t *testing.T) {
	// GIVEN: one active and one deactivated habit
	// WHEN: the scheduler runs a pass
	// THEN: only the active template gains occurrences

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(store, logger)
	router := NewRouter(handler, nil)
	userID := createTestUser(t, router)
	today := time.Now().UTC().Format("2006-01-02")

	var active, dormant HabitTemplateDTO
	rec := doJSON(t, router, http.MethodPost, "/api/users/"+userID+"/habits", HabitTemplateRequest{
		Title:        "Active habit",
		PatternStart: today,
	}, &active)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/users/"+userID+"/habits", HabitTemplateRequest{
		Title:        "Dormant habit",
		PatternStart: today,
	}, &dormant)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/api/habits/"+dormant.ID+"/deactivate", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	ctx := context.Background()
	before, err := store.ScheduledStarts(ctx, habit.TemplateID(active.ID))
	require.NoError(t, err)

	scheduler := NewHorizonScheduler(store, handler, logger)
	scheduler.RunOnce(ctx)

	after, err := store.ScheduledStarts(ctx, habit.TemplateID(active.ID))
	require.NoError(t, err)
	assert.Greater(t, len(after), len(before), "active template should gain occurrences")

	dormantStarts, err := store.ScheduledStarts(ctx, habit.TemplateID(dormant.ID))
	require.NoError(t, err)
	assert.Empty(t, dormantStarts, "deactivated template stays untouched")
}

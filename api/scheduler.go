/*
scheduler.go - Automated occurrence horizon extender

PURPOSE:
  Periodically extends every active habit template so users always have
  upcoming occurrences materialized, without waiting for them to open the
  calendar.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each pass issues an extend event per active template; the reconciler's
    idempotency guard makes repeated passes harmless
  - A failing template is logged and skipped; the pass continues

CONFIGURATION:
  - CheckInterval: How often to run (default: 6 hours)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewHorizonScheduler(store, handler, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - habits.go: ExtendHabit endpoint (manual extension)
  - habit/reconciler.go: the extend event semantics
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/questlog/habit-engine/habit"
	"github.com/questlog/habit-engine/store/sqlite"
)

// HorizonScheduler keeps active habit templates generated ahead.
type HorizonScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool
	Logger        *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewHorizonScheduler creates a new scheduler.
func NewHorizonScheduler(store *sqlite.Store, handler *Handler, logger *slog.Logger) *HorizonScheduler {
	return &HorizonScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 6 * time.Hour,
		Enabled:       true,
		Logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (hs *HorizonScheduler) Start() {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if !hs.Enabled {
		hs.Logger.Info("horizon scheduler disabled, not starting")
		return
	}

	hs.ticker = time.NewTicker(hs.CheckInterval)
	hs.wg.Add(1)
	go hs.run()

	hs.Logger.Info("horizon scheduler started", "interval", hs.CheckInterval)
}

// Stop halts the scheduler and waits for the current pass to finish.
func (hs *HorizonScheduler) Stop() {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if hs.ticker == nil {
		return
	}
	hs.ticker.Stop()
	close(hs.stop)
	hs.wg.Wait()
	hs.Logger.Info("horizon scheduler stopped")
}

func (hs *HorizonScheduler) run() {
	defer hs.wg.Done()

	for {
		select {
		case <-hs.ticker.C:
			hs.RunOnce(context.Background())
		case <-hs.stop:
			return
		}
	}
}

// RunOnce extends every active template a single time. Exported so the
// startup path and tests can trigger a pass directly.
func (hs *HorizonScheduler) RunOnce(ctx context.Context) {
	templates, err := hs.Store.ListActiveTemplates(ctx)
	if err != nil {
		hs.Logger.Error("horizon pass failed to list templates", "err", err)
		return
	}

	extended := 0
	for _, tpl := range templates {
		generated, err := hs.Handler.Reconciler.Reconcile(ctx, tpl, habit.Event{Kind: habit.EventExtend})
		if err != nil {
			hs.Logger.Warn("horizon pass failed for template",
				"templateId", tpl.ID, "err", err)
			continue
		}
		extended += len(generated)
	}
	if extended > 0 {
		hs.Logger.Info("horizon pass complete",
			"templates", len(templates), "generated", extended)
	}
}

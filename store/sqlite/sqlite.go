/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements habit.Store/habit.TxStore and gamification.Store plus the
  supporting tables (users, quests, missions) using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  habit.Store / habit.TxStore: occurrence persistence + transactions
  gamification.Store:          user stats and the energy log

APPEND-ONLY ENFORCEMENT:
  energy_log rows are never deleted. Reversal flips is_active to 0; the
  partial unique index idx_energy_active_source guarantees at most one
  active row per (user, source_type, source_id), so repeated completions
  of the same source fail loudly instead of double-counting.

KEY TABLES:
  users:              account rows
  user_stats:         lifetime points and level per user
  quests:             user-defined groupings; one is the default "General"
  pool_missions:      undated one-off missions
  scheduled_missions: dated one-off missions
  habit_templates:    recurring habit definitions
  habit_occurrences:  generated instances; UNIQUE(template, scheduled_start)
  energy_log:         append-only signed energy movements

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/questlog.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - habit/store.go: reconciler-facing interface definitions
  - gamification/store.go: ledger-facing interface definitions
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/questlog/habit-engine/habit"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_stats (
		user_id TEXT PRIMARY KEY REFERENCES users(id),
		total_points INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_quests_user ON quests(user_id);

	-- One default quest per user, enforced at the schema level
	CREATE UNIQUE INDEX IF NOT EXISTS idx_quests_default
		ON quests(user_id) WHERE is_default = TRUE;

	CREATE TABLE IF NOT EXISTS pool_missions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		quest_id TEXT NOT NULL REFERENCES quests(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		energy_value INTEGER NOT NULL DEFAULT 0,
		points_value INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'TODO',
		completed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pool_missions_user
		ON pool_missions(user_id, status);

	CREATE TABLE IF NOT EXISTS scheduled_missions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		quest_id TEXT NOT NULL REFERENCES quests(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		energy_value INTEGER NOT NULL DEFAULT 0,
		points_value INTEGER NOT NULL DEFAULT 0,
		scheduled_start TEXT NOT NULL,
		scheduled_end TEXT NOT NULL,
		is_all_day BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'PENDING',
		completed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scheduled_missions_user_date
		ON scheduled_missions(user_id, scheduled_start);

	CREATE TABLE IF NOT EXISTS habit_templates (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		quest_id TEXT NOT NULL REFERENCES quests(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		default_energy INTEGER NOT NULL DEFAULT 0,
		default_points INTEGER NOT NULL DEFAULT 0,
		by_day TEXT NOT NULL DEFAULT '',
		start_time TEXT,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		pattern_start TEXT NOT NULL,
		pattern_end TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_habit_templates_user
		ON habit_templates(user_id, is_active);

	CREATE TABLE IF NOT EXISTS habit_occurrences (
		id TEXT PRIMARY KEY,
		habit_template_id TEXT NOT NULL REFERENCES habit_templates(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		quest_id TEXT NOT NULL REFERENCES quests(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		energy_value INTEGER NOT NULL DEFAULT 0,
		points_value INTEGER NOT NULL DEFAULT 0,
		scheduled_start TEXT NOT NULL,
		scheduled_end TEXT NOT NULL,
		is_all_day BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'PENDING',
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: a template never gets two occurrences at the same instant.
	-- The reconciler checks before inserting; this is the race backstop.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_occurrences_unique_start
		ON habit_occurrences(habit_template_id, scheduled_start);

	CREATE INDEX IF NOT EXISTS idx_occurrences_template_status
		ON habit_occurrences(habit_template_id, status, scheduled_start);
	CREATE INDEX IF NOT EXISTS idx_occurrences_user_date
		ON habit_occurrences(user_id, scheduled_start);

	CREATE TABLE IF NOT EXISTS energy_log (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		value INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		recorded_at TEXT NOT NULL
	);

	-- At most one ACTIVE entry per source. Reversed rows stay behind as
	-- the audit trail. Manual entries carry an empty source_id and are
	-- exempt: a user can log energy by hand as often as they like.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_energy_active_source
		ON energy_log(user_id, source_type, source_id)
		WHERE is_active = TRUE AND source_id != '';

	CREATE INDEX IF NOT EXISTS idx_energy_user_recorded
		ON energy_log(user_id, recorded_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// dbtx is satisfied by both *sql.DB and *sql.Tx so the query helpers run
// inside or outside a transaction unchanged.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a transaction-scoped view of the store. It carries every domain
// method the Store has, so one SQLite transaction can span a mission
// status change and the gamification writes it triggers.
type Tx struct {
	q dbtx
}

// Transact runs fn inside a single database transaction, committing when
// fn returns nil and rolling back otherwise.
func (s *Store) Transact(ctx context.Context, fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// WithTx satisfies habit.TxStore by narrowing Transact to the habit
// persistence surface.
func (s *Store) WithTx(ctx context.Context, fn func(habit.Store) error) error {
	return s.Transact(ctx, func(tx *Tx) error {
		return fn(tx)
	})
}

// view returns a Tx over the raw connection for non-transactional calls
// on Store itself.
func (s *Store) view() *Tx {
	return &Tx{q: s.db}
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.UTC()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func scanNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

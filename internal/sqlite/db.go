package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema. It is safe to run repeatedly.
func (db *DB) RunMigrations() error {
	migration := `
-- Agent runs
CREATE TABLE IF NOT EXISTS activities (
    id TEXT PRIMARY KEY,
    agent TEXT NOT NULL,
    opts TEXT NOT NULL DEFAULT '{}',
    queue TEXT NOT NULL DEFAULT '',
    start_time TEXT,
    end_time TEXT,
    status TEXT NOT NULL DEFAULT '' CHECK(status IN ('', 'succeeded', 'failed')),
    error TEXT NOT NULL DEFAULT '',
    failures TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activities_agent ON activities(agent);
CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at);

-- Harvested records. generated_by is a plain reference: removing an
-- activity never removes what it generated.
CREATE TABLE IF NOT EXISTS original_records (
    id TEXT PRIMARY KEY,
    provider TEXT NOT NULL DEFAULT '',
    source_id TEXT NOT NULL,
    datestamp TEXT NOT NULL DEFAULT '',
    set_specs TEXT NOT NULL DEFAULT '[]',
    deleted INTEGER NOT NULL DEFAULT 0,
    content TEXT NOT NULL,
    content_type TEXT NOT NULL,
    record TEXT NOT NULL DEFAULT '{}',
    generated_by TEXT,
    invalidated_at TEXT,
    created_at TEXT NOT NULL,
    modified_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_original_records_generated_by ON original_records(generated_by, id);
CREATE INDEX IF NOT EXISTS idx_original_records_provider ON original_records(provider);

-- Enriched records
CREATE TABLE IF NOT EXISTS aggregations (
    id TEXT PRIMARY KEY,
    provider TEXT NOT NULL DEFAULT '',
    derived_from TEXT,
    record TEXT NOT NULL DEFAULT '{}',
    generated_by TEXT,
    invalidated_at TEXT,
    created_at TEXT NOT NULL,
    modified_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_aggregations_generated_by ON aggregations(generated_by, id);
CREATE INDEX IF NOT EXISTS idx_aggregations_derived_from ON aggregations(derived_from);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

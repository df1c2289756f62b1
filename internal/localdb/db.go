package localdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Open открывает (и при необходимости создаёт) базу SQLite на станции.
// path == ":memory:" даёт базу в памяти для тестов.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Одно соединение: SQLite допускает одного писателя,
	// а база в памяти существует только внутри соединения.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS measurement_configs (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	frequency_minutes      INTEGER NOT NULL,
	first_run              TEXT,
	primary_camera         INTEGER NOT NULL,
	secondary_camera       INTEGER NOT NULL,
	sensor_count           INTEGER NOT NULL,
	stage_duration_minutes REAL    NOT NULL,
	created_at             TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id                     TEXT PRIMARY KEY,
	created_at             TEXT    NOT NULL,
	scheduled              INTEGER NOT NULL,
	primary_camera         INTEGER NOT NULL,
	secondary_camera       INTEGER NOT NULL,
	sensor_count           INTEGER NOT NULL,
	stage_duration_minutes REAL    NOT NULL,
	completed_at           TEXT
);

CREATE INDEX IF NOT EXISTS runs_created_at_idx ON runs (created_at);

CREATE TABLE IF NOT EXISTS run_stage_results (
	run_id      TEXT    NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	stage       TEXT    NOT NULL,
	kind        TEXT    NOT NULL,
	sensor      INTEGER NOT NULL,
	status      TEXT    NOT NULL,
	message     TEXT    NOT NULL,
	artifact    TEXT,
	finished_at TEXT    NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS run_artifacts (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	remote_id TEXT NOT NULL,
	UNIQUE (run_id, name)
);
`

// timeLayout — фиксированная ширина, чтобы строки сравнивались как время.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

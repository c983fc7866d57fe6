// Package store persists users, machines and generated nginx files in SQLite.
//
// The pure Go driver (modernc.org/sqlite) is used by default. Build with
// -tags cgo_sqlite to link github.com/mattn/go-sqlite3 instead.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id              INTEGER PRIMARY KEY,
    public_id       TEXT    NOT NULL UNIQUE,
    email           TEXT    NOT NULL UNIQUE,
    username        TEXT    NOT NULL,
    password_hash   TEXT    NOT NULL,
    is_admin        INTEGER NOT NULL DEFAULT 0,
    token_version   INTEGER NOT NULL DEFAULT 0,
    access_servers  TEXT    NOT NULL DEFAULT '[]',
    access_pages    TEXT    NOT NULL DEFAULT '[]',
    created_at      TEXT    NOT NULL,
    updated_at      TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS machines (
    public_id                   TEXT PRIMARY KEY,
    machine_name                TEXT NOT NULL,
    url_api_for_tsm_network     TEXT NOT NULL DEFAULT '',
    local_ip_address            TEXT NOT NULL DEFAULT '',
    nginx_storage_path_options  TEXT NOT NULL DEFAULT '[]',
    created_at                  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS nginx_files (
    public_id          TEXT    PRIMARY KEY,
    server_names       TEXT    NOT NULL,
    port_number        INTEGER NOT NULL,
    local_ip_address   TEXT    NOT NULL,
    machine_public_id  TEXT    NOT NULL,
    template_file      TEXT    NOT NULL,
    file_path          TEXT    NOT NULL UNIQUE,
    created_at         TEXT    NOT NULL,
    updated_at         TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nginx_files_machine ON nginx_files (machine_public_id);

CREATE TABLE IF NOT EXISTS password_reset_tokens (
    token_hash  TEXT    PRIMARY KEY,
    user_id     INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    expires_at  TEXT    NOT NULL
);
`

// migrations bring databases created by older releases up to the current
// schema. Each statement must fail with "duplicate column name" once applied.
var migrations = []string{
	"ALTER TABLE users ADD COLUMN token_version INTEGER NOT NULL DEFAULT 0",
}

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. The parent directory is created when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStore, "failed to create data directory", err)
		}
	}

	db, err := openDB(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, "failed to open database", err)
	}
	// One connection, so the pragmas below cover every query.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrap(errors.ErrCodeStore, "failed to configure database", err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeStore, "failed to apply schema", err)
	}
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil && !strings.Contains(err.Error(), "duplicate column name") {
			db.Close()
			return nil, errors.Wrap(errors.ErrCodeStore, "failed to migrate schema", err)
		}
	}

	logger.Debug("Opened database %s", path)
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeStore, "database unreachable", err)
	}
	return nil
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(s string) ([]string, error) {
	list := []string{}
	if s == "" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, fmt.Errorf("corrupt list column: %w", err)
	}
	return list, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func storeErr(msg string, err error) error {
	return errors.Wrap(errors.ErrCodeStore, msg, err)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// Package provision implements the persistent key-value namespace used
// by the boot orchestrator's provisioning check: ssid, password, ws_url.
package provision

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed KVStore, using the pure-Go
// modernc.org/sqlite driver so the firmware toolchain never needs cgo.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) a SQLite database at dbPath
// and ensures the kv table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("provision: open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("provision: migrate: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key, if any.
func (s *SQLiteStore) Get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// Set stores value under key, replacing any existing value.
func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(`
	INSERT INTO kv (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Provisioned reports whether a non-empty ssid is present.
func (s *SQLiteStore) Provisioned() bool {
	ssid, ok := s.Get("ssid")
	return ok && ssid != ""
}

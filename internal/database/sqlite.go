// Package database provides the key-value substrate of the local record
// store, backed by SQLite.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cms-go/internal/cms"
	"cms-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteKV implements cms.KeyValueStore on a single SQLite table.
type SQLiteKV struct {
	db    *sql.DB
	path  string
	clock cms.Clock
}

// NewSQLiteKV opens the database at path (or ":memory:"), applies pending
// migrations and returns the store. A nil clock uses the real clock.
func NewSQLiteKV(path string, clock cms.Clock) (*SQLiteKV, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return NewSQLiteKVFromDB(db, path, clock), nil
}

// NewSQLiteKVFromDB wraps an already migrated connection.
func NewSQLiteKVFromDB(db *sql.DB, path string, clock cms.Clock) *SQLiteKV {
	if clock == nil {
		clock = cms.RealClock{}
	}
	return &SQLiteKV{db: db, path: path, clock: clock}
}

// OpenConnection opens and configures a SQLite connection.
// path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database, and writers
	// serialize anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return db, nil
}

// Get returns the value stored under key, or nil if there is none.
func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_entries WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at, size) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at, size = excluded.size`,
		key, value, s.clock.Now().UTC(), len(value))
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLiteKV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv_entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Keys returns every key starting with prefix, sorted.
func (s *SQLiteKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv_entries WHERE key LIKE ? ESCAPE '\' ORDER BY key`, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("listing keys %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Usage summarizes the stored entries.
type Usage struct {
	Entries     int
	TotalBytes  int64
	LastUpdated time.Time
}

// Usage reports how many entries and bytes the store holds.
func (s *SQLiteKV) Usage(ctx context.Context) (Usage, error) {
	var (
		u    Usage
		last sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(size), 0), MAX(updated_at) FROM kv_entries").Scan(&u.Entries, &u.TotalBytes, &last)
	if err != nil {
		return Usage{}, fmt.Errorf("reading usage: %w", err)
	}
	if last.Valid {
		u.LastUpdated = parseSQLiteTime(last.String)
	}
	return u, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteKV) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteKV) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrationStatus reports the schema version of the database.
func (s *SQLiteKV) MigrationStatus() (migrations.Status, error) {
	return migrations.CurrentStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteKV) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteKV) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// parseSQLiteTime accepts the layouts go-sqlite3 uses when a timestamp comes
// back through an aggregate as text.
func parseSQLiteTime(s string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

var _ cms.KeyValueStore = (*SQLiteKV)(nil)

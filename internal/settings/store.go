// Package settings persists runtime-adjustable options in a small SQLite
// database under the data root. Unlike the static daemon configuration,
// these values can be changed over the API without a restart.
package settings

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// Keys recognized by the store. Writes to any other key are rejected.
const (
	KeyServerURL      = "server_url"
	KeyDeviceName     = "device_name"
	KeyPrinterBaud    = "printer_baud"
	KeyAutoStartPrint = "auto_start_print"
)

var defaults = map[string]string{
	KeyServerURL:      "",
	KeyDeviceName:     "gantry",
	KeyPrinterBaud:    "115200",
	KeyAutoStartPrint: "false",
}

var ErrUnknownKey = errors.New("unknown settings key")

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

var ErrSchemaMismatch = errors.New("settings schema version mismatch")

// Store is the durable key/value area for runtime settings.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the settings database under dataDir, creating it on
// first use. A legacy config.json at the data root is imported into an
// empty database and then left in place.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "settings.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.importLegacy(context.Background(), dataDir); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create settings schema: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Get returns the stored value for key, falling back to the built-in
// default when the key has never been written.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	fallback, ok := defaults[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, nil
}

// Put validates and stores a value for a known key.
func (s *Store) Put(ctx context.Context, key, value string) error {
	if _, ok := defaults[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := validate(key, value); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

// All returns every known key with its effective value, defaults included.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	values := make(map[string]string, len(defaults))
	for key, fallback := range defaults {
		values[key] = fallback
	}

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		if _, ok := defaults[key]; ok {
			values[key] = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return values, nil
}

// ServerURL returns the conversion server base URL, empty when unset.
func (s *Store) ServerURL(ctx context.Context) string {
	value, err := s.Get(ctx, KeyServerURL)
	if err != nil {
		return ""
	}
	return value
}

// AutoStartPrint reports whether a successful conversion should start a
// print immediately.
func (s *Store) AutoStartPrint(ctx context.Context) bool {
	value, err := s.Get(ctx, KeyAutoStartPrint)
	if err != nil {
		return false
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return enabled
}

func validate(key, value string) error {
	switch key {
	case KeyPrinterBaud:
		baud, err := strconv.Atoi(value)
		if err != nil || baud <= 0 {
			return fmt.Errorf("invalid %s: %q", key, value)
		}
	case KeyAutoStartPrint:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("invalid %s: %q", key, value)
		}
	}
	return nil
}

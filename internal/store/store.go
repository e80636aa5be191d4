// Package store owns every persisted row: accounts, switch history, quota
// snapshots, vault metadata, and the quota refresh policy. All writes go
// through transactions; readers never observe partial state.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database connection.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// PRAGMAs are per-connection in SQLite (foreign_keys defaults OFF on
	// every new connection), so the pool is capped at a single connection.
	// That makes the pragmas below hold for every query, serializes all
	// writes through one writer, and keeps a :memory: database shared
	// rather than one-per-connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// Writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrations are applied in order; user_version records the last applied
// index so old databases upgrade incrementally.
var migrations = []string{
	`CREATE TABLE accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tags_json TEXT NOT NULL DEFAULT '[]',
		auth_ciphertext BLOB NOT NULL,
		auth_fingerprint TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		last_used_at DATETIME
	);
	CREATE INDEX idx_accounts_fingerprint ON accounts(auth_fingerprint);

	CREATE TABLE switch_history (
		id TEXT PRIMARY KEY,
		from_account_id TEXT REFERENCES accounts(id) ON DELETE SET NULL,
		to_account_id TEXT REFERENCES accounts(id) ON DELETE RESTRICT,
		snapshot_path TEXT,
		result TEXT NOT NULL,
		error_message TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX idx_switch_history_created_at ON switch_history(created_at DESC);

	CREATE TABLE quota_snapshots (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		mode TEXT NOT NULL,
		remaining_value REAL,
		remaining_unit TEXT,
		quota_state TEXT NOT NULL,
		reset_at DATETIME,
		source TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		reason TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX idx_quota_snapshots_account_created_at
		ON quota_snapshots(account_id, created_at DESC);

	CREATE TABLE vault_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		kdf_salt BLOB NOT NULL,
		kdf_memory_kib INTEGER NOT NULL,
		kdf_iterations INTEGER NOT NULL,
		kdf_parallelism INTEGER NOT NULL,
		verifier_ciphertext BLOB NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		probe_timeout_ms INTEGER NOT NULL DEFAULT 8000,
		probe_cache_ttl_s INTEGER NOT NULL DEFAULT 60,
		probe_max_concurrency INTEGER NOT NULL DEFAULT 4,
		updated_at DATETIME NOT NULL
	);`,
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("bump schema version to %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}
	return nil
}

// SchemaVersion returns the applied migration count.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

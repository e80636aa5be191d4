package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors for account operations.
var (
	ErrAccountHasHistory = errors.New("account is referenced by switch history")
)

const accountColumns = `id, name, tags_json, auth_ciphertext, auth_fingerprint, created_at, updated_at, last_used_at`

// CreateAccount inserts a new account and returns the stored row.
func (s *Store) CreateAccount(name string, tags []string, authCiphertext []byte, fingerprint string) (*Account, error) {
	tagsJSON, err := json.Marshal(normalizeTags(tags))
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO accounts (id, name, tags_json, auth_ciphertext, auth_fingerprint, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, string(tagsJSON), authCiphertext, fingerprint, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return s.GetAccount(id)
}

// GetAccount retrieves an account by ID, or nil when absent.
func (s *Store) GetAccount(id string) (*Account, error) {
	row := s.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// FindAccountByFingerprint returns the first account with the given
// fingerprint, or nil. Equal fingerprints represent the same credential.
func (s *Store) FindAccountByFingerprint(fingerprint string) (*Account, error) {
	row := s.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE auth_fingerprint = ? LIMIT 1`, fingerprint)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account by fingerprint: %w", err)
	}
	return account, nil
}

// ListAccounts returns all accounts, most recently updated first.
func (s *Store) ListAccounts() ([]Account, error) {
	rows, err := s.db.Query(`SELECT ` + accountColumns + ` FROM accounts ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// UpdateAccountMeta updates name and tags. Returns true if a row was updated.
func (s *Store) UpdateAccountMeta(id, name string, tags []string) (bool, error) {
	tagsJSON, err := json.Marshal(normalizeTags(tags))
	if err != nil {
		return false, fmt.Errorf("marshal tags: %w", err)
	}
	res, err := s.db.Exec(
		`UPDATE accounts SET name = ?, tags_json = ?, updated_at = ? WHERE id = ?`,
		name, string(tagsJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("update account: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkAccountUsed stamps last_used_at, called on every successful switch.
func (s *Store) MarkAccountUsed(id string) error {
	now := time.Now().UTC()
	if _, err := s.db.Exec(
		`UPDATE accounts SET last_used_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	); err != nil {
		return fmt.Errorf("mark account used: %w", err)
	}
	return nil
}

// DeleteAccount deletes an account. History rows pointing at it as a switch
// target block the delete (restrict); quota snapshots cascade; history rows
// naming it as a source keep the row with from_account_id nulled.
func (s *Store) DeleteAccount(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		var sqliteErr *sqlite.Error
		// SQLite raises an ON DELETE RESTRICT violation through its internal
		// foreign-key trigger, so it surfaces as SQLITE_CONSTRAINT_TRIGGER
		// rather than SQLITE_CONSTRAINT_FOREIGNKEY.
		if errors.As(err, &sqliteErr) && (sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
			sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_TRIGGER) {
			return false, ErrAccountHasHistory
		}
		return false, fmt.Errorf("delete account: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		a        Account
		tagsJSON string
		lastUsed sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Name, &tagsJSON, &a.AuthCiphertext, &a.AuthFingerprint,
		&a.CreatedAt, &a.UpdatedAt, &lastUsed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &a.Tags); err != nil {
		a.Tags = nil
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		a.LastUsedAt = &t
	}
	return &a, nil
}

// normalizeTags trims, drops empties, and de-duplicates preserving order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const historyColumns = `id, from_account_id, to_account_id, snapshot_path, result, error_message, created_at`

// CreateSwitchHistory appends one history row and returns its id.
func (s *Store) CreateSwitchHistory(fromAccountID *string, toAccountID *string, snapshotPath *string, result string, errorMessage *string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO switch_history (id, from_account_id, to_account_id, snapshot_path, result, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, fromAccountID, toAccountID, snapshotPath, result, errorMessage, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert switch history: %w", err)
	}
	return id, nil
}

// GetSwitchHistory retrieves a history row by ID, or nil when absent.
func (s *Store) GetSwitchHistory(id string) (*SwitchHistory, error) {
	row := s.db.QueryRow(`SELECT `+historyColumns+` FROM switch_history WHERE id = ?`, id)
	h, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get switch history: %w", err)
	}
	return h, nil
}

// ListSwitchHistory returns the newest rows first.
func (s *Store) ListSwitchHistory(limit int) ([]SwitchHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT `+historyColumns+` FROM switch_history ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list switch history: %w", err)
	}
	defer rows.Close()

	var history []SwitchHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan switch history: %w", err)
		}
		history = append(history, *h)
	}
	return history, rows.Err()
}

// CurrentAccountID infers the presumed current account from the most recent
// successful or rolled-back switch. Nil when no switch happened yet, or when
// the latest rollback restored a live file that matched no known account.
func (s *Store) CurrentAccountID() (*string, error) {
	var id sql.NullString
	err := s.db.QueryRow(
		`SELECT to_account_id FROM switch_history
		 WHERE result IN (?, ?)
		 ORDER BY created_at DESC, id LIMIT 1`,
		SwitchResultSuccess, SwitchResultRolledBack,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current account: %w", err)
	}
	if !id.Valid {
		return nil, nil
	}
	v := id.String
	return &v, nil
}

func scanHistory(row rowScanner) (*SwitchHistory, error) {
	var (
		h        SwitchHistory
		from     sql.NullString
		to       sql.NullString
		snapshot sql.NullString
		errMsg   sql.NullString
	)
	if err := row.Scan(&h.ID, &from, &to, &snapshot, &h.Result, &errMsg, &h.CreatedAt); err != nil {
		return nil, err
	}
	if from.Valid {
		v := from.String
		h.FromAccountID = &v
	}
	if to.Valid {
		v := to.String
		h.ToAccountID = &v
	}
	if snapshot.Valid {
		v := snapshot.String
		h.SnapshotPath = &v
	}
	if errMsg.Valid {
		v := errMsg.String
		h.ErrorMessage = &v
	}
	return &h, nil
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const quotaColumns = `id, account_id, mode, remaining_value, remaining_unit, quota_state, reset_at, source, confidence, reason, created_at`

// SaveQuotaSnapshot appends one snapshot row and returns the stored form.
func (s *Store) SaveQuotaSnapshot(snap *QuotaSnapshot) (*QuotaSnapshot, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO quota_snapshots
		 (id, account_id, mode, remaining_value, remaining_unit, quota_state, reset_at, source, confidence, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, snap.AccountID, snap.Mode, snap.RemainingValue, snap.RemainingUnit,
		snap.QuotaState, snap.ResetAt, snap.Source, snap.Confidence, snap.Reason, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert quota snapshot: %w", err)
	}
	return s.GetQuotaSnapshot(id)
}

// GetQuotaSnapshot retrieves a snapshot by ID, or nil when absent.
func (s *Store) GetQuotaSnapshot(id string) (*QuotaSnapshot, error) {
	row := s.db.QueryRow(`SELECT `+quotaColumns+` FROM quota_snapshots WHERE id = ?`, id)
	snap, err := scanQuotaSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quota snapshot: %w", err)
	}
	return snap, nil
}

// ListQuotaSnapshots returns an account's snapshots, newest first.
func (s *Store) ListQuotaSnapshots(accountID string, limit int) ([]QuotaSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT `+quotaColumns+` FROM quota_snapshots
		 WHERE account_id = ? ORDER BY created_at DESC, id LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list quota snapshots: %w", err)
	}
	defer rows.Close()
	return collectQuotaSnapshots(rows)
}

// LatestQuotaSnapshot returns the most recent snapshot for an account, or nil.
func (s *Store) LatestQuotaSnapshot(accountID string) (*QuotaSnapshot, error) {
	row := s.db.QueryRow(
		`SELECT `+quotaColumns+` FROM quota_snapshots
		 WHERE account_id = ? ORDER BY created_at DESC, id LIMIT 1`, accountID)
	snap, err := scanQuotaSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest quota snapshot: %w", err)
	}
	return snap, nil
}

// LatestQuotaSnapshots returns the newest snapshot per account.
func (s *Store) LatestQuotaSnapshots() (map[string]QuotaSnapshot, error) {
	rows, err := s.db.Query(
		`SELECT q.id, q.account_id, q.mode, q.remaining_value, q.remaining_unit, q.quota_state,
		        q.reset_at, q.source, q.confidence, q.reason, q.created_at
		 FROM quota_snapshots q
		 JOIN (
		   SELECT account_id, MAX(created_at) AS max_created_at
		   FROM quota_snapshots GROUP BY account_id
		 ) latest
		 ON q.account_id = latest.account_id AND q.created_at = latest.max_created_at`)
	if err != nil {
		return nil, fmt.Errorf("latest quota snapshots: %w", err)
	}
	defer rows.Close()

	snaps, err := collectQuotaSnapshots(rows)
	if err != nil {
		return nil, err
	}
	byAccount := make(map[string]QuotaSnapshot, len(snaps))
	for _, snap := range snaps {
		byAccount[snap.AccountID] = snap
	}
	return byAccount, nil
}

// PruneQuotaSnapshots deletes snapshots older than the cutoff and reports how
// many rows went away.
func (s *Store) PruneQuotaSnapshots(olderThan time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM quota_snapshots WHERE created_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune quota snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func collectQuotaSnapshots(rows *sql.Rows) ([]QuotaSnapshot, error) {
	var snaps []QuotaSnapshot
	for rows.Next() {
		snap, err := scanQuotaSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quota snapshot: %w", err)
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

func scanQuotaSnapshot(row rowScanner) (*QuotaSnapshot, error) {
	var (
		snap      QuotaSnapshot
		remaining sql.NullFloat64
		unit      sql.NullString
		reset     sql.NullTime
		reason    sql.NullString
	)
	if err := row.Scan(&snap.ID, &snap.AccountID, &snap.Mode, &remaining, &unit,
		&snap.QuotaState, &reset, &snap.Source, &snap.Confidence, &reason, &snap.CreatedAt); err != nil {
		return nil, err
	}
	if remaining.Valid {
		v := remaining.Float64
		snap.RemainingValue = &v
	}
	if unit.Valid {
		v := unit.String
		snap.RemainingUnit = &v
	}
	if reset.Valid {
		t := reset.Time
		snap.ResetAt = &t
	}
	if reason.Valid {
		v := reason.String
		snap.Reason = &v
	}
	return &snap, nil
}

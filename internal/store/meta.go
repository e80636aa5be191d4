package store

import (
	"database/sql"
	"fmt"
	"time"
)

const settingsSingletonID = 1

// GetVaultMeta returns the single vault_meta row, or nil before init.
func (s *Store) GetVaultMeta() (*VaultMeta, error) {
	var meta VaultMeta
	err := s.db.QueryRow(
		`SELECT kdf_salt, kdf_memory_kib, kdf_iterations, kdf_parallelism, verifier_ciphertext, created_at
		 FROM vault_meta WHERE id = ?`, settingsSingletonID,
	).Scan(&meta.KDFSalt, &meta.KDFMemoryKiB, &meta.KDFIterations, &meta.KDFParallelism,
		&meta.VerifierCiphertext, &meta.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vault meta: %w", err)
	}
	return &meta, nil
}

// SetVaultMeta writes the single vault_meta row. Fails if one already exists;
// a vault is initialized exactly once.
func (s *Store) SetVaultMeta(meta *VaultMeta) error {
	_, err := s.db.Exec(
		`INSERT INTO vault_meta (id, kdf_salt, kdf_memory_kib, kdf_iterations, kdf_parallelism, verifier_ciphertext, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		settingsSingletonID, meta.KDFSalt, meta.KDFMemoryKiB, meta.KDFIterations,
		meta.KDFParallelism, meta.VerifierCiphertext, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert vault meta: %w", err)
	}
	return nil
}

// GetQuotaPolicy returns the persisted refresh policy, or nil when the
// settings row has not been written yet.
func (s *Store) GetQuotaPolicy() (*QuotaPolicy, error) {
	var policy QuotaPolicy
	err := s.db.QueryRow(
		`SELECT probe_timeout_ms, probe_cache_ttl_s, probe_max_concurrency
		 FROM settings WHERE id = ?`, settingsSingletonID,
	).Scan(&policy.TimeoutMS, &policy.CacheTTLSec, &policy.MaxConcurrency)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quota policy: %w", err)
	}
	return &policy, nil
}

// SetQuotaPolicy upserts the refresh policy singleton.
func (s *Store) SetQuotaPolicy(policy *QuotaPolicy) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (id, probe_timeout_ms, probe_cache_ttl_s, probe_max_concurrency, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   probe_timeout_ms = excluded.probe_timeout_ms,
		   probe_cache_ttl_s = excluded.probe_cache_ttl_s,
		   probe_max_concurrency = excluded.probe_max_concurrency,
		   updated_at = excluded.updated_at`,
		settingsSingletonID, policy.TimeoutMS, policy.CacheTTLSec, policy.MaxConcurrency, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set quota policy: %w", err)
	}
	return nil
}

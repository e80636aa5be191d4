package store

import "time"

// Account is a registered credential. The auth plaintext only ever exists
// transiently; at rest it lives in AuthCiphertext under the vault key.
type Account struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Tags            []string   `json:"tags"`
	AuthCiphertext  []byte     `json:"-"`
	AuthFingerprint string     `json:"auth_fingerprint"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastUsedAt      *time.Time `json:"last_used_at"`
}

// Switch results.
const (
	SwitchResultSuccess    = "success"
	SwitchResultFailed     = "failed"
	SwitchResultRolledBack = "rolled_back"
)

// SwitchHistory is one append-only record of a live-file replacement.
// ToAccountID is null only on rollback rows whose origin switch came from an
// unknown live file.
type SwitchHistory struct {
	ID            string    `json:"id"`
	FromAccountID *string   `json:"from_account_id"`
	ToAccountID   *string   `json:"to_account_id"`
	SnapshotPath  *string   `json:"snapshot_path"`
	Result        string    `json:"result"`
	ErrorMessage  *string   `json:"error_message"`
	CreatedAt     time.Time `json:"created_at"`
}

// Quota snapshot modes.
const (
	QuotaModePrecise = "precise"
	QuotaModeStatus  = "status"
	QuotaModeUnknown = "unknown"
)

// Quota states.
const (
	QuotaStateAvailable = "available"
	QuotaStateNearLimit = "near_limit"
	QuotaStateExhausted = "exhausted"
	QuotaStateUnknown   = "unknown"
)

// QuotaSnapshot is one probe outcome for one account.
type QuotaSnapshot struct {
	ID             string     `json:"id"`
	AccountID      string     `json:"account_id"`
	Mode           string     `json:"mode"`
	RemainingValue *float64   `json:"remaining_value"`
	RemainingUnit  *string    `json:"remaining_unit"`
	QuotaState     string     `json:"quota_state"`
	ResetAt        *time.Time `json:"reset_at"`
	Source         string     `json:"source"`
	Confidence     int        `json:"confidence"`
	Reason         *string    `json:"reason"`
	CreatedAt      time.Time  `json:"created_at"`
}

// VaultMeta is the single-row KDF material for the vault.
type VaultMeta struct {
	KDFSalt            []byte
	KDFMemoryKiB       uint32
	KDFIterations      uint32
	KDFParallelism     uint8
	VerifierCiphertext []byte
	CreatedAt          time.Time
}

// QuotaPolicy is the persisted refresh policy.
type QuotaPolicy struct {
	TimeoutMS      int64 `json:"timeout_ms"`
	CacheTTLSec    int64 `json:"cache_ttl_seconds"`
	MaxConcurrency int64 `json:"max_concurrency"`
}

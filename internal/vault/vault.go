// Package vault guards the derived master key. A Manager moves between
// Uninitialized, Locked, and Unlocked; the key exists in memory only while
// Unlocked and is zeroized on every transition out.
package vault

import (
	"fmt"
	"sync"
	"time"

	"github.com/githubbzxs/codex-switch/internal/apperr"
	"github.com/githubbzxs/codex-switch/internal/config"
	"github.com/githubbzxs/codex-switch/internal/crypto"
	"github.com/githubbzxs/codex-switch/internal/store"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateLocked        State = "locked"
	StateUnlocked      State = "unlocked"
)

const (
	MinPasswordLen = 8

	// Unlock throttle: at most maxFailedAttempts failures per window.
	maxFailedAttempts = 5
	throttleWindow    = time.Minute

	// verifierPlaintext is the known value encrypted under the derived key at
	// init time; a successful decrypt proves the password.
	verifierPlaintext = "codex-switch-vault-verifier-v1"
)

// Manager is safe for concurrent use. State transitions and wrap/unwrap are
// mutually exclusive against one lock.
type Manager struct {
	mu       sync.Mutex
	storage  *store.Store
	kdf      config.KDFParams
	key      *crypto.Key
	failures []time.Time

	// idleLock > 0 locks the vault after that much inactivity; expiry is
	// applied lazily on the next access.
	idleLock time.Duration
	lastUsed time.Time

	now func() time.Time
}

func NewManager(storage *store.Store, kdf config.KDFParams) *Manager {
	return &Manager{storage: storage, kdf: kdf, now: time.Now}
}

// SetIdleLock configures the inactivity window after which the key is
// zeroized. Zero disables auto-locking.
func (m *Manager) SetIdleLock(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idleLock = d
}

// Status returns the current state without touching the key.
func (m *Manager) Status() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() (State, error) {
	m.expireIfIdleLocked()
	if m.key != nil {
		return StateUnlocked, nil
	}
	meta, err := m.storage.GetVaultMeta()
	if err != nil {
		return "", apperr.Wrap(apperr.KindStoreError, err, "read vault metadata")
	}
	if meta == nil {
		return StateUninitialized, nil
	}
	return StateLocked, nil
}

// Init creates the vault: derives a key from the password, persists salt,
// KDF params and verifier, and leaves the vault unlocked.
func (m *Manager) Init(password string) error {
	if len(password) < MinPasswordLen {
		return apperr.New(apperr.KindInvalidInput, "master password must be at least %d characters", MinPasswordLen)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.stateLocked()
	if err != nil {
		return err
	}
	if state != StateUninitialized {
		return apperr.New(apperr.KindInvalidInput, "vault already initialized")
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return apperr.Wrap(apperr.KindCryptoFailed, err, "generate salt")
	}
	key, err := crypto.DeriveKey(password, salt, crypto.KDFParams(m.kdf))
	if err != nil {
		return apperr.Wrap(apperr.KindCryptoFailed, err, "derive key")
	}
	verifier, err := crypto.Encrypt(key, []byte(verifierPlaintext), crypto.DomainVerifier)
	if err != nil {
		key.Zeroize()
		return apperr.Wrap(apperr.KindCryptoFailed, err, "encrypt verifier")
	}

	if err := m.storage.SetVaultMeta(&store.VaultMeta{
		KDFSalt:            salt,
		KDFMemoryKiB:       m.kdf.MemoryKiB,
		KDFIterations:      m.kdf.Iterations,
		KDFParallelism:     m.kdf.Parallelism,
		VerifierCiphertext: verifier,
	}); err != nil {
		key.Zeroize()
		return apperr.Wrap(apperr.KindStoreError, err, "persist vault metadata")
	}

	m.setKeyLocked(key)
	return nil
}

// Unlock re-derives the key and proves it against the verifier. Repeated
// failures inside the throttle window fail fast with Throttled.
func (m *Manager) Unlock(password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.stateLocked()
	if err != nil {
		return err
	}
	if state == StateUninitialized {
		return apperr.New(apperr.KindInvalidInput, "vault not initialized")
	}
	if state == StateUnlocked {
		return nil
	}

	if retryAfter, throttled := m.throttledLocked(); throttled {
		return apperr.Throttled(retryAfter)
	}

	meta, err := m.storage.GetVaultMeta()
	if err != nil {
		return apperr.Wrap(apperr.KindStoreError, err, "read vault metadata")
	}

	params := crypto.KDFParams{
		MemoryKiB:   meta.KDFMemoryKiB,
		Iterations:  meta.KDFIterations,
		Parallelism: meta.KDFParallelism,
	}
	key, err := crypto.DeriveKey(password, meta.KDFSalt, params)
	if err != nil {
		return apperr.Wrap(apperr.KindCryptoFailed, err, "derive key")
	}

	if _, err := crypto.Decrypt(key, meta.VerifierCiphertext, crypto.DomainVerifier); err != nil {
		key.Zeroize()
		m.failures = append(m.failures, m.now())
		return apperr.New(apperr.KindBadPassword, "master password verification failed")
	}

	m.failures = nil
	m.setKeyLocked(key)
	return nil
}

// Lock zeroizes the key. Locking an already-locked vault is a no-op; locking
// an uninitialized vault is an error.
func (m *Manager) Lock() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.stateLocked()
	if err != nil {
		return err
	}
	if state == StateUninitialized {
		return apperr.New(apperr.KindInvalidInput, "vault not initialized")
	}
	m.setKeyLocked(nil)
	return nil
}

// Wrap encrypts an auth plaintext under the session key.
func (m *Manager) Wrap(plaintext []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireIfIdleLocked()
	if m.key == nil {
		return nil, apperr.New(apperr.KindVaultLocked, "vault is locked")
	}
	m.lastUsed = m.now()
	ct, err := crypto.Encrypt(m.key, plaintext, crypto.DomainAuth)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCryptoFailed, err, "encrypt auth blob")
	}
	return ct, nil
}

// Unwrap decrypts a stored auth ciphertext under the session key.
func (m *Manager) Unwrap(ciphertext []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireIfIdleLocked()
	if m.key == nil {
		return nil, apperr.New(apperr.KindVaultLocked, "vault is locked")
	}
	m.lastUsed = m.now()
	plaintext, err := crypto.Decrypt(m.key, ciphertext, crypto.DomainAuth)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCryptoFailed, err, "decrypt auth blob")
	}
	return plaintext, nil
}

func (m *Manager) setKeyLocked(key *crypto.Key) {
	if m.key != nil {
		m.key.Zeroize()
	}
	m.key = key
	m.lastUsed = m.now()
}

func (m *Manager) expireIfIdleLocked() {
	if m.key == nil || m.idleLock <= 0 {
		return
	}
	if m.now().Sub(m.lastUsed) > m.idleLock {
		m.setKeyLocked(nil)
	}
}

// throttledLocked reports whether a new unlock attempt must be rejected, and
// if so for how long.
func (m *Manager) throttledLocked() (time.Duration, bool) {
	cutoff := m.now().Add(-throttleWindow)
	recent := m.failures[:0]
	for _, ts := range m.failures {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	m.failures = recent
	if len(recent) < maxFailedAttempts {
		return 0, false
	}
	return recent[0].Add(throttleWindow).Sub(m.now()), true
}

func (m *Manager) String() string {
	state, err := m.Status()
	if err != nil {
		return fmt.Sprintf("vault(error: %v)", err)
	}
	return fmt.Sprintf("vault(%s)", state)
}

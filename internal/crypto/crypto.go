// Package crypto provides the vault primitives: Argon2id key derivation,
// XChaCha20-Poly1305 authenticated encryption, and credential fingerprinting.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// ciphertextVersion is the first byte of every at-rest blob.
	ciphertextVersion = 1

	SaltLen = 16
	KeyLen  = 32

	// Domain tags bound as AEAD associated data, so a credential blob can
	// never be presented as the unlock verifier or vice versa.
	DomainAuth     = "auth"
	DomainVerifier = "verifier"
)

var ErrDecryptFailed = errors.New("decrypt failed")

// KDFParams are the Argon2id cost parameters persisted alongside the salt so
// future releases can re-derive keys for old vaults.
type KDFParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// Key is the derived vault key. Zeroize it when the session ends.
type Key [KeyLen]byte

// Zeroize overwrites the key material.
func (k *Key) Zeroize() {
	for i := range k {
		k[i] = 0
	}
}

// NewSalt returns a fresh random KDF salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey runs Argon2id over the master password.
func DeriveKey(password string, salt []byte, params KDFParams) (*Key, error) {
	if len(salt) < SaltLen {
		return nil, fmt.Errorf("salt too short: %d bytes", len(salt))
	}
	raw := argon2.IDKey([]byte(password), salt, params.Iterations, params.MemoryKiB, params.Parallelism, KeyLen)
	var key Key
	copy(key[:], raw)
	for i := range raw {
		raw[i] = 0
	}
	return &key, nil
}

// Encrypt seals plaintext under key with a fresh random 24-byte nonce.
// Output layout: version(1) || nonce(24) || aead output.
func Encrypt(key *Key, plaintext []byte, domain string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, 1+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, ciphertextVersion)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, []byte(domain)), nil
}

// Decrypt opens a blob produced by Encrypt. An authentication failure is a
// hard error, never silently substituted.
func Decrypt(key *Key, ciphertext []byte, domain string) ([]byte, error) {
	if len(ciphertext) < 1+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptFailed)
	}
	if ciphertext[0] != ciphertextVersion {
		return nil, fmt.Errorf("%w: unsupported ciphertext version %d", ErrDecryptFailed, ciphertext[0])
	}

	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := ciphertext[1 : 1+chacha20poly1305.NonceSizeX]
	ct := ciphertext[1+chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ct, []byte(domain))
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// Fingerprint hashes the canonical form of an auth JSON document and returns
// the first 8 bytes hex-encoded. Two documents that differ only in key order
// or whitespace share a fingerprint.
func Fingerprint(authJSON []byte) (string, error) {
	canonical, err := CanonicalJSON(authJSON)
	if err != nil {
		return "", fmt.Errorf("canonicalize auth json: %w", err)
	}
	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:8]), nil
}

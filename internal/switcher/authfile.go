// Package switcher owns every mutation of the live auth file: snapshotting,
// atomic replacement, rollback, and the import flows that bring credentials
// into the vault.
package switcher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuthDocument is the parsed live auth file. The schema is treated as opaque
// beyond the fields needed for token extraction and naming.
type AuthDocument struct {
	raw []byte
	val map[string]any
}

// ParseAuthDocument validates that data is a JSON object carrying a
// non-empty access token.
func ParseAuthDocument(data []byte) (*AuthDocument, error) {
	var val map[string]any
	if err := json.Unmarshal(data, &val); err != nil {
		return nil, fmt.Errorf("auth file is not valid JSON: %w", err)
	}
	doc := &AuthDocument{raw: data, val: val}
	if doc.AccessToken() == "" {
		return nil, fmt.Errorf("auth file carries no access token")
	}
	return doc, nil
}

// Raw returns the exact file bytes; the live file is always written
// byte-for-byte, never re-marshaled.
func (d *AuthDocument) Raw() []byte { return d.raw }

// AccessToken returns tokens.access_token, falling back to a top-level
// access_token field.
func (d *AuthDocument) AccessToken() string {
	if tokens, ok := d.val["tokens"].(map[string]any); ok {
		if token := stringField(tokens, "access_token"); token != "" {
			return token
		}
	}
	return stringField(d.val, "access_token")
}

// AccountID returns the upstream account id when present.
func (d *AuthDocument) AccountID() string {
	if tokens, ok := d.val["tokens"].(map[string]any); ok {
		if id := stringField(tokens, "account_id"); id != "" {
			return id
		}
	}
	return stringField(d.val, "account_id")
}

// Email returns the account email when present.
func (d *AuthDocument) Email() string {
	return stringField(d.val, "email")
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return strings.TrimSpace(v)
}

// resolveName picks an account name: the caller's choice, then the document's
// email, then its account id, then "Account-<fingerprint[:8]>".
func resolveName(requested string, doc *AuthDocument, fingerprint string) string {
	if name := strings.TrimSpace(requested); name != "" {
		return name
	}
	if email := doc.Email(); email != "" {
		return email
	}
	if id := doc.AccountID(); id != "" {
		return id
	}
	return "Account-" + fingerprint[:8]
}

// atomicWrite replaces path with content via a temp file in the same
// directory, fsynced before the rename. On rename failure the target is
// untouched.
func atomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".auth-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// snapshotName builds `<ISO8601>-<6 hex>.json`. Colons never appear, so the
// name is valid on every OS.
func snapshotName(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s-%s.json", now.UTC().Format("20060102T150405Z"), suffix)
}

// createSnapshot copies the live file byte-for-byte into dir. A missing live
// file yields ("", nil): there is nothing to snapshot.
func createSnapshot(authPath, dir string, now time.Time) (string, error) {
	content, err := os.ReadFile(authPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read live auth file: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create snapshots directory: %w", err)
	}

	path := filepath.Join(dir, snapshotName(now))
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

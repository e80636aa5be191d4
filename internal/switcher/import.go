package switcher

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/githubbzxs/codex-switch/internal/apperr"
	"github.com/githubbzxs/codex-switch/internal/crypto"
	"github.com/githubbzxs/codex-switch/internal/store"
)

const (
	// loginPollTimeout bounds how long we wait for the live file to change
	// after the login subprocess exits.
	loginPollTimeout  = 60 * time.Second
	loginPollInterval = 500 * time.Millisecond
)

// ImportCurrent imports the live auth file as a new account.
func (e *Engine) ImportCurrent(name string, tags []string) (*store.Account, error) {
	return e.ImportFromFile(e.authPath, name, tags)
}

// ImportFromFile imports an auth JSON document from an arbitrary path.
func (e *Engine) ImportFromFile(path, name string, tags []string) (*store.Account, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "auth file path must not be empty")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "read auth file %s", path)
	}
	doc, err := ParseAuthDocument(content)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, err, "validate auth file %s", path)
	}
	return e.importDocument(doc, name, tags, "")
}

// ImportViaLogin spawns the CLI's login flow, waits for the live file to be
// rewritten, then imports the fresh credential. Logging in again with the
// account that was already live is rejected.
func (e *Engine) ImportViaLogin(ctx context.Context, name string, tags []string, loginTimeout time.Duration) (*store.Account, error) {
	previous, previousFingerprint, previousToken := e.readCurrentAuth()

	secrets := []string{previousToken}
	if err := e.cli.Login(ctx, loginTimeout, secrets); err != nil {
		return nil, err
	}

	doc, err := e.waitForAuthChange(ctx, previous)
	if err != nil {
		return nil, err
	}
	return e.importDocument(doc, name, tags, previousFingerprint)
}

func (e *Engine) readCurrentAuth() (content []byte, fingerprint, token string) {
	content, err := os.ReadFile(e.authPath)
	if err != nil {
		return nil, "", ""
	}
	doc, err := ParseAuthDocument(content)
	if err != nil {
		return content, "", ""
	}
	fp, err := crypto.Fingerprint(content)
	if err != nil {
		return content, "", doc.AccessToken()
	}
	return content, fp, doc.AccessToken()
}

// waitForAuthChange polls the live file until its modification produces a
// document different from the pre-login content.
func (e *Engine) waitForAuthChange(ctx context.Context, previous []byte) (*AuthDocument, error) {
	deadline := time.Now().Add(loginPollTimeout)
	for {
		content, err := os.ReadFile(e.authPath)
		if err == nil && (previous == nil || string(content) != string(previous)) {
			if doc, err := ParseAuthDocument(content); err == nil {
				return doc, nil
			}
		}

		if time.Now().After(deadline) {
			return nil, apperr.New(apperr.KindLoginFailed,
				"login finished but %s was not updated within %s", e.authPath, loginPollTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, apperr.Wrap(apperr.KindLoginFailed, ctx.Err(), "waiting for login to update %s", e.authPath)
		case <-time.After(loginPollInterval):
		}
	}
}

// importDocument fingerprints, encrypts, and stores one auth document.
func (e *Engine) importDocument(doc *AuthDocument, name string, tags []string, previousFingerprint string) (*store.Account, error) {
	fingerprint, err := crypto.Fingerprint(doc.Raw())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, err, "fingerprint credential")
	}

	if previousFingerprint != "" && previousFingerprint == fingerprint {
		return nil, apperr.New(apperr.KindDuplicate,
			"login finished with the account that was already active; switch accounts in the browser and retry")
	}

	existing, err := e.store.FindAccountByFingerprint(fingerprint)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "check for duplicate credential")
	}
	if existing != nil {
		return nil, apperr.New(apperr.KindDuplicate, "credential already imported as %q", existing.Name)
	}

	ciphertext, err := e.vault.Wrap(doc.Raw())
	if err != nil {
		return nil, err
	}

	account, err := e.store.CreateAccount(resolveName(name, doc, fingerprint), tags, ciphertext, fingerprint)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "store account")
	}
	log.Infof("imported account %s (%s)", account.ID, account.Name)
	return account, nil
}

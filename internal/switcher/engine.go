package switcher

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/githubbzxs/codex-switch/internal/apperr"
	"github.com/githubbzxs/codex-switch/internal/cliproc"
	"github.com/githubbzxs/codex-switch/internal/logx"
	"github.com/githubbzxs/codex-switch/internal/store"
	"github.com/githubbzxs/codex-switch/internal/vault"
)

var log = logx.Scoped("switch")

// Engine serializes every mutation of the live auth file behind one mutex:
// at any moment at most one switch or rollback is in progress.
type Engine struct {
	mu           sync.Mutex
	store        *store.Store
	vault        *vault.Manager
	cli          *cliproc.Adapter
	authPath     string
	snapshotsDir string
	killGrace    time.Duration

	now func() time.Time
}

func NewEngine(s *store.Store, v *vault.Manager, cli *cliproc.Adapter, authPath, snapshotsDir string, killGrace time.Duration) *Engine {
	return &Engine{
		store:        s,
		vault:        v,
		cli:          cli,
		authPath:     authPath,
		snapshotsDir: snapshotsDir,
		killGrace:    killGrace,
		now:          time.Now,
	}
}

// AuthPath returns the live auth file path the engine manages.
func (e *Engine) AuthPath() string { return e.authPath }

// Result reports one completed switch or rollback.
type Result struct {
	HistoryID    string  `json:"history_id"`
	SnapshotPath *string `json:"snapshot_path"`
	Killed       int     `json:"killed"`
}

// Switch replaces the live auth file with the decrypted credential of
// accountID. The write happens before any process is killed, so the new
// content is ready when the CLI restarts.
func (e *Engine) Switch(ctx context.Context, accountID string, forceRestart bool) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	account, err := e.store.GetAccount(accountID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "load account")
	}
	if account == nil {
		return nil, apperr.New(apperr.KindNotFound, "account %s not found", accountID)
	}

	plaintext, err := e.vault.Unwrap(account.AuthCiphertext)
	if err != nil {
		return nil, err
	}
	doc, err := ParseAuthDocument(plaintext)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCryptoFailed, err, "stored credential is corrupt")
	}

	fromAccountID, err := e.store.CurrentAccountID()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "infer current account")
	}

	snapshotPath, err := createSnapshot(e.authPath, e.snapshotsDir, e.now())
	if err != nil {
		return nil, e.recordFailure(fromAccountID, &account.ID, nil, err)
	}
	var snapshotRef *string
	if snapshotPath != "" {
		snapshotRef = &snapshotPath
	}

	// From here to the rename the operation is atomic: cancellation is not
	// honored and the snapshot is kept for diagnostics on failure.
	if err := atomicWrite(e.authPath, doc.Raw()); err != nil {
		return nil, e.recordFailure(fromAccountID, &account.ID, snapshotRef, err)
	}

	killed := 0
	if forceRestart {
		killed = e.terminateCLI(ctx)
	}

	// Store failures past this point surface as StoreError with the live
	// file ALREADY replaced: the write succeeded, only the bookkeeping is
	// missing. Callers must not assume the live file is untouched.
	if err := e.store.MarkAccountUsed(account.ID); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "live file switched, but update last_used_at failed")
	}
	historyID, err := e.store.CreateSwitchHistory(fromAccountID, &account.ID, snapshotRef, store.SwitchResultSuccess, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "live file switched, but recording switch history failed")
	}

	log.Infof("switched to account %s (killed %d codex processes)", account.ID, killed)
	return &Result{HistoryID: historyID, SnapshotPath: snapshotRef, Killed: killed}, nil
}

// Rollback restores the live file from the snapshot referenced by a history
// row. The referenced snapshot file is never deleted, so older rollbacks
// stay replayable.
func (e *Engine) Rollback(ctx context.Context, historyID string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	row, err := e.store.GetSwitchHistory(historyID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "load history row")
	}
	if row == nil {
		return nil, apperr.New(apperr.KindNotFound, "history entry %s not found", historyID)
	}
	if row.SnapshotPath == nil {
		return nil, apperr.New(apperr.KindNoSnapshot, "history entry %s has no snapshot to roll back to", historyID)
	}

	content, err := os.ReadFile(*row.SnapshotPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNoSnapshot, err, "snapshot file %s is unreadable", *row.SnapshotPath)
	}

	// Snapshot the current live file so this rollback is itself undoable.
	currentSnapshot, err := createSnapshot(e.authPath, e.snapshotsDir, e.now())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSwitchFailed, err, "snapshot live file before rollback")
	}
	var snapshotRef *string
	if currentSnapshot != "" {
		snapshotRef = &currentSnapshot
	}

	if err := atomicWrite(e.authPath, content); err != nil {
		return nil, apperr.Wrap(apperr.KindSwitchFailed, err, "restore live file")
	}

	historyID, err = e.store.CreateSwitchHistory(row.ToAccountID, row.FromAccountID, snapshotRef, store.SwitchResultRolledBack, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "record rollback history")
	}

	log.Infof("rolled back switch %s", row.ID)
	return &Result{HistoryID: historyID, SnapshotPath: snapshotRef}, nil
}

// recordFailure writes the failed history row and wraps the cause as
// SwitchFailed. The live file is guaranteed untouched.
func (e *Engine) recordFailure(from, to *string, snapshot *string, cause error) error {
	msg := cause.Error()
	if _, err := e.store.CreateSwitchHistory(from, to, snapshot, store.SwitchResultFailed, &msg); err != nil {
		log.Errorf("record failed switch: %v", err)
	}
	return apperr.Wrap(apperr.KindSwitchFailed, cause, "switch aborted, live file untouched")
}

// terminateCLI enumerates and kills codex processes. Kill failures degrade
// to a warning: the switch itself already succeeded.
func (e *Engine) terminateCLI(ctx context.Context) int {
	pids, err := e.cli.EnumerateProcesses(ctx)
	if err != nil {
		log.Warnf("enumerate codex processes: %v", err)
		return 0
	}
	killed, err := e.cli.TerminateProcesses(ctx, pids, e.killGrace)
	if err != nil {
		log.Warnf("terminate codex processes: %v", err)
	}
	return killed
}

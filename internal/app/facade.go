package app

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/githubbzxs/codex-switch/internal/apperr"
	"github.com/githubbzxs/codex-switch/internal/store"
	"github.com/githubbzxs/codex-switch/internal/switcher"
	"github.com/githubbzxs/codex-switch/internal/vault"
)

// VaultStatus reports the vault state machine to the UI.
type VaultStatus struct {
	State    string `json:"state"`
	Unlocked bool   `json:"unlocked"`
}

func (a *Context) InitVault(password string) error {
	return a.Vault.Init(password)
}

func (a *Context) UnlockVault(password string) error {
	return a.Vault.Unlock(password)
}

func (a *Context) LockVault() error {
	return a.Vault.Lock()
}

func (a *Context) VaultStatus() (*VaultStatus, error) {
	state, err := a.Vault.Status()
	if err != nil {
		return nil, err
	}
	return &VaultStatus{State: string(state), Unlocked: state == vault.StateUnlocked}, nil
}

func (a *Context) ImportCurrent(name string, tags []string) (*store.Account, error) {
	return a.Switcher.ImportCurrent(name, tags)
}

func (a *Context) ImportFromFile(path, name string, tags []string) (*store.Account, error) {
	return a.Switcher.ImportFromFile(path, name, tags)
}

func (a *Context) ImportViaLogin(ctx context.Context, name string, tags []string) (*store.Account, error) {
	return a.Switcher.ImportViaLogin(ctx, name, tags, 0)
}

func (a *Context) ListAccounts() ([]store.Account, error) {
	accounts, err := a.Store.ListAccounts()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "list accounts")
	}
	return accounts, nil
}

func (a *Context) UpdateAccountMeta(id, name string, tags []string) error {
	updated, err := a.Store.UpdateAccountMeta(id, name, tags)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreError, err, "update account")
	}
	if !updated {
		return apperr.New(apperr.KindNotFound, "account %s not found", id)
	}
	return nil
}

func (a *Context) DeleteAccount(id string) error {
	deleted, err := a.Store.DeleteAccount(id)
	if err == store.ErrAccountHasHistory {
		return apperr.New(apperr.KindInvalidInput,
			"account %s is referenced by switch history and cannot be deleted", id)
	}
	if err != nil {
		return apperr.Wrap(apperr.KindStoreError, err, "delete account")
	}
	if !deleted {
		return apperr.New(apperr.KindNotFound, "account %s not found", id)
	}
	return nil
}

func (a *Context) SwitchAccount(ctx context.Context, id string, forceRestart bool) (*switcher.Result, error) {
	return a.Switcher.Switch(ctx, id, forceRestart)
}

func (a *Context) Rollback(ctx context.Context, historyID string) (*switcher.Result, error) {
	return a.Switcher.Rollback(ctx, historyID)
}

func (a *Context) ListHistory(limit int) ([]store.SwitchHistory, error) {
	history, err := a.Store.ListSwitchHistory(limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "list history")
	}
	return history, nil
}

// RefreshQuota refreshes one account, or every account when id is empty.
func (a *Context) RefreshQuota(ctx context.Context, id string, force bool) ([]store.QuotaSnapshot, error) {
	if id != "" {
		snap, err := a.Prober.RefreshAccount(ctx, id, force)
		if err != nil {
			return nil, err
		}
		return []store.QuotaSnapshot{*snap}, nil
	}
	return a.Prober.RefreshAll(ctx, force)
}

// DashboardItem pairs an account with its latest known quota snapshot.
type DashboardItem struct {
	Account  store.Account        `json:"account"`
	Snapshot *store.QuotaSnapshot `json:"snapshot"`
}

// QuotaDashboard lists every account with its latest snapshot, ordered by
// quota state: available first, unknown last.
func (a *Context) QuotaDashboard() ([]DashboardItem, error) {
	accounts, err := a.Store.ListAccounts()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "list accounts")
	}
	latest, err := a.Store.LatestQuotaSnapshots()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "load latest snapshots")
	}

	items := make([]DashboardItem, 0, len(accounts))
	for _, account := range accounts {
		item := DashboardItem{Account: account}
		if snap, ok := latest[account.ID]; ok {
			item.Snapshot = &snap
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return stateRank(items[i].Snapshot) < stateRank(items[j].Snapshot)
	})
	return items, nil
}

func (a *Context) ListSnapshots(id string, limit int) ([]store.QuotaSnapshot, error) {
	snaps, err := a.Store.ListQuotaSnapshots(id, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "list snapshots")
	}
	return snaps, nil
}

// SetRefreshPolicy clamps, persists, and applies a new quota policy.
func (a *Context) SetRefreshPolicy(policy store.QuotaPolicy) error {
	policy.TimeoutMS = clamp(policy.TimeoutMS, 1000, 30_000)
	policy.CacheTTLSec = clamp(policy.CacheTTLSec, 30, 3600)
	policy.MaxConcurrency = clamp(policy.MaxConcurrency, 1, 8)

	if err := a.Store.SetQuotaPolicy(&policy); err != nil {
		return apperr.Wrap(apperr.KindStoreError, err, "persist quota policy")
	}
	a.Prober.UpdatePolicy(applyPolicy(a.Config.Probe, &policy))
	return nil
}

// RuntimeDiagnostics is the support bundle for the diagnostics panel.
type RuntimeDiagnostics struct {
	AuthPath       string `json:"auth_path"`
	AuthFileExists bool   `json:"auth_file_exists"`
	DataDir        string `json:"data_dir"`
	DBPath         string `json:"db_path"`
	SchemaVersion  int    `json:"schema_version"`
	ProcessCount   int    `json:"process_count"`
}

func (a *Context) RuntimeDiagnostics(ctx context.Context) (*RuntimeDiagnostics, error) {
	schemaVersion, err := a.Store.SchemaVersion()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "read schema version")
	}

	authPath := a.Switcher.AuthPath()
	_, statErr := os.Stat(authPath)

	processCount := 0
	if pids, err := a.Cli.EnumerateProcesses(ctx); err == nil {
		processCount = len(pids)
	}

	return &RuntimeDiagnostics{
		AuthPath:       authPath,
		AuthFileExists: statErr == nil,
		DataDir:        a.Config.DataDir,
		DBPath:         a.Config.DBPath(),
		SchemaVersion:  schemaVersion,
		ProcessCount:   processCount,
	}, nil
}

// CliStatus reports whether the codex CLI is running right now.
type CliStatus struct {
	Running      bool      `json:"running"`
	ProcessCount int       `json:"process_count"`
	CheckedAt    time.Time `json:"checked_at"`
}

func (a *Context) CliStatus(ctx context.Context) (*CliStatus, error) {
	pids, err := a.Cli.EnumerateProcesses(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "enumerate codex processes")
	}
	return &CliStatus{
		Running:      len(pids) > 0,
		ProcessCount: len(pids),
		CheckedAt:    time.Now().UTC(),
	}, nil
}

func stateRank(snap *store.QuotaSnapshot) int {
	if snap == nil {
		return 3
	}
	switch snap.QuotaState {
	case store.QuotaStateAvailable:
		return 0
	case store.QuotaStateNearLimit:
		return 1
	case store.QuotaStateExhausted:
		return 2
	default:
		return 3
	}
}

func clamp(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

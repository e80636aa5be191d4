package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/githubbzxs/codex-switch/internal/apperr"
	"github.com/githubbzxs/codex-switch/internal/cliproc"
	"github.com/githubbzxs/codex-switch/internal/config"
	"github.com/githubbzxs/codex-switch/internal/quota"
	"github.com/githubbzxs/codex-switch/internal/store"
	"github.com/githubbzxs/codex-switch/internal/switcher"
	"github.com/githubbzxs/codex-switch/internal/vault"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:  dir,
		VaultKDF: config.KDFParams{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1},
		Probe: config.ProbePolicy{
			Timeout:         time.Second,
			CacheTTL:        time.Minute,
			MaxConcurrency:  4,
			RemainingHeader: "X-Codex-Remaining",
			UnitHeader:      "X-Codex-Unit",
			ResetHeader:     "X-Codex-Reset-At",
		},
		Switch: config.SwitchPolicy{KillGrace: time.Second},
	}

	s, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	v := vault.NewManager(s, cfg.VaultKDF)
	cli := cliproc.NewAdapter()
	authPath := filepath.Join(dir, "codex", "auth.json")

	return &Context{
		Config:   cfg,
		Store:    s,
		Vault:    v,
		Cli:      cli,
		Switcher: switcher.NewEngine(s, v, cli, authPath, filepath.Join(dir, "snapshots"), cfg.Switch.KillGrace),
		Prober:   quota.NewProber(s, v, cfg.Probe),
	}
}

func seedAccount(t *testing.T, a *Context, name, token string) *store.Account {
	t.Helper()
	ciphertext, err := a.Vault.Wrap([]byte(`{"tokens":{"access_token":"` + token + `"}}`))
	require.NoError(t, err)
	account, err := a.Store.CreateAccount(name, nil, ciphertext, "fp-"+token)
	require.NoError(t, err)
	return account
}

func TestVaultFacade(t *testing.T) {
	a := newTestContext(t)

	status, err := a.VaultStatus()
	require.NoError(t, err)
	assert.Equal(t, "uninitialized", status.State)

	require.NoError(t, a.InitVault("hunter22!"))
	status, err = a.VaultStatus()
	require.NoError(t, err)
	assert.True(t, status.Unlocked)

	require.NoError(t, a.LockVault())
	require.NoError(t, a.UnlockVault("hunter22!"))
}

func TestUpdateAndDeleteAccount(t *testing.T) {
	a := newTestContext(t)
	require.NoError(t, a.InitVault("hunter22!"))
	account := seedAccount(t, a, "acc", "tok")

	require.NoError(t, a.UpdateAccountMeta(account.ID, "renamed", []string{"t"}))
	err := a.UpdateAccountMeta("missing", "x", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)

	require.NoError(t, a.DeleteAccount(account.ID))
	err = a.DeleteAccount(account.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}

func TestDeleteAccountBlockedByHistory(t *testing.T) {
	a := newTestContext(t)
	require.NoError(t, a.InitVault("hunter22!"))
	account := seedAccount(t, a, "acc", "tok")

	_, err := a.SwitchAccount(context.Background(), account.ID, false)
	require.NoError(t, err)

	err = a.DeleteAccount(account.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput), "got %v", err)
}

func TestQuotaDashboardOrdering(t *testing.T) {
	a := newTestContext(t)
	require.NoError(t, a.InitVault("hunter22!"))

	exhausted := seedAccount(t, a, "exhausted", "t1")
	available := seedAccount(t, a, "available", "t2")
	unprobed := seedAccount(t, a, "unprobed", "t3")

	_, err := a.Store.SaveQuotaSnapshot(&store.QuotaSnapshot{
		AccountID: exhausted.ID, Mode: store.QuotaModeStatus,
		QuotaState: store.QuotaStateExhausted, Source: "fallback-status", Confidence: 50,
	})
	require.NoError(t, err)
	remaining := 10.0
	_, err = a.Store.SaveQuotaSnapshot(&store.QuotaSnapshot{
		AccountID: available.ID, Mode: store.QuotaModePrecise, RemainingValue: &remaining,
		QuotaState: store.QuotaStateAvailable, Source: "primary-usage", Confidence: 90,
	})
	require.NoError(t, err)

	items, err := a.QuotaDashboard()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, available.ID, items[0].Account.ID)
	assert.Equal(t, exhausted.ID, items[1].Account.ID)
	assert.Equal(t, unprobed.ID, items[2].Account.ID)
	assert.Nil(t, items[2].Snapshot)
}

func TestSetRefreshPolicyClamps(t *testing.T) {
	a := newTestContext(t)

	require.NoError(t, a.SetRefreshPolicy(store.QuotaPolicy{
		TimeoutMS: 50, CacheTTLSec: 999999, MaxConcurrency: 0,
	}))

	persisted, err := a.Store.GetQuotaPolicy()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), persisted.TimeoutMS)
	assert.Equal(t, int64(3600), persisted.CacheTTLSec)
	assert.Equal(t, int64(1), persisted.MaxConcurrency)
}

func TestRuntimeDiagnostics(t *testing.T) {
	a := newTestContext(t)
	require.NoError(t, a.InitVault("hunter22!"))

	diag, err := a.RuntimeDiagnostics(context.Background())
	require.NoError(t, err)
	assert.False(t, diag.AuthFileExists)
	assert.Equal(t, a.Switcher.AuthPath(), diag.AuthPath)
	assert.Positive(t, diag.SchemaVersion)

	account := seedAccount(t, a, "acc", "tok")
	_, err = a.SwitchAccount(context.Background(), account.ID, false)
	require.NoError(t, err)

	diag, err = a.RuntimeDiagnostics(context.Background())
	require.NoError(t, err)
	assert.True(t, diag.AuthFileExists)
}

func TestListHistoryThroughFacade(t *testing.T) {
	a := newTestContext(t)
	require.NoError(t, a.InitVault("hunter22!"))
	account := seedAccount(t, a, "acc", "tok")

	res, err := a.SwitchAccount(context.Background(), account.ID, false)
	require.NoError(t, err)

	history, err := a.ListHistory(10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.HistoryID, history[0].ID)

	_, err = a.Rollback(context.Background(), res.HistoryID)
	assert.True(t, apperr.IsKind(err, apperr.KindNoSnapshot), "got %v", err)
}

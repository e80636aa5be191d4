package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/githubbzxs/codex-switch/internal/app"
	"github.com/githubbzxs/codex-switch/internal/cliproc"
	"github.com/githubbzxs/codex-switch/internal/config"
	"github.com/githubbzxs/codex-switch/internal/quota"
	"github.com/githubbzxs/codex-switch/internal/store"
	"github.com/githubbzxs/codex-switch/internal/switcher"
	"github.com/githubbzxs/codex-switch/internal/vault"
)

// newIntegrationApp wires the full stack against a temp directory and a stub
// usage endpoint, mirroring production construction in app.New.
func newIntegrationApp(t *testing.T, usage http.Handler) (*app.Context, string) {
	t.Helper()
	dir := t.TempDir()
	authPath := filepath.Join(dir, "codex", "auth.json")

	cfg := &config.Config{
		DataDir:  dir,
		VaultKDF: config.KDFParams{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1},
		Probe: config.ProbePolicy{
			Timeout: 2 * time.Second, CacheTTL: time.Minute, MaxConcurrency: 4,
			RemainingHeader: "X-Codex-Remaining", UnitHeader: "X-Codex-Unit", ResetHeader: "X-Codex-Reset-At",
		},
		Switch: config.SwitchPolicy{KillGrace: time.Second},
	}

	s, err := store.NewStore(filepath.Join(dir, "codex-switch.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	usageSrv := httptest.NewServer(usage)
	t.Cleanup(usageSrv.Close)

	v := vault.NewManager(s, cfg.VaultKDF)
	cli := cliproc.NewAdapter()
	return &app.Context{
		Config:   cfg,
		Store:    s,
		Vault:    v,
		Cli:      cli,
		Switcher: switcher.NewEngine(s, v, cli, authPath, cfg.SnapshotsDir(), cfg.Switch.KillGrace),
		Prober:   quota.NewProberWithHosts(s, v, cfg.Probe, usageSrv.URL, "http://127.0.0.1:1"),
	}, authPath
}

// TestFullLifecycle drives the whole core through the facade: vault init,
// two imports, switch, rollback, quota refresh, diagnostics.
func TestFullLifecycle(t *testing.T) {
	usage := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Codex-Remaining", "42")
		w.Header().Set("X-Codex-Unit", "requests")
		w.WriteHeader(http.StatusOK)
	})
	a, authPath := newIntegrationApp(t, usage)
	ctx := context.Background()

	if err := a.InitVault("hunter22!"); err != nil {
		t.Fatalf("InitVault: %v", err)
	}

	writeAuth := func(token string) string {
		path := filepath.Join(t.TempDir(), "auth.json")
		content := []byte(`{"tokens":{"access_token":"` + token + `"}}`)
		if err := os.WriteFile(path, content, 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	accountA, err := a.ImportFromFile(writeAuth("token-a"), "A", nil)
	if err != nil {
		t.Fatalf("import A: %v", err)
	}
	accountB, err := a.ImportFromFile(writeAuth("token-b"), "B", nil)
	if err != nil {
		t.Fatalf("import B: %v", err)
	}

	if _, err := a.SwitchAccount(ctx, accountA.ID, false); err != nil {
		t.Fatalf("switch A: %v", err)
	}
	switchB, err := a.SwitchAccount(ctx, accountB.ID, false)
	if err != nil {
		t.Fatalf("switch B: %v", err)
	}

	liveB, err := os.ReadFile(authPath)
	if err != nil {
		t.Fatalf("read live file: %v", err)
	}
	docB, err := switcher.ParseAuthDocument(liveB)
	if err != nil {
		t.Fatalf("parse live file: %v", err)
	}
	if docB.AccessToken() != "token-b" {
		t.Fatalf("live token %q, want token-b", docB.AccessToken())
	}

	if _, err := a.Rollback(ctx, switchB.HistoryID); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	liveA, err := os.ReadFile(authPath)
	if err != nil {
		t.Fatalf("read live file: %v", err)
	}
	docA, err := switcher.ParseAuthDocument(liveA)
	if err != nil {
		t.Fatalf("parse live file: %v", err)
	}
	if docA.AccessToken() != "token-a" {
		t.Fatalf("live token after rollback %q, want token-a", docA.AccessToken())
	}

	snaps, err := a.RefreshQuota(ctx, "", true)
	if err != nil {
		t.Fatalf("refresh quota: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snaps))
	}
	for _, snap := range snaps {
		if snap.Mode != store.QuotaModePrecise || snap.RemainingValue == nil || *snap.RemainingValue != 42 {
			t.Fatalf("snapshot %+v", snap)
		}
	}

	dashboard, err := a.QuotaDashboard()
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(dashboard) != 2 || dashboard[0].Snapshot == nil {
		t.Fatalf("dashboard %+v", dashboard)
	}

	history, err := a.ListHistory(10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("got %d history rows, want 3", len(history))
	}

	diag, err := a.RuntimeDiagnostics(ctx)
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if !diag.AuthFileExists || diag.SchemaVersion == 0 {
		t.Fatalf("diagnostics %+v", diag)
	}
}

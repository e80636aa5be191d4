// Package app wires the subsystems into one application context and exposes
// the command facade the CLI and the daemon consume. The context is built
// once at startup and threaded through; there are no hidden globals.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/githubbzxs/codex-switch/internal/cliproc"
	"github.com/githubbzxs/codex-switch/internal/config"
	"github.com/githubbzxs/codex-switch/internal/logx"
	"github.com/githubbzxs/codex-switch/internal/quota"
	"github.com/githubbzxs/codex-switch/internal/store"
	"github.com/githubbzxs/codex-switch/internal/switcher"
	"github.com/githubbzxs/codex-switch/internal/vault"
)

var log = logx.Scoped("app")

// quotaSnapshotRetention bounds how long old snapshot rows are kept.
const quotaSnapshotRetention = 30 * 24 * time.Hour

// Context carries every subsystem. All fields are safe for concurrent use;
// the facade is re-entrant.
type Context struct {
	Config   *config.Config
	Store    *store.Store
	Vault    *vault.Manager
	Cli      *cliproc.Adapter
	Switcher *switcher.Engine
	Prober   *quota.Prober
}

// New builds the application context: data directories, store, vault,
// CLI adapter, switch engine, and prober. A quota policy persisted in the
// settings table overrides the configured probe defaults.
func New(cfg *config.Config) (*Context, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	s, err := store.NewStore(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	probePolicy := cfg.Probe
	if persisted, err := s.GetQuotaPolicy(); err != nil {
		s.Close()
		return nil, fmt.Errorf("read quota policy: %w", err)
	} else if persisted != nil {
		probePolicy = applyPolicy(probePolicy, persisted)
	}

	authPath, err := config.AuthFilePath()
	if err != nil {
		s.Close()
		return nil, err
	}

	v := vault.NewManager(s, cfg.VaultKDF)
	v.SetIdleLock(cfg.VaultIdleLock)
	cli := cliproc.NewAdapter()

	return &Context{
		Config:   cfg,
		Store:    s,
		Vault:    v,
		Cli:      cli,
		Switcher: switcher.NewEngine(s, v, cli, authPath, cfg.SnapshotsDir(), cfg.Switch.KillGrace),
		Prober:   quota.NewProber(s, v, probePolicy),
	}, nil
}

// Close locks the vault and releases the store.
func (a *Context) Close() error {
	if state, err := a.Vault.Status(); err == nil && state != vault.StateUninitialized {
		_ = a.Vault.Lock()
	}
	return a.Store.Close()
}

// PruneOldSnapshots drops quota snapshot rows past the retention window.
// Live-file snapshots on disk are never garbage-collected.
func (a *Context) PruneOldSnapshots() {
	pruned, err := a.Store.PruneQuotaSnapshots(time.Now().Add(-quotaSnapshotRetention))
	if err != nil {
		log.Warnf("prune quota snapshots: %v", err)
		return
	}
	if pruned > 0 {
		log.Infof("pruned %d quota snapshots older than %s", pruned, quotaSnapshotRetention)
	}
}

// applyPolicy maps persisted settings onto the configured probe policy.
func applyPolicy(base config.ProbePolicy, p *store.QuotaPolicy) config.ProbePolicy {
	base.Timeout = time.Duration(p.TimeoutMS) * time.Millisecond
	base.CacheTTL = time.Duration(p.CacheTTLSec) * time.Second
	base.MaxConcurrency = p.MaxConcurrency
	return base
}

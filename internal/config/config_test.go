package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CODEX_SWITCH_DATA_DIR", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Probe.Timeout != 8*time.Second {
		t.Errorf("probe timeout: got %s", cfg.Probe.Timeout)
	}
	if cfg.Probe.CacheTTL != 60*time.Second {
		t.Errorf("cache ttl: got %s", cfg.Probe.CacheTTL)
	}
	if cfg.Probe.MaxConcurrency != 4 {
		t.Errorf("max concurrency: got %d", cfg.Probe.MaxConcurrency)
	}
	if cfg.Probe.RemainingHeader != "X-Codex-Remaining" {
		t.Errorf("remaining header: got %q", cfg.Probe.RemainingHeader)
	}
	if cfg.Switch.KillGrace != 2*time.Second {
		t.Errorf("kill grace: got %s", cfg.Switch.KillGrace)
	}
	if cfg.VaultKDF.MemoryKiB != 64*1024 || cfg.VaultKDF.Iterations != 3 || cfg.VaultKDF.Parallelism != 1 {
		t.Errorf("kdf params: got %+v", cfg.VaultKDF)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CODEX_SWITCH_DATA_DIR", t.TempDir())
	t.Setenv("CODEX_SWITCH_PROBE_TIMEOUT_MS", "5000")
	t.Setenv("CODEX_SWITCH_PROBE_MAX_CONCURRENCY", "2")
	t.Setenv("CODEX_SWITCH_QUOTA_REMAINING_HEADER", "X-Alt-Remaining")
	t.Setenv("CODEX_SWITCH_FORCE_RESTART", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Probe.Timeout != 5*time.Second {
		t.Errorf("probe timeout: got %s", cfg.Probe.Timeout)
	}
	if cfg.Probe.MaxConcurrency != 2 {
		t.Errorf("max concurrency: got %d", cfg.Probe.MaxConcurrency)
	}
	if cfg.Probe.RemainingHeader != "X-Alt-Remaining" {
		t.Errorf("remaining header: got %q", cfg.Probe.RemainingHeader)
	}
	if !cfg.Switch.ForceRestartDefault {
		t.Error("force restart override lost")
	}
}

func TestLoadRejectsOutOfRange(t *testing.T) {
	t.Setenv("CODEX_SWITCH_DATA_DIR", t.TempDir())
	t.Setenv("CODEX_SWITCH_PROBE_TIMEOUT_MS", "50")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for 50ms probe timeout")
	}

	t.Setenv("CODEX_SWITCH_PROBE_TIMEOUT_MS", "")
	t.Setenv("CODEX_SWITCH_PROBE_MAX_CONCURRENCY", "99")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for concurrency 99")
	}

	t.Setenv("CODEX_SWITCH_PROBE_MAX_CONCURRENCY", "")
	t.Setenv("CODEX_SWITCH_FORCE_RESTART", "maybe")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for bogus boolean")
	}
}

func TestPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CODEX_SWITCH_DATA_DIR", dir)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != dir {
		t.Errorf("data dir: got %q", cfg.DataDir)
	}
	if got := cfg.DBPath(); got == "" || got == dir {
		t.Errorf("db path: got %q", got)
	}
}

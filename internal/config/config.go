// Package config holds the flat runtime configuration. Values come from
// environment variables (optionally seeded from a .env file) with validated
// defaults; the quota policy can additionally be overridden at runtime via
// the settings table.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// KDFParams are the Argon2id parameters used to derive the vault key.
type KDFParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// ProbePolicy bounds the quota prober.
type ProbePolicy struct {
	Timeout        time.Duration
	CacheTTL       time.Duration
	MaxConcurrency int64

	// Response header names are a compatibility contract that may drift
	// upstream, so they stay overridable.
	RemainingHeader string
	UnitHeader      string
	ResetHeader     string
}

// SwitchPolicy controls the switch engine.
type SwitchPolicy struct {
	ForceRestartDefault bool
	KillGrace           time.Duration
}

type Config struct {
	DataDir string

	VaultKDF KDFParams

	// VaultIdleLock re-locks an unlocked vault after this much inactivity.
	// Zero disables auto-locking.
	VaultIdleLock time.Duration

	Probe  ProbePolicy
	Switch SwitchPolicy
}

const (
	defaultProbeTimeout   = 8 * time.Second
	defaultProbeCacheTTL  = 60 * time.Second
	defaultProbeConc      = 4
	defaultKillGrace      = 2 * time.Second
	defaultRemainingHdr   = "X-Codex-Remaining"
	defaultUnitHdr        = "X-Codex-Unit"
	defaultResetHdr       = "X-Codex-Reset-At"
	defaultKDFMemoryKiB   = 64 * 1024
	defaultKDFIterations  = 3
	defaultKDFParallelism = 1
	defaultVaultIdleLock  = 15 * time.Minute
)

// Load builds the configuration from the environment. A .env file in the
// working directory is read first when present; real environment variables
// win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := strings.TrimSpace(os.Getenv("CODEX_SWITCH_DATA_DIR"))
	if dataDir == "" {
		var err error
		dataDir, err = DefaultDataDir()
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		DataDir: dataDir,
		VaultKDF: KDFParams{
			MemoryKiB:   defaultKDFMemoryKiB,
			Iterations:  defaultKDFIterations,
			Parallelism: defaultKDFParallelism,
		},
		Probe: ProbePolicy{
			Timeout:         defaultProbeTimeout,
			CacheTTL:        defaultProbeCacheTTL,
			MaxConcurrency:  defaultProbeConc,
			RemainingHeader: defaultRemainingHdr,
			UnitHeader:      defaultUnitHdr,
			ResetHeader:     defaultResetHdr,
		},
		VaultIdleLock: defaultVaultIdleLock,
		Switch: SwitchPolicy{
			ForceRestartDefault: false,
			KillGrace:           defaultKillGrace,
		},
	}

	var err error
	if cfg.Probe.Timeout, err = envDuration("CODEX_SWITCH_PROBE_TIMEOUT_MS", cfg.Probe.Timeout, time.Millisecond, time.Second, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Probe.CacheTTL, err = envDuration("CODEX_SWITCH_PROBE_CACHE_TTL_S", cfg.Probe.CacheTTL, time.Second, 30*time.Second, time.Hour); err != nil {
		return nil, err
	}
	if cfg.Probe.MaxConcurrency, err = envInt64("CODEX_SWITCH_PROBE_MAX_CONCURRENCY", cfg.Probe.MaxConcurrency, 1, 8); err != nil {
		return nil, err
	}
	if cfg.Switch.KillGrace, err = envDuration("CODEX_SWITCH_KILL_GRACE_MS", cfg.Switch.KillGrace, time.Millisecond, 100*time.Millisecond, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Switch.ForceRestartDefault, err = envBool("CODEX_SWITCH_FORCE_RESTART", cfg.Switch.ForceRestartDefault); err != nil {
		return nil, err
	}
	if cfg.VaultIdleLock, err = envDuration("CODEX_SWITCH_VAULT_IDLE_LOCK_S", cfg.VaultIdleLock, time.Second, 0, 24*time.Hour); err != nil {
		return nil, err
	}

	if v := strings.TrimSpace(os.Getenv("CODEX_SWITCH_QUOTA_REMAINING_HEADER")); v != "" {
		cfg.Probe.RemainingHeader = v
	}
	if v := strings.TrimSpace(os.Getenv("CODEX_SWITCH_QUOTA_UNIT_HEADER")); v != "" {
		cfg.Probe.UnitHeader = v
	}
	if v := strings.TrimSpace(os.Getenv("CODEX_SWITCH_QUOTA_RESET_HEADER")); v != "" {
		cfg.Probe.ResetHeader = v
	}

	return cfg, nil
}

// DefaultDataDir returns the per-OS application data directory.
func DefaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			return "", fmt.Errorf("LOCALAPPDATA is not set")
		}
		return filepath.Join(base, "codex-switch"), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "codex-switch"), nil
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate home directory: %w", err)
		}
		return filepath.Join(home, ".local", "share", "codex-switch"), nil
	}
}

// AuthFilePath returns the live auth file the codex CLI reads.
func AuthFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".codex", "auth.json"), nil
}

func (c *Config) DBPath() string       { return filepath.Join(c.DataDir, "codex-switch.db") }
func (c *Config) SnapshotsDir() string { return filepath.Join(c.DataDir, "snapshots") }

func envDuration(name string, def, unit, min, max time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	d := time.Duration(n) * unit
	if d < min || d > max {
		return 0, fmt.Errorf("%s must be between %s and %s", name, min, max)
	}
	return d, nil
}

func envInt64(name string, def, min, max int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s must be between %d and %d", name, min, max)
	}
	return n, nil
}

func envBool(name string, def bool) (bool, error) {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return def, nil
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s must be one of true/false/1/0/yes/no/on/off", name)
	}
}

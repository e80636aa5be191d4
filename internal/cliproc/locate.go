// Package cliproc adapts the codex CLI as an opaque collaborator: it finds
// the binary, drives its login subcommand, and enumerates or terminates its
// processes. It never parses the CLI's interactive output.
package cliproc

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/githubbzxs/codex-switch/internal/apperr"
	"github.com/githubbzxs/codex-switch/internal/logx"
)

var log = logx.Scoped("cliproc")

// entryNames are every way the codex CLI shows up as an executable name.
var entryNames = map[string]bool{
	"codex":     true,
	"codex.exe": true,
	"codex.cmd": true,
	"codex.ps1": true,
	"codex.bat": true,
}

const versionProbeTimeout = 10 * time.Second

// Adapter locates and drives the codex CLI. The located path is cached for
// the lifetime of the adapter (one session).
type Adapter struct {
	mu     sync.Mutex
	cached string

	// overridable in tests
	candidates   func() []string
	probeVersion func(ctx context.Context, path string) error
}

func NewAdapter() *Adapter {
	return &Adapter{
		candidates:   candidatePaths,
		probeVersion: probeVersion,
	}
}

// Locate returns the first candidate whose `--version` invocation succeeds.
// The result is cached; a CliNotFound error lists every probed path.
func (a *Adapter) Locate(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != "" {
		return a.cached, nil
	}

	probed := a.candidates()
	for _, path := range probed {
		if err := a.probeVersion(ctx, path); err != nil {
			log.Debugf("candidate %s rejected: %v", path, err)
			continue
		}
		a.cached = path
		log.Debugf("located codex CLI at %s", path)
		return path, nil
	}

	return "", apperr.New(apperr.KindCliNotFound,
		"no usable codex CLI found; probed: %s", strings.Join(probed, ", "))
}

func probeVersion(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	return exec.CommandContext(ctx, path, "--version").Run()
}

func isEntryName(name string) bool {
	return entryNames[strings.ToLower(name)]
}

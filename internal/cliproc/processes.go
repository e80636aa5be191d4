package cliproc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/githubbzxs/codex-switch/internal/apperr"
)

// EnumerateProcesses returns the PIDs of running codex CLI processes. The
// host process and anything that looks like codex-switch itself are always
// excluded.
func (a *Adapter) EnumerateProcesses(ctx context.Context) ([]int32, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}

	selfPID := int32(os.Getpid())
	selfName := currentExeName()

	var pids []int32
	for _, p := range procs {
		if p.Pid == selfPID {
			continue
		}
		name, _ := p.NameWithContext(ctx)
		exe, _ := p.ExeWithContext(ctx)
		argv, _ := p.CmdlineSliceWithContext(ctx)
		if isCodexProcess(name, exe, argv, selfName) {
			pids = append(pids, p.Pid)
		}
	}
	return pids, nil
}

// TerminateProcesses sends a graceful terminate to every pid and escalates
// to a hard kill for survivors after the grace period. Only the given set is
// touched. The returned count is the number of processes that went away.
func (a *Adapter) TerminateProcesses(ctx context.Context, pids []int32, grace time.Duration) (int, error) {
	if len(pids) == 0 {
		return 0, nil
	}
	if grace <= 0 {
		grace = 2 * time.Second
	}

	var targets []*process.Process
	for _, pid := range pids {
		p, err := process.NewProcessWithContext(ctx, pid)
		if err != nil {
			continue // already gone
		}
		if err := p.TerminateWithContext(ctx); err != nil {
			log.Debugf("terminate pid %d: %v", pid, err)
		}
		targets = append(targets, p)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if countRunning(ctx, targets) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	var firstErr error
	killed := 0
	for _, p := range targets {
		running, _ := p.IsRunningWithContext(ctx)
		if !running {
			killed++
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			if running, _ := p.IsRunningWithContext(ctx); running {
				if firstErr == nil {
					firstErr = apperr.Wrap(apperr.KindKillFailed, err, "kill pid %d", p.Pid)
				}
				continue
			}
		}
		killed++
	}
	return killed, firstErr
}

// isCodexProcess decides whether a process belongs to the codex CLI.
// Matching order: the process is never codex-switch itself; then the exe
// basename or argv[0] basename being a codex entry name is a match. A match
// on the process name alone is rejected when the exe is known and foreign;
// otherwise it is accepted when the argument vector is empty and, when the
// vector is present, needs one argument whose basename is a codex entry,
// which filters out unrelated tools that merely share the basename.
func isCodexProcess(name, exePath string, argv []string, selfName string) bool {
	procName := normalizeBasename(name)
	exeName := normalizeBasename(exePath)
	var argv0 string
	if len(argv) > 0 {
		argv0 = normalizeBasename(argv[0])
	}

	if isSwitchName(procName) || isSwitchName(exeName) || isSwitchName(argv0) {
		return false
	}
	if selfName != "" && (procName == selfName || exeName == selfName) {
		return false
	}

	if isEntryName(exeName) || isEntryName(argv0) {
		return true
	}
	if isEntryName(procName) {
		// Name-only evidence: demand a codex token in the argument vector.
		if exeName != "" && !isEntryName(exeName) {
			return false
		}
		if len(argv) == 0 {
			return true
		}
		for _, arg := range argv {
			if isEntryName(normalizeBasename(arg)) {
				return true
			}
		}
		return false
	}
	return false
}

func isSwitchName(name string) bool {
	return strings.Contains(name, "codex-switch") || strings.Contains(name, "codex_switch")
}

func normalizeBasename(raw string) string {
	trimmed := strings.Trim(strings.TrimSpace(raw), `"`)
	if trimmed == "" {
		return ""
	}
	// Windows paths use backslashes; split on them on every host.
	trimmed = strings.ReplaceAll(trimmed, `\`, "/")
	return strings.ToLower(filepath.Base(trimmed))
}

func currentExeName() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return strings.ToLower(filepath.Base(exe))
}

func countRunning(ctx context.Context, procs []*process.Process) int {
	n := 0
	for _, p := range procs {
		if running, _ := p.IsRunningWithContext(ctx); running {
			n++
		}
	}
	return n
}

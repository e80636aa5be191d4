//go:build !windows

package cliproc

import (
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// candidatePaths returns codex CLI candidates in probe order: PATH first,
// then common install prefixes.
func candidatePaths() []string {
	var paths []string
	if found, err := exec.LookPath("codex"); err == nil {
		paths = append(paths, found)
	}

	prefixes := []string{
		"/usr/local/bin/codex",
		"/opt/homebrew/bin/codex",
	}
	if home, err := os.UserHomeDir(); err == nil {
		prefixes = append(prefixes,
			filepath.Join(home, ".local", "bin", "codex"),
			filepath.Join(home, ".npm-global", "bin", "codex"),
		)
	}
	for _, candidate := range prefixes {
		if isExecutable(candidate) {
			paths = append(paths, candidate)
		}
	}

	return dedupe(paths)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}

//go:build windows

package cliproc

import (
	"os"
	"path/filepath"
)

// candidatePaths returns codex CLI candidates in probe order: PATH lookups
// for every Windows entry flavor, then vendored copies beneath the global
// npm root.
func candidatePaths() []string {
	var paths []string
	for _, name := range []string{"codex.cmd", "codex.ps1", "codex.exe", "codex"} {
		paths = append(paths, findOnPath(name)...)
		// Bare names still resolve through exec.Command's own lookup.
		paths = append(paths, name)
	}

	if appData := os.Getenv("APPDATA"); appData != "" {
		npmRoot := filepath.Join(appData, "npm")
		paths = append(paths,
			filepath.Join(npmRoot, "codex.cmd"),
			filepath.Join(npmRoot, "codex.ps1"),
			filepath.Join(npmRoot, "node_modules", "@openai", "codex", "bin", "codex.exe"),
		)
	}

	return dedupe(paths)
}

func findOnPath(name string) []string {
	pathEnv := os.Getenv("PATH")
	if pathEnv == "" {
		return nil
	}
	var found []string
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			found = append(found, candidate)
		}
	}
	return found
}

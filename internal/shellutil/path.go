package shellutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading ~/ to the user's home directory. Ported from
// the teacher's util.ExpandHome; returns the path unchanged if it doesn't
// start with ~/ or if the home directory can't be determined.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, path[2:])
}

// ResolvePath expands ~, joins pathArg against cwd if relative, normalizes
// . and .., and resolves symlinks if the path exists on disk. If the path
// does not exist, the normalized (non-symlink-resolved) form is returned —
// security decisions on existing paths always go through the symlink-
// resolved form; decisions about paths that don't exist yet fall back to
// the normalized form, which is the best available answer.
func ResolvePath(pathArg, cwd string) string {
	expanded := ExpandHome(pathArg)
	abs := expanded
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(cwd, abs)
	}
	abs = filepath.Clean(abs)

	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

// IsInsideOrEqual reports whether pathB is equal to, or strictly nested
// inside, pathA. Both paths must already be normalized (e.g. via
// ResolvePath) — this is a pure prefix check, not a filesystem query.
func IsInsideOrEqual(pathA, pathB string) bool {
	a := filepath.Clean(pathA)
	b := filepath.Clean(pathB)
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(a, sep) {
		a += sep
	}
	return strings.HasPrefix(b+sep, a)
}

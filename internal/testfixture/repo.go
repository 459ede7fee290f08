// Package testfixture provides the shared temp-git-repo test helper used
// across the orchestration packages, generalized from the single-purpose
// initTestRepo helper the teacher repo's git tests each rolled by hand.
package testfixture

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// InitRepo creates a fresh git repository in a new temp dir with one initial
// commit on its default branch, and returns the repo's absolute path.
func InitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run(t, dir, "init", "-b", "main")
	run(t, dir, "config", "user.email", "cat@example.com")
	run(t, dir, "config", "user.name", "CAT Test")

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0o644); err != nil {
		t.Fatalf("write README: %v", err)
	}
	run(t, dir, "add", ".")
	run(t, dir, "commit", "-m", "initial")

	return dir
}

// WriteIssue writes a minimal STATE.md (and, if plan is non-empty, PLAN.md)
// for qualifiedName under <repo>/.claude/cat/issues/<qualifiedName>/.
func WriteIssue(t *testing.T, repo, qualifiedName, state, plan string) string {
	t.Helper()
	dir := filepath.Join(repo, ".claude", "cat", "issues", qualifiedName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir issue dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "STATE.md"), []byte(state), 0o644); err != nil {
		t.Fatalf("write STATE.md: %v", err)
	}
	if plan != "" {
		if err := os.WriteFile(filepath.Join(dir, "PLAN.md"), []byte(plan), 0o644); err != nil {
			t.Fatalf("write PLAN.md: %v", err)
		}
	}
	return dir
}

func run(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

// StateMD builds a minimal STATE.md body for tests.
func StateMD(status string, deps []string, decomposedInto []string) string {
	s := "# State\n\n- **Status:** " + status + "\n- **Progress:** 0%\n- **Last Updated:** 2026-01-01\n"
	s += "- **Dependencies:** ["
	for i, d := range deps {
		if i > 0 {
			s += ", "
		}
		s += d
	}
	s += "]\n"
	if len(decomposedInto) > 0 {
		s += "\n## Decomposed Into\n\n"
		for _, d := range decomposedInto {
			s += "- " + d + "\n"
		}
	}
	return s
}

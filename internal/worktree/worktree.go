// Package worktree provisions a git worktree for a scheduled issue: branch
// creation, fork-point recording, overlay copy-in, STATE.md transition to
// in-progress, and a rough token-budget estimate for the agent that will
// work the issue. The branch/worktree mechanics follow the same
// `git worktree add` + gitignore-overlay shape as the teacher's
// internal/rig package; the fork-point and token-estimate pieces are new,
// grounded on spec.md §4.G.
package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cat-dev/cat/internal/issuestore"
	"github.com/cat-dev/cat/internal/procrun"
)

// ForkPointFile is the file, relative to the worktree root, where the
// provisioner records the commit the branch forked from. The amend-safe
// operator reads this back to know how far it may safely rewrite history.
const ForkPointFile = ".claude/cat/cat-branch-point"

// BaseTokenEstimate and the per-item weights below implement spec.md's
// documented token-estimate heuristic: base cost plus a per-planned-item
// surcharge, so a CLI caller can warn before launching an agent into a plan
// that's unlikely to fit its context budget.
const (
	BaseTokenEstimate       = 10000
	PerFileToCreateEstimate = 5000
	PerFileToModifyEstimate = 3000
	PerTestFileEstimate     = 4000
	PerExecutionStepEstimate = 2000
)

// Provisioned is the result of a successful Provision call.
type Provisioned struct {
	WorktreePath string
	Branch       string
	ForkPoint    string
	TokenEstimate int
}

// Exists reports whether a worktree already exists for branch, by checking
// `git worktree list` output. It matches the scheduler.WorktreeExists
// signature so callers can inject it without an import cycle.
func Exists(repoRoot, branch string) (string, bool) {
	out, err := procrun.RunGit(repoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		return "", false
	}
	var currentPath string
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			currentPath = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			if ref == "refs/heads/"+branch {
				return currentPath, true
			}
		}
	}
	return "", false
}

// Options controls where a worktree is created and what gets copied into it.
type Options struct {
	RepoRoot    string
	Branch      string // defaults to issue.BareName() if empty
	WorktreeDir string // base directory worktrees are created under; defaults to ../<repo-name>-worktrees
	OverlayDir  string // directory whose contents are copied in, defaults to <RepoRoot>/.claude/cat/overlay
}

// Provision creates a worktree for issue, records its fork point, copies in
// the overlay, and flips STATE.md to in-progress.
func Provision(opts Options, issue issuestore.Issue, plan issuestore.Plan) (Provisioned, error) {
	branch := opts.Branch
	if branch == "" {
		branch = issue.BareName()
	}

	worktreeBase := opts.WorktreeDir
	if worktreeBase == "" {
		worktreeBase = filepath.Join(filepath.Dir(opts.RepoRoot), filepath.Base(opts.RepoRoot)+"-worktrees")
	}
	worktreePath := filepath.Join(worktreeBase, branch)

	forkPoint, err := procrun.RunGitSingleLine(opts.RepoRoot, "rev-parse", "HEAD")
	if err != nil {
		return Provisioned{}, fmt.Errorf("resolving fork point: %w", err)
	}

	if err := os.MkdirAll(worktreeBase, 0o755); err != nil {
		return Provisioned{}, fmt.Errorf("creating worktree base dir: %w", err)
	}

	if branchExists(opts.RepoRoot, branch) {
		if err := cleanupStaleBranch(opts.RepoRoot, branch); err != nil {
			return Provisioned{}, fmt.Errorf("cleaning up stale branch %s: %w", branch, err)
		}
	}

	if _, err := procrun.RunGit(opts.RepoRoot, "worktree", "add", "-b", branch, worktreePath, "HEAD"); err != nil {
		return Provisioned{}, fmt.Errorf("creating worktree: %w", err)
	}

	verified, err := procrun.RunGitSingleLine(worktreePath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || verified != branch {
		return Provisioned{}, fmt.Errorf("worktree checkout verification failed: got branch %q, want %q", verified, branch)
	}

	if err := recordForkPoint(worktreePath, forkPoint); err != nil {
		return Provisioned{}, err
	}

	overlayDir := opts.OverlayDir
	if overlayDir == "" {
		overlayDir = filepath.Join(opts.RepoRoot, ".claude", "cat", "overlay")
	}
	if err := CopyOverlay(overlayDir, worktreePath); err != nil {
		return Provisioned{}, fmt.Errorf("copying overlay: %w", err)
	}

	if err := transitionToInProgress(issue); err != nil {
		return Provisioned{}, fmt.Errorf("updating STATE.md: %w", err)
	}

	return Provisioned{
		WorktreePath:  worktreePath,
		Branch:        branch,
		ForkPoint:     forkPoint,
		TokenEstimate: EstimateTokens(plan),
	}, nil
}

func branchExists(repoRoot, branch string) bool {
	_, err := procrun.RunGit(repoRoot, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// cleanupStaleBranch removes a leftover branch (and any worktree still
// registered against it) from a prior aborted run, so `worktree add -b`
// doesn't fail with "branch already exists".
func cleanupStaleBranch(repoRoot, branch string) error {
	out, err := procrun.RunGit(repoRoot, "worktree", "list", "--porcelain")
	if err == nil {
		var currentPath string
		for _, line := range strings.Split(out, "\n") {
			switch {
			case strings.HasPrefix(line, "worktree "):
				currentPath = strings.TrimPrefix(line, "worktree ")
			case strings.HasPrefix(line, "branch refs/heads/"+branch):
				procrun.RunGit(repoRoot, "worktree", "remove", "--force", currentPath) //nolint:errcheck
			}
		}
	}
	_, err = procrun.RunGit(repoRoot, "branch", "-D", branch)
	return err
}

func recordForkPoint(worktreePath, forkPoint string) error {
	path := filepath.Join(worktreePath, ForkPointFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating fork-point dir: %w", err)
	}
	return os.WriteFile(path, []byte(forkPoint+"\n"), 0o644)
}

// ReadForkPoint reads back the fork point recorded by Provision, used by
// gitsafety.AmendSafe to bound how far it may rewrite history.
func ReadForkPoint(worktreePath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(worktreePath, ForkPointFile))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func transitionToInProgress(issue issuestore.Issue) error {
	path := filepath.Join(issue.Path, "STATE.md")
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")
	replaced := false
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), "**status:**") {
			lines[i] = "- **Status:** in-progress"
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, "- **Status:** in-progress")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// EstimateTokens applies spec.md's documented heuristic: a fixed base cost
// plus a per-planned-item surcharge. It is deliberately crude — a rough
// budget check, not a tokenizer.
func EstimateTokens(plan issuestore.Plan) int {
	total := BaseTokenEstimate
	total += len(plan.FilesToCreate) * PerFileToCreateEstimate
	total += len(plan.FilesToModify) * PerFileToModifyEstimate
	for _, f := range plan.FilesToCreate {
		if isTestFile(f) {
			total += PerTestFileEstimate
		}
	}
	for _, f := range plan.FilesToModify {
		if isTestFile(f) {
			total += PerTestFileEstimate
		}
	}
	total += len(plan.ExecutionSteps) * PerExecutionStepEstimate
	return total
}

func isTestFile(path string) bool {
	base := filepath.Base(path)
	return strings.Contains(base, "_test.") || strings.Contains(base, ".test.") || strings.HasPrefix(base, "test_")
}

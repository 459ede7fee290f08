package safety

import (
	"fmt"

	"github.com/cat-dev/cat/internal/lockstore"
	"github.com/cat-dev/cat/internal/procrun"
)

// StaleLockCheck reports (and can fix) locks older than the store's stale
// threshold with no live owning session — the doctor-surface counterpart
// to lockstore.Store's own silent stale-lock reclaim on Acquire, for a
// human who wants to see the problem before it's reclaimed.
type StaleLockCheck struct {
	BaseCheck
	Store *lockstore.Store
}

// NewStaleLockCheck builds a StaleLockCheck against repoRoot's lock store.
func NewStaleLockCheck(repoRoot string) *StaleLockCheck {
	return &StaleLockCheck{
		BaseCheck: BaseCheck{CheckName: "stale-locks"},
		Store:     lockstore.New(repoRoot),
	}
}

// Run implements Check.
func (c *StaleLockCheck) Run(ctx *CheckContext) *CheckResult {
	entries, err := c.Store.List()
	if err != nil {
		return &CheckResult{Name: c.Name(), Category: CategoryLocks, Status: StatusError, Message: fmt.Sprintf("listing locks: %v", err)}
	}

	var stale []string
	for _, e := range entries {
		if e.Malformed {
			stale = append(stale, fmt.Sprintf("%s (malformed: %s)", e.IssueID, e.ParseError))
			continue
		}
		threshold := c.Store.StaleThreshold
		if threshold <= 0 {
			threshold = lockstore.DefaultStaleThreshold
		}
		if e.AgeSeconds >= threshold.Seconds() {
			stale = append(stale, fmt.Sprintf("%s (held by %s, age %.0fs)", e.IssueID, e.SessionID, e.AgeSeconds))
		}
	}

	if len(stale) == 0 {
		return &CheckResult{Name: c.Name(), Category: CategoryLocks, Status: StatusOK, Message: "no stale locks"}
	}
	return &CheckResult{
		Name:     c.Name(),
		Category: CategoryLocks,
		Status:   StatusWarn,
		Message:  fmt.Sprintf("%d stale lock(s) found", len(stale)),
		Details:  stale,
		FixHint:  "force-release stale locks",
	}
}

// Fix implements FixableCheck: force-releases every stale/malformed lock
// found by Run.
func (c *StaleLockCheck) Fix(ctx *CheckContext) error {
	entries, err := c.Store.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Malformed || e.AgeSeconds >= c.Store.StaleThreshold.Seconds() {
			if err := c.Store.ForceRelease(e.IssueID); err != nil {
				return fmt.Errorf("force-releasing %s: %w", e.IssueID, err)
			}
		}
	}
	return nil
}

var _ FixableCheck = (*StaleLockCheck)(nil)

// OrphanWorktreeCheck finds worktrees registered with git that no longer
// have a corresponding lock — left behind by a crashed or killed agent
// process after Provision succeeded but before the issue was ever locked
// to completion, or after a lock was force-released out from under an
// in-flight worktree.
type OrphanWorktreeCheck struct {
	BaseCheck
	Store *lockstore.Store
}

// NewOrphanWorktreeCheck builds an OrphanWorktreeCheck against repoRoot.
func NewOrphanWorktreeCheck(repoRoot string) *OrphanWorktreeCheck {
	return &OrphanWorktreeCheck{
		BaseCheck: BaseCheck{CheckName: "orphan-worktrees"},
		Store:     lockstore.New(repoRoot),
	}
}

// Run implements Check.
func (c *OrphanWorktreeCheck) Run(ctx *CheckContext) *CheckResult {
	out, err := procrun.RunGit(ctx.RepoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		return &CheckResult{Name: c.Name(), Category: CategoryWorktrees, Status: StatusError, Message: fmt.Sprintf("listing worktrees: %v", err)}
	}
	branches := parseWorktreeBranches(out)

	locks, err := c.Store.List()
	if err != nil {
		return &CheckResult{Name: c.Name(), Category: CategoryWorktrees, Status: StatusError, Message: fmt.Sprintf("listing locks: %v", err)}
	}
	lockedWorktrees := map[string]bool{}
	for _, l := range locks {
		for wt := range l.Worktrees {
			lockedWorktrees[wt] = true
		}
	}

	var orphans []string
	for path, branch := range branches {
		if branch == "main" || branch == "master" {
			continue
		}
		if !lockedWorktrees[path] {
			orphans = append(orphans, fmt.Sprintf("%s (branch %s)", path, branch))
		}
	}

	if len(orphans) == 0 {
		return &CheckResult{Name: c.Name(), Category: CategoryWorktrees, Status: StatusOK, Message: "no orphan worktrees"}
	}
	return &CheckResult{
		Name:     c.Name(),
		Category: CategoryWorktrees,
		Status:   StatusWarn,
		Message:  fmt.Sprintf("%d orphan worktree(s) found", len(orphans)),
		Details:  orphans,
		FixHint:  "remove orphan worktrees and their branches",
	}
}

// Fix implements FixableCheck.
func (c *OrphanWorktreeCheck) Fix(ctx *CheckContext) error {
	out, err := procrun.RunGit(ctx.RepoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		return err
	}
	branches := parseWorktreeBranches(out)

	locks, err := c.Store.List()
	if err != nil {
		return err
	}
	lockedWorktrees := map[string]bool{}
	for _, l := range locks {
		for wt := range l.Worktrees {
			lockedWorktrees[wt] = true
		}
	}

	for path, branch := range branches {
		if branch == "main" || branch == "master" || lockedWorktrees[path] {
			continue
		}
		if _, err := procrun.RunGit(ctx.RepoRoot, "worktree", "remove", "--force", path); err != nil {
			return fmt.Errorf("removing orphan worktree %s: %w", path, err)
		}
		if _, err := procrun.RunGit(ctx.RepoRoot, "branch", "-D", branch); err != nil {
			return fmt.Errorf("deleting orphan branch %s: %w", branch, err)
		}
	}
	return nil
}

var _ FixableCheck = (*OrphanWorktreeCheck)(nil)

func parseWorktreeBranches(porcelain string) map[string]string {
	branches := map[string]string{}
	var currentPath string
	for _, line := range splitLines(porcelain) {
		switch {
		case hasPrefix(line, "worktree "):
			currentPath = line[len("worktree "):]
		case hasPrefix(line, "branch refs/heads/"):
			branches[currentPath] = line[len("branch refs/heads/"):]
		}
	}
	return branches
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

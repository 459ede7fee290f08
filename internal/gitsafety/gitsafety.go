// Package gitsafety implements the three guarded git operations CAT exposes
// to agents instead of letting them shell out to raw git: amend-safe,
// rebase-safe, and merge-and-cleanup. Each is a small state machine built on
// internal/procrun, in the same shell-out-and-check-exit-code style the
// teacher repo's internal/git package uses for its own safe wrappers.
package gitsafety

import (
	"fmt"
	"strings"

	"github.com/cat-dev/cat/internal/procrun"
	"github.com/cat-dev/cat/internal/worktree"
)

// AmendOutcome tags the result of AmendSafe.
type AmendOutcome string

const (
	AmendApplied            AmendOutcome = "applied"
	AmendRefusedMultipleCommits AmendOutcome = "refused_multiple_commits"
	AmendRefusedDirtyIndex  AmendOutcome = "refused_dirty_index"
)

// AmendResult is the outcome of an AmendSafe call.
type AmendResult struct {
	Outcome AmendOutcome
	Detail  string
}

// AmendSafe amends the worktree's current HEAD commit only if exactly one
// commit has been made since the recorded fork point — amending any earlier
// commit would rewrite history another process might already be building
// on top of.
func AmendSafe(worktreePath string) (AmendResult, error) {
	forkPoint, err := worktree.ReadForkPoint(worktreePath)
	if err != nil {
		return AmendResult{}, fmt.Errorf("reading fork point: %w", err)
	}

	count, err := commitsSince(worktreePath, forkPoint)
	if err != nil {
		return AmendResult{}, err
	}
	if count > 1 {
		return AmendResult{Outcome: AmendRefusedMultipleCommits, Detail: fmt.Sprintf("%d commits since fork point, amend only safe with exactly 1", count)}, nil
	}
	if count == 0 {
		return AmendResult{Outcome: AmendRefusedMultipleCommits, Detail: "no commits since fork point to amend"}, nil
	}

	status, err := procrun.RunGit(worktreePath, "status", "--porcelain")
	if err != nil {
		return AmendResult{}, err
	}

	args := []string{"commit", "--amend", "--no-edit"}
	if strings.TrimSpace(status) == "" {
		// Nothing staged: amend metadata only (e.g. re-sign), still safe.
		args = append(args, "--allow-empty")
	}
	if _, err := procrun.RunGit(worktreePath, args...); err != nil {
		return AmendResult{}, fmt.Errorf("git commit --amend: %w", err)
	}

	return AmendResult{Outcome: AmendApplied}, nil
}

// RebaseOutcome tags the result of RebaseSafe.
type RebaseOutcome string

const (
	RebaseApplied            RebaseOutcome = "applied"
	RebaseRefusedWrongTarget RebaseOutcome = "refused_wrong_target"
	RebaseConflict           RebaseOutcome = "conflict"
)

// RebaseResult is the outcome of a RebaseSafe call.
type RebaseResult struct {
	Outcome RebaseOutcome
	Detail  string
}

// RebaseSafe rebases worktreePath's current branch onto onto, refusing if
// onto isn't an ancestor-reachable ref known to the repository (guarding
// against a typo'd or malicious rebase target), and aborting cleanly on
// conflict rather than leaving the worktree mid-rebase.
func RebaseSafe(worktreePath, onto string) (RebaseResult, error) {
	if _, err := procrun.RunGit(worktreePath, "rev-parse", "--verify", onto); err != nil {
		return RebaseResult{Outcome: RebaseRefusedWrongTarget, Detail: fmt.Sprintf("%s is not a known ref", onto)}, nil
	}

	res, err := procrun.RunGitAllowFail(worktreePath, "rebase", onto)
	if err != nil {
		return RebaseResult{}, fmt.Errorf("running rebase: %w", err)
	}
	if res.ExitCode == 0 {
		newForkPoint, err := procrun.RunGitSingleLine(worktreePath, "rev-parse", onto)
		if err == nil {
			_ = newForkPoint // not written back: worktree.ForkPointFile keeps the fork point recorded at provisioning
		}
		return RebaseResult{Outcome: RebaseApplied}, nil
	}

	// Non-zero exit: assume conflict, abort to leave a clean worktree.
	procrun.RunGit(worktreePath, "rebase", "--abort") //nolint:errcheck
	return RebaseResult{Outcome: RebaseConflict, Detail: strings.TrimSpace(string(res.Stderr))}, nil
}

// MergeOutcome tags the result of MergeAndCleanup.
type MergeOutcome string

const (
	MergeApplied          MergeOutcome = "applied"
	MergeConflict         MergeOutcome = "conflict"
	MergeRefusedDirty     MergeOutcome = "refused_dirty_worktree"
)

// MergeResult is the outcome of a MergeAndCleanup call.
type MergeResult struct {
	Outcome MergeOutcome
	Detail  string
}

// MergeAndCleanup merges branch into baseBranch (run from repoRoot, the main
// checkout, never from the worktree itself), and on success removes the
// worktree and deletes the branch. The merge is attempted with
// --no-ff so the issue's history stays visible in baseBranch's log.
func MergeAndCleanup(repoRoot, worktreePath, baseBranch, branch string) (MergeResult, error) {
	status, err := procrun.RunGit(worktreePath, "status", "--porcelain")
	if err != nil {
		return MergeResult{}, err
	}
	if strings.TrimSpace(status) != "" {
		return MergeResult{Outcome: MergeRefusedDirty, Detail: "worktree has uncommitted changes"}, nil
	}

	if _, err := procrun.RunGit(repoRoot, "checkout", baseBranch); err != nil {
		return MergeResult{}, fmt.Errorf("checking out %s: %w", baseBranch, err)
	}

	res, err := procrun.RunGitAllowFail(repoRoot, "merge", "--no-ff", "-m", fmt.Sprintf("Merge %s", branch), branch)
	if err != nil {
		return MergeResult{}, fmt.Errorf("running merge: %w", err)
	}
	if res.ExitCode != 0 {
		procrun.RunGit(repoRoot, "merge", "--abort") //nolint:errcheck
		return MergeResult{Outcome: MergeConflict, Detail: strings.TrimSpace(string(res.Stderr))}, nil
	}

	if _, err := procrun.RunGit(repoRoot, "worktree", "remove", "--force", worktreePath); err != nil {
		return MergeResult{}, fmt.Errorf("removing worktree: %w", err)
	}
	if _, err := procrun.RunGit(repoRoot, "branch", "-D", branch); err != nil {
		return MergeResult{}, fmt.Errorf("deleting branch: %w", err)
	}

	return MergeResult{Outcome: MergeApplied}, nil
}

// commitsSince counts commits reachable from HEAD but not from forkPoint.
func commitsSince(worktreePath, forkPoint string) (int, error) {
	out, err := procrun.RunGit(worktreePath, "rev-list", "--count", forkPoint+"..HEAD")
	if err != nil {
		return 0, fmt.Errorf("counting commits since fork point: %w", err)
	}
	var count int
	if _, err := fmt.Sscanf(out, "%d", &count); err != nil {
		return 0, fmt.Errorf("parsing commit count %q: %w", out, err)
	}
	return count, nil
}

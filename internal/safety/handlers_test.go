package safety

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cat-dev/cat/internal/hookenvelope"
	"github.com/cat-dev/cat/internal/lockstore"
	"github.com/stretchr/testify/require"
)

func bashEvent(t *testing.T, cwd, sessionID, command string) hookenvelope.Event {
	t.Helper()
	raw, err := json.Marshal(bashInput{Command: command})
	require.NoError(t, err)
	return hookenvelope.Event{
		HookEventName: "PreToolUse",
		SessionID:     sessionID,
		CWD:           cwd,
		ToolName:      "Bash",
		ToolInput:     raw,
	}
}

// setupLock acquires issueID for sessionID and records worktreePath ->
// agentID in its worktrees map, the same sequence work-prepare/work-update
// drive lockstore through in normal operation.
func setupLock(t *testing.T, repoRoot, issueID, sessionID, worktreePath, agentID string) {
	t.Helper()
	store := lockstore.New(repoRoot)
	_, _, err := store.Acquire(issueID, sessionID)
	require.NoError(t, err)
	require.NoError(t, store.Update(issueID, sessionID, worktreePath, agentID))
}

func TestUnsafeRemovalGuardBlocksCWD(t *testing.T) {
	cwd := t.TempDir()
	guard := UnsafeRemovalGuard{RepoRoot: cwd}

	v, err := guard.Handle(context.Background(), bashEvent(t, cwd, "s", "rm -rf ."))
	require.NoError(t, err)
	require.True(t, v.Block)
	require.Contains(t, v.Reason, "UNSAFE DIRECTORY REMOVAL BLOCKED")
	require.Contains(t, v.Reason, "CURRENT_WORKING_DIRECTORY")
}

func TestUnsafeRemovalGuardAllowsNonRecursiveRemoval(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cwd, "file.txt"), []byte("x"), 0o644))
	guard := UnsafeRemovalGuard{RepoRoot: cwd}

	v, err := guard.Handle(context.Background(), bashEvent(t, cwd, "s", "rm file.txt"))
	require.NoError(t, err)
	require.False(t, v.Block)
}

func TestUnsafeRemovalGuardBlocksMainWorktreeFromLinkedWorktree(t *testing.T) {
	mainRepo := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(mainRepo, ".git"), 0o755))

	linkedWorktree := t.TempDir()
	gitdirTarget := filepath.Join(mainRepo, ".git", "worktrees", "feature")
	require.NoError(t, os.WriteFile(filepath.Join(linkedWorktree, ".git"), []byte("gitdir: "+gitdirTarget+"\n"), 0o644))

	guard := UnsafeRemovalGuard{RepoRoot: mainRepo}
	v, err := guard.Handle(context.Background(), bashEvent(t, linkedWorktree, "s", "rm -rf "+mainRepo))
	require.NoError(t, err)
	require.True(t, v.Block)
	require.Contains(t, v.Reason, "MAIN_WORKTREE")
}

func TestUnsafeRemovalGuardBlocksOtherAgentsLockedWorktree(t *testing.T) {
	repoRoot := t.TempDir()
	otherWorktree := t.TempDir()
	setupLock(t, repoRoot, "2.1-other", "S2", otherWorktree, "S2/subagents/7")

	guard := UnsafeRemovalGuard{RepoRoot: repoRoot}
	cwd := t.TempDir()
	v, err := guard.Handle(context.Background(), bashEvent(t, cwd, "S1", "rm -rf "+otherWorktree))
	require.NoError(t, err)
	require.True(t, v.Block)
	require.Contains(t, v.Reason, "Worktree is locked by another agent")
	require.Contains(t, v.Reason, "Lock owner: S2/subagents/7")
	require.Contains(t, v.Reason, "CAT_AGENT_ID=<your-agent-id>")
}

func TestUnsafeRemovalGuardBlocksGitWorktreeRemoveOfLockedPath(t *testing.T) {
	repoRoot := t.TempDir()
	otherWorktree := t.TempDir()
	setupLock(t, repoRoot, "2.1-other", "S2", otherWorktree, "S2/subagents/7")

	guard := UnsafeRemovalGuard{RepoRoot: repoRoot}
	cwd := t.TempDir()
	v, err := guard.Handle(context.Background(), bashEvent(t, cwd, "S1", "git worktree remove --force "+otherWorktree))
	require.NoError(t, err)
	require.True(t, v.Block)
	require.Contains(t, v.Reason, "Lock owner: S2/subagents/7")
}

func TestUnsafeRemovalGuardUnknownAgentWhenSameSessionButNoAgentID(t *testing.T) {
	repoRoot := t.TempDir()
	own := t.TempDir()
	setupLock(t, repoRoot, "2.1-mine", "S1", own, "S1/subagents/9")

	guard := UnsafeRemovalGuard{RepoRoot: repoRoot}
	cwd := t.TempDir()
	v, err := guard.Handle(context.Background(), bashEvent(t, cwd, "S1", "rm -rf "+own))
	require.NoError(t, err)
	require.True(t, v.Block)
	require.Contains(t, v.Reason, "UNKNOWN_AGENT")
	require.Contains(t, v.Reason, "Lock owner: S1/subagents/9")
}

func TestUnsafeRemovalGuardAllowsMatchingAgentID(t *testing.T) {
	repoRoot := t.TempDir()
	own := t.TempDir()
	setupLock(t, repoRoot, "2.1-mine", "S1", own, "S1/subagents/9")

	guard := UnsafeRemovalGuard{RepoRoot: repoRoot}
	cwd := t.TempDir()
	command := "CAT_AGENT_ID=S1/subagents/9 rm -rf " + own
	v, err := guard.Handle(context.Background(), bashEvent(t, cwd, "S1", command))
	require.NoError(t, err)
	require.False(t, v.Block)
}

func TestUnsafeRemovalGuardIgnoresNonRemovalCommands(t *testing.T) {
	cwd := t.TempDir()
	guard := UnsafeRemovalGuard{RepoRoot: cwd}

	v, err := guard.Handle(context.Background(), bashEvent(t, cwd, "s", "ls -la"))
	require.NoError(t, err)
	require.False(t, v.Block)
}

func TestConcatenatedCommitDetectorWarnsOnMultipleCommits(t *testing.T) {
	d := ConcatenatedCommitDetector{}
	v, err := d.Handle(context.Background(), bashEvent(t, "/tmp", "s", "git commit -m a && git commit -m b"))
	require.NoError(t, err)
	require.True(t, v.Warn)
	require.False(t, v.Block)
}

func TestConcatenatedCommitDetectorSilentOnSingleCommit(t *testing.T) {
	d := ConcatenatedCommitDetector{}
	v, err := d.Handle(context.Background(), bashEvent(t, "/tmp", "s", "git commit -m a"))
	require.NoError(t, err)
	require.False(t, v.Warn)
}

func TestRebaseTargetValidatorBlocksRawRebase(t *testing.T) {
	v := RebaseTargetValidator{}
	res, err := v.Handle(context.Background(), bashEvent(t, "/tmp", "s", "git rebase main"))
	require.NoError(t, err)
	require.True(t, res.Block)
}

func TestRebaseTargetValidatorIgnoresOtherCommands(t *testing.T) {
	v := RebaseTargetValidator{}
	res, err := v.Handle(context.Background(), bashEvent(t, "/tmp", "s", "git status"))
	require.NoError(t, err)
	require.False(t, res.Block)
}

func writeEvent(t *testing.T, cwd, sessionID, filePath string) hookenvelope.Event {
	t.Helper()
	raw, err := json.Marshal(writeInput{FilePath: filePath})
	require.NoError(t, err)
	return hookenvelope.Event{
		HookEventName: "PreToolUse",
		SessionID:     sessionID,
		CWD:           cwd,
		ToolName:      "Write",
		ToolInput:     raw,
	}
}

func TestEnforceWorktreePathIsolationBlocksOutsideWorktree(t *testing.T) {
	repoRoot := t.TempDir()
	worktreePath := filepath.Join(repoRoot, "wt")
	require.NoError(t, os.MkdirAll(worktreePath, 0o755))
	setupLock(t, repoRoot, "2.1-x", "S1", worktreePath, "S1")

	h := EnforceWorktreePathIsolation{RepoRoot: repoRoot}
	outside := filepath.Join(repoRoot, "elsewhere", "file.go")
	v, err := h.Handle(context.Background(), writeEvent(t, worktreePath, "S1", outside))
	require.NoError(t, err)
	require.True(t, v.Block)
	require.Contains(t, v.Reason, worktreePath)
}

func TestEnforceWorktreePathIsolationAllowsInsideWorktree(t *testing.T) {
	repoRoot := t.TempDir()
	worktreePath := filepath.Join(repoRoot, "wt")
	require.NoError(t, os.MkdirAll(worktreePath, 0o755))
	setupLock(t, repoRoot, "2.1-x", "S1", worktreePath, "S1")

	h := EnforceWorktreePathIsolation{RepoRoot: repoRoot}
	inside := filepath.Join(worktreePath, "file.go")
	v, err := h.Handle(context.Background(), writeEvent(t, worktreePath, "S1", inside))
	require.NoError(t, err)
	require.False(t, v.Block)
}

func TestRestoreWorktreeOnResumeInjectsCd(t *testing.T) {
	repoRoot := t.TempDir()
	worktreePath := filepath.Join(repoRoot, "wt")
	require.NoError(t, os.MkdirAll(worktreePath, 0o755))
	setupLock(t, repoRoot, "2.1-x", "S1", worktreePath, "S1")

	h := RestoreWorktreeOnResume{RepoRoot: repoRoot}
	v, err := h.Handle(context.Background(), hookenvelope.Event{SessionID: "S1", Source: "resume"})
	require.NoError(t, err)
	require.True(t, strings.Contains(v.Context, worktreePath))
}

func TestRestoreWorktreeOnResumeIgnoresNonResume(t *testing.T) {
	repoRoot := t.TempDir()
	worktreePath := filepath.Join(repoRoot, "wt")
	require.NoError(t, os.MkdirAll(worktreePath, 0o755))
	setupLock(t, repoRoot, "2.1-x", "S1", worktreePath, "S1")

	h := RestoreWorktreeOnResume{RepoRoot: repoRoot}
	v, err := h.Handle(context.Background(), hookenvelope.Event{SessionID: "S1", Source: "startup"})
	require.NoError(t, err)
	require.Empty(t, v.Context)
}

func TestSessionRestorerContextOnce(t *testing.T) {
	repo := t.TempDir()
	r := SessionRestorer{RepoRoot: repo}

	v, err := r.Handle(context.Background(), hookenvelope.Event{SessionID: "s1"})
	require.NoError(t, err)
	require.NotEmpty(t, v.Context)

	v2, err := r.Handle(context.Background(), hookenvelope.Event{SessionID: "s1"})
	require.NoError(t, err)
	require.Empty(t, v2.Context)
}

package worktree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cat-dev/cat/internal/issuestore"
	"github.com/cat-dev/cat/internal/testfixture"
	"github.com/stretchr/testify/require"
)

func TestProvisionCreatesWorktreeAndForkPoint(t *testing.T) {
	repo := testfixture.InitRepo(t)
	dir := testfixture.WriteIssue(t, repo, "1-first", testfixture.StateMD("open", nil, nil), "")

	store := issuestore.New(repo)
	require.NoError(t, store.Load())
	issue, ok := store.Get("1-first")
	require.True(t, ok)
	_ = dir

	worktreeBase := t.TempDir()
	result, err := Provision(Options{RepoRoot: repo, WorktreeDir: worktreeBase}, issue, issuestore.Plan{})
	require.NoError(t, err)
	require.Equal(t, "first", result.Branch)
	require.DirExists(t, result.WorktreePath)

	forkPoint, err := ReadForkPoint(result.WorktreePath)
	require.NoError(t, err)
	require.Equal(t, result.ForkPoint, forkPoint)

	data, err := os.ReadFile(filepath.Join(issue.Path, "STATE.md"))
	require.NoError(t, err)
	require.Contains(t, string(data), "in-progress")
}

func TestExistsFindsProvisionedWorktree(t *testing.T) {
	repo := testfixture.InitRepo(t)
	testfixture.WriteIssue(t, repo, "1-first", testfixture.StateMD("open", nil, nil), "")

	store := issuestore.New(repo)
	require.NoError(t, store.Load())
	issue, _ := store.Get("1-first")

	worktreeBase := t.TempDir()
	result, err := Provision(Options{RepoRoot: repo, WorktreeDir: worktreeBase}, issue, issuestore.Plan{})
	require.NoError(t, err)

	path, found := Exists(repo, result.Branch)
	require.True(t, found)
	require.Equal(t, result.WorktreePath, path)

	_, found = Exists(repo, "no-such-branch")
	require.False(t, found)
}

func TestEstimateTokens(t *testing.T) {
	plan := issuestore.Plan{
		FilesToCreate:  []string{"a.go", "a_test.go"},
		FilesToModify:  []string{"b.go"},
		ExecutionSteps: []string{"one", "two"},
	}
	got := EstimateTokens(plan)
	want := BaseTokenEstimate + 2*PerFileToCreateEstimate + PerFileToModifyEstimate + PerTestFileEstimate + 2*PerExecutionStepEstimate
	require.Equal(t, want, got)
}

func TestCopyOverlayCopiesAndIgnores(t *testing.T) {
	overlay := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(overlay, "local.env"), []byte("SECRET=1\n"), 0o644))

	dest := t.TempDir()
	require.NoError(t, CopyOverlay(overlay, dest))

	data, err := os.ReadFile(filepath.Join(dest, "local.env"))
	require.NoError(t, err)
	require.Equal(t, "SECRET=1\n", string(data))

	gi, err := os.ReadFile(filepath.Join(dest, ".gitignore"))
	require.NoError(t, err)
	require.Contains(t, string(gi), "local.env")
}

func TestCopyOverlayMissingDirIsNotError(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, CopyOverlay(filepath.Join(dest, "does-not-exist"), dest))
}

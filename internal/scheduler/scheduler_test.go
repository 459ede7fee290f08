package scheduler

import (
	"testing"

	"github.com/cat-dev/cat/internal/testfixture"
	"github.com/stretchr/testify/require"
)

func TestSelectIssueFoundAndLocks(t *testing.T) {
	repo := testfixture.InitRepo(t)
	testfixture.WriteIssue(t, repo, "1-first", testfixture.StateMD("open", nil, nil), "")

	res := Select(Input{RepoRoot: repo, Scope: ScopeIssue, Target: "1-first", SessionID: "session-a"})
	found, ok := res.(Found)
	require.True(t, ok, "expected Found, got %#v", res)
	require.Equal(t, "1-first", found.IssueID)

	// A second session can't grab the same issue while it's locked.
	res2 := Select(Input{RepoRoot: repo, Scope: ScopeIssue, Target: "1-first", SessionID: "session-b"})
	locked, ok := res2.(Locked)
	require.True(t, ok, "expected Locked, got %#v", res2)
	require.Equal(t, "session-a", locked.Holder)
}

func TestSelectAlreadyComplete(t *testing.T) {
	repo := testfixture.InitRepo(t)
	testfixture.WriteIssue(t, repo, "1-done", testfixture.StateMD("closed", nil, nil), "")

	res := Select(Input{RepoRoot: repo, Scope: ScopeIssue, Target: "1-done", SessionID: "s"})
	_, ok := res.(AlreadyComplete)
	require.True(t, ok, "expected AlreadyComplete, got %#v", res)
}

func TestSelectBlocked(t *testing.T) {
	repo := testfixture.InitRepo(t)
	testfixture.WriteIssue(t, repo, "1-blocked", testfixture.StateMD("open", []string{"1-missing"}, nil), "")

	res := Select(Input{RepoRoot: repo, Scope: ScopeIssue, Target: "1-blocked", SessionID: "s"})
	blocked, ok := res.(Blocked)
	require.True(t, ok, "expected Blocked, got %#v", res)
	require.Len(t, blocked.BlockingIssues, 1)
}

func TestSelectBareNameAmbiguous(t *testing.T) {
	repo := testfixture.InitRepo(t)
	testfixture.WriteIssue(t, repo, "1.1-thing", testfixture.StateMD("open", nil, nil), "")
	testfixture.WriteIssue(t, repo, "1.2-thing", testfixture.StateMD("open", nil, nil), "")

	res := Select(Input{RepoRoot: repo, Scope: ScopeBareName, Target: "thing", SessionID: "s"})
	ne, ok := res.(NotExecutable)
	require.True(t, ok, "expected NotExecutable, got %#v", res)
	require.Equal(t, "ambiguous", ne.Reason)
}

func TestSelectAllOrdersByIdentity(t *testing.T) {
	repo := testfixture.InitRepo(t)
	testfixture.WriteIssue(t, repo, "2-second", testfixture.StateMD("open", nil, nil), "")
	testfixture.WriteIssue(t, repo, "1-first", testfixture.StateMD("open", nil, nil), "")

	res := Select(Input{RepoRoot: repo, Scope: ScopeAll, SessionID: "s"})
	found, ok := res.(Found)
	require.True(t, ok, "expected Found, got %#v", res)
	require.Equal(t, "1-first", found.IssueID)
}

func TestSelectAllSkipsCyclesAndReportsNotFound(t *testing.T) {
	repo := testfixture.InitRepo(t)
	testfixture.WriteIssue(t, repo, "2.1-b", testfixture.StateMD("open", []string{"2.1-c"}, nil), "")
	testfixture.WriteIssue(t, repo, "2.1-c", testfixture.StateMD("open", []string{"2.1-b"}, nil), "")

	res := Select(Input{RepoRoot: repo, Scope: ScopeAll, SessionID: "s"})
	nf, ok := res.(NotFound)
	require.True(t, ok, "expected NotFound, got %#v", res)
	require.Len(t, nf.CircularDependencies, 1)
}

func TestSelectAllExcludesGlob(t *testing.T) {
	repo := testfixture.InitRepo(t)
	testfixture.WriteIssue(t, repo, "1-skip-me", testfixture.StateMD("open", nil, nil), "")
	testfixture.WriteIssue(t, repo, "2-keep-me", testfixture.StateMD("open", nil, nil), "")

	res := Select(Input{RepoRoot: repo, Scope: ScopeAll, SessionID: "s", ExcludeGlob: "skip-*"})
	found, ok := res.(Found)
	require.True(t, ok, "expected Found, got %#v", res)
	require.Equal(t, "2-keep-me", found.IssueID)
}

func TestReleaseOnFailureReleasesLock(t *testing.T) {
	repo := testfixture.InitRepo(t)
	testfixture.WriteIssue(t, repo, "1-first", testfixture.StateMD("open", nil, nil), "")

	res := Select(Input{RepoRoot: repo, Scope: ScopeIssue, Target: "1-first", SessionID: "session-a"})
	found := res.(Found)

	require.NoError(t, ReleaseOnFailure(repo, found, "session-a"))

	res2 := Select(Input{RepoRoot: repo, Scope: ScopeIssue, Target: "1-first", SessionID: "session-b"})
	_, ok := res2.(Found)
	require.True(t, ok, "expected Found after release, got %#v", res2)
}

package depgraph

import (
	"testing"

	"github.com/cat-dev/cat/internal/issuestore"
	"github.com/cat-dev/cat/internal/testfixture"
	"github.com/stretchr/testify/require"
)

func TestCycleDetection(t *testing.T) {
	repo := testfixture.InitRepo(t)
	testfixture.WriteIssue(t, repo, "2.1-a", testfixture.StateMD("closed", nil, nil), "")
	testfixture.WriteIssue(t, repo, "2.1-b", testfixture.StateMD("open", []string{"2.1-c"}, nil), "")
	testfixture.WriteIssue(t, repo, "2.1-c", testfixture.StateMD("open", []string{"2.1-b"}, nil), "")

	store := issuestore.New(repo)
	require.NoError(t, store.Load())

	g := Build(store)
	cycles, err := g.Cycles(0)
	require.NoError(t, err)
	require.Equal(t, []string{"2.1-b -> 2.1-c -> 2.1-b"}, cycles)
}

func TestBlockedReporting(t *testing.T) {
	repo := testfixture.InitRepo(t)
	testfixture.WriteIssue(t, repo, "1-closed", testfixture.StateMD("closed", nil, nil), "")
	testfixture.WriteIssue(t, repo, "1-open-blocked", testfixture.StateMD("open", []string{"1-missing"}, nil), "")
	testfixture.WriteIssue(t, repo, "1-open-free", testfixture.StateMD("open", []string{"1-closed"}, nil), "")

	store := issuestore.New(repo)
	require.NoError(t, store.Load())

	g := Build(store)
	blocked := g.Blocked()

	require.Contains(t, blocked, "1-open-blocked")
	require.Equal(t, DepNotFound, blocked["1-open-blocked"][0].Status)
	require.NotContains(t, blocked, "1-open-free")
}

func TestImplicitDecomposedEdges(t *testing.T) {
	repo := testfixture.InitRepo(t)
	testfixture.WriteIssue(t, repo, "1-parent", testfixture.StateMD("decomposed", nil, []string{"1.1-sub-a"}), "")
	testfixture.WriteIssue(t, repo, "1.1-sub-a", testfixture.StateMD("open", nil, nil), "")

	store := issuestore.New(repo)
	require.NoError(t, store.Load())

	g := Build(store)
	// Decomposed edges exist regardless of parent status (here "decomposed").
	require.Contains(t, g.edges["1-parent"], "1.1-sub-a")
}

func TestCycleDepthExceeded(t *testing.T) {
	repo := testfixture.InitRepo(t)
	testfixture.WriteIssue(t, repo, "2.1-b", testfixture.StateMD("open", []string{"2.1-c"}, nil), "")
	testfixture.WriteIssue(t, repo, "2.1-c", testfixture.StateMD("open", []string{"2.1-b"}, nil), "")

	store := issuestore.New(repo)
	require.NoError(t, store.Load())

	g := Build(store)
	_, err := g.Cycles(1)
	require.Error(t, err)
}

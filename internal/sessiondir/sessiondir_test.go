package sessiondir

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSkillLoadedMarker(t *testing.T) {
	repo := t.TempDir()
	require.False(t, SkillLoaded(repo, "s1", "review"))
	require.NoError(t, MarkSkillLoaded(repo, "s1", "review"))
	require.True(t, SkillLoaded(repo, "s1", "review"))
}

func TestFailureCounterIncrementsAndResets(t *testing.T) {
	repo := t.TempDir()
	n, err := IncrementFailureCount(repo, "s1", "lint")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = IncrementFailureCount(repo, "s1", "lint")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, ResetFailureCount(repo, "s1", "lint"))
	n, err = IncrementFailureCount(repo, "s1", "lint")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestWarningEmittedMarker(t *testing.T) {
	repo := t.TempDir()
	require.False(t, WarningEmitted(repo, "s1", "low-disk"))
	require.NoError(t, MarkWarningEmitted(repo, "s1", "low-disk"))
	require.True(t, WarningEmitted(repo, "s1", "low-disk"))
}

func TestClearRemovesMarkersNotDir(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, MarkSkillLoaded(repo, "s1", "review"))
	require.NoError(t, Clear(repo, "s1"))
	require.False(t, SkillLoaded(repo, "s1", "review"))
	require.DirExists(t, filepath.Join(repo, ".claude", "cat", "sessions", "s1"))

	dir, err := Dir(repo, "s1")
	require.NoError(t, err)
	require.DirExists(t, dir)
}

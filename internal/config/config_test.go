package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, string(ProfileCareful), s.Profile)
	require.Equal(t, 4.0, s.StaleLockHours)
}

func TestLoadMergesRepoThenLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, RepoConfigFile), []byte(`{"profile":"balanced","excludeGlob":"wip-*"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, LocalConfigFile), []byte(`{"profile":"fast"}`), 0o644))

	s, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "fast", s.Profile)
	require.Equal(t, "wip-*", s.ExcludeGlob)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewSettings()
	require.NoError(t, ApplyProfile(s, ProfileBalanced))
	require.NoError(t, Save(dir, s))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "balanced", loaded.Profile)
	require.Equal(t, "sonnet", loaded.Agent.Args[len(loaded.Agent.Args)-1])
}

func TestApplyProfileInvalid(t *testing.T) {
	s := NewSettings()
	err := ApplyProfile(s, "nonsense")
	require.Error(t, err)
}

func TestCurrentProfileDetectsCustomAgent(t *testing.T) {
	s := NewSettings()
	s.Agent = &RuntimeConfig{Command: "my-custom-agent"}
	require.Equal(t, "", CurrentProfile(s))
}

func TestCurrentProfileInfersFromAgent(t *testing.T) {
	s := NewSettings()
	require.NoError(t, ApplyProfile(s, ProfileFast))
	require.Equal(t, "fast", CurrentProfile(s))
}

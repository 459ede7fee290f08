// Package hookregistry describes, in human-readable form, which lifecycle
// hooks CAT wires up and why. internal/cli/hook_dispatch.go's buildRegistry
// is the executable wiring; registry.toml (when a repo carries one) replaces
// the description that `cat hooks-list` prints, in the same shape as the
// teacher repo's hooks/registry.toml. buildRegistry does not read it, so its
// Enabled flags and descriptions do not change which handlers run.
package hookregistry

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Hook describes one registered lifecycle handler.
type Hook struct {
	Name        string `toml:"name"`
	Event       string `toml:"event"`
	Description string `toml:"description"`
	Enabled     bool   `toml:"enabled"`
}

// Registry is the parsed form of registry.toml.
type Registry struct {
	Hooks []Hook `toml:"hooks"`
}

// Default describes the handlers internal/cli.buildRegistry wires
// unconditionally. It's what Load falls back to when no registry.toml is
// present, and what a printed registry.toml should look like if a repo
// wants to start customizing it.
func Default() Registry {
	return Registry{Hooks: []Hook{
		{Name: "unsafe-removal-guard", Event: "PreToolUse", Description: "blocks rm/git-worktree-remove of the cwd, the main worktree, or another agent's locked worktree", Enabled: true},
		{Name: "rebase-target-validator", Event: "PreToolUse", Description: "blocks raw git rebase in favor of git-rebase-safe", Enabled: true},
		{Name: "enforce-worktree-path-isolation", Event: "PreToolUse", Description: "blocks Write/Edit targets outside the session's active worktree", Enabled: true},
		{Name: "concatenated-commit-detector", Event: "PostToolUse", Description: "warns when one Bash call chains multiple git commits", Enabled: true},
		{Name: "session-restorer", Event: "SessionStart", Description: "injects a one-time notice that the session's scratch state was initialized", Enabled: true},
		{Name: "restore-worktree-on-resume", Event: "SessionStart", Description: "injects a cd into the session's worktree when resuming", Enabled: true},
		{Name: "skill-marker-clearer", Event: "SessionEnd", Description: "clears a session's scratch markers", Enabled: true},
	}}
}

// Load reads path as TOML if it exists, otherwise returns Default().
func Load(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Registry{}, err
	}
	var reg Registry
	if err := toml.Unmarshal(data, &reg); err != nil {
		return Registry{}, err
	}
	return reg, nil
}

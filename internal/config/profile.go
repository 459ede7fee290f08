package config

import (
	"fmt"
	"strings"
)

// Profile selects which model variant CAT launches an agent with for a
// scheduled issue. Adapted from the teacher's per-role CostTier concept:
// CAT only ever runs one agent at a time per issue, so there's no
// role_agents map to manage — a single Profile picks the one agent preset.
type Profile string

const (
	// ProfileCareful uses the default (highest-quality) model, unmodified.
	ProfileCareful Profile = "careful"
	// ProfileBalanced trades some quality for speed/cost on routine issues.
	ProfileBalanced Profile = "balanced"
	// ProfileFast prioritizes throughput over quality, for low-risk issues.
	ProfileFast Profile = "fast"
)

// ValidProfiles returns every valid profile name.
func ValidProfiles() []string {
	return []string{string(ProfileCareful), string(ProfileBalanced), string(ProfileFast)}
}

// IsValidProfile reports whether name is a known profile.
func IsValidProfile(name string) bool {
	switch Profile(name) {
	case ProfileCareful, ProfileBalanced, ProfileFast:
		return true
	default:
		return false
	}
}

// ProfilePreset returns the RuntimeConfig a profile resolves to. Returns nil
// for an invalid profile.
func ProfilePreset(profile Profile) *RuntimeConfig {
	switch profile {
	case ProfileCareful:
		return &RuntimeConfig{Command: "claude", Args: []string{"--dangerously-skip-permissions"}}
	case ProfileBalanced:
		return &RuntimeConfig{Command: "claude", Args: []string{"--dangerously-skip-permissions", "--model", "sonnet"}}
	case ProfileFast:
		return &RuntimeConfig{Command: "claude", Args: []string{"--dangerously-skip-permissions", "--model", "haiku"}}
	default:
		return nil
	}
}

// ApplyProfile sets settings.Agent to profile's preset and records the
// profile name, so a later Load/Save round-trip preserves the choice.
func ApplyProfile(settings *Settings, profile Profile) error {
	preset := ProfilePreset(profile)
	if preset == nil {
		return fmt.Errorf("invalid profile: %q (valid: %s)", profile, strings.Join(ValidProfiles(), ", "))
	}
	settings.Agent = preset
	settings.Profile = string(profile)
	return nil
}

// CurrentProfile infers the active profile from settings.Agent's args,
// falling back to the declared Profile field, and returning "" for a
// custom agent configuration that matches no known preset.
func CurrentProfile(settings *Settings) string {
	if settings.Agent == nil {
		return settings.Profile
	}
	for _, name := range ValidProfiles() {
		preset := ProfilePreset(Profile(name))
		if argsEqual(settings.Agent.Args, preset.Args) && settings.Agent.Command == preset.Command {
			return name
		}
	}
	return ""
}

func argsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ProfileDescription returns a human-readable summary of what a profile
// changes.
func ProfileDescription(profile Profile) string {
	switch profile {
	case ProfileCareful:
		return "default model, no override (highest quality)"
	case ProfileBalanced:
		return "sonnet model (balanced quality/cost)"
	case ProfileFast:
		return "haiku model (fastest, lowest cost)"
	default:
		return "unknown profile"
	}
}

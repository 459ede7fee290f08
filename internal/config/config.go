// Package config implements CAT's three-tier JSON configuration: built-in
// defaults, repo settings in cat-config.json, and a gitignored per-checkout
// override in cat-config.local.json. Environment variables are not read.
// The merge order and "later tier wins, maps merge key-by-key" semantics
// follow the same layered-settings shape the teacher repo's own
// TownSettings loader uses for its town-wide/local JSON split.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RuntimeConfig describes how to invoke an agent process for a given
// profile: the command and its fixed argument list.
type RuntimeConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Settings is CAT's merged configuration.
type Settings struct {
	Profile        string                    `json:"profile,omitempty"`
	Agent          *RuntimeConfig            `json:"agent,omitempty"`
	ExcludeGlob    string                    `json:"excludeGlob,omitempty"`
	StaleLockHours float64                   `json:"staleLockHours,omitempty"`
	Agents         map[string]*RuntimeConfig `json:"agents,omitempty"`
}

// NewSettings returns the documented zero-value defaults.
func NewSettings() *Settings {
	return &Settings{
		Profile:        string(ProfileCareful),
		StaleLockHours: 4,
		Agents:         map[string]*RuntimeConfig{},
	}
}

const (
	RepoConfigFile  = "cat-config.json"
	LocalConfigFile = "cat-config.local.json"
)

// Load reads cat-config.json and cat-config.local.json (if present) from
// dir and merges them, local overriding repo field-by-field. Neither file
// existing is not an error — Load then returns the documented defaults.
func Load(dir string) (*Settings, error) {
	settings := NewSettings()

	if err := mergeFile(settings, filepath.Join(dir, RepoConfigFile)); err != nil {
		return nil, fmt.Errorf("loading %s: %w", RepoConfigFile, err)
	}
	if err := mergeFile(settings, filepath.Join(dir, LocalConfigFile)); err != nil {
		return nil, fmt.Errorf("loading %s: %w", LocalConfigFile, err)
	}

	return settings, nil
}

func mergeFile(settings *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var overlay Settings
	if err := json.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if overlay.Profile != "" {
		settings.Profile = overlay.Profile
	}
	if overlay.Agent != nil {
		settings.Agent = overlay.Agent
	}
	if overlay.ExcludeGlob != "" {
		settings.ExcludeGlob = overlay.ExcludeGlob
	}
	if overlay.StaleLockHours != 0 {
		settings.StaleLockHours = overlay.StaleLockHours
	}
	for name, rc := range overlay.Agents {
		if settings.Agents == nil {
			settings.Agents = map[string]*RuntimeConfig{}
		}
		settings.Agents[name] = rc
	}

	return nil
}

// Save writes settings to cat-config.json under dir, for `cat config set`
// style commands.
func Save(dir string, settings *Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	path := filepath.Join(dir, RepoConfigFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

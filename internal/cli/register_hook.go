package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// hookSettingsFile is the host tool's settings.json as a generic map. This
// command touches only its "hooks" entry: a map from event name to the list
// of hook commands registered for it. Unknown fields in the file are
// preserved by round-tripping through the map rather than a typed struct.
type hookSettingsFile map[string]any

var registerHookCmd = &cobra.Command{
	Use:   "register-hook <event-name>",
	Short: "register the cat hook binary for a lifecycle event in .claude/settings.json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := repoRootFlag(cmd)
		eventName := args[0]

		settingsPath := filepath.Join(repoRoot, ".claude", "settings.json")
		settings, err := readHookSettings(settingsPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", settingsPath, err)
		}

		hooks, _ := settings["hooks"].(map[string]any)
		if hooks == nil {
			hooks = map[string]any{}
		}

		entries, _ := hooks[eventName].([]any)
		command := map[string]any{
			"type":    "command",
			"command": "cat hook-dispatch " + eventName,
		}
		for _, e := range entries {
			if m, ok := e.(map[string]any); ok && m["command"] == command["command"] {
				return emitJSON(map[string]any{"type": "cat.register_hook.already_present", "event": eventName})
			}
		}
		entries = append(entries, map[string]any{"hooks": []any{command}})
		hooks[eventName] = entries
		settings["hooks"] = hooks

		if err := writeHookSettings(settingsPath, settings); err != nil {
			return fmt.Errorf("writing %s: %w", settingsPath, err)
		}

		return emitJSON(map[string]any{"type": "cat.register_hook.registered", "event": eventName})
	},
}

func readHookSettings(path string) (hookSettingsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return hookSettingsFile{}, nil
		}
		return nil, err
	}
	var settings hookSettingsFile
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func writeHookSettings(path string, settings hookSettingsFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func init() {
	rootCmd.AddCommand(registerHookCmd)
}

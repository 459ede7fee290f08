package cli

import (
	"path/filepath"

	"github.com/cat-dev/cat/internal/hookregistry"
	"github.com/spf13/cobra"
)

var hooksListCmd = &cobra.Command{
	Use:   "hooks-list",
	Short: "describe the lifecycle hooks cat wires up, and whether a repo's registry.toml overrides them",
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := repoRootFlag(cmd)
		reg, err := hookregistry.Load(filepath.Join(repoRoot, ".claude", "cat", "registry.toml"))
		if err != nil {
			return err
		}
		return emitJSON(map[string]any{"type": "cat.hooks_list", "hooks": reg.Hooks})
	},
}

func init() {
	rootCmd.AddCommand(hooksListCmd)
}

package cli

import (
	"fmt"

	"github.com/cat-dev/cat/internal/issuestore"
	"github.com/cat-dev/cat/internal/worktree"
	"github.com/spf13/cobra"
)

var existingWorkCheckerCmd = &cobra.Command{
	Use:   "existing-work-checker",
	Short: "report every issue that already has a worktree provisioned",
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := repoRootFlag(cmd)

		store := issuestore.New(repoRoot)
		if err := store.Load(); err != nil {
			return fmt.Errorf("loading issue tree: %w", err)
		}

		type entry struct {
			IssueID      string `json:"issueId"`
			WorktreePath string `json:"worktreePath"`
			Branch       string `json:"branch"`
		}
		var existing []entry

		for _, issue := range store.All() {
			if !issue.Executable() {
				continue
			}
			if path, ok := worktree.Exists(repoRoot, issue.BareName()); ok {
				existing = append(existing, entry{IssueID: issue.QualifiedName, WorktreePath: path, Branch: issue.BareName()})
			}
		}

		return emitJSON(map[string]any{"type": "cat.existing_work", "worktrees": existing})
	},
}

func init() {
	rootCmd.AddCommand(existingWorkCheckerCmd)
}

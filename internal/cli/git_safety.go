package cli

import (
	"github.com/cat-dev/cat/internal/gitsafety"
	"github.com/spf13/cobra"
)

var gitAmendSafeCmd = &cobra.Command{
	Use:   "git-amend-safe <worktree-path>",
	Short: "amend HEAD only if it's the single commit since this worktree's fork point",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := gitsafety.AmendSafe(args[0])
		if err != nil {
			return err
		}
		return emitJSON(map[string]any{"type": "cat.git.amend_safe", "outcome": res.Outcome, "detail": res.Detail})
	},
}

var gitRebaseSafeCmd = &cobra.Command{
	Use:   "git-rebase-safe <worktree-path> <onto>",
	Short: "rebase onto a ref, aborting cleanly on conflict",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := gitsafety.RebaseSafe(args[0], args[1])
		if err != nil {
			return err
		}
		return emitJSON(map[string]any{"type": "cat.git.rebase_safe", "outcome": res.Outcome, "detail": res.Detail})
	},
}

var mergeAndCleanupCmd = &cobra.Command{
	Use:   "merge-and-cleanup <repo-root> <worktree-path> <base-branch> <branch>",
	Short: "merge an issue branch back into base and remove its worktree",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := gitsafety.MergeAndCleanup(args[0], args[1], args[2], args[3])
		if err != nil {
			return err
		}
		return emitJSON(map[string]any{"type": "cat.git.merge_and_cleanup", "outcome": res.Outcome, "detail": res.Detail})
	},
}

func init() {
	rootCmd.AddCommand(gitAmendSafeCmd, gitRebaseSafeCmd, mergeAndCleanupCmd)
}

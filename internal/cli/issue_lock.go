package cli

import (
	"fmt"

	"github.com/cat-dev/cat/internal/lockstore"
	"github.com/spf13/cobra"
)

var issueLockCmd = &cobra.Command{
	Use:   "issue-lock",
	Short: "inspect and manage the on-disk issue lock store",
}

var issueLockAcquireCmd = &cobra.Command{
	Use:   "acquire <issue-id> <session-id>",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := lockstore.New(repoRootFlag(cmd))
		outcome, holder, err := store.Acquire(args[0], args[1])
		if err != nil {
			return err
		}
		if outcome == lockstore.Contested {
			return emitJSON(map[string]any{"type": "cat.lock.contested", "issueId": args[0], "holder": holder})
		}
		return emitJSON(map[string]any{"type": "cat.lock.acquired", "issueId": args[0]})
	},
}

var issueLockReleaseCmd = &cobra.Command{
	Use:   "release <issue-id> <session-id>",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := lockstore.New(repoRootFlag(cmd))
		if err := store.Release(args[0], args[1]); err != nil {
			return err
		}
		return emitJSON(map[string]any{"type": "cat.lock.released", "issueId": args[0]})
	},
}

var issueLockForceReleaseCmd = &cobra.Command{
	Use:   "force-release <issue-id>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := lockstore.New(repoRootFlag(cmd))
		if err := store.ForceRelease(args[0]); err != nil {
			return err
		}
		return emitJSON(map[string]any{"type": "cat.lock.force_released", "issueId": args[0]})
	},
}

var issueLockUpdateCmd = &cobra.Command{
	Use:   "update <issue-id> <session-id> <worktree-path> <agent-id>",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := lockstore.New(repoRootFlag(cmd))
		if err := store.Update(args[0], args[1], args[2], args[3]); err != nil {
			return err
		}
		return emitJSON(map[string]any{"type": "cat.lock.updated", "issueId": args[0]})
	},
}

var issueLockListCmd = &cobra.Command{
	Use:   "list",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := lockstore.New(repoRootFlag(cmd))
		entries, err := store.List()
		if err != nil {
			return fmt.Errorf("listing locks: %w", err)
		}
		return emitJSON(map[string]any{"type": "cat.lock.list", "locks": entries})
	},
}

func init() {
	issueLockCmd.AddCommand(issueLockAcquireCmd, issueLockReleaseCmd, issueLockForceReleaseCmd, issueLockUpdateCmd, issueLockListCmd)
	rootCmd.AddCommand(issueLockCmd)
}

// Package cli wires every CAT subcommand onto a cobra root command, in the
// same package-level-var-plus-init() style the teacher repo's internal/cmd
// package uses for each of its own subcommands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cat",
	Short: "cat orchestrates git-worktree-isolated coding agents against an issue tree",
	Long: `cat schedules one issue at a time out of .claude/cat/issues/, provisions an
isolated git worktree for it, and exposes a small set of guarded git
operations (amend, rebase, merge-and-cleanup) so an agent never has to shell
out to raw git for anything that could rewrite or lose history.`,
	SilenceUsage: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func repoRootFlag(cmd *cobra.Command) string {
	root, _ := cmd.Flags().GetString("repo")
	if root == "" {
		root, _ = os.Getwd()
	}
	return root
}

func init() {
	rootCmd.PersistentFlags().String("repo", "", "repository root (defaults to the current directory)")
}

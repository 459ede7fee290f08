package cli

import (
	"context"
	"os"

	"github.com/cat-dev/cat/internal/hookdispatch"
	"github.com/cat-dev/cat/internal/hookenvelope"
	"github.com/cat-dev/cat/internal/safety"
	"github.com/spf13/cobra"
)

var hookDispatchCmd = &cobra.Command{
	Use:   "hook-dispatch <event-name>",
	Short: "read one hook event from stdin, run CAT's handlers for it, and write a response to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := repoRootFlag(cmd)
		registry := buildRegistry(repoRoot)

		hookenvelope.Run(os.Stdin, os.Stdout, func(ev hookenvelope.Event) hookenvelope.Response {
			ev.HookEventName = args[0]
			if !registry.CanHandle(ev.HookEventName) {
				return hookenvelope.Response{}
			}
			resp, err := registry.Dispatch(context.Background(), ev)
			if err != nil {
				return hookenvelope.Response{SystemMessage: "cat hook-dispatch: " + err.Error()}
			}
			return resp
		})
		return nil
	},
}

// buildRegistry wires every safety handler to the lifecycle event it
// guards, with the aggregation policy spec.md documents for that event:
// tool-use gating must let any single handler veto (first-block-wins),
// session-start context from multiple handlers should all be surfaced
// (concatenate-context).
func buildRegistry(repoRoot string) *hookdispatch.Registry {
	r := hookdispatch.NewRegistry()

	r.Register("PreToolUse", hookdispatch.PolicyFirstBlockWins, safety.UnsafeRemovalGuard{RepoRoot: repoRoot})
	r.Register("PreToolUse", hookdispatch.PolicyFirstBlockWins, safety.RebaseTargetValidator{})
	r.Register("PreToolUse", hookdispatch.PolicyFirstBlockWins, safety.EnforceWorktreePathIsolation{RepoRoot: repoRoot})
	r.Register("PostToolUse", hookdispatch.PolicyWarnOnly, safety.ConcatenatedCommitDetector{})
	r.Register("SessionStart", hookdispatch.PolicyConcatenateContext, safety.SessionRestorer{RepoRoot: repoRoot})
	r.Register("SessionStart", hookdispatch.PolicyConcatenateContext, safety.RestoreWorktreeOnResume{RepoRoot: repoRoot})
	r.Register("SessionEnd", hookdispatch.PolicyWarnOnly, safety.SkillMarkerClearer{RepoRoot: repoRoot})

	return r
}

func init() {
	rootCmd.AddCommand(hookDispatchCmd)
}

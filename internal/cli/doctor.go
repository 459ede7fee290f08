package cli

import (
	"github.com/cat-dev/cat/internal/safety"
	"github.com/spf13/cobra"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "run diagnostic checks over locks and worktrees",
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := repoRootFlag(cmd)
		ctx := &safety.CheckContext{RepoRoot: repoRoot}

		checks := []safety.FixableCheck{
			safety.NewStaleLockCheck(repoRoot),
			safety.NewOrphanWorktreeCheck(repoRoot),
		}

		type reportEntry struct {
			Name    string   `json:"name"`
			Status  string   `json:"status"`
			Message string   `json:"message"`
			Details []string `json:"details,omitempty"`
			Fixed   bool     `json:"fixed,omitempty"`
		}

		var report []reportEntry
		for _, check := range checks {
			res := check.Run(ctx)
			entry := reportEntry{Name: res.Name, Status: string(res.Status), Message: res.Message, Details: res.Details}
			if res.Status != safety.StatusOK && doctorFix {
				if err := check.Fix(ctx); err != nil {
					entry.Message += " (fix failed: " + err.Error() + ")"
				} else {
					entry.Fixed = true
				}
			}
			report = append(report, entry)
		}

		return emitJSON(map[string]any{"type": "cat.doctor", "checks": report})
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "attempt to repair any problem found")
	rootCmd.AddCommand(doctorCmd)
}

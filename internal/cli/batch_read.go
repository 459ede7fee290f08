package cli

import (
	"fmt"

	"github.com/cat-dev/cat/internal/issuestore"
	"github.com/spf13/cobra"
)

var batchReadCmd = &cobra.Command{
	Use:   "batch-read <qualified-name>...",
	Short: "read several issues' STATE.md/PLAN.md in one call",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := repoRootFlag(cmd)
		store := issuestore.New(repoRoot)
		if err := store.Load(); err != nil {
			return fmt.Errorf("loading issue tree: %w", err)
		}

		type result struct {
			QualifiedName string          `json:"qualifiedName"`
			Found         bool            `json:"found"`
			Issue         *issuestore.Issue `json:"issue,omitempty"`
			Plan          *issuestore.Plan  `json:"plan,omitempty"`
		}

		var results []result
		for _, name := range args {
			issue, ok := store.Get(name)
			if !ok {
				results = append(results, result{QualifiedName: name, Found: false})
				continue
			}
			plan, err := store.Plan(issue)
			if err != nil {
				results = append(results, result{QualifiedName: name, Found: true, Issue: &issue})
				continue
			}
			results = append(results, result{QualifiedName: name, Found: true, Issue: &issue, Plan: &plan})
		}

		return emitJSON(map[string]any{"type": "cat.batch_read", "issues": results})
	},
}

func init() {
	rootCmd.AddCommand(batchReadCmd)
}

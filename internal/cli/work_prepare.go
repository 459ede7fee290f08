package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cat-dev/cat/internal/issuestore"
	"github.com/cat-dev/cat/internal/scheduler"
	"github.com/cat-dev/cat/internal/worktree"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	workPrepareScope       string
	workPrepareTarget      string
	workPrepareSessionID   string
	workPrepareExcludeGlob string
)

var workPrepareCmd = &cobra.Command{
	Use:   "work-prepare",
	Short: "schedule the next issue and provision a worktree for it",
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := repoRootFlag(cmd)

		scope, err := parseScope(workPrepareScope)
		if err != nil {
			return err
		}

		sessionID := workPrepareSessionID
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		result := scheduler.Select(scheduler.Input{
			RepoRoot:       repoRoot,
			Scope:          scope,
			Target:         workPrepareTarget,
			SessionID:      sessionID,
			ExcludeGlob:    workPrepareExcludeGlob,
			WorktreeExists: worktree.Exists,
		})

		found, ok := result.(scheduler.Found)
		if !ok {
			return emitJSON(describeResult(result))
		}

		store := issuestore.New(repoRoot)
		if err := store.Load(); err != nil {
			scheduler.ReleaseOnFailure(repoRoot, found, sessionID) //nolint:errcheck
			return fmt.Errorf("reloading issue tree: %w", err)
		}
		issue, ok := store.Get(found.IssueID)
		if !ok {
			scheduler.ReleaseOnFailure(repoRoot, found, sessionID) //nolint:errcheck
			return fmt.Errorf("issue %s vanished between scheduling and provisioning", found.IssueID)
		}
		plan, err := store.Plan(issue)
		if err != nil {
			scheduler.ReleaseOnFailure(repoRoot, found, sessionID) //nolint:errcheck
			return fmt.Errorf("reading plan for %s: %w", found.IssueID, err)
		}

		provisioned, err := worktree.Provision(worktree.Options{RepoRoot: repoRoot}, issue, plan)
		if err != nil {
			if relErr := scheduler.ReleaseOnFailure(repoRoot, found, sessionID); relErr != nil {
				return fmt.Errorf("provisioning failed (%v) and releasing lock also failed: %w", err, relErr)
			}
			return fmt.Errorf("provisioning worktree for %s: %w", found.IssueID, err)
		}

		return emitJSON(map[string]any{
			"type":          "cat.work.prepare.found",
			"issueId":       found.IssueID,
			"sessionId":     sessionID,
			"worktreePath":  provisioned.WorktreePath,
			"branch":        provisioned.Branch,
			"forkPoint":     provisioned.ForkPoint,
			"tokenEstimate": provisioned.TokenEstimate,
			"goal":          plan.Goal,
		})
	},
}

func parseScope(s string) (scheduler.Scope, error) {
	switch s {
	case "", "all":
		return scheduler.ScopeAll, nil
	case "issue":
		return scheduler.ScopeIssue, nil
	case "bare-name", "bare":
		return scheduler.ScopeBareName, nil
	default:
		return 0, fmt.Errorf("unknown scope %q (want all, issue, or bare-name)", s)
	}
}

// describeResult turns every non-Found scheduler.Result into the plain map
// emitted as JSON, since each variant carries different fields.
func describeResult(result scheduler.Result) map[string]any {
	switch r := result.(type) {
	case scheduler.NotFound:
		return map[string]any{
			"type":                 "cat.work.prepare.not_found",
			"closedCount":          r.ClosedCount,
			"totalCount":           r.TotalCount,
			"lockedIssues":         r.LockedIssues,
			"circularDependencies": r.CircularDependencies,
		}
	case scheduler.Locked:
		return map[string]any{"type": "cat.work.prepare.locked", "issueId": r.IssueID, "holder": r.Holder}
	case scheduler.Blocked:
		return map[string]any{"type": "cat.work.prepare.blocked", "issueId": r.IssueID, "blockingIssues": r.BlockingIssues}
	case scheduler.Decomposed:
		return map[string]any{"type": "cat.work.prepare.decomposed", "issueId": r.IssueID}
	case scheduler.ExistingWorktree:
		return map[string]any{"type": "cat.work.prepare.existing_worktree", "issueId": r.IssueID, "worktreePath": r.WorktreePath}
	case scheduler.AlreadyComplete:
		return map[string]any{"type": "cat.work.prepare.already_complete", "issueId": r.IssueID}
	case scheduler.NotExecutable:
		return map[string]any{"type": "cat.work.prepare.not_executable", "issueId": r.IssueID, "reason": r.Reason}
	case scheduler.Error:
		return map[string]any{"type": "cat.work.prepare.error", "message": r.Message}
	default:
		return map[string]any{"type": "cat.work.prepare.error", "message": "unknown scheduler result"}
	}
}

func emitJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	workPrepareCmd.Flags().StringVar(&workPrepareScope, "scope", "all", "all, issue, or bare-name")
	workPrepareCmd.Flags().StringVar(&workPrepareTarget, "target", "", "qualified or bare issue name (required for --scope=issue/bare-name)")
	workPrepareCmd.Flags().StringVar(&workPrepareSessionID, "session-id", "", "session id to own the acquired lock (generated if omitted)")
	workPrepareCmd.Flags().StringVar(&workPrepareExcludeGlob, "exclude", "", "bare-name glob to exclude from --scope=all candidate selection")
	rootCmd.AddCommand(workPrepareCmd)
}

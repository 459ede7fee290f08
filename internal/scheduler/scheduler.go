// Package scheduler implements the central state machine described in
// spec.md §4.F: given a selection scope, it returns exactly one tagged
// Result variant and, on success, holds the issue's lock.
package scheduler

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/cat-dev/cat/internal/depgraph"
	"github.com/cat-dev/cat/internal/issuestore"
	"github.com/cat-dev/cat/internal/lockstore"
)

// Scope selects how the target issue is chosen.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeIssue
	ScopeBareName
)

// Result is the sealed tagged-union interface every scheduling outcome
// implements. The marker method keeps it closed to this package's variants,
// mirroring the sealed-interface design spec.md §9 asks for.
type Result interface {
	isSchedulerResult()
}

type Found struct {
	IssueID   string
	Major     int
	Minor     int
	Patch     int
	Slug      string
	IssuePath string
}

type NotFound struct {
	BlockedIssues       map[string][]depgraph.BlockedDependency
	LockedIssues        []string
	CircularDependencies []string
	ClosedCount         int
	TotalCount          int
}

type Locked struct {
	IssueID string
	Holder  string
}

type Blocked struct {
	IssueID        string
	BlockingIssues []depgraph.BlockedDependency
}

type Decomposed struct {
	IssueID string
}

type ExistingWorktree struct {
	IssueID      string
	WorktreePath string
}

type AlreadyComplete struct {
	IssueID string
}

type NotExecutable struct {
	IssueID string
	Reason  string
}

type Error struct {
	Message string
}

func (Found) isSchedulerResult()            {}
func (NotFound) isSchedulerResult()         {}
func (Locked) isSchedulerResult()           {}
func (Blocked) isSchedulerResult()          {}
func (Decomposed) isSchedulerResult()       {}
func (ExistingWorktree) isSchedulerResult() {}
func (AlreadyComplete) isSchedulerResult()  {}
func (NotExecutable) isSchedulerResult()    {}
func (Error) isSchedulerResult()            {}

// WorktreeExists reports whether a worktree already exists for a given
// issue branch. Implemented by the worktree package; injected here so
// scheduler has no import-cycle dependency on it.
type WorktreeExists func(repoRoot, branch string) (path string, exists bool)

// Input bundles everything Select needs.
type Input struct {
	RepoRoot       string
	Scope          Scope
	Target         string // qualified name (ScopeIssue) or bare name (ScopeBareName); ignored for ScopeAll
	SessionID      string
	ExcludeGlob    string // bare names matching this glob are excluded from ScopeAll, "" disables
	WorktreeExists WorktreeExists
}

// Select runs the scheduler's priority order (spec.md §4.F) and returns
// exactly one Result.
func Select(in Input) Result {
	store := issuestore.New(in.RepoRoot)
	if err := store.Load(); err != nil {
		return Error{Message: fmt.Sprintf("loading issue tree: %v", err)}
	}

	graph := depgraph.Build(store)
	cycles, err := graph.Cycles(0)
	if err != nil {
		return Error{Message: err.Error()}
	}

	locks := lockstore.New(in.RepoRoot)

	switch in.Scope {
	case ScopeIssue:
		return selectOne(store, graph, cycles, locks, in, in.Target, isQualifiedMatch)
	case ScopeBareName:
		candidates := store.ResolveBareName(in.Target)
		if len(candidates) == 0 {
			return NotExecutable{IssueID: in.Target, Reason: "not_found"}
		}
		if len(candidates) > 1 {
			return NotExecutable{IssueID: in.Target, Reason: "ambiguous"}
		}
		return selectOne(store, graph, cycles, locks, in, candidates[0], isQualifiedMatch)
	default:
		return selectAll(store, graph, cycles, locks, in)
	}
}

func isQualifiedMatch(issue issuestore.Issue, target string) bool {
	return issue.QualifiedName == target
}

func selectOne(store *issuestore.Store, graph *depgraph.Graph, cycles []string, locks *lockstore.Store, in Input, qualifiedName string, _ func(issuestore.Issue, string) bool) Result {
	issue, ok := store.Get(qualifiedName)
	if !ok {
		return NotExecutable{IssueID: qualifiedName, Reason: "not_found"}
	}

	if issue.StatusRaw != "" && !issuestore.ValidStatus(issue.StatusRaw) {
		return NotExecutable{IssueID: qualifiedName, Reason: fmt.Sprintf("invalid status %q", issue.StatusRaw)}
	}

	if issue.Status == issuestore.StatusClosed {
		return AlreadyComplete{IssueID: qualifiedName}
	}

	if issue.Status == issuestore.StatusDecomposed && hasOpenSubIssue(store, issue) {
		return Decomposed{IssueID: qualifiedName}
	}

	if graph.InCycle(qualifiedName, cycles) {
		return NotExecutable{IssueID: qualifiedName, Reason: "circular dependency"}
	}

	if blockedBy, blocked := graph.IsBlocked(qualifiedName); blocked {
		return Blocked{IssueID: qualifiedName, BlockingIssues: blockedBy}
	}

	if in.WorktreeExists != nil {
		if path, exists := in.WorktreeExists(in.RepoRoot, issue.BareName()); exists {
			return ExistingWorktree{IssueID: qualifiedName, WorktreePath: path}
		}
	}

	outcome, holder, err := locks.Acquire(qualifiedName, in.SessionID)
	if err != nil {
		return Error{Message: fmt.Sprintf("acquiring lock for %s: %v", qualifiedName, err)}
	}
	if outcome == lockstore.Contested {
		return Locked{IssueID: qualifiedName, Holder: holder}
	}

	return Found{
		IssueID:   qualifiedName,
		Major:     issue.Identity.Major,
		Minor:     issue.Identity.Minor,
		Patch:     issue.Identity.Patch,
		Slug:      issue.Identity.Slug,
		IssuePath: issue.Path,
	}
}

func hasOpenSubIssue(store *issuestore.Store, issue issuestore.Issue) bool {
	for _, sub := range issue.DecomposedInto {
		if subIssue, ok := store.Get(sub); ok && subIssue.Executable() {
			return true
		}
	}
	return false
}

func selectAll(store *issuestore.Store, graph *depgraph.Graph, cycles []string, locks *lockstore.Store, in Input) Result {
	all := store.All()

	type candidate struct {
		issue issuestore.Issue
	}
	var candidates []candidate
	var lockedIssues []string
	blocked := graph.Blocked()

	existingLocks, err := locks.List()
	if err != nil {
		return Error{Message: fmt.Sprintf("listing locks: %v", err)}
	}
	lockedSet := map[string]bool{}
	for _, l := range existingLocks {
		if !l.Malformed {
			lockedSet[l.IssueID] = true
		}
	}

	for _, issue := range all {
		if in.ExcludeGlob != "" {
			if ok, _ := filepath.Match(in.ExcludeGlob, issue.BareName()); ok {
				continue
			}
		}
		if issue.Status == issuestore.StatusClosed {
			continue
		}
		if issue.Status == issuestore.StatusDecomposed && hasOpenSubIssue(store, issue) {
			continue
		}
		if graph.InCycle(issue.QualifiedName, cycles) {
			continue
		}
		if _, isBlocked := blocked[issue.QualifiedName]; isBlocked {
			continue
		}
		if lockedSet[issue.QualifiedName] {
			lockedIssues = append(lockedIssues, issue.QualifiedName)
			continue
		}
		if in.WorktreeExists != nil {
			if _, exists := in.WorktreeExists(in.RepoRoot, issue.BareName()); exists {
				continue
			}
		}
		candidates = append(candidates, candidate{issue: issue})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].issue, candidates[j].issue
		if a.Identity.Less(b.Identity) {
			return true
		}
		if b.Identity.Less(a.Identity) {
			return false
		}
		return a.QualifiedName < b.QualifiedName
	})

	summary := store.Summarize()

	for _, c := range candidates {
		outcome, _, err := locks.Acquire(c.issue.QualifiedName, in.SessionID)
		if err != nil {
			return Error{Message: fmt.Sprintf("acquiring lock for %s: %v", c.issue.QualifiedName, err)}
		}
		if outcome == lockstore.Contested {
			// Contention between enumeration and acquisition: fall through.
			continue
		}
		return Found{
			IssueID:   c.issue.QualifiedName,
			Major:     c.issue.Identity.Major,
			Minor:     c.issue.Identity.Minor,
			Patch:     c.issue.Identity.Patch,
			Slug:      c.issue.Identity.Slug,
			IssuePath: c.issue.Path,
		}
	}

	return NotFound{
		BlockedIssues:        blocked,
		LockedIssues:         lockedIssues,
		CircularDependencies: cycles,
		ClosedCount:          summary.Closed,
		TotalCount:           summary.Total,
	}
}

// ReleaseOnFailure releases the lock a Found result holds. Callers
// downstream of Select (the Worktree Provisioner) must call this on any
// failure before returning, per spec.md §5's "Scheduler must release its
// lock if any downstream step fails" rule.
func ReleaseOnFailure(repoRoot string, found Found, sessionID string) error {
	return lockstore.New(repoRoot).Release(found.IssueID, sessionID)
}

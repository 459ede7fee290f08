package issuestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultMaxDepth is the maximum directory depth walked under
// .claude/cat/issues/, per the spec's bounded-walk requirement.
const DefaultMaxDepth = 4

// DefaultMaxEntries is the hard cap on visited filesystem entries. Exceeding
// it is an error, never a silent truncation.
const DefaultMaxEntries = 100_000

// Store holds the two indexes built by a single bounded walk of the issue
// tree, plus the warnings collected along the way (invalid issue directory
// names, unreadable or malformed STATE.md — these never abort the walk).
type Store struct {
	RepoRoot string
	MaxDepth int
	MaxEntries int

	byQualifiedName map[string]Issue
	byBareName      map[string][]string
	order           []string // qualified names in walk order, for determinism
	Warnings        []string
}

// New creates a Store rooted at repoRoot with default walk limits.
func New(repoRoot string) *Store {
	return &Store{RepoRoot: repoRoot, MaxDepth: DefaultMaxDepth, MaxEntries: DefaultMaxEntries}
}

func (s *Store) issuesRoot() string {
	return filepath.Join(s.RepoRoot, ".claude", "cat", "issues")
}

// Load walks the issue tree and populates the indexes. Call before any
// lookup. Returns an error only for walk-fatal conditions (unreadable root,
// scan cap exceeded); per-issue parse problems are recorded as Warnings.
func (s *Store) Load() error {
	if s.MaxDepth <= 0 {
		s.MaxDepth = DefaultMaxDepth
	}
	if s.MaxEntries <= 0 {
		s.MaxEntries = DefaultMaxEntries
	}
	s.byQualifiedName = map[string]Issue{}
	s.byBareName = map[string][]string{}
	s.order = nil
	s.Warnings = nil

	root := s.issuesRoot()
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil // no issues tree yet is not an error
	}

	visited := 0
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, e := range entries {
			visited++
			if visited > s.MaxEntries {
				return fmt.Errorf("issue walk exceeded cap of %d entries", s.MaxEntries)
			}
			if !e.IsDir() {
				continue
			}
			childPath := filepath.Join(dir, e.Name())

			statePath := filepath.Join(childPath, "STATE.md")
			if _, err := os.Stat(statePath); err == nil {
				s.loadIssue(childPath, statePath)
				continue // issue directories are leaves for this purpose
			}

			if depth >= s.MaxDepth {
				continue
			}
			if err := walk(childPath, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root, 1); err != nil {
		return err
	}

	sort.Strings(s.order)
	return nil
}

func (s *Store) loadIssue(dir, statePath string) {
	qualifiedName := filepath.Base(dir)

	if _, err := ParseIdentity(qualifiedName); err != nil {
		s.Warnings = append(s.Warnings, fmt.Sprintf("%s: %v", dir, err))
		return
	}

	content, err := os.ReadFile(statePath)
	if err != nil {
		s.Warnings = append(s.Warnings, fmt.Sprintf("%s: reading STATE.md: %v", dir, err))
		return
	}

	issue, err := ParseState(qualifiedName, dir, string(content))
	if err != nil {
		s.Warnings = append(s.Warnings, err.Error())
		// Still index it: an invalid status should surface as a scheduling
		// error for that one issue, not vanish from the tree entirely.
	}

	s.byQualifiedName[qualifiedName] = issue
	s.byBareName[issue.BareName()] = append(s.byBareName[issue.BareName()], qualifiedName)
	s.order = append(s.order, qualifiedName)
}

// Get returns the issue by qualified name.
func (s *Store) Get(qualifiedName string) (Issue, bool) {
	issue, ok := s.byQualifiedName[qualifiedName]
	return issue, ok
}

// ResolveBareName returns every qualified name registered under bareName.
func (s *Store) ResolveBareName(bareName string) []string {
	return s.byBareName[bareName]
}

// All returns every issue, in deterministic (qualified-name-sorted) order.
func (s *Store) All() []Issue {
	out := make([]Issue, 0, len(s.order))
	for _, qn := range s.order {
		out = append(out, s.byQualifiedName[qn])
	}
	return out
}

// Resolve looks a dependency/target name up, first as an exact qualified
// name, then (if not found) as a bare name. Ambiguous bare-name matches
// return all candidates so callers can decide (cycle detection wants all of
// them; the scheduler's BARE_NAME scope wants to reject ambiguity).
func (s *Store) Resolve(name string) (qualifiedNames []string, found bool) {
	if _, ok := s.byQualifiedName[name]; ok {
		return []string{name}, true
	}
	if candidates := s.byBareName[name]; len(candidates) > 0 {
		return candidates, true
	}
	return nil, false
}

// Plan reads and parses PLAN.md for the given issue.
func (s *Store) Plan(issue Issue) (Plan, error) {
	path := filepath.Join(issue.Path, "PLAN.md")
	content, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("reading PLAN.md for %s: %w", issue.QualifiedName, err)
	}
	return ParsePlan(string(content)), nil
}

// Summary aggregates issue counts by status, used by the Scheduler's
// NotFound diagnostics.
type Summary struct {
	Total  int
	Closed int
	Open   int
}

// Summarize computes a Summary over all loaded issues.
func (s *Store) Summarize() Summary {
	var sum Summary
	for _, issue := range s.byQualifiedName {
		sum.Total++
		switch issue.Status {
		case StatusClosed:
			sum.Closed++
		case StatusOpen, StatusInProgress:
			sum.Open++
		}
	}
	return sum
}

// Package issuestore walks the issue tree, parses STATE.md/PLAN.md, and
// maintains the qualified-name and bare-name indexes the Scheduler and
// Dependency Engine query.
package issuestore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Status is the canonical set of values STATE.md's Status field may hold.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusClosed     Status = "closed"
	StatusDecomposed Status = "decomposed"
)

// ValidStatus reports whether s is one of the canonical status values.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusOpen, StatusInProgress, StatusClosed, StatusDecomposed:
		return true
	default:
		return false
	}
}

var qualifiedNameRe = regexp.MustCompile(`^(\d+)(?:\.(\d+)(?:\.(\d+))?)?-([a-zA-Z][a-zA-Z0-9_-]*)$`)

// Identity is a parsed qualified issue name: MAJOR[.MINOR[.PATCH]]-slug.
type Identity struct {
	Major int
	Minor int // -1 if absent
	Patch int // -1 if absent
	Slug  string
}

// ParseIdentity parses a qualified name into its components. Returns an
// error if qn doesn't match MAJOR[.MINOR[.PATCH]]-slug.
func ParseIdentity(qn string) (Identity, error) {
	m := qualifiedNameRe.FindStringSubmatch(qn)
	if m == nil {
		return Identity{}, fmt.Errorf("%q is not a valid qualified issue name", qn)
	}
	id := Identity{Minor: -1, Patch: -1, Slug: m[4]}
	id.Major, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		id.Minor, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		id.Patch, _ = strconv.Atoi(m[3])
	}
	return id, nil
}

// Less orders identities (major asc, minor asc, patch asc) for the
// Scheduler's deterministic candidate ordering, treating an absent minor/
// patch as sorting before a present one of the same prefix.
func (a Identity) Less(b Identity) bool {
	if a.Major != b.Major {
		return a.Major < b.Major
	}
	if a.Minor != b.Minor {
		return a.Minor < b.Minor
	}
	return a.Patch < b.Patch
}

// Issue is one node of the issue tree: its STATE.md attributes plus its
// location on disk. Plan is populated lazily via Store.Plan(issue) since
// most callers (the Dependency Engine, the Scheduler's candidate pass)
// never need PLAN.md contents.
type Issue struct {
	QualifiedName  string
	Identity       Identity
	Path           string // directory containing STATE.md/PLAN.md
	Status         Status
	StatusRaw      string // as written, for reporting an invalid value
	Progress       int
	LastUpdated    string
	Dependencies   []string // qualified or bare names, as written
	DecomposedInto []string // qualified names
}

// BareName returns the bare (slug-only) name for this issue.
func (i Issue) BareName() string {
	return i.Identity.Slug
}

// Executable reports whether the issue's own status allows scheduling,
// independent of dependency/lock/cycle checks (those are the Dependency
// Engine's and Scheduler's concern).
func (i Issue) Executable() bool {
	return i.Status == StatusOpen || i.Status == StatusInProgress
}

var (
	statusRe      = regexp.MustCompile(`(?i)^-\s*\*\*Status:\*\*\s*(.+?)\s*$`)
	progressRe    = regexp.MustCompile(`(?i)^-\s*\*\*Progress:\*\*\s*(\d+)\s*%\s*$`)
	lastUpdatedRe = regexp.MustCompile(`(?i)^-\s*\*\*Last Updated:\*\*\s*(.+?)\s*$`)
	dependsRe     = regexp.MustCompile(`(?i)^-\s*\*\*Dependencies:\*\*\s*\[(.*)\]\s*$`)
	headingRe     = regexp.MustCompile(`^##\s+(.+?)\s*$`)
	bulletRe      = regexp.MustCompile(`^[-*]\s+(.+?)\s*$`)
	backtickRe    = regexp.MustCompile("`([^`]+)`")
	numberedRe    = regexp.MustCompile(`^\d+\.\s+(.+?)\s*$`)
	checkboxRe    = regexp.MustCompile(`^[-*]\s+\[( |x|X)\]\s+(.+?)\s*$`)
)

// ParseState parses STATE.md content (raw) into the mutable attributes of
// an Issue. qualifiedName and path are supplied by the walker; identity is
// derived from qualifiedName.
func ParseState(qualifiedName, path, content string) (Issue, error) {
	identity, err := ParseIdentity(qualifiedName)
	if err != nil {
		return Issue{}, err
	}

	issue := Issue{
		QualifiedName: qualifiedName,
		Identity:      identity,
		Path:          path,
	}

	inDecomposed := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimRight(line, " \t\r")

		if h := headingRe.FindStringSubmatch(trimmed); h != nil {
			inDecomposed = strings.EqualFold(strings.TrimSpace(h[1]), "Decomposed Into")
			continue
		}

		if inDecomposed {
			if b := bulletRe.FindStringSubmatch(strings.TrimSpace(trimmed)); b != nil {
				issue.DecomposedInto = append(issue.DecomposedInto, strings.TrimSpace(b[1]))
				continue
			}
			if strings.TrimSpace(trimmed) == "" {
				continue
			}
			// Any other non-bullet, non-blank line ends the section.
			inDecomposed = false
		}

		if m := statusRe.FindStringSubmatch(trimmed); m != nil {
			issue.StatusRaw = m[1]
			issue.Status = Status(strings.ToLower(m[1]))
			continue
		}
		if m := progressRe.FindStringSubmatch(trimmed); m != nil {
			issue.Progress, _ = strconv.Atoi(m[1])
			continue
		}
		if m := lastUpdatedRe.FindStringSubmatch(trimmed); m != nil {
			issue.LastUpdated = m[1]
			continue
		}
		if m := dependsRe.FindStringSubmatch(trimmed); m != nil {
			issue.Dependencies = splitDependencyList(m[1])
			continue
		}
	}

	if issue.StatusRaw != "" && !ValidStatus(issue.StatusRaw) {
		return issue, fmt.Errorf("issue %s: invalid status %q", qualifiedName, issue.StatusRaw)
	}

	return issue, nil
}

func splitDependencyList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Plan is the parsed shape of PLAN.md.
type Plan struct {
	Goal           string
	FilesToCreate  []string
	FilesToModify  []string
	ExecutionSteps []string
	Preconditions  []Precondition
}

// Precondition is one `- [ ] text` / `- [x] text` checklist item.
type Precondition struct {
	Text    string
	Checked bool
}

// ParsePlan parses PLAN.md content into its documented sections.
func ParsePlan(content string) Plan {
	var plan Plan
	var section string
	var goalLines []string
	goalDone := false

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimRight(raw, " \t\r")

		if h := headingRe.FindStringSubmatch(line); h != nil {
			section = strings.ToLower(strings.TrimSpace(h[1]))
			if section != "goal" {
				goalDone = true
			}
			continue
		}

		trimmed := strings.TrimSpace(line)

		switch section {
		case "goal":
			if goalDone {
				continue
			}
			if trimmed == "" {
				if len(goalLines) > 0 {
					goalDone = true
				}
				continue
			}
			goalLines = append(goalLines, trimmed)
		case "files to create":
			if b := backtickRe.FindStringSubmatch(trimmed); b != nil {
				plan.FilesToCreate = append(plan.FilesToCreate, b[1])
			}
		case "files to modify":
			if b := backtickRe.FindStringSubmatch(trimmed); b != nil {
				plan.FilesToModify = append(plan.FilesToModify, b[1])
			}
		case "execution steps":
			if m := numberedRe.FindStringSubmatch(trimmed); m != nil {
				plan.ExecutionSteps = append(plan.ExecutionSteps, m[1])
			}
		case "pre-conditions", "preconditions":
			if m := checkboxRe.FindStringSubmatch(trimmed); m != nil {
				plan.Preconditions = append(plan.Preconditions, Precondition{
					Text:    m[2],
					Checked: strings.EqualFold(m[1], "x"),
				})
			}
		}
	}

	plan.Goal = strings.Join(goalLines, " ")
	return plan
}

// Doctor check scaffolding. The teacher repo's internal/doctor package
// defines a Check/FixableCheck/CheckContext/CheckResult base on which each
// concrete check (e.g. its WorktreeGitdirCheck) is built; that base wasn't
// present in the retrieval pack, only one concrete check was, so the types
// below are reconstructed from that check's call signature rather than
// copied — see DESIGN.md.
package safety

// Status is a check's outcome severity.
type Status string

const (
	StatusOK    Status = "ok"
	StatusWarn  Status = "warn"
	StatusError Status = "error"
)

// Category groups checks for reporting, mirroring the teacher's
// CategoryRig/CategoryConfig-style grouping.
type Category string

const (
	CategoryLocks     Category = "locks"
	CategoryWorktrees Category = "worktrees"
)

// CheckContext carries whatever a check needs to inspect repository state.
type CheckContext struct {
	RepoRoot string
	Now      func() int64 // optional clock (unix seconds); the checks in this package do not read it
}

// CheckResult is one check's verdict, with an optional fix hint for a
// FixableCheck.
type CheckResult struct {
	Name     string
	Category Category
	Status   Status
	Message  string
	Details  []string
	FixHint  string
}

// Check is a read-only diagnostic.
type Check interface {
	Name() string
	Run(ctx *CheckContext) *CheckResult
}

// FixableCheck is a Check that also knows how to repair what it found.
type FixableCheck interface {
	Check
	Fix(ctx *CheckContext) error
}

// BaseCheck supplies the Name() boilerplate every concrete check needs,
// the way the teacher's checks embed a base struct instead of repeating it.
type BaseCheck struct {
	CheckName string
}

// Name returns the check's registered name.
func (b BaseCheck) Name() string { return b.CheckName }

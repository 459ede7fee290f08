// Safety handlers: the PreToolUse/PostToolUse/SessionStart/SessionEnd
// handlers registered into internal/hookdispatch. UnsafeRemovalGuard is,
// per spec.md, the most consequential of these — the other handlers advise,
// clean up, or block a narrower class of call (raw rebase, out-of-worktree
// writes), but this one is the sole thing standing between an agent's shell
// command and an unrecoverable rm of another agent's active worktree.
package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cat-dev/cat/internal/agentid"
	"github.com/cat-dev/cat/internal/hookdispatch"
	"github.com/cat-dev/cat/internal/hookenvelope"
	"github.com/cat-dev/cat/internal/lockstore"
	"github.com/cat-dev/cat/internal/sessiondir"
	"github.com/cat-dev/cat/internal/shellutil"
)

// bashInput is the subset of a Bash tool_input payload the safety handlers
// care about.
type bashInput struct {
	Command string `json:"command"`
}

func parseBashCommand(ev hookenvelope.Event) (string, bool) {
	if ev.ToolName != "Bash" || len(ev.ToolInput) == 0 {
		return "", false
	}
	var in bashInput
	if err := json.Unmarshal(ev.ToolInput, &in); err != nil {
		return "", false
	}
	return in.Command, in.Command != ""
}

// reasonCode names why a target was protected, so the block message and the
// caller's recovery guidance can be reason-specific.
type reasonCode string

const (
	reasonCWD           reasonCode = "CURRENT_WORKING_DIRECTORY"
	reasonMainWorktree  reasonCode = "MAIN_WORKTREE"
	reasonLockedByOther reasonCode = "LOCKED_BY_OTHER_AGENT"
	reasonUnknownAgent  reasonCode = "UNKNOWN_AGENT"
)

// UnsafeRemovalGuard blocks rm/git-worktree-remove invocations whose
// resolved target equals or contains a protected path: the shell's current
// working directory, the repository's main worktree, or a worktree another
// agent holds a live lock on.
type UnsafeRemovalGuard struct {
	RepoRoot string
}

func (UnsafeRemovalGuard) Name() string { return "unsafe-removal-guard" }

func (g UnsafeRemovalGuard) Handle(ctx context.Context, ev hookenvelope.Event) (hookdispatch.Verdict, error) {
	command, ok := parseBashCommand(ev)
	if !ok {
		return hookdispatch.Verdict{}, nil
	}

	mainWorktree := findMainWorktree(ev.CWD)
	cwd := shellutil.ResolvePath(ev.CWD, ev.CWD)

	store := lockstore.New(g.RepoRoot)
	entries, _ := store.List() // a broken lock store fails open on listing, not on the CWD/main-worktree checks below
	staleThreshold := store.StaleThreshold

	for _, statement := range shellutil.SplitStatements(shellutil.Tokenize(command)) {
		env, argv := shellutil.StripEnvPrefix(statement)
		if len(argv) == 0 {
			continue
		}
		targets, matched := detectRemovalTargets(argv)
		if !matched {
			continue
		}

		commandAgentID := env["CAT_AGENT_ID"]
		for _, raw := range targets {
			resolved := shellutil.ResolvePath(raw, ev.CWD)

			if shellutil.IsInsideOrEqual(resolved, cwd) {
				return blockedVerdict(reasonCWD, raw, command, cwd), nil
			}
			if mainWorktree != "" && shellutil.IsInsideOrEqual(resolved, mainWorktree) {
				return blockedVerdict(reasonMainWorktree, raw, command, mainWorktree), nil
			}
			if verdict, blocked := g.checkLockedPaths(ev, entries, staleThreshold, commandAgentID, raw, resolved, command); blocked {
				return verdict, nil
			}
		}
	}

	return hookdispatch.Verdict{}, nil
}

// checkLockedPaths implements spec §4.K step 3's lock-derived protected-path
// set: every (path, agentId) pair recorded in a non-stale lock's worktrees
// map is protected unless it belongs to the very agent running this command.
func (g UnsafeRemovalGuard) checkLockedPaths(ev hookenvelope.Event, entries []lockstore.LockEntry, staleThreshold time.Duration, commandAgentID, raw, resolved, command string) (hookdispatch.Verdict, bool) {
	for _, e := range entries {
		if e.Malformed || e.AgeSeconds >= staleThreshold.Seconds() {
			continue
		}
		for path, lockAgentID := range e.Worktrees {
			lockedPath := shellutil.ResolvePath(path, ev.CWD)
			if !shellutil.IsInsideOrEqual(resolved, lockedPath) {
				continue
			}

			reason, protect := evaluateLockProtection(commandAgentID, ev.SessionID, lockAgentID)
			if !protect {
				continue
			}
			return blockedVerdictWithOwner(reason, raw, command, lockedPath, lockAgentID), true
		}
	}
	return hookdispatch.Verdict{}, false
}

// evaluateLockProtection decides whether a locked (path, lockAgentID) pair
// must block the current command, per spec §4.K step 3:
//   - the command names its own agent id: protected unless it matches exactly.
//   - the command names no agent id: protected if the lock belongs to a
//     different session outright (we know the owner, so LOCKED_BY_OTHER_AGENT);
//     if it's the same session we still can't confirm which of that
//     session's agents is running, so fail-safe and block as UNKNOWN_AGENT.
func evaluateLockProtection(commandAgentID, sessionID, lockAgentID string) (reasonCode, bool) {
	if commandAgentID != "" {
		if agentid.Equal(lockAgentID, commandAgentID) {
			return "", false
		}
		return reasonLockedByOther, true
	}
	if agentid.SessionOf(lockAgentID) != sessionID {
		return reasonLockedByOther, true
	}
	return reasonUnknownAgent, true
}

// detectRemovalTargets recognizes the two command intents spec §4.K step 2
// names and extracts their positional target paths, respecting a `--`
// end-of-options marker. matched is false for any other command, including
// a non-recursive rm (which cannot destroy a worktree directory).
func detectRemovalTargets(argv []string) (targets []string, matched bool) {
	switch {
	case lastPathComponent(argv[0]) == "rm":
		return parseRmTargets(argv[1:])
	case argv[0] == "git" && len(argv) >= 3 && argv[1] == "worktree" && argv[2] == "remove":
		return parsePositional(argv[3:]), true
	default:
		return nil, false
	}
}

func parseRmTargets(args []string) (targets []string, recursive bool) {
	endOpts := false
	for _, a := range args {
		if !endOpts && a == "--" {
			endOpts = true
			continue
		}
		if !endOpts && len(a) > 1 && a[0] == '-' {
			if a == "--recursive" || (a[1] != '-' && strings.ContainsAny(a, "rR")) {
				recursive = true
			}
			continue
		}
		targets = append(targets, a)
	}
	return targets, recursive && len(targets) > 0
}

func parsePositional(args []string) []string {
	var out []string
	endOpts := false
	for _, a := range args {
		if !endOpts && a == "--" {
			endOpts = true
			continue
		}
		if !endOpts && len(a) > 1 && a[0] == '-' {
			continue
		}
		out = append(out, a)
	}
	return out
}

// findMainWorktree walks upward from cwd looking for a .git entry, per spec
// §4.K step 3. A linked worktree's .git is a regular file containing a
// `gitdir: <main>/.git/worktrees/<name>` pointer (CAT's own worktree
// provisioner creates exactly this layout, usually as a sibling of the
// repository root rather than nested under it) — in that case the pointer
// is followed back to the main repository root. Only a .git *directory*
// names the main worktree directly.
func findMainWorktree(cwd string) string {
	dir := shellutil.ResolvePath(cwd, cwd)
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() {
				return dir
			}
			if root, ok := mainRootFromGitFile(gitPath); ok {
				return root
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mainRootFromGitFile parses a linked worktree's .git pointer file and
// returns the main repository root it names.
func mainRootFromGitFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	const prefix = "gitdir: "
	content := strings.TrimSpace(string(data))
	if !strings.HasPrefix(content, prefix) {
		return "", false
	}
	gitdir := strings.TrimPrefix(content, prefix)
	marker := string(filepath.Separator) + ".git" + string(filepath.Separator) + "worktrees" + string(filepath.Separator)
	idx := strings.Index(gitdir, marker)
	if idx < 0 {
		return "", false
	}
	return gitdir[:idx], true
}

func blockedVerdict(reason reasonCode, target, command, protectedPath string) hookdispatch.Verdict {
	return blockedVerdictWithOwner(reason, target, command, protectedPath, "")
}

func blockedVerdictWithOwner(reason reasonCode, target, command, protectedPath, owner string) hookdispatch.Verdict {
	var body string
	switch reason {
	case reasonCWD:
		body = fmt.Sprintf("%q is (or contains) the shell's current working directory (%s); removing it would corrupt this session.", target, protectedPath)
	case reasonMainWorktree:
		body = fmt.Sprintf("%q is (or contains) the repository's main worktree (%s).", target, protectedPath)
	case reasonLockedByOther:
		body = fmt.Sprintf("Worktree is locked by another agent.\nLock owner: %s", owner)
	case reasonUnknownAgent:
		body = fmt.Sprintf("Worktree is locked and no CAT_AGENT_ID was given, so this agent's ownership can't be verified.\nLock owner: %s", owner)
	}

	return hookdispatch.Verdict{
		Block: true,
		Reason: fmt.Sprintf(
			"UNSAFE DIRECTORY REMOVAL BLOCKED (%s)\n\n%s\n\nIf this worktree is yours, retry as: CAT_AGENT_ID=<your-agent-id> %s",
			reason, body, command,
		),
	}
}

func lastPathComponent(s string) string {
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ConcatenatedCommitDetector warns (never blocks) when a single Bash
// invocation chains more than one `git commit`, which usually means an
// agent is bundling unrelated changes into one shell call instead of
// letting CAT's own per-issue commit flow run them separately.
type ConcatenatedCommitDetector struct{}

func (ConcatenatedCommitDetector) Name() string { return "concatenated-commit-detector" }

func (ConcatenatedCommitDetector) Handle(ctx context.Context, ev hookenvelope.Event) (hookdispatch.Verdict, error) {
	command, ok := parseBashCommand(ev)
	if !ok {
		return hookdispatch.Verdict{}, nil
	}

	commits := 0
	for _, statement := range shellutil.SplitStatements(shellutil.Tokenize(command)) {
		_, argv := shellutil.StripEnvPrefix(statement)
		if len(argv) >= 2 && argv[0] == "git" && argv[1] == "commit" {
			commits++
		}
	}

	if commits > 1 {
		return hookdispatch.Verdict{
			Warn:    true,
			Message: fmt.Sprintf("this command chains %d `git commit` invocations in one call; consider one commit per logical change", commits),
		}, nil
	}
	return hookdispatch.Verdict{}, nil
}

// RebaseTargetValidator blocks raw `git rebase` invocations run directly
// via Bash, nudging the agent toward the rebase-safe CLI command instead
// (internal/gitsafety.RebaseSafe), which verifies the target ref and aborts
// cleanly on conflict instead of leaving the worktree mid-rebase.
type RebaseTargetValidator struct{}

func (RebaseTargetValidator) Name() string { return "rebase-target-validator" }

func (RebaseTargetValidator) Handle(ctx context.Context, ev hookenvelope.Event) (hookdispatch.Verdict, error) {
	command, ok := parseBashCommand(ev)
	if !ok {
		return hookdispatch.Verdict{}, nil
	}

	for _, statement := range shellutil.SplitStatements(shellutil.Tokenize(command)) {
		_, argv := shellutil.StripEnvPrefix(statement)
		if len(argv) >= 2 && argv[0] == "git" && argv[1] == "rebase" {
			return hookdispatch.Verdict{
				Block:  true,
				Reason: "raw `git rebase` is disabled in worktrees; use the git-rebase-safe command",
			}, nil
		}
	}
	return hookdispatch.Verdict{}, nil
}

// writeInput is the subset of a Write/Edit tool_input payload
// EnforceWorktreePathIsolation cares about.
type writeInput struct {
	FilePath string `json:"file_path"`
}

// EnforceWorktreePathIsolation blocks Write/Edit tool calls whose target
// file lies outside the session's own active worktree, which is the hard
// invariant that a session's edits land in exactly one worktree.
type EnforceWorktreePathIsolation struct {
	RepoRoot string
}

func (EnforceWorktreePathIsolation) Name() string { return "enforce-worktree-path-isolation" }

func (h EnforceWorktreePathIsolation) Handle(ctx context.Context, ev hookenvelope.Event) (hookdispatch.Verdict, error) {
	if ev.ToolName != "Write" && ev.ToolName != "Edit" {
		return hookdispatch.Verdict{}, nil
	}
	var in writeInput
	if err := json.Unmarshal(ev.ToolInput, &in); err != nil || in.FilePath == "" {
		return hookdispatch.Verdict{}, nil
	}

	worktreePath, ok := h.activeWorktree(ev)
	if !ok {
		return hookdispatch.Verdict{}, nil
	}

	target := shellutil.ResolvePath(in.FilePath, ev.CWD)
	if shellutil.IsInsideOrEqual(worktreePath, target) {
		return hookdispatch.Verdict{}, nil
	}

	corrected := correctedWorktreePath(worktreePath, ev.CWD, in.FilePath, target)
	return hookdispatch.Verdict{
		Block: true,
		Reason: fmt.Sprintf(
			"%q lies outside this session's worktree (%s). Use %q instead.",
			in.FilePath, worktreePath, corrected,
		),
	}, nil
}

// activeWorktree finds a worktree path this session holds a lock on, by
// reverse-looking-up the session's lock entries' worktrees maps for an entry
// whose agent id equals this event's agent id (or the session's main agent
// id, when the event carries none) or belongs to the same session as it.
// When several entries match, which one is returned is not defined.
func (h EnforceWorktreePathIsolation) activeWorktree(ev hookenvelope.Event) (string, bool) {
	store := lockstore.New(h.RepoRoot)
	entries, err := store.List()
	if err != nil {
		return "", false
	}

	wantAgent := ev.AgentID
	if wantAgent == "" {
		wantAgent = agentid.Main(ev.SessionID)
	}

	for _, e := range entries {
		if e.Malformed || e.SessionID != ev.SessionID {
			continue
		}
		for path, lockAgentID := range e.Worktrees {
			if agentid.Equal(lockAgentID, wantAgent) || agentid.SameSession(lockAgentID, wantAgent) {
				return shellutil.ResolvePath(path, ev.CWD), true
			}
		}
	}
	return "", false
}

func correctedWorktreePath(worktreePath, cwd, rawPath, resolvedTarget string) string {
	if rel, err := filepath.Rel(cwd, resolvedTarget); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.Join(worktreePath, rel)
	}
	return filepath.Join(worktreePath, filepath.Base(rawPath))
}

// RestoreWorktreeOnResume runs on SessionStart with source=resume: if this
// session still holds a lock and its recorded worktree directory exists and
// passes a path-safety check, it injects a `cd <path>` instruction so the
// agent resumes in the right place instead of the repository root.
type RestoreWorktreeOnResume struct {
	RepoRoot string
}

func (RestoreWorktreeOnResume) Name() string { return "restore-worktree-on-resume" }

func (h RestoreWorktreeOnResume) Handle(ctx context.Context, ev hookenvelope.Event) (hookdispatch.Verdict, error) {
	if ev.Source != "resume" {
		return hookdispatch.Verdict{}, nil
	}

	store := lockstore.New(h.RepoRoot)
	entries, err := store.List()
	if err != nil {
		return hookdispatch.Verdict{}, nil
	}

	for _, e := range entries {
		if e.Malformed || e.SessionID != ev.SessionID {
			continue
		}
		for path := range e.Worktrees {
			if !safeWorktreePath(h.RepoRoot, path) {
				continue
			}
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				return hookdispatch.Verdict{Context: fmt.Sprintf("cd %s", path)}, nil
			}
		}
	}
	return hookdispatch.Verdict{}, nil
}

func safeWorktreePath(repoRoot, path string) bool {
	if strings.Contains(path, "..") {
		return false
	}
	for _, r := range path {
		if r < 0x20 {
			return false
		}
	}
	resolvedRepo := shellutil.ResolvePath(repoRoot, repoRoot)
	resolvedPath := shellutil.ResolvePath(path, repoRoot)
	return shellutil.IsInsideOrEqual(resolvedRepo, resolvedPath)
}

// SkillMarkerClearer clears a session's scratch markers on SessionEnd so a
// new session for the same session id (rare, but possible after a crash
// and restart with a reused id) starts from a clean slate.
type SkillMarkerClearer struct {
	RepoRoot string
}

func (SkillMarkerClearer) Name() string { return "skill-marker-clearer" }

func (h SkillMarkerClearer) Handle(ctx context.Context, ev hookenvelope.Event) (hookdispatch.Verdict, error) {
	if err := sessiondir.Clear(h.RepoRoot, ev.SessionID); err != nil {
		return hookdispatch.Verdict{}, fmt.Errorf("clearing session markers: %w", err)
	}
	return hookdispatch.Verdict{}, nil
}

// SessionRestorer runs on SessionStart and, once per session id, injects a
// short "session scratch state initialized" context, recording that it did
// so with a warning-emitted marker. It does not read failure counters or
// any other state left over from a prior run.
type SessionRestorer struct {
	RepoRoot string
}

func (SessionRestorer) Name() string { return "session-restorer" }

func (h SessionRestorer) Handle(ctx context.Context, ev hookenvelope.Event) (hookdispatch.Verdict, error) {
	if sessiondir.WarningEmitted(h.RepoRoot, ev.SessionID, "restored") {
		return hookdispatch.Verdict{}, nil
	}
	if err := sessiondir.MarkWarningEmitted(h.RepoRoot, ev.SessionID, "restored"); err != nil {
		return hookdispatch.Verdict{}, err
	}
	return hookdispatch.Verdict{Context: "cat: session scratch state initialized"}, nil
}

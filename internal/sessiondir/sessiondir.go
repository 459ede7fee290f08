// Package sessiondir manages the small set of transient scratch files CAT
// writes under .claude/cat/sessions/<sessionId>/ to carry state between
// hook invocations within a single agent session: skill-load markers,
// failure counters, and warning-emitted markers. Each is a marker file
// whose mere presence (or simple numeric content) is the state — the same
// lightweight on-disk-flag style the teacher's internal/beads package uses
// for per-agent bookkeeping.
package sessiondir

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Dir returns the scratch directory for a session, creating it if absent.
func Dir(repoRoot, sessionID string) (string, error) {
	dir := filepath.Join(repoRoot, ".claude", "cat", "sessions", sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// MarkSkillLoaded records that skillName has been loaded this session.
func MarkSkillLoaded(repoRoot, sessionID, skillName string) error {
	dir, err := Dir(repoRoot, sessionID)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "skill-"+sanitize(skillName)+".loaded"), nil, 0o644)
}

// SkillLoaded reports whether skillName was already marked loaded.
func SkillLoaded(repoRoot, sessionID, skillName string) bool {
	dir := filepath.Join(repoRoot, ".claude", "cat", "sessions", sessionID)
	_, err := os.Stat(filepath.Join(dir, "skill-"+sanitize(skillName)+".loaded"))
	return err == nil
}

// IncrementFailureCount bumps the named failure counter and returns its new
// value, so handlers (e.g. a flaky-check retry guard) can escalate after N
// consecutive failures.
func IncrementFailureCount(repoRoot, sessionID, counterName string) (int, error) {
	dir, err := Dir(repoRoot, sessionID)
	if err != nil {
		return 0, err
	}
	path := filepath.Join(dir, "failures-"+sanitize(counterName)+".count")
	count := 0
	if data, err := os.ReadFile(path); err == nil {
		count, _ = strconv.Atoi(strings.TrimSpace(string(data)))
	}
	count++
	if err := os.WriteFile(path, []byte(strconv.Itoa(count)), 0o644); err != nil {
		return 0, err
	}
	return count, nil
}

// ResetFailureCount clears a failure counter, e.g. after a check passes.
func ResetFailureCount(repoRoot, sessionID, counterName string) error {
	dir := filepath.Join(repoRoot, ".claude", "cat", "sessions", sessionID)
	err := os.Remove(filepath.Join(dir, "failures-"+sanitize(counterName)+".count"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MarkWarningEmitted records that a one-shot warning has already been shown
// this session, so handlers don't repeat it on every tool call.
func MarkWarningEmitted(repoRoot, sessionID, warningName string) error {
	dir, err := Dir(repoRoot, sessionID)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "warned-"+sanitize(warningName)), nil, 0o644)
}

// WarningEmitted reports whether MarkWarningEmitted was already called for
// warningName this session.
func WarningEmitted(repoRoot, sessionID, warningName string) bool {
	dir := filepath.Join(repoRoot, ".claude", "cat", "sessions", sessionID)
	_, err := os.Stat(filepath.Join(dir, "warned-"+sanitize(warningName)))
	return err == nil
}

// Clear removes every marker file in the session's scratch directory
// without removing the directory itself, used by the SkillMarkerClearer
// handler on SessionEnd.
func Clear(repoRoot, sessionID string) error {
	dir := filepath.Join(repoRoot, ".claude", "cat", "sessions", sessionID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

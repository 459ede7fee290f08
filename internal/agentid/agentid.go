// Package agentid formats and parses CAT agent identifiers, the tenant
// value stored against each worktree path in a lock file.
package agentid

import (
	"fmt"
	"strings"
)

// Main returns the agent-id for a session's main agent: just the session id.
func Main(sessionID string) string {
	return sessionID
}

// Subagent returns the agent-id for a spawned subagent of a session.
func Subagent(sessionID, subagentID string) string {
	return fmt.Sprintf("%s/subagents/%s", sessionID, subagentID)
}

// SessionOf extracts the owning session id from an agent-id of either form.
func SessionOf(agentID string) string {
	if idx := strings.Index(agentID, "/subagents/"); idx >= 0 {
		return agentID[:idx]
	}
	return agentID
}

// Equal reports whether two agent-ids name the same tenant.
func Equal(a, b string) bool {
	return a == b
}

// SameSession reports whether two agent-ids belong to the same session,
// regardless of whether either is the main agent or a subagent.
func SameSession(a, b string) bool {
	return SessionOf(a) == SessionOf(b)
}

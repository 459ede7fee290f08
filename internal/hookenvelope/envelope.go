// Package hookenvelope implements the stdin-JSON-in, stdout-JSON-out
// contract every CAT hook binary speaks: read one event from stdin, run a
// handler, and always exit 0 — a hook binary that exits non-zero or panics
// would abort the agent's turn, so every failure mode here degrades to a
// systemMessage instead.
package hookenvelope

import (
	"encoding/json"
	"fmt"
	"io"
)

// Event is the JSON payload CAT hook binaries receive on stdin. Field names
// follow the host tool's own hook event schema; ToolInput is left as raw
// JSON since its shape varies by ToolName.
type Event struct {
	HookEventName  string          `json:"hook_event_name"`
	SessionID      string          `json:"session_id"`
	CWD            string          `json:"cwd"`
	TranscriptPath string          `json:"transcript_path,omitempty"`
	ToolName       string          `json:"tool_name,omitempty"`
	ToolInput      json.RawMessage `json:"tool_input,omitempty"`
	Prompt         string          `json:"prompt,omitempty"`
	AgentID        string          `json:"agent_id,omitempty"`
	Source         string          `json:"source,omitempty"`
}

// Response is the JSON payload written to stdout. Decision and Reason
// follow the host tool's block/allow hook-response contract; SystemMessage
// is surfaced to the user regardless of Decision.
type Response struct {
	Decision           string              `json:"decision,omitempty"`
	Reason             string              `json:"reason,omitempty"`
	SystemMessage      string              `json:"systemMessage,omitempty"`
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// HookSpecificOutput carries the additionalContext payload SessionStart and
// UserPromptSubmit handlers use to inject text into the conversation.
type HookSpecificOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}

// Handler processes one Event and returns the Response to emit.
type Handler func(Event) Response

// Run reads one Event from r, invokes handler, and writes the resulting
// Response to w. It recovers from any panic in handler, turning it into a
// systemMessage rather than letting the process crash. Run never returns a
// reason to exit non-zero — the caller's main() should always os.Exit(0)
// after calling it, per the host tool's hook contract.
func Run(r io.Reader, w io.Writer, handler Handler) {
	resp := runSafely(r, handler)
	enc := json.NewEncoder(w)
	if err := enc.Encode(resp); err != nil {
		// stdout is unusable; nothing further we can do but not crash.
		fmt.Fprintf(w, `{"systemMessage":"cat hook: failed to encode response: %s"}`+"\n", err)
	}
}

func runSafely(r io.Reader, handler Handler) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = Response{SystemMessage: fmt.Sprintf("cat hook: handler panicked: %v", rec)}
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return Response{SystemMessage: fmt.Sprintf("cat hook: failed to read stdin: %v", err)}
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Response{SystemMessage: fmt.Sprintf("cat hook: failed to parse event: %v", err)}
	}

	return handler(ev)
}

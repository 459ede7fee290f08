package hookdispatch

import (
	"context"
	"testing"

	"github.com/cat-dev/cat/internal/hookenvelope"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	name   string
	verdict Verdict
	err    error
}

func (f fakeHandler) Name() string { return f.name }
func (f fakeHandler) Handle(ctx context.Context, ev hookenvelope.Event) (Verdict, error) {
	return f.verdict, f.err
}

func TestFirstBlockWinsStopsAtFirstBlock(t *testing.T) {
	r := NewRegistry()
	r.Register("PreToolUse", PolicyFirstBlockWins, fakeHandler{name: "a", verdict: Verdict{}})
	r.Register("PreToolUse", PolicyFirstBlockWins, fakeHandler{name: "b", verdict: Verdict{Block: true, Reason: "nope"}})
	r.Register("PreToolUse", PolicyFirstBlockWins, fakeHandler{name: "c", verdict: Verdict{Block: true, Reason: "also-nope"}})

	resp, err := r.Dispatch(context.Background(), hookenvelope.Event{HookEventName: "PreToolUse"})
	require.NoError(t, err)
	require.Equal(t, "block", resp.Decision)
	require.Equal(t, "nope", resp.Reason)
}

func TestConcatenateContextJoinsAllHandlers(t *testing.T) {
	r := NewRegistry()
	r.Register("SessionStart", PolicyConcatenateContext, fakeHandler{name: "a", verdict: Verdict{Context: "first"}})
	r.Register("SessionStart", PolicyConcatenateContext, fakeHandler{name: "b", verdict: Verdict{Context: "second"}})

	resp, err := r.Dispatch(context.Background(), hookenvelope.Event{HookEventName: "SessionStart"})
	require.NoError(t, err)
	require.NotNil(t, resp.HookSpecificOutput)
	require.Contains(t, resp.HookSpecificOutput.AdditionalContext, "first")
	require.Contains(t, resp.HookSpecificOutput.AdditionalContext, "second")
}

func TestWarnOnlyNeverBlocks(t *testing.T) {
	r := NewRegistry()
	r.Register("PostToolUse", PolicyWarnOnly, fakeHandler{name: "a", verdict: Verdict{Block: true, Message: "watch out"}})

	resp, err := r.Dispatch(context.Background(), hookenvelope.Event{HookEventName: "PostToolUse"})
	require.NoError(t, err)
	require.Empty(t, resp.Decision)
	require.Contains(t, resp.SystemMessage, "watch out")
}

func TestSingleContextUsesFirstNonEmpty(t *testing.T) {
	r := NewRegistry()
	r.Register("UserPromptSubmit", PolicySingleContext, fakeHandler{name: "a", verdict: Verdict{}})
	r.Register("UserPromptSubmit", PolicySingleContext, fakeHandler{name: "b", verdict: Verdict{Context: "b-context"}})
	r.Register("UserPromptSubmit", PolicySingleContext, fakeHandler{name: "c", verdict: Verdict{Context: "c-context"}})

	resp, err := r.Dispatch(context.Background(), hookenvelope.Event{HookEventName: "UserPromptSubmit"})
	require.NoError(t, err)
	require.Equal(t, "b-context", resp.HookSpecificOutput.AdditionalContext)
}

func TestDispatchNoHandlerReturnsError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), hookenvelope.Event{HookEventName: "Unknown"})
	require.ErrorIs(t, err, ErrNoHandler)
}

func TestCanHandle(t *testing.T) {
	r := NewRegistry()
	require.False(t, r.CanHandle("PreToolUse"))
	r.Register("PreToolUse", PolicyFirstBlockWins, fakeHandler{name: "a"})
	require.True(t, r.CanHandle("PreToolUse"))
}

// Package hookdispatch routes one hookenvelope.Event to every registered
// handler for its event name and aggregates their verdicts into a single
// hookenvelope.Response. The registry shape — a map keyed by event name,
// Register/Dispatch methods — follows the teacher's internal/protocol
// HandlerRegistry; the four aggregation policies are new, grounded on
// spec.md §4.J's description of how CAT's own lifecycle events must combine
// multiple handlers' opinions.
package hookdispatch

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/cat-dev/cat/internal/hookenvelope"
)

// ErrNoHandler is returned by Dispatch when an event name has no registered
// handlers and no default policy applies.
var ErrNoHandler = errors.New("hookdispatch: no handler registered for event")

// Verdict is one handler's opinion on an event.
type Verdict struct {
	Block   bool
	Reason  string
	Context string // additionalContext to surface to the agent
	Warn    bool
	Message string // warn-only advisory text, never blocks
}

// Handler evaluates one event and returns its verdict.
type Handler interface {
	Name() string
	Handle(ctx context.Context, ev hookenvelope.Event) (Verdict, error)
}

// Policy controls how multiple handlers' verdicts for the same event are
// combined into one Response.
type Policy int

const (
	// PolicyFirstBlockWins stops at the first handler that blocks; its
	// reason wins. Used for safety-critical events (PreToolUse) where any
	// single veto must take effect immediately.
	PolicyFirstBlockWins Policy = iota
	// PolicyConcatenateContext never blocks; every handler's non-empty
	// Context is joined and returned as additionalContext. Used for
	// SessionStart/SubagentStart, where multiple handlers each contribute
	// independent background information.
	PolicyConcatenateContext
	// PolicyWarnOnly collects Message strings into the systemMessage but
	// never blocks and never injects context.
	PolicyWarnOnly
	// PolicySingleContext uses only the first handler that returns
	// non-empty Context; later handlers' context is discarded.
	PolicySingleContext
)

// Registry holds the handlers registered for each event name.
type Registry struct {
	handlers map[string][]Handler
	policies map[string]Policy
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string][]Handler{}, policies: map[string]Policy{}}
}

// Register adds h to the chain for eventName, using policy to aggregate
// across every handler registered for that event name.
func (r *Registry) Register(eventName string, policy Policy, h Handler) {
	r.handlers[eventName] = append(r.handlers[eventName], h)
	r.policies[eventName] = policy
}

// CanHandle reports whether any handler is registered for eventName.
func (r *Registry) CanHandle(eventName string) bool {
	return len(r.handlers[eventName]) > 0
}

// Dispatch runs every handler registered for ev.HookEventName and aggregates
// their verdicts per the event's configured Policy.
func (r *Registry) Dispatch(ctx context.Context, ev hookenvelope.Event) (hookenvelope.Response, error) {
	handlers := r.handlers[ev.HookEventName]
	if len(handlers) == 0 {
		return hookenvelope.Response{}, ErrNoHandler
	}

	switch r.policies[ev.HookEventName] {
	case PolicyFirstBlockWins:
		return dispatchFirstBlockWins(ctx, handlers, ev)
	case PolicyConcatenateContext:
		return dispatchConcatenateContext(ctx, handlers, ev)
	case PolicyWarnOnly:
		return dispatchWarnOnly(ctx, handlers, ev)
	case PolicySingleContext:
		return dispatchSingleContext(ctx, handlers, ev)
	default:
		return dispatchFirstBlockWins(ctx, handlers, ev)
	}
}

func dispatchFirstBlockWins(ctx context.Context, handlers []Handler, ev hookenvelope.Event) (hookenvelope.Response, error) {
	var systemMessages []string
	for _, h := range handlers {
		v, err := h.Handle(ctx, ev)
		if err != nil {
			return hookenvelope.Response{}, err
		}
		if v.Block {
			return hookenvelope.Response{Decision: "block", Reason: v.Reason}, nil
		}
		if v.Warn && v.Message != "" {
			systemMessages = append(systemMessages, v.Message)
		}
	}
	return hookenvelope.Response{SystemMessage: strings.Join(systemMessages, "\n")}, nil
}

func dispatchConcatenateContext(ctx context.Context, handlers []Handler, ev hookenvelope.Event) (hookenvelope.Response, error) {
	var parts []string
	for _, h := range handlers {
		v, err := h.Handle(ctx, ev)
		if err != nil {
			return hookenvelope.Response{}, err
		}
		if v.Context != "" {
			parts = append(parts, v.Context)
		}
	}
	if len(parts) == 0 {
		return hookenvelope.Response{}, nil
	}
	return hookenvelope.Response{
		HookSpecificOutput: &hookenvelope.HookSpecificOutput{
			HookEventName:     ev.HookEventName,
			AdditionalContext: strings.Join(parts, "\n\n"),
		},
	}, nil
}

func dispatchWarnOnly(ctx context.Context, handlers []Handler, ev hookenvelope.Event) (hookenvelope.Response, error) {
	var messages []string
	for _, h := range handlers {
		v, err := h.Handle(ctx, ev)
		if err != nil {
			return hookenvelope.Response{}, err
		}
		if v.Message != "" {
			messages = append(messages, v.Message)
		}
	}
	sort.Strings(messages)
	return hookenvelope.Response{SystemMessage: strings.Join(messages, "\n")}, nil
}

func dispatchSingleContext(ctx context.Context, handlers []Handler, ev hookenvelope.Event) (hookenvelope.Response, error) {
	for _, h := range handlers {
		v, err := h.Handle(ctx, ev)
		if err != nil {
			return hookenvelope.Response{}, err
		}
		if v.Context != "" {
			return hookenvelope.Response{
				HookSpecificOutput: &hookenvelope.HookSpecificOutput{
					HookEventName:     ev.HookEventName,
					AdditionalContext: v.Context,
				},
			}, nil
		}
	}
	return hookenvelope.Response{}, nil
}

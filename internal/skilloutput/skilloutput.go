// Package skilloutput renders a skill invocation's structured result into
// the `<output type="...">...</output>` envelope the host tool expects on
// a skill's stdout, dispatching on the result's dotted type name the way a
// one-map-per-type registry does, rather than a type switch that would need
// editing every time a new output kind is added.
package skilloutput

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Renderer turns one typed payload into its inner (pre-wrapping) text body.
type Renderer func(payload any) (string, error)

// Dispatcher routes a (type, payload) pair to its registered Renderer and
// wraps the result in the <output> envelope.
type Dispatcher struct {
	renderers map[string]Renderer
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{renderers: map[string]Renderer{}}
}

// Register binds a dotted type name (e.g. "cat.scheduler.found") to the
// Renderer that knows how to format it.
func (d *Dispatcher) Register(typeName string, r Renderer) {
	d.renderers[typeName] = r
}

// Render looks up typeName's Renderer, runs it, and wraps the result. If no
// renderer is registered, the payload is rendered with Go's default %+v
// formatting so an unregistered type still produces readable output rather
// than failing outright.
func (d *Dispatcher) Render(typeName string, payload any) (string, error) {
	render, ok := d.renderers[typeName]
	if !ok {
		render = func(p any) (string, error) { return fmt.Sprintf("%+v", p), nil }
	}

	body, err := render(payload)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", typeName, err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<output type=%q>\n", typeName)
	buf.WriteString(strings.TrimRight(body, "\n"))
	buf.WriteString("\n</output>\n")
	return buf.String(), nil
}

// RegisteredTypes returns every registered type name, sorted, mainly for
// tests and a `cat doctor`-style self-check that every expected renderer is
// wired up.
func (d *Dispatcher) RegisteredTypes() []string {
	names := make([]string, 0, len(d.renderers))
	for name := range d.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

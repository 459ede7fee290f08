package skilloutput

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderWrapsRegisteredType(t *testing.T) {
	d := NewDispatcher()
	d.Register("cat.scheduler.found", func(payload any) (string, error) {
		return "issue: " + payload.(string), nil
	})

	out, err := d.Render("cat.scheduler.found", "1-first")
	require.NoError(t, err)
	require.Contains(t, out, `<output type="cat.scheduler.found">`)
	require.Contains(t, out, "issue: 1-first")
	require.Contains(t, out, "</output>")
}

func TestRenderFallsBackForUnregisteredType(t *testing.T) {
	d := NewDispatcher()
	out, err := d.Render("cat.unknown", struct{ X int }{X: 5})
	require.NoError(t, err)
	require.Contains(t, out, "cat.unknown")
	require.Contains(t, out, "{X:5}")
}

func TestRenderPropagatesRendererError(t *testing.T) {
	d := NewDispatcher()
	d.Register("cat.broken", func(payload any) (string, error) {
		return "", errors.New("boom")
	})

	_, err := d.Render("cat.broken", nil)
	require.Error(t, err)
}

func TestRegisteredTypesSorted(t *testing.T) {
	d := NewDispatcher()
	d.Register("b", func(any) (string, error) { return "", nil })
	d.Register("a", func(any) (string, error) { return "", nil })

	require.Equal(t, []string{"a", "b"}, d.RegisteredTypes())
}

// Package style provides the small set of terminal text styles CAT's CLI
// output uses, via charmbracelet/lipgloss. Display formatting beyond plain
// bold/dim/warn/err text (status tables, boxes) is out of scope for a
// headless orchestration CLI, so the teacher's full Table/Column renderer
// was trimmed to just the styles it built on.
package style

import "github.com/charmbracelet/lipgloss"

var (
	// Bold highlights headings and emphasized values.
	Bold = lipgloss.NewStyle().Bold(true)
	// Dim renders secondary/low-priority text.
	Dim = lipgloss.NewStyle().Faint(true)
	// Warn marks a recoverable problem (e.g. a stale lock found by doctor).
	Warn = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	// Err marks a hard failure.
	Err = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

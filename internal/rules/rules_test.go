package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeRule(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadParsesFrontmatterAndBody(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "01-general.md", "---\nsubAgents: [reviewer]\n---\nReview carefully.\n")
	writeRule(t, dir, "02-no-frontmatter.md", "Always run tests.\n")

	rules, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	require.Equal(t, []string{"reviewer"}, rules[0].Frontmatter.SubAgents)
	require.Equal(t, "Review carefully.", rules[0].Body)
	require.Empty(t, rules[1].Frontmatter.SubAgents)
	require.Equal(t, "Always run tests.", rules[1].Body)
}

func TestAppliesFiltersBySubAgentAndPath(t *testing.T) {
	global := Rule{Body: "applies to all"}
	reviewerOnly := Rule{Frontmatter: Frontmatter{SubAgents: []string{"reviewer"}}, Body: "reviewer rule"}
	goFilesOnly := Rule{Frontmatter: Frontmatter{Paths: []string{"*.go"}}, Body: "go rule"}

	require.True(t, global.Applies(Audience{SubAgent: "main"}))
	require.True(t, reviewerOnly.Applies(Audience{SubAgent: "reviewer"}))
	require.False(t, reviewerOnly.Applies(Audience{SubAgent: "main"}))
	require.True(t, goFilesOnly.Applies(Audience{Path: "internal/foo.go"}))
	require.False(t, goFilesOnly.Applies(Audience{Path: "internal/foo.py"}))
}

func TestConcatenateJoinsApplicableRules(t *testing.T) {
	rules := []Rule{
		{Body: "first"},
		{Frontmatter: Frontmatter{SubAgents: []string{"reviewer"}}, Body: "second"},
	}
	out := Concatenate(rules, Audience{SubAgent: "main"})
	require.Equal(t, "first", out)

	out = Concatenate(rules, Audience{SubAgent: "reviewer"})
	require.Contains(t, out, "first")
	require.Contains(t, out, "second")
}

func TestLoadMissingDirIsNotError(t *testing.T) {
	rules, err := Load(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	require.Empty(t, rules)
}

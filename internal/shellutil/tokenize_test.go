package shellutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeQuoting(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`rm -rf /tmp/x`, []string{"rm", "-rf", "/tmp/x"}},
		{`rm -rf "/tmp/with space"`, []string{"rm", "-rf", "/tmp/with space"}},
		{`rm -rf '/tmp/with space'`, []string{"rm", "-rf", "/tmp/with space"}},
		{`echo "a\"b"`, []string{"echo", `a"b`}},
		{`echo foo\ bar`, []string{"echo", "foo bar"}},
		{`rm -rf a; rm -rf b`, []string{"rm", "-rf", "a", ";", "rm", "-rf", "b"}},
		{`cd /x && rm -rf /y`, []string{"cd", "/x", "&&", "rm", "-rf", "/y"}},
		{`git log --grep=foo`, []string{"git", "log", "--grep=foo"}},
	}
	for _, c := range cases {
		got := Tokenize(c.in)
		require.Equal(t, c.want, got, "tokenizing %q", c.in)
	}
}

func TestTokenizePreservesOrder(t *testing.T) {
	got := Tokenize(`a b c`)
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestSplitStatements(t *testing.T) {
	tokens := Tokenize(`cd /x && rm -rf /y`)
	stmts := SplitStatements(tokens)
	require.Equal(t, [][]string{{"cd", "/x"}, {"rm", "-rf", "/y"}}, stmts)
}

func TestStripEnvPrefix(t *testing.T) {
	tokens := []string{"CAT_AGENT_ID=S1/subagents/2", "rm", "-rf", "/x"}
	env, argv := StripEnvPrefix(tokens)
	require.Equal(t, "S1/subagents/2", env["CAT_AGENT_ID"])
	require.Equal(t, []string{"rm", "-rf", "/x"}, argv)
}

func TestStripEnvPrefixNone(t *testing.T) {
	tokens := []string{"rm", "-rf", "/x"}
	env, argv := StripEnvPrefix(tokens)
	require.Empty(t, env)
	require.Equal(t, tokens, argv)
}

func TestIsInsideOrEqual(t *testing.T) {
	require.True(t, IsInsideOrEqual("/a/b", "/a/b"))
	require.True(t, IsInsideOrEqual("/a/b", "/a/b/c"))
	require.False(t, IsInsideOrEqual("/a/b", "/a/bc"))
	require.False(t, IsInsideOrEqual("/a/b/c", "/a/b"))
}

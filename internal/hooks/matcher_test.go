package hooks

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustMatch(t *testing.T, src string, in Input) bool {
	t.Helper()
	m, err := ParseMatcher(src)
	require.NoError(t, err)
	return m.Match(in)
}

func TestMatcherStarAlwaysMatches(t *testing.T) {
	require.True(t, mustMatch(t, "*", Input{}))
	require.True(t, mustMatch(t, "*", Input{ToolName: "Bash"}))
}

func TestMatcherEquality(t *testing.T) {
	require.True(t, mustMatch(t, `tool == "Bash"`, Input{ToolName: "Bash"}))
	require.False(t, mustMatch(t, `tool == "Bash"`, Input{ToolName: "Read"}))
}

func TestMatcherNegation(t *testing.T) {
	require.False(t, mustMatch(t, `!(tool == "Bash")`, Input{ToolName: "Bash"}))
	require.True(t, mustMatch(t, `!(tool == "Bash")`, Input{ToolName: "Read"}))
}

func TestMatcherRegex(t *testing.T) {
	require.True(t, mustMatch(t, `tool matches "^Read.*"`, Input{ToolName: "ReadFile"}))
	require.False(t, mustMatch(t, `tool matches "^Read.*"`, Input{ToolName: "WriteFile"}))
}

func TestMatcherAndOr(t *testing.T) {
	in := Input{ToolName: "Bash"}
	require.True(t, mustMatch(t, `tool == "Bash" || tool == "Read"`, in))
	require.False(t, mustMatch(t, `tool == "Bash" && tool == "Read"`, in))
}

func TestMatcherToolInputPath(t *testing.T) {
	in := Input{ToolName: "Write", ToolInput: []byte(`{"file_path":"/tmp/notes.md"}`)}
	require.True(t, mustMatch(t, `tool_input.file_path matches "\.md$"`, in))
	require.False(t, mustMatch(t, `tool_input.file_path matches "\.txt$"`, in))
}

func TestMatcherToolOutputPath(t *testing.T) {
	in := Input{ToolOutput: []byte(`{"status":"ok"}`)}
	require.True(t, mustMatch(t, `tool_output.status == "ok"`, in))
}

func TestMatcherBareFieldTruthiness(t *testing.T) {
	require.True(t, mustMatch(t, `tool`, Input{ToolName: "Bash"}))
	require.False(t, mustMatch(t, `tool`, Input{}))
}

func TestMatcherEmptyStringAlwaysMatches(t *testing.T) {
	require.True(t, mustMatch(t, "", Input{}))
}

func TestMatcherEscapedQuoteInStringLiteral(t *testing.T) {
	in := Input{ToolName: `say "hi"`}
	require.True(t, mustMatch(t, `tool == "say \"hi\""`, in))
}

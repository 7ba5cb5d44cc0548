package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hooks.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestRunVetoesOnNonZeroExit(t *testing.T) {
	path := writeManifest(t, `{
	  "PreToolUse": [
	    {"matcher": "tool == \"ChatCompletions\"", "hooks": [
	      {"type": "command", "command": "exit 1"},
	      {"type": "command", "command": "echo skipped", "enabled": false}
	    ]}
	  ]
	}`)

	e := NewExecutor()
	e.ExplicitManifestPath = path

	results := e.Run(context.Background(), EventPreToolUse, Input{ToolName: "ChatCompletions"})
	require.Len(t, results, 1)
	require.True(t, AnyVetoed(results))

	results = e.Run(context.Background(), EventPreToolUse, Input{ToolName: "Other"})
	require.Empty(t, results)
}

func TestRunAcceptsSnakeCaseEventKeys(t *testing.T) {
	path := writeManifest(t, `{
	  "post_tool_use": [
	    {"matcher": "*", "hooks": [{"type": "command", "command": "echo done"}]}
	  ]
	}`)

	e := NewExecutor()
	e.ExplicitManifestPath = path

	results := e.Run(context.Background(), EventPostToolUse, Input{ToolName: "Bash"})
	require.Len(t, results, 1)
	require.False(t, AnyVetoed(results))
	require.Contains(t, results[0].Stdout, "done")
}

func TestRunTimeoutIsHardFailureNotVeto(t *testing.T) {
	path := writeManifest(t, `{
	  "PreToolUse": [
	    {"matcher": "*", "hooks": [{"type": "command", "command": "sleep 5", "timeout": 1}]}
	  ]
	}`)

	e := NewExecutor()
	e.ExplicitManifestPath = path

	results := e.Run(context.Background(), EventPreToolUse, Input{ToolName: "Bash"})
	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Err, ErrTimeout)
	require.False(t, AnyVetoed(results))
}

func TestRunDispatchesBuiltins(t *testing.T) {
	path := writeManifest(t, `{
	  "PostToolUse": [
	    {"matcher": "tool == \"Bash\"", "hooks": [{"type": "builtin", "builtin": "git_push_reminder"}]}
	  ]
	}`)

	e := NewExecutor()
	e.ExplicitManifestPath = path

	results := e.Run(context.Background(), EventPostToolUse, Input{
		ToolName:  "Bash",
		ToolInput: []byte(`{"command":"git push origin main"}`),
	})
	require.Len(t, results, 1)
	require.Contains(t, results[0].Stderr, "pull request")
	require.False(t, AnyVetoed(results))
}

func TestRunMissingManifestPassesThrough(t *testing.T) {
	e := NewExecutor()
	e.ExplicitManifestPath = filepath.Join(t.TempDir(), "absent.json")
	results := e.Run(context.Background(), EventPreToolUse, Input{ToolName: "Anything"})
	require.Empty(t, results)
}

func TestRunDisabledByEnvVar(t *testing.T) {
	path := writeManifest(t, `{
	  "PreToolUse": [{"matcher": "*", "hooks": [{"type": "command", "command": "exit 1"}]}]
	}`)
	t.Setenv("COPILOT_HOOKS_ENABLED", "0")

	e := NewExecutor()
	e.ExplicitManifestPath = path
	require.Empty(t, e.Run(context.Background(), EventPreToolUse, Input{ToolName: "Bash"}))
}

func TestNormalizeEvent(t *testing.T) {
	require.Equal(t, EventPreToolUse, NormalizeEvent("pre_tool_use"))
	require.Equal(t, EventPreToolUse, NormalizeEvent("PreToolUse"))
	require.Equal(t, EventStop, NormalizeEvent("stop"))
	require.Equal(t, Event("Custom"), NormalizeEvent("Custom"))
}

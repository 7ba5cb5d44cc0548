package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockDocCreation(t *testing.T) {
	cases := []struct {
		path string
		veto bool
	}{
		{"/tmp/NOTES.md", true},
		{"/tmp/scratch.txt", true},
		{"/tmp/README.md", false},
		{"/tmp/CLAUDE.md", false},
		{"/tmp/AGENTS.md", false},
		{"/tmp/CONTRIBUTING.md", false},
		{"/tmp/main.go", false},
	}
	for _, tc := range cases {
		in := Input{ToolName: "Write", ToolInput: []byte(`{"file_path":"` + tc.path + `"}`)}
		r := builtinBlockDocCreation(context.Background(), in)
		require.Equal(t, tc.veto, r.Vetoed(), "path %s", tc.path)
	}
}

func TestTmuxDevBlockVetoesOutsideTmux(t *testing.T) {
	t.Setenv("TMUX", "")
	in := Input{ToolName: "Bash", ToolInput: []byte(`{"command":"npm run dev"}`)}
	require.True(t, builtinTmuxDevBlock(context.Background(), in).Vetoed())

	t.Setenv("TMUX", "/tmp/tmux-1000/default,1234,0")
	require.False(t, builtinTmuxDevBlock(context.Background(), in).Vetoed())
}

func TestSuggestCompactCountsToolUses(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("COMPACT_THRESHOLD", "3")
	in := Input{SessionID: "sess-1", ToolName: "Bash"}

	for i := 0; i < 2; i++ {
		r := builtinSuggestCompact(context.Background(), in)
		require.NoError(t, r.Err)
		require.Empty(t, r.Stdout)
	}
	r := builtinSuggestCompact(context.Background(), in)
	require.Contains(t, r.Stdout, "compacting")
}

func TestSessionEndWritesMarker(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	in := Input{SessionID: "sess-9"}

	r := builtinSessionEnd(context.Background(), in)
	require.NoError(t, r.Err)
	require.FileExists(t, filepath.Join(home, ".claude", "sessions", "sess-9.json"))
}

func TestEvaluateSessionRecordsLearnedPattern(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	transcript := filepath.Join(home, "transcript.jsonl")
	lines := `{"role":"user","content":"a"}
{"role":"assistant","content":"b"}
{"role":"user","content":"c"}
`
	require.NoError(t, os.WriteFile(transcript, []byte(lines), 0o600))
	t.Setenv("CLAUDE_TRANSCRIPT_PATH", transcript)
	t.Setenv("CLAUDE_MIN_SESSION_MESSAGES", "2")

	r := builtinEvaluateSession(context.Background(), Input{SessionID: "sess-2"})
	require.NoError(t, r.Err)
	require.Contains(t, r.Stdout, "learned pattern")

	entries, err := os.ReadDir(filepath.Join(home, ".claude", "skills", "learned"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestEvaluateSessionBelowThreshold(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	transcript := filepath.Join(home, "transcript.jsonl")
	require.NoError(t, os.WriteFile(transcript, []byte(`{"role":"user","content":"a"}`+"\n"), 0o600))
	t.Setenv("CLAUDE_TRANSCRIPT_PATH", transcript)
	t.Setenv("CLAUDE_MIN_SESSION_MESSAGES", "5")

	r := builtinEvaluateSession(context.Background(), Input{SessionID: "sess-3"})
	require.NoError(t, r.Err)
	require.NoDirExists(t, filepath.Join(home, ".claude", "skills", "learned"))
}

func TestAdvisoryBuiltinsNeverVeto(t *testing.T) {
	t.Setenv("TMUX", "")
	bash := Input{ToolName: "Bash", ToolInput: []byte(`{"command":"npm run dev && git push && gh pr create"}`)}
	write := Input{ToolName: "Write", ToolInput: []byte(`{"file_path":"app.js","content":"console.log(1)"}`)}

	for name, fn := range map[string]Builtin{
		"check_console_log": builtinCheckConsoleLog,
		"warn_console_log":  builtinWarnConsoleLog,
		"tmux_reminder":     builtinTmuxReminder,
		"git_push_reminder": builtinGitPushReminder,
		"pr_create_notice":  builtinPRCreateNotice,
	} {
		in := bash
		if name == "check_console_log" || name == "warn_console_log" {
			in = write
		}
		r := fn(context.Background(), in)
		require.False(t, r.Vetoed(), "builtin %s", name)
	}
}

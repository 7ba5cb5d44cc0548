package hooks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

func registerBuiltins(e *Executor) {
	e.RegisterBuiltin("session_start", builtinSessionStart)
	e.RegisterBuiltin("session_end", builtinSessionEnd)
	e.RegisterBuiltin("pre_compact", builtinSuggestCompact)
	e.RegisterBuiltin("suggest_compact", builtinSuggestCompact)
	e.RegisterBuiltin("evaluate_session", builtinEvaluateSession)
	e.RegisterBuiltin("check_console_log", builtinCheckConsoleLog)
	e.RegisterBuiltin("warn_console_log", builtinWarnConsoleLog)
	e.RegisterBuiltin("tmux_dev_block", builtinTmuxDevBlock)
	e.RegisterBuiltin("tmux_reminder", builtinTmuxReminder)
	e.RegisterBuiltin("git_push_reminder", builtinGitPushReminder)
	e.RegisterBuiltin("pr_create_notice", builtinPRCreateNotice)
	e.RegisterBuiltin("block_doc_creation", builtinBlockDocCreation)
}

func ok(msg string) Result {
	return Result{ExitCode: 0, Stdout: msg}
}

func advisory(msg string) Result {
	return Result{ExitCode: 0, Stderr: msg}
}

func veto(msg string) Result {
	return Result{ExitCode: 1, Stderr: msg}
}

// claudeDir resolves the per-user state root the hook builtins share with
// the wider Claude tooling ecosystem.
func claudeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude"
	}
	return filepath.Join(home, ".claude")
}

func sessionsDir() string      { return filepath.Join(claudeDir(), "sessions") }
func learnedSkillsDir() string { return filepath.Join(claudeDir(), "skills", "learned") }

func sessionID(in Input) string {
	if in.SessionID != "" {
		return in.SessionID
	}
	if id := os.Getenv("CLAUDE_SESSION_ID"); id != "" {
		return id
	}
	return "default"
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// builtinSessionStart surveys the session history: how many session files
// were touched in the last week, and how many learned-skill records have
// accumulated.
func builtinSessionStart(_ context.Context, in Input) Result {
	recent := 0
	cutoff := time.Now().Add(-7 * 24 * time.Hour)
	if entries, err := os.ReadDir(sessionsDir()); err == nil {
		for _, e := range entries {
			if info, err := e.Info(); err == nil && info.ModTime().After(cutoff) {
				recent++
			}
		}
	}
	learned := 0
	if entries, err := os.ReadDir(learnedSkillsDir()); err == nil {
		learned = len(entries)
	}
	return ok(fmt.Sprintf("%d recent sessions, %d learned skills", recent, learned))
}

// builtinSessionEnd drops a session marker file so later session_start
// invocations (and external tooling) can see when this session closed.
func builtinSessionEnd(_ context.Context, in Input) Result {
	dir := sessionsDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Result{ExitCode: 0, Err: err}
	}
	marker := map[string]string{
		"session_id": sessionID(in),
		"ended_at":   time.Now().Format(time.RFC3339),
	}
	b, _ := json.Marshal(marker)
	path := filepath.Join(dir, sessionID(in)+".json")
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return Result{ExitCode: 0, Err: err}
	}
	return ok("session marker written")
}

// builtinSuggestCompact bumps a per-session tool-use counter (persisted as
// a file, since the `hook` subcommand runs each event in a fresh process)
// and suggests compaction once the count crosses COMPACT_THRESHOLD.
func builtinSuggestCompact(_ context.Context, in Input) Result {
	threshold := envIntOr("COMPACT_THRESHOLD", 50)
	dir := sessionsDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Result{ExitCode: 0, Err: err}
	}
	path := filepath.Join(dir, sessionID(in)+".tooluse")

	count := 0
	if b, err := os.ReadFile(path); err == nil {
		count, _ = strconv.Atoi(strings.TrimSpace(string(b)))
	}
	count++
	if err := os.WriteFile(path, []byte(strconv.Itoa(count)), 0o600); err != nil {
		return Result{ExitCode: 0, Err: err}
	}

	if count >= threshold {
		return ok(fmt.Sprintf("%d tool uses this session; consider compacting the conversation", count))
	}
	return ok("")
}

// builtinEvaluateSession reads the transcript named by CLAUDE_TRANSCRIPT_PATH
// and, when the session carried enough user messages to be worth learning
// from, writes a learned-pattern record next to the other skill files.
func builtinEvaluateSession(_ context.Context, in Input) Result {
	transcript := os.Getenv("CLAUDE_TRANSCRIPT_PATH")
	if transcript == "" {
		return ok("")
	}
	minMessages := envIntOr("CLAUDE_MIN_SESSION_MESSAGES", 5)

	f, err := os.Open(transcript)
	if err != nil {
		return Result{ExitCode: 0, Err: err}
	}
	defer f.Close()

	userMessages := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var line struct {
			Role string `json:"role"`
			Type string `json:"type"`
		}
		if json.Unmarshal(scanner.Bytes(), &line) != nil {
			continue
		}
		if line.Role == "user" || line.Type == "user" {
			userMessages++
		}
	}
	if userMessages < minMessages {
		return ok(fmt.Sprintf("%d user messages, below learning threshold", userMessages))
	}

	dir := learnedSkillsDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Result{ExitCode: 0, Err: err}
	}
	record := map[string]any{
		"session_id":    sessionID(in),
		"transcript":    transcript,
		"user_messages": userMessages,
		"recorded_at":   time.Now().Format(time.RFC3339),
	}
	b, _ := json.Marshal(record)
	path := filepath.Join(dir, fmt.Sprintf("%s-%d.json", sessionID(in), time.Now().Unix()))
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return Result{ExitCode: 0, Err: err}
	}
	return ok(fmt.Sprintf("learned pattern recorded (%d user messages)", userMessages))
}

// builtinCheckConsoleLog flags console.log occurrences in written content;
// advisory only.
func builtinCheckConsoleLog(_ context.Context, in Input) Result {
	if strings.Contains(extractWriteContent(in.ToolInput), "console.log") {
		return advisory("console.log detected in written content")
	}
	return ok("")
}

// builtinWarnConsoleLog is the louder sibling: it names the file, but still
// only warns.
func builtinWarnConsoleLog(_ context.Context, in Input) Result {
	path := extractFilePath(in.ToolInput)
	if path == "" {
		return ok("")
	}
	if strings.Contains(extractWriteContent(in.ToolInput), "console.log") {
		return advisory(fmt.Sprintf("console.log found in %s; is that debug output?", path))
	}
	return ok("")
}

// allowedDocFiles are the only .md files a write is permitted to create or
// overwrite; everything else looks like throwaway documentation nobody
// asked for.
var allowedDocFiles = map[string]bool{
	"README.md":       true,
	"CLAUDE.md":       true,
	"AGENTS.md":       true,
	"CONTRIBUTING.md": true,
}

// builtinBlockDocCreation vetoes writes of .md/.txt files outside the
// allowlist above.
func builtinBlockDocCreation(_ context.Context, in Input) Result {
	path := extractFilePath(in.ToolInput)
	if path == "" {
		return ok("")
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".md" && ext != ".txt" {
		return ok("")
	}
	if allowedDocFiles[filepath.Base(path)] {
		return ok("")
	}
	return veto(fmt.Sprintf("refusing to create doc file %s; not explicitly requested", path))
}

// builtinTmuxDevBlock vetoes a Bash call that starts a long-running dev
// server outside a terminal multiplexer, since an un-backgrounded dev
// server blocks the calling session until killed.
func builtinTmuxDevBlock(_ context.Context, in Input) Result {
	if in.ToolName != "Bash" {
		return ok("")
	}
	cmd := extractBashCommand(in.ToolInput)
	if isDevServerCommand(cmd) && os.Getenv("TMUX") == "" && !strings.Contains(cmd, "tmux") {
		return veto("run dev servers inside tmux so they don't block this session")
	}
	return ok("")
}

// builtinTmuxReminder is the advisory counterpart of tmux_dev_block.
func builtinTmuxReminder(_ context.Context, in Input) Result {
	if in.ToolName != "Bash" {
		return ok("")
	}
	cmd := extractBashCommand(in.ToolInput)
	if isDevServerCommand(cmd) && os.Getenv("TMUX") == "" && !strings.Contains(cmd, "tmux") {
		return advisory("tip: consider running this inside tmux")
	}
	return ok("")
}

// builtinGitPushReminder fires after a Bash call containing "git push",
// nudging toward checking CI / opening a PR next.
func builtinGitPushReminder(_ context.Context, in Input) Result {
	if in.ToolName != "Bash" {
		return ok("")
	}
	if strings.Contains(extractBashCommand(in.ToolInput), "git push") {
		return advisory("pushed; consider opening or updating a pull request")
	}
	return ok("")
}

// builtinPRCreateNotice fires after a Bash call that creates a PR.
func builtinPRCreateNotice(_ context.Context, in Input) Result {
	if in.ToolName != "Bash" {
		return ok("")
	}
	if strings.Contains(extractBashCommand(in.ToolInput), "gh pr create") {
		return advisory("pull request created")
	}
	return ok("")
}

var devServerCommands = []string{
	"npm run dev", "npm start", "yarn dev", "pnpm dev", "next dev",
	"vite", "flask run", "rails server", "rails s", "python -m http.server",
	"go run .", "air",
}

func isDevServerCommand(cmd string) bool {
	for _, c := range devServerCommands {
		if strings.Contains(cmd, c) {
			return true
		}
	}
	return false
}

func extractFilePath(raw json.RawMessage) string {
	var v struct {
		FilePath string `json:"file_path"`
		Path     string `json:"path"`
	}
	if json.Unmarshal(raw, &v) != nil {
		return ""
	}
	if v.FilePath != "" {
		return v.FilePath
	}
	return v.Path
}

func extractWriteContent(raw json.RawMessage) string {
	var v struct {
		Content string `json:"content"`
		NewStr  string `json:"new_string"`
	}
	if json.Unmarshal(raw, &v) != nil {
		return ""
	}
	if v.Content != "" {
		return v.Content
	}
	return v.NewStr
}

func extractBashCommand(raw json.RawMessage) string {
	var v struct {
		Command string `json:"command"`
	}
	if json.Unmarshal(raw, &v) != nil {
		return ""
	}
	return v.Command
}

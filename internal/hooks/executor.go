package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// maxAncestorWalk bounds how far up the directory tree the executor looks
// for a hooks.json manifest.
const maxAncestorWalk = 8

// manifestRelPath is the conventional location of a hooks manifest relative
// to a project root or the user's home directory.
const manifestRelPath = ".claude/hooks/hooks.json"

// hooksPathEnvVar overrides manifest resolution entirely when set.
const hooksPathEnvVar = "CLAUDE_HOOKS_PATH"

const defaultEntryTimeout = 30 * time.Second

// Builtin is a hook implementation registered under a name a manifest
// entry can reference via its "builtin" field instead of "command".
type Builtin func(ctx context.Context, in Input) Result

// Executor resolves and runs hooks for lifecycle events.
type Executor struct {
	builtins map[string]Builtin
	// ExplicitManifestPath, if set, is used instead of walking ancestors —
	// this is how `--config` on the `hook` CLI subcommand and the
	// hook_manifest config file field are honored.
	ExplicitManifestPath string
	// Observe is invoked once per hook run with its input and result,
	// independent of whether it vetoed — this is the gateway's hook
	// observation log.
	Observe func(event Event, in Input, entry Entry, result Result)
}

func NewExecutor() *Executor {
	e := &Executor{builtins: map[string]Builtin{}}
	registerBuiltins(e)
	return e
}

func (e *Executor) RegisterBuiltin(name string, fn Builtin) {
	e.builtins[name] = fn
}

// resolveManifest finds the manifest to use, in precedence order: an
// explicit CLI-supplied path, the CLAUDE_HOOKS_PATH environment override,
// the nearest ./.claude/hooks/hooks.json walking cwd's ancestors up to
// maxAncestorWalk levels, or finally the home directory's
// .claude/hooks/hooks.json. A missing file at any of these steps yields an
// empty manifest (nil, nil), not an error — all events pass through.
func (e *Executor) resolveManifest(cwd string) (Manifest, error) {
	if e.ExplicitManifestPath != "" {
		return loadManifest(e.ExplicitManifestPath)
	}
	if envPath := os.Getenv(hooksPathEnvVar); envPath != "" {
		return loadManifest(envPath)
	}
	if cwd == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}
	dir := cwd
	for i := 0; i < maxAncestorWalk; i++ {
		candidate := filepath.Join(dir, manifestRelPath)
		if _, err := os.Stat(candidate); err == nil {
			return loadManifest(candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, manifestRelPath)
		if _, err := os.Stat(candidate); err == nil {
			return loadManifest(candidate)
		}
	}
	return nil, nil
}

func loadManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Enabled reports whether the hook engine is active at all; the
// COPILOT_HOOKS_ENABLED environment variable set to "0" or "false"
// switches every event to pass-through.
func Enabled() bool {
	switch os.Getenv("COPILOT_HOOKS_ENABLED") {
	case "0", "false", "FALSE", "False":
		return false
	}
	return true
}

// Run executes every hook registered for event whose config matcher admits
// in, in manifest order, each entry with its own timeout. All matching
// hooks run regardless of earlier vetoes within the same call — the caller
// decides what to do with a veto (AnyVetoed reports one).
func (e *Executor) Run(ctx context.Context, event Event, in Input) []Result {
	if !Enabled() {
		return nil
	}
	in.Event = event
	manifest, err := e.resolveManifest(in.Cwd)
	if err != nil {
		log.WithError(err).Warn("hooks: failed to resolve manifest")
	}

	var results []Result
	for _, cfg := range manifest.ConfigsFor(event) {
		matcher, err := ParseMatcher(cfg.Matcher)
		if err != nil {
			log.WithError(err).WithField("matcher", cfg.Matcher).Warn("hooks: bad matcher, skipping config")
			continue
		}
		if !matcher.Match(in) {
			continue
		}
		for _, entry := range cfg.Hooks {
			if !entry.IsEnabled() {
				continue
			}
			result := e.runEntry(ctx, entry, in)
			if result.Stderr != "" {
				log.WithField("event", string(event)).WithField("hook_stderr", result.Stderr).Debug("hook stderr")
			}
			if result.Err != nil {
				log.WithError(result.Err).WithField("event", string(event)).Warn("hooks: entry failed")
			}
			if e.Observe != nil {
				e.Observe(event, in, entry, result)
			}
			results = append(results, result)
		}
	}
	return results
}

func (e *Executor) runEntry(ctx context.Context, entry Entry, in Input) Result {
	switch {
	case entry.Type == "builtin" || (entry.Type == "" && entry.Builtin != ""):
		fn, ok := e.builtins[entry.Builtin]
		if !ok {
			log.WithField("builtin", entry.Builtin).Warn("hooks: unknown builtin")
			return Result{Entry: entry, ExitCode: 0}
		}
		r := fn(ctx, in)
		r.Entry = entry
		return r
	case entry.Command != "":
		return runSubprocess(ctx, entry, in)
	default:
		return Result{Entry: entry, ExitCode: 0}
	}
}

func runSubprocess(ctx context.Context, entry Entry, in Input) Result {
	timeout := time.Duration(entry.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultEntryTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(in)
	if err != nil {
		return Result{Entry: entry, ExitCode: 0, Err: err}
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", entry.Command)
	cmd.Dir = in.Cwd
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := Result{
		Entry:  entry,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		result.Err = ErrTimeout
	case runErr == nil:
	default:
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.Err = runErr
		}
	}
	return result
}

// AnyVetoed reports whether any result in results vetoed the operation.
func AnyVetoed(results []Result) bool {
	for _, r := range results {
		if r.Vetoed() {
			return true
		}
	}
	return false
}

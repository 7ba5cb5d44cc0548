// Package approval implements the gateway's synchronous manual-approval
// gate: when enabled, every request blocks on an interactive terminal
// confirmation before it is allowed to proceed.
package approval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/copilot-gateway/copilot-api/internal/errors"
)

// Prompter asks a yes/no question and returns the answer. The default
// implementation talks to the process's stdin/stdout; tests substitute a
// canned Prompter instead of driving a real terminal.
type Prompter interface {
	Confirm(question string, defaultAnswer bool) (bool, error)
}

// TerminalPrompter drives an interactive confirm prompt over the given
// reader/writer, defaulting to the process's real stdin/stdout. There is
// no terminal-confirm library in this gateway's dependency set, so this is
// a small stdlib-based substitute: it reads a line, trims it, and treats
// Y/y/yes (case-insensitively) as acceptance, empty input as the supplied
// default, and anything else as rejection.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p TerminalPrompter) Confirm(question string, defaultAnswer bool) (bool, error) {
	in, out := p.In, p.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if f, ok := in.(*os.File); ok && !IsInteractive(f.Fd()) {
		return false, fmt.Errorf("approval: stdin is not an interactive terminal, failing closed")
	}

	hint := "y/N"
	if defaultAnswer {
		hint = "Y/n"
	}
	fmt.Fprintf(out, "%s [%s] ", question, hint)

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return defaultAnswer, nil
	}
	line = strings.ToLower(strings.TrimSpace(line))
	switch line {
	case "":
		return defaultAnswer, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// IsInteractive reports whether the given fd is a real terminal — used to
// decide whether it's even meaningful to attempt a confirm prompt versus
// failing closed immediately.
func IsInteractive(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// Gate enforces the manual-approval policy. Enabled is read fresh on every
// call so it tracks the live config value.
type Gate struct {
	Enabled  func() bool
	Prompter Prompter
}

// Check runs the approval gate for one request. When disabled it's an
// immediate pass; when enabled, a declined or failed prompt returns a 401
// "Request rejected" AppError.
func (g *Gate) Check() error {
	if g.Enabled == nil || !g.Enabled() {
		return nil
	}
	approved, err := g.Prompter.Confirm("Accept incoming request?", false)
	if err != nil {
		return errors.Unauthorized("Request rejected", err)
	}
	if !approved {
		return errors.Unauthorized("Request rejected", nil)
	}
	return nil
}

package approval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubPrompter struct {
	approved bool
	err      error
}

func (s stubPrompter) Confirm(question string, defaultAnswer bool) (bool, error) {
	return s.approved, s.err
}

func TestGateCheckDisabledAlwaysPasses(t *testing.T) {
	g := &Gate{Enabled: func() bool { return false }, Prompter: stubPrompter{approved: false}}
	require.NoError(t, g.Check())
}

func TestGateCheckApprovedPasses(t *testing.T) {
	g := &Gate{Enabled: func() bool { return true }, Prompter: stubPrompter{approved: true}}
	require.NoError(t, g.Check())
}

func TestGateCheckDeclinedRejects(t *testing.T) {
	g := &Gate{Enabled: func() bool { return true }, Prompter: stubPrompter{approved: false}}
	err := g.Check()
	require.Error(t, err)
}

func TestTerminalPrompterConfirmReadsLine(t *testing.T) {
	var out strings.Builder
	p := TerminalPrompter{In: strings.NewReader("yes\n"), Out: &out}
	got, err := p.Confirm("Accept?", false)
	require.NoError(t, err)
	require.True(t, got)
	require.Contains(t, out.String(), "Accept?")
}

func TestTerminalPrompterConfirmDefaultsOnEmptyLine(t *testing.T) {
	var out strings.Builder
	p := TerminalPrompter{In: strings.NewReader("\n"), Out: &out}
	got, err := p.Confirm("Accept?", true)
	require.NoError(t, err)
	require.True(t, got)
}

func TestTerminalPrompterConfirmRejectsOnAnythingElse(t *testing.T) {
	var out strings.Builder
	p := TerminalPrompter{In: strings.NewReader("nope\n"), Out: &out}
	got, err := p.Confirm("Accept?", true)
	require.NoError(t, err)
	require.False(t, got)
}

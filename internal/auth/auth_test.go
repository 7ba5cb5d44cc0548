package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopilotBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.githubcopilot.com", CopilotBaseURL(""))
	assert.Equal(t, "https://api.githubcopilot.com", CopilotBaseURL("individual"))
	assert.Equal(t, "https://api.business.githubcopilot.com", CopilotBaseURL("business"))
	assert.Equal(t, "https://api.enterprise.githubcopilot.com", CopilotBaseURL("enterprise"))
}

func TestCopilotHeaders(t *testing.T) {
	h := CopilotHeaders("tok123", "1.90.0", false)
	assert.Equal(t, "Bearer tok123", h["Authorization"])
	assert.Equal(t, "vscode-chat", h["Copilot-Integration-Id"])
	assert.Equal(t, "vscode/1.90.0", h["Editor-Version"])
	_, hasVision := h["Copilot-Vision-Request"]
	assert.False(t, hasVision)

	withVision := CopilotHeaders("tok123", "1.90.0", true)
	assert.Equal(t, "true", withVision["Copilot-Vision-Request"])
}

func TestInitiator(t *testing.T) {
	assert.Equal(t, "user", Initiator([]string{"user"}))
	assert.Equal(t, "user", Initiator(nil))
	assert.Equal(t, "agent", Initiator([]string{"user", "assistant"}))
	assert.Equal(t, "agent", Initiator([]string{"user", "tool"}))
}

func TestGitHubHeaders(t *testing.T) {
	h := GitHubHeaders("gho_abc")
	assert.Equal(t, "token gho_abc", h["Authorization"])
	assert.Equal(t, "application/vnd.github+json", h["Accept"])
}

func TestReadWriteToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "github-token")

	assert.Equal(t, "", ReadToken(path))

	require.NoError(t, WriteToken(path, "  gho_xyz\n"))
	assert.Equal(t, "gho_xyz", ReadToken(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestEnsurePathsCreatesTokenFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	paths, err := EnsurePaths()
	require.NoError(t, err)
	assert.FileExists(t, paths.GitHubTokenPath)
	assert.Equal(t, "", ReadToken(paths.GitHubTokenPath))
}

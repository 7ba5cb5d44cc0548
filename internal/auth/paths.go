// Package auth implements the GitHub device-code OAuth flow, the Copilot
// internal session token lifecycle (fetch, background refresh, persistence),
// and the GitHub user/usage lookups that ride on top of it.
package auth

import (
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "copilot-api"

// Paths locates the gateway's on-disk state: currently just the persisted
// GitHub access token, trimmed to a single line with owner-only permissions.
type Paths struct {
	AppDir         string
	GitHubTokenPath string
}

// EnsurePaths resolves the per-OS local-data directory, creates it and an
// empty token file if missing, and locks the token file down to 0600 on
// platforms that support unix file permissions.
func EnsurePaths() (*Paths, error) {
	base, err := localDataDir()
	if err != nil {
		return nil, err
	}
	appDir := filepath.Join(base, appDirName)
	if err := os.MkdirAll(appDir, 0o700); err != nil {
		return nil, err
	}
	tokenPath := filepath.Join(appDir, "github_token")
	if _, err := os.Stat(tokenPath); os.IsNotExist(err) {
		if err := os.WriteFile(tokenPath, nil, 0o600); err != nil {
			return nil, err
		}
	}
	if runtime.GOOS != "windows" {
		_ = os.Chmod(tokenPath, 0o600)
	}
	return &Paths{AppDir: appDir, GitHubTokenPath: tokenPath}, nil
}

func localDataDir() (string, error) {
	if runtime.GOOS == "windows" {
		if v := os.Getenv("LOCALAPPDATA"); v != "" {
			return v, nil
		}
	}
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support"), nil
	}
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}

// ReadToken returns the trimmed token file contents, or "" if empty/missing.
func ReadToken(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return trimToken(string(b))
}

func trimToken(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\n' || s[start] == '\r' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\n' || s[end-1] == '\r' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

// WriteToken persists the token as a single trimmed line.
func WriteToken(path, token string) error {
	return os.WriteFile(path, []byte(trimToken(token)), 0o600)
}

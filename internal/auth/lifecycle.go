package auth

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/copilot-gateway/copilot-api/internal/config"
)

// Manager owns the Copilot session token's lifecycle: fetching it from a
// persisted GitHub access token, and keeping it fresh in the background
// for as long as the process runs.
type Manager struct {
	cfg    *config.Config
	client *Client
	paths  *Paths
	sf     singleflight.Group
}

func NewManager(cfg *config.Config, client *Client, paths *Paths) *Manager {
	return &Manager{cfg: cfg, client: client, paths: paths}
}

// Bootstrap uses the GitHub token already captured in cfg (flag or
// COPILOT_GITHUB_TOKEN env var), falling back to the persisted token file
// when cfg has none, and performs the
// first Copilot token exchange synchronously so the gateway can start
// serving requests immediately.
func (m *Manager) Bootstrap(ctx context.Context) error {
	ghToken := m.cfg.GitHubToken()
	if ghToken == "" && m.paths != nil {
		ghToken = ReadToken(m.paths.GitHubTokenPath)
		if ghToken != "" {
			m.cfg.SetGitHubToken(ghToken)
		}
	}
	if ghToken == "" {
		return nil
	}
	return m.refreshOnce(ctx)
}

func (m *Manager) refreshOnce(ctx context.Context) error {
	ghToken := m.cfg.GitHubToken()
	tok, err := m.client.GetCopilotToken(ctx, ghToken)
	if err != nil {
		return err
	}
	expiresAt := time.Unix(tok.ExpiresAt, 0)
	m.cfg.SetCopilotToken(tok.Token, expiresAt)
	return nil
}

// Run refreshes the Copilot token on a timer of (refresh_in - 60)
// seconds, so the swap happens a minute ahead of actual expiry. On
// failure the next attempt is delayed by a flat 300-second backoff; the
// loop never terminates on a transient error, since a passing GitHub
// outage shouldn't kill background refresh for the life of the process.
func (m *Manager) Run(ctx context.Context) {
	const (
		minInterval  = 30 * time.Second
		refreshBackoff = 300 * time.Second
	)

	for {
		ghToken := m.cfg.GitHubToken()
		if ghToken == "" {
			if !sleepOrDone(ctx, minInterval) {
				return
			}
			continue
		}

		tok, err := m.client.GetCopilotToken(ctx, ghToken)
		if err != nil {
			log.WithError(err).Warn("copilot token refresh failed, retrying")
			if !sleepOrDone(ctx, refreshBackoff) {
				return
			}
			continue
		}

		expiresAt := time.Unix(tok.ExpiresAt, 0)
		m.cfg.SetCopilotToken(tok.Token, expiresAt)

		wait := time.Duration(tok.RefreshIn-60) * time.Second
		if wait < minInterval {
			wait = minInterval
		}
		if !sleepOrDone(ctx, wait) {
			return
		}
	}
}

// EnsureFresh returns the cached Copilot token if it is still valid, or
// else performs a synchronous token exchange. Concurrent callers (several
// requests arriving right after a cold start, before Run's background loop
// has refreshed anything) coalesce onto a single upstream exchange rather
// than each firing their own.
func (m *Manager) EnsureFresh(ctx context.Context) (string, error) {
	if tok, expiresAt := m.cfg.CopilotToken(); tok != "" && time.Now().Before(expiresAt) {
		return tok, nil
	}
	v, err, _ := m.sf.Do("copilot-token", func() (any, error) {
		if tok, expiresAt := m.cfg.CopilotToken(); tok != "" && time.Now().Before(expiresAt) {
			return tok, nil
		}
		if err := m.refreshOnce(ctx); err != nil {
			return "", err
		}
		tok, _ := m.cfg.CopilotToken()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// DeviceFlow drives the interactive device-code login: prints the
// verification URL + user code, then blocks until the user authorizes the
// app. The returned access token is both persisted to disk and installed
// into cfg.
type DeviceFlow struct {
	Client *Client
	Paths  *Paths
	Cfg    *config.Config
	// Notify is called with the verification URI and user code so the CLI
	// layer can render them however it likes (plain stdout, a QR code,
	// etc.) without this package depending on terminal presentation.
	Notify func(verificationURI, userCode string)
}

func (d *DeviceFlow) Run(ctx context.Context) (*GitHubUser, error) {
	device, err := d.Client.GetDeviceCode(ctx)
	if err != nil {
		return nil, err
	}
	if d.Notify != nil {
		d.Notify(device.VerificationURI, device.UserCode)
	}

	accessToken, err := d.Client.PollAccessToken(ctx, device)
	if err != nil {
		return nil, err
	}

	if d.Paths != nil {
		if err := WriteToken(d.Paths.GitHubTokenPath, accessToken); err != nil {
			log.WithError(err).Warn("failed to persist github token")
		}
	}
	d.Cfg.SetGitHubToken(accessToken)

	return d.Client.GetUser(ctx, accessToken)
}

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/copilot-gateway/copilot-api/internal/errors"
)

const (
	// GitHubClientID is the OAuth app id GitHub Copilot Chat itself uses to
	// request device codes; tokens minted under any other app id are not
	// accepted by the copilot_internal endpoints.
	GitHubClientID = "Iv1.b507a08c87ecfe98"
	// GitHubAppScopes is the OAuth scope requested during the device flow.
	GitHubAppScopes = "read:user"

	GitHubBaseURL    = "https://github.com"
	GitHubAPIBaseURL = "https://api.github.com"

	CopilotVersion = "0.26.7"
	APIVersion     = "2025-04-01"
)

// DeviceCodeResponse is GitHub's response to the device-code request.
type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// GitHubUser is the subset of GitHub's /user payload the gateway surfaces.
type GitHubUser struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

// CopilotTokenResponse is GitHub's response from /copilot_internal/v2/token.
type CopilotTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	RefreshIn int64  `json:"refresh_in"`
}

// CopilotUsage mirrors GitHub's /copilot_internal/user response, used by
// the `check-usage` CLI subcommand.
type CopilotUsage struct {
	AccessTypeSKU        string         `json:"access_type_sku"`
	AnalyticsTrackingID  string         `json:"analytics_tracking_id"`
	AssignedDate         string         `json:"assigned_date"`
	CanSignupForLimited  bool           `json:"can_signup_for_limited"`
	ChatEnabled          bool           `json:"chat_enabled"`
	CopilotPlan          string         `json:"copilot_plan"`
	OrganizationLoginList []string      `json:"organization_login_list"`
	OrganizationList     []any          `json:"organization_list"`
	QuotaResetDate       string         `json:"quota_reset_date"`
	QuotaSnapshots       map[string]any `json:"quota_snapshots"`
}

// Client performs the GitHub device-code OAuth flow and the Copilot
// internal API calls layered on top of it.
type Client struct {
	HTTP *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{HTTP: httpClient}
}

// GetDeviceCode requests a device code to start the OAuth flow.
func (c *Client) GetDeviceCode(ctx context.Context) (*DeviceCodeResponse, error) {
	form := url.Values{
		"client_id": {GitHubClientID},
		"scope":     {GitHubAppScopes},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, GitHubBaseURL+"/login/device/code", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Upstream("failed to request device code", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Upstream("failed to read device code response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Upstream(fmt.Sprintf("device code request failed: %s", string(body)), nil)
	}

	var out DeviceCodeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.Upstream("failed to parse device code response", err)
	}
	return &out, nil
}

// PollAccessToken polls the OAuth token endpoint at the device code's
// interval (plus one second) until the user authorizes the app or ctx is
// cancelled. Any non-success response, `authorization_pending` included,
// just means sleep and retry; there is no overall deadline beyond ctx.
func (c *Client) PollAccessToken(ctx context.Context, device *DeviceCodeResponse) (string, error) {
	interval := device.Interval
	if interval <= 0 {
		interval = 5
	}
	form := url.Values{
		"client_id":   {GitHubClientID},
		"device_code": {device.DeviceCode},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, GitHubBaseURL+"/login/oauth/access_token", strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err == nil {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr == nil && resp.StatusCode == http.StatusOK {
				var parsed struct {
					AccessToken string `json:"access_token"`
				}
				if json.Unmarshal(body, &parsed) == nil && parsed.AccessToken != "" {
					return parsed.AccessToken, nil
				}
			}
		}

		if err := sleepCtx(ctx, time.Duration(interval+1)*time.Second); err != nil {
			return "", err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GetUser looks up the authenticated GitHub user.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*GitHubUser, error) {
	var out GitHubUser
	if err := c.githubGet(ctx, "/user", accessToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCopilotToken exchanges a GitHub access token for a short-lived
// Copilot internal session token.
func (c *Client) GetCopilotToken(ctx context.Context, accessToken string) (*CopilotTokenResponse, error) {
	var out CopilotTokenResponse
	if err := c.githubGet(ctx, "/copilot_internal/v2/token", accessToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCopilotUsage fetches the account's Copilot plan/quota snapshot.
func (c *Client) GetCopilotUsage(ctx context.Context, accessToken string) (*CopilotUsage, error) {
	var out CopilotUsage
	if err := c.githubGet(ctx, "/copilot_internal/user", accessToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) githubGet(ctx context.Context, path, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, GitHubAPIBaseURL+path, nil)
	if err != nil {
		return err
	}
	for k, v := range GitHubHeaders(accessToken) {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Upstream("github request failed: "+path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Upstream("failed reading github response: "+path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Upstream(fmt.Sprintf("github request %s failed with %d: %s", path, resp.StatusCode, string(body)), nil)
	}
	return json.Unmarshal(body, out)
}

// GitHubHeaders assembles the header set GitHub's own API expects for
// token-scoped requests (distinct from the Copilot proxy headers built by
// CopilotHeaders in copilot.go).
func GitHubHeaders(accessToken string) map[string]string {
	return map[string]string{
		"Authorization": "token " + accessToken,
		"Accept":        "application/vnd.github+json",
		"User-Agent":    "GitHubCopilotChat/" + CopilotVersion,
	}
}

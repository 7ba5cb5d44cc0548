// Package upstream performs the actual HTTP calls to GitHub Copilot, Azure
// OpenAI, OpenAI, and Anthropic, assembling each provider's expected
// headers and decoding (including brotli) their responses.
package upstream

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/tidwall/gjson"

	"github.com/copilot-gateway/copilot-api/internal/auth"
	"github.com/copilot-gateway/copilot-api/internal/config"
	"github.com/copilot-gateway/copilot-api/internal/errors"
	"github.com/copilot-gateway/copilot-api/internal/models"
)

// Client performs upstream calls on behalf of the route handlers.
type Client struct {
	HTTP *http.Client
	Cfg  *config.Config
	// Refresh, when set, is consulted for a Copilot token on demand before
	// failing a request outright; it is the auth manager's EnsureFresh,
	// which coalesces concurrent on-demand refreshes via singleflight.
	Refresh func(ctx context.Context) (string, error)
}

func New(cfg *config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: proxyTransport(cfg)}
	}
	return &Client{HTTP: httpClient, Cfg: cfg}
}

// proxyTransport tunes the shared transport (connect timeout, idle pool)
// and only honors HTTP_PROXY/HTTPS_PROXY/NO_PROXY when the --proxy-env
// flag is set; otherwise upstream calls always go direct, even if those
// variables happen to be set in the environment.
func proxyTransport(cfg *config.Config) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: 10 * time.Second}).DialContext
	t.MaxIdleConnsPerHost = 20
	t.IdleConnTimeout = 90 * time.Second
	if cfg != nil && cfg.ProxyEnv() {
		t.Proxy = http.ProxyFromEnvironment
	} else {
		t.Proxy = nil
	}
	return t
}

// CopilotRequest performs a request against the Copilot API and returns
// the decompressed response body. vision controls whether the
// copilot-vision-request header is set.
func (c *Client) CopilotRequest(ctx context.Context, method, path string, body []byte, vision bool) (*http.Response, error) {
	token, _ := c.Cfg.CopilotToken()
	if token == "" && c.Refresh != nil {
		var err error
		token, err = c.Refresh(ctx)
		if err != nil {
			return nil, errors.Unauthorized("copilot token refresh failed", err)
		}
	}
	if token == "" {
		return nil, errors.Unauthorized("no copilot session token available", nil)
	}
	base := auth.CopilotBaseURL(c.Cfg.AccountType())
	req, err := http.NewRequestWithContext(ctx, method, base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range auth.CopilotHeaders(token, c.Cfg.VSCodeVersion(), vision) {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Initiator", auth.Initiator(bodyRoles(body)))
	req.Header.Set("Accept-Encoding", "br, gzip")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Upstream("copilot request failed: "+path, err)
	}
	if err := decompressInPlace(resp); err != nil {
		resp.Body.Close()
		return nil, errors.Upstream("failed to decode copilot response: "+path, err)
	}
	return resp, nil
}

// PassthroughRequest forwards a request to a third-party OpenAI-compatible
// or Anthropic-compatible endpoint, used for the azure:/openai:/anthropic
// provider-prefix routing paths.
func (c *Client) PassthroughRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept-Encoding", "br, gzip")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Upstream("passthrough request failed: "+url, err)
	}
	if err := decompressInPlace(resp); err != nil {
		resp.Body.Close()
		return nil, errors.Upstream("failed to decode passthrough response: "+url, err)
	}
	return resp, nil
}

// bodyRoles pulls the conversation roles out of a chat-completions
// ("messages") or Responses API ("input") payload so the X-Initiator
// header can tell a user-originated turn from an agent continuation.
func bodyRoles(body []byte) []string {
	var roles []string
	for _, path := range []string{"messages.#.role", "input.#.role"} {
		for _, r := range gjson.GetBytes(body, path).Array() {
			roles = append(roles, r.String())
		}
	}
	return roles
}

// decompressInPlace rewrites resp.Body to a decoded reader based on
// Content-Encoding, and clears the header since the body is no longer
// encoded.
func decompressInPlace(resp *http.Response) error {
	enc := strings.ToLower(resp.Header.Get("Content-Encoding"))
	switch enc {
	case "br":
		resp.Body = io.NopCloser(brotli.NewReader(resp.Body))
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		resp.Body = gz
	default:
		return nil
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	return nil
}

// ProviderRoute resolves which upstream a chat/messages/responses request
// should be sent to, given an explicit provider hint (query param or
// Anthropic "provider" field), the requested model, and environment
// overrides.
type ProviderRoute struct {
	Provider string // "copilot", "azure", "openai", "anthropic"
	Model    string // model id stripped of any provider prefix
}

// ResolveProvider applies the gateway's provider routing precedence:
// an explicit "azure:"/"openai:" model prefix wins outright; then the
// COPILOT_PROVIDER environment override; then an explicit caller-supplied
// provider hint; and finally default Copilot routing. Anthropic passthrough
// is resolved separately by the messages handler since it depends on an
// API key being configured, not just the model name.
func ResolveProvider(model, providerHint string) ProviderRoute {
	if strings.HasPrefix(model, "azure:") {
		return ProviderRoute{Provider: "azure", Model: strings.TrimPrefix(model, "azure:")}
	}
	if strings.HasPrefix(model, "openai:") {
		return ProviderRoute{Provider: "openai", Model: strings.TrimPrefix(model, "openai:")}
	}
	if env := os.Getenv("COPILOT_PROVIDER"); env != "" {
		return ProviderRoute{Provider: env, Model: model}
	}
	if providerHint != "" {
		return ProviderRoute{Provider: providerHint, Model: model}
	}
	return ProviderRoute{Provider: "copilot", Model: model}
}

// AnthropicPassthroughEligible resolves whether a request bound for a
// claude-* model (or an explicit "anthropic" provider) should bypass
// Copilot translation entirely and hit Anthropic's own API; it returns the
// configured Anthropic API key and true when it should.
func AnthropicPassthroughEligible(provider, model string) (string, bool) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return "", false
	}
	if provider == "" {
		provider = os.Getenv("COPILOT_PROVIDER")
	}
	if provider == "anthropic" {
		return apiKey, true
	}
	if strings.HasPrefix(model, "claude") {
		return apiKey, true
	}
	return "", false
}

// AnthropicHeaders builds the header set for a direct Anthropic API call.
func AnthropicHeaders(apiKey string) map[string]string {
	version := os.Getenv("ANTHROPIC_VERSION")
	if version == "" {
		version = "2023-06-01"
	}
	return map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": version,
		"content-type":      "application/json",
	}
}

// AnthropicMessagesURL is Anthropic's Messages API endpoint, honoring a
// configured base URL override.
func AnthropicMessagesURL() string {
	base := os.Getenv("ANTHROPIC_BASE_URL")
	if base == "" {
		base = "https://api.anthropic.com"
	}
	return strings.TrimSuffix(base, "/") + "/v1/messages"
}

// OpenAICompatibleURL builds the URL of the given endpoint path (the
// chat-completions path when empty) for a generic OpenAI-compatible
// passthrough target, honoring a configured base URL override.
func OpenAICompatibleURL(path string) string {
	base := os.Getenv("OPENAI_BASE_URL")
	if base == "" {
		base = "https://api.openai.com"
	}
	if path == "" {
		path = "/v1/chat/completions"
	}
	return strings.TrimSuffix(base, "/") + path
}

// OpenAIHeaders assembles the bearer-auth header set for a direct OpenAI
// passthrough request.
func OpenAIHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + os.Getenv("OPENAI_API_KEY"),
		"Content-Type":  "application/json",
	}
}

// AzureChatURL builds Azure OpenAI's deployment-scoped URL for the given
// endpoint path, chat completions when empty:
// "<endpoint>/openai/deployments/<deployment>/chat/completions?api-version=<ver>".
// A missing endpoint or deployment yields an empty string; the caller
// surfaces that as a configuration error rather than attempting the call.
func AzureChatURL(path string) string {
	endpoint := strings.TrimSuffix(os.Getenv("AZURE_OPENAI_ENDPOINT"), "/")
	deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT")
	apiVersion := os.Getenv("AZURE_OPENAI_API_VERSION")
	if apiVersion == "" {
		apiVersion = "2024-06-01"
	}
	if endpoint == "" || deployment == "" {
		return ""
	}
	if path == "" {
		path = "chat/completions"
	}
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s", endpoint, deployment, path, apiVersion)
}

// AzureHeaders assembles Azure OpenAI's api-key header set; Azure never
// takes a bearer token on this path.
func AzureHeaders() map[string]string {
	return map[string]string{
		"api-key":      os.Getenv("AZURE_OPENAI_KEY"),
		"Content-Type": "application/json",
	}
}

// FetchModelCatalog retrieves Copilot's /models listing and installs each
// model's max-output-tokens limit into the shared config cache, so
// handlers can fill an absent "max_tokens" field without a catalog round
// trip on every request.
func (c *Client) FetchModelCatalog(ctx context.Context) error {
	resp, err := c.CopilotRequest(ctx, http.MethodGet, "/models", nil, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var catalog models.Response
	if err := json.Unmarshal(body, &catalog); err != nil {
		return err
	}
	limits := make(map[string]int, len(catalog.Data))
	for _, m := range catalog.Data {
		limits[m.ID] = m.Capabilities.Limits.MaxOutputTokens
	}
	c.Cfg.SetModelCatalog(limits)
	return nil
}

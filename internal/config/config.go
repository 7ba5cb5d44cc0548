// Package config holds the gateway's process-wide configuration. It is
// populated once at startup from CLI flags and environment variables, with
// an optional YAML file providing defaults for the fields that benefit from
// being edited without touching the command line, and is read far more often
// than it is written, so access is guarded by a RWMutex rather than copied
// around by value.
package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAccountType is the account type used when none is configured. The
// account type selects which GitHub Copilot billing surface requests are
// routed through ("individual", "business", "enterprise").
const DefaultAccountType = "individual"

// File is the optional on-disk overlay loaded before flags/env are applied.
// Only static settings that make sense to pin ahead of time (account type,
// hook manifest path, rate limit policy, approval, token display,
// tokenizer choice, logging) are represented here; tokens and other
// runtime state are process-lifetime only.
type File struct {
	AccountType     string `yaml:"account_type,omitempty"`
	HookManifest    string `yaml:"hook_manifest,omitempty"`
	RateLimitSecs   *int64 `yaml:"rate_limit_seconds,omitempty"`
	RateLimitWait   bool   `yaml:"rate_limit_wait,omitempty"`
	ManualApprove   bool   `yaml:"manual_approve,omitempty"`
	ShowToken       bool   `yaml:"show_token,omitempty"`
	UseTiktoken     bool   `yaml:"use_tiktoken,omitempty"`
	LogFile         string `yaml:"log_file,omitempty"`
	LogLevel        string `yaml:"log_level,omitempty"`
}

// LoadFile reads a YAML config overlay. A missing path is not an error —
// the gateway runs fine with flags/env alone.
func LoadFile(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &File{}, nil
	}
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Config is the gateway's live, mutable process configuration. Fields are
// read on every request (rate limiter, token-estimator toggle, vision
// headers) and written rarely (token refresh bookkeeping), so callers take
// the read lock unless they are specifically updating state.
type Config struct {
	mu sync.RWMutex

	accountType    string
	vscodeVersion  string
	githubToken    string
	copilotToken   string
	copilotExpires time.Time
	showToken      bool
	manualApprove  bool
	rateLimitSecs  *int64
	rateLimitWait  bool
	hookManifest   string
	useTiktoken    bool
	proxyEnv       bool
	modelCatalog   map[string]int
}

// ModelMaxOutputTokens returns the cached max-output-tokens limit for a
// resolved model id, populated lazily on first /models fetch. ok is false
// until the catalog has been populated or the model isn't present in it.
func (c *Config) ModelMaxOutputTokens(model string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.modelCatalog == nil {
		return 0, false
	}
	v, ok := c.modelCatalog[model]
	return v, ok
}

// HasModelCatalog reports whether the model catalog has been fetched yet.
func (c *Config) HasModelCatalog() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modelCatalog != nil
}

// SetModelCatalog installs the fetched catalog's max-output-tokens limits,
// keyed by model id.
func (c *Config) SetModelCatalog(limits map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modelCatalog = limits
}

// New constructs a Config from a file overlay plus environment defaults;
// a zero override value means "use the file/default".
func New(f *File) *Config {
	if f == nil {
		f = &File{}
	}
	c := &Config{
		accountType:   firstNonEmpty(f.AccountType, envOr("COPILOT_ACCOUNT_TYPE", DefaultAccountType)),
		vscodeVersion: "1.104.3",
		showToken:     f.ShowToken || envBool("COPILOT_SHOW_TOKEN"),
		manualApprove: f.ManualApprove || envBool("COPILOT_MANUAL_APPROVE"),
		hookManifest:  f.HookManifest,
		useTiktoken:   f.UseTiktoken || envBool("COPILOT_USE_TIKTOKEN"),
		rateLimitWait: f.RateLimitWait || envBool("COPILOT_RATE_LIMIT_WAIT"),
	}
	if f.RateLimitSecs != nil {
		c.rateLimitSecs = f.RateLimitSecs
	} else if v, ok := envInt64("COPILOT_RATE_LIMIT"); ok {
		c.rateLimitSecs = &v
	}
	if tok := os.Getenv("COPILOT_GITHUB_TOKEN"); tok != "" {
		c.githubToken = tok
	}
	return c
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func envInt64(key string) (int64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) AccountType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accountType
}

func (c *Config) VSCodeVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vscodeVersion
}

func (c *Config) ShowToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.showToken
}

func (c *Config) ManualApprove() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manualApprove
}

func (c *Config) UseTiktoken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.useTiktoken
}

func (c *Config) HookManifest() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hookManifest
}

func (c *Config) ProxyEnv() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.proxyEnv
}

func (c *Config) SetProxyEnv(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proxyEnv = v
}

// RateLimit returns the configured minimum spacing between requests and
// whether the gateway should block (vs. reject) when it isn't met.
func (c *Config) RateLimit() (seconds int64, enabled bool, wait bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.rateLimitSecs == nil {
		return 0, false, c.rateLimitWait
	}
	return *c.rateLimitSecs, true, c.rateLimitWait
}

func (c *Config) GitHubToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.githubToken
}

func (c *Config) SetGitHubToken(tok string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.githubToken = tok
}

func (c *Config) CopilotToken() (token string, expiresAt time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copilotToken, c.copilotExpires
}

func (c *Config) SetCopilotToken(token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.copilotToken = token
	c.copilotExpires = expiresAt
}

// Snapshot is an immutable, masked view used by the `debug` CLI subcommand.
type Snapshot struct {
	AccountType    string `json:"account_type"`
	VSCodeVersion  string `json:"vscode_version"`
	ShowToken      bool   `json:"show_token"`
	ManualApprove  bool   `json:"manual_approve"`
	UseTiktoken    bool   `json:"use_tiktoken"`
	HookManifest   string `json:"hook_manifest,omitempty"`
	GitHubToken    string `json:"github_token"`
	CopilotToken   string `json:"copilot_token"`
	RateLimitSecs  *int64 `json:"rate_limit_seconds,omitempty"`
	RateLimitWait  bool   `json:"rate_limit_wait"`
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// Describe builds a Snapshot, masking tokens unless showToken overrides it.
func (c *Config) Describe() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	gh, cp := c.githubToken, c.copilotToken
	if !c.showToken {
		gh, cp = mask(gh), mask(cp)
	}
	return Snapshot{
		AccountType:   c.accountType,
		VSCodeVersion: c.vscodeVersion,
		ShowToken:     c.showToken,
		ManualApprove: c.manualApprove,
		UseTiktoken:   c.useTiktoken,
		HookManifest:  c.hookManifest,
		GitHubToken:   gh,
		CopilotToken:  cp,
		RateLimitSecs: c.rateLimitSecs,
		RateLimitWait: c.rateLimitWait,
	}
}

// Package models holds the Copilot model catalog shape and the alias
// resolution rules used to map client-facing model names (often Claude
// aliases used by Anthropic-shaped clients) onto the Copilot models they
// actually reach.
package models

// Model mirrors a single entry of Copilot's /models catalog response.
type Model struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Vendor       string       `json:"vendor"`
	Version      string       `json:"version"`
	Capabilities Capabilities `json:"capabilities"`
	Policy       *Policy      `json:"policy,omitempty"`
}

type Capabilities struct {
	Family  string  `json:"family"`
	Type    string  `json:"type"`
	Limits  Limits  `json:"limits"`
	Supports Supports `json:"supports"`
}

type Limits struct {
	MaxContextWindowTokens int `json:"max_context_window_tokens"`
	MaxOutputTokens        int `json:"max_output_tokens"`
	MaxPromptTokens        int `json:"max_prompt_tokens"`
}

type Supports struct {
	ToolCalls         bool `json:"tool_calls"`
	ParallelToolCalls bool `json:"parallel_tool_calls"`
	Streaming         bool `json:"streaming"`
	Vision            bool `json:"vision"`
}

type Policy struct {
	State string `json:"state"`
	Terms string `json:"terms,omitempty"`
}

// Response is the top-level /models list shape.
type Response struct {
	Data []Model `json:"data"`
}

// prefixAliases are evaluated before the exact-match table: versioned
// Claude model names (claude-sonnet-4-20250514, etc.) should resolve the
// same way regardless of their date suffix.
var prefixAliases = []struct {
	prefix string
	target string
}{
	{"claude-sonnet-4-", "gpt-5.1-codex"},
	{"claude-opus-4-", "gpt-5.2-codex"},
	{"claude-opus-4.5-", "gpt-5.2-codex"},
	{"claude-haiku-", "gpt-5-mini"},
}

// exactAliases maps specific client-facing model names to the Copilot
// model that actually serves them.
var exactAliases = map[string]string{
	"claude-opus-4.5":            "gpt-5.2-codex",
	"claude-opus-4":              "gpt-5.2-codex",
	"claude-4-opus":              "gpt-5.2-codex",
	"claude-3-opus":              "gpt-5.2-codex",
	"claude-3-opus-20240229":     "gpt-5.2-codex",
	"claude-sonnet-4":            "gpt-5.1-codex",
	"claude-4-sonnet":            "gpt-5.1-codex",
	"claude-3.5-sonnet":          "gpt-5.1-codex",
	"claude-3-5-sonnet-20241022": "gpt-5.1-codex",
	"claude-3-sonnet":            "gpt-5.1-codex",
	"claude-3-sonnet-20240229":   "gpt-5.1-codex",
	"claude-haiku-3.5":           "gpt-5-mini",
	"claude-3.5-haiku":           "gpt-5-mini",
	"claude-3-haiku":             "gpt-5-mini",
	"claude-3-haiku-20240307":    "gpt-5-mini",
	"claude-2.1":                 "gpt-5.1",
	"claude-2.0":                 "gpt-5.1",
	"claude-instant-1.2":         "gpt-5-mini",
	"codex-5.2":                  "gpt-5.2-codex",
	"codex-5.1":                  "gpt-5.1-codex",
	"o3":                         "gpt-5.2-codex",
	"o3-mini":                    "gpt-5-mini",
	"o1":                         "gpt-5.1",
	"o1-preview":                 "gpt-5.1",
	"o1-mini":                    "gpt-5-mini",
}

// ResolveAlias maps a client-facing model name to the Copilot model id that
// should actually be requested. Unknown models pass through unchanged.
func ResolveAlias(model string) string {
	for _, a := range prefixAliases {
		if hasPrefix(model, a.prefix) {
			return a.target
		}
	}
	if target, ok := exactAliases[model]; ok {
		return target
	}
	return model
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// responsesAPIModels lists models that must be routed through Copilot's
// Responses API rather than the chat-completions endpoint.
var responsesAPIModels = map[string]bool{
	"gpt-5.2-codex":        true,
	"gpt-5.1-codex":        true,
	"gpt-5.1-codex-mini":   true,
	"gpt-5.1-codex-max":    true,
	"gpt-5-codex":          true,
	"goldeneye":            true,
	"codex-5.2":            true,
	"codex-5.1":            true,
}

// RequiresResponsesAPI reports whether the resolved model must be called
// through Copilot's /responses endpoint instead of chat completions.
func RequiresResponsesAPI(resolvedModel string) bool {
	return responsesAPIModels[resolvedModel]
}

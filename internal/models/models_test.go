package models

import "testing"

func TestResolveAliasExactAndPrefix(t *testing.T) {
	cases := map[string]string{
		"claude-sonnet-4":            "gpt-5.1-codex",
		"claude-sonnet-4-20250514":   "gpt-5.1-codex",
		"claude-opus-4.5":            "gpt-5.2-codex",
		"claude-opus-4.5-20250929":   "gpt-5.2-codex",
		"claude-opus-4":              "gpt-5.2-codex",
		"claude-opus-4-20250514":     "gpt-5.2-codex",
		"claude-4-opus":              "gpt-5.2-codex",
		"claude-3-opus":              "gpt-5.2-codex",
		"claude-3-opus-20240229":     "gpt-5.2-codex",
		"claude-4-sonnet":            "gpt-5.1-codex",
		"claude-3.5-sonnet":          "gpt-5.1-codex",
		"claude-3-5-sonnet-20241022": "gpt-5.1-codex",
		"claude-3-sonnet":            "gpt-5.1-codex",
		"claude-3-sonnet-20240229":   "gpt-5.1-codex",
		"claude-haiku-3.5":           "gpt-5-mini",
		"claude-3.5-haiku":           "gpt-5-mini",
		"claude-3-haiku":             "gpt-5-mini",
		"claude-3-haiku-20240307":    "gpt-5-mini",
		"claude-haiku-20240307":      "gpt-5-mini",
		"claude-2.1":                 "gpt-5.1",
		"claude-2.0":                 "gpt-5.1",
		"claude-instant-1.2":         "gpt-5-mini",
		"o3":                         "gpt-5.2-codex",
		"o3-mini":                    "gpt-5-mini",
		"o1":                         "gpt-5.1",
		"o1-preview":                 "gpt-5.1",
		"o1-mini":                    "gpt-5-mini",
		"unknown-model":              "unknown-model",
	}
	for in, want := range cases {
		if got := ResolveAlias(in); got != want {
			t.Errorf("ResolveAlias(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestResolveAliasIdempotent checks idempotency on model ids that actually
// resolve to something else, not just pass-through identities (a bug that
// can hide behind x == ResolveAlias(x) trivially holding for unknown ids).
func TestResolveAliasIdempotent(t *testing.T) {
	ids := []string{
		"claude-sonnet-4", "claude-opus-4.5", "claude-opus-4.5-20250929",
		"claude-haiku-20240307", "o1", "o3",
	}
	for _, id := range ids {
		resolved := ResolveAlias(id)
		if resolved == id {
			t.Fatalf("ResolveAlias(%q) did not resolve to anything new; test no longer exercises resolution", id)
		}
		if again := ResolveAlias(resolved); again != resolved {
			t.Errorf("ResolveAlias(%q) = %q, not idempotent: ResolveAlias(%q) = %q", id, resolved, resolved, again)
		}
	}
}

func TestRequiresResponsesAPIOnResolvedModel(t *testing.T) {
	if !RequiresResponsesAPI(ResolveAlias("claude-sonnet-4")) {
		t.Error("claude-sonnet-4 resolves to a codex model and must require the Responses API")
	}
	if !RequiresResponsesAPI(ResolveAlias("claude-opus-4.5")) {
		t.Error("claude-opus-4.5 resolves to a codex model and must require the Responses API")
	}
	if RequiresResponsesAPI(ResolveAlias("o1")) {
		t.Error("o1 resolves to gpt-5.1, which is not a Responses-API-only model")
	}
}

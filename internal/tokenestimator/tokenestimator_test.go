package tokenestimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tiktoken-go/tokenizer"
)

func TestEstimateChatTokensMatchesFramingPlusEncoding(t *testing.T) {
	enc, err := tokenizer.Get(tokenizer.O200kBase)
	require.NoError(t, err)
	ids, _, err := enc.Encode("hello world")
	require.NoError(t, err)

	got, err := EstimateChatTokens("gpt-5.2-codex", []Message{
		{Role: "user", Content: []byte(`"hello world"`)},
	})
	require.NoError(t, err)
	require.Equal(t, 3+3+len(ids), got)
	require.Greater(t, got, 0)
}

func TestEstimateChatTokensCountsNameAndToolCalls(t *testing.T) {
	withoutExtras, err := EstimateChatTokens("gpt-5.2-codex", []Message{
		{Role: "user", Content: []byte(`"hi"`)},
	})
	require.NoError(t, err)

	withName, err := EstimateChatTokens("gpt-5.2-codex", []Message{
		{Role: "user", Name: "alice", Content: []byte(`"hi"`)},
	})
	require.NoError(t, err)
	require.Greater(t, withName, withoutExtras)

	withTool, err := EstimateChatTokens("gpt-5.2-codex", []Message{
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "1", Type: "function"}}},
	})
	require.NoError(t, err)
	require.Greater(t, withTool, 3+3)
}

func TestEstimateChatTokensImageOverhead(t *testing.T) {
	got, err := EstimateChatTokens("gpt-5.2-codex", []Message{
		{Role: "user", Content: []byte(`[{"type":"image_url","image_url":{"url":"http://x/y.png"}}]`)},
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, got, 3+3+imageTokenOverhead)
}

func TestEstimateHeuristicClaudeMultiplier(t *testing.T) {
	payload := []byte(`{"model":"claude-3.5-sonnet","messages":[{"role":"user","content":"hi"}]}`)
	got := EstimateHeuristic("claude-3.5-sonnet", payload, true)
	want := int(math.Round((math.Ceil(float64(len(payload))/4.0) + 346) * 1.15))
	require.Equal(t, want, got)
}

func TestEstimateHeuristicGrokMultiplier(t *testing.T) {
	payload := []byte(`{"model":"grok-4","messages":[{"role":"user","content":"hi"}]}`)
	got := EstimateHeuristic("grok-4", payload, true)
	want := int(math.Round((math.Ceil(float64(len(payload))/4.0) + 480) * 1.03))
	require.Equal(t, want, got)
}

func TestResolveAliasIdempotent(t *testing.T) {
	// These ids must actually resolve to a different backing model — an id
	// left unchanged by ResolvedModelForEstimate would make the idempotency
	// check below trivially true without exercising resolution at all.
	ids := []string{"claude-opus-4.5", "claude-sonnet-4-5-20250929", "claude-haiku-20240307"}
	for _, id := range ids {
		resolved := ResolvedModelForEstimate(id)
		require.NotEqual(t, id, resolved)
		require.Equal(t, resolved, ResolvedModelForEstimate(resolved))
	}
}

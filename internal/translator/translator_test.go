package translator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToOpenAIChatSystemAndToolResult(t *testing.T) {
	payload := AnthropicMessagesPayload{
		Model:  "claude-opus-4.5",
		System: json.RawMessage(`"be terse"`),
		Messages: []AnthropicMessage{
			{Role: "user", Content: json.RawMessage(`[{"type":"tool_result","tool_use_id":"call_1","content":"42"},{"type":"text","text":"what next"}]`)},
		},
	}

	out, err := ToOpenAIChat("gpt-5.2-codex", payload)
	require.NoError(t, err)
	require.Len(t, out.Messages, 3)
	require.Equal(t, "system", out.Messages[0].Role)
	require.Equal(t, "tool", out.Messages[1].Role)
	require.Equal(t, "call_1", out.Messages[1].ToolCallID)
	require.Equal(t, "user", out.Messages[2].Role)
}

func TestToOpenAIChatAssistantToolUse(t *testing.T) {
	payload := AnthropicMessagesPayload{
		Model: "claude-opus-4.5",
		Messages: []AnthropicMessage{
			{Role: "assistant", Content: json.RawMessage(`[{"type":"text","text":"checking"},{"type":"tool_use","id":"call_9","name":"search","input":{"q":"go"}}]`)},
		},
	}

	out, err := ToOpenAIChat("gpt-5.2-codex", payload)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	require.Equal(t, "assistant", out.Messages[0].Role)
	require.Len(t, out.Messages[0].ToolCalls, 1)
	require.Equal(t, "call_9", out.Messages[0].ToolCalls[0].ID)
	require.JSONEq(t, `{"q":"go"}`, out.Messages[0].ToolCalls[0].Function.Arguments)
}

func TestToOpenAIChatCarriesSamplingControls(t *testing.T) {
	temp := 0.7
	payload := AnthropicMessagesPayload{
		Model:         "claude-opus-4.5",
		MaxTokens:     16,
		Temperature:   &temp,
		StopSequences: []string{"END"},
		Messages: []AnthropicMessage{
			{Role: "user", Content: json.RawMessage(`"hi"`)},
		},
	}

	out, err := ToOpenAIChat("gpt-5.2-codex", payload)
	require.NoError(t, err)
	require.Equal(t, 16, *out.MaxTokens)
	require.Equal(t, 0.7, *out.Temperature)
	require.JSONEq(t, `["END"]`, string(out.Stop))
}

func TestToAnthropicResponseFinishReasonMapping(t *testing.T) {
	cases := map[string]string{
		"length":         "max_tokens",
		"tool_calls":     "tool_use",
		"content_filter": "content_filter",
		"stop":           "end_turn",
		"":               "end_turn",
	}
	for reason, want := range cases {
		resp := ChatCompletionResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message struct {
				Content   json.RawMessage `json:"content"`
				ToolCalls []ToolCall      `json:"tool_calls,omitempty"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		}{FinishReason: reason})
		out, err := ToAnthropicResponse("gpt-5.2-codex", resp)
		require.NoError(t, err)
		require.Equal(t, want, out.StopReason, "reason %q", reason)
	}
}

func TestToAnthropicResponseCachedTokensFloorsAtZero(t *testing.T) {
	resp := ChatCompletionResponse{}
	resp.Usage.PromptTokens = 5
	cached := 20
	resp.Usage.CachedTokens = &cached

	out, err := ToAnthropicResponse("gpt-5.2-codex", resp)
	require.NoError(t, err)
	require.Equal(t, 0, out.Usage.InputTokens)
	require.Equal(t, &cached, out.Usage.CacheReadInputTokens)
}

func TestMessagesToResponsesInputFunctionCallArguments(t *testing.T) {
	messages := []ChatMessage{
		{Role: "system", Content: jsonString("be terse")},
		{Role: "user", Content: jsonString("hi")},
		{
			Role: "assistant",
			ToolCalls: []ToolCall{
				{ID: "call_1", Type: "function", Function: ToolCallFunc{Name: "search", Arguments: `{"q":"go"}`}},
			},
		},
		{Role: "tool", ToolCallID: "call_1", Content: jsonString("result text")},
	}

	items, err := MessagesToResponsesInput(messages)
	require.NoError(t, err)
	require.Len(t, items, 3) // system dropped; user message; function_call; function_call_output

	require.Equal(t, "message", items[0].Type)
	require.Equal(t, "user", items[0].Role)

	require.Equal(t, "function_call", items[1].Type)
	require.Equal(t, "call_1", items[1].CallID)
	require.Equal(t, "search", items[1].Name)
	require.JSONEq(t, `{"q":"go"}`, items[1].Arguments)
	require.Empty(t, items[1].Output)

	require.Equal(t, "function_call_output", items[2].Type)
	require.Equal(t, "call_1", items[2].CallID)
	require.Equal(t, "result text", items[2].Output)
}

func TestBuildResponsesPayloadCarriesSamplingAndTools(t *testing.T) {
	temp := 0.2
	mt := 64
	chat := ChatCompletionsPayload{
		Model: "gpt-5.2-codex",
		Messages: []ChatMessage{
			{Role: "system", Content: jsonString("be terse")},
			{Role: "user", Content: jsonString("hi")},
		},
		Tools:       []Tool{{Type: "function", Function: ToolFunction{Name: "search", Parameters: json.RawMessage(`{"type":"object"}`)}}},
		Temperature: &temp,
		MaxTokens:   &mt,
		Stream:      true,
	}

	p, err := BuildResponsesPayload("gpt-5.2-codex", chat)
	require.NoError(t, err)
	require.Equal(t, "be terse", p.Instructions)
	require.Len(t, p.Input, 1)
	require.Equal(t, 64, *p.MaxOutputTokens)
	require.Equal(t, 0.2, *p.Temperature)
	require.True(t, p.Stream)
	require.Len(t, p.Tools, 1)
	require.Equal(t, "function", p.Tools[0].Type)
	require.Equal(t, "search", p.Tools[0].Name)
}

func TestBuildResponsesPayloadRejectsEmptyInput(t *testing.T) {
	_, err := BuildResponsesPayload("gpt-5.2-codex", ChatCompletionsPayload{
		Messages: []ChatMessage{{Role: "system", Content: jsonString("only instructions")}},
	})
	require.Error(t, err)
}

func TestExtractInstructionsJoinsSystemMessages(t *testing.T) {
	messages := []ChatMessage{
		{Role: "system", Content: jsonString("first")},
		{Role: "system", Content: jsonString("second")},
		{Role: "user", Content: jsonString("hi")},
	}
	got, err := ExtractInstructions(messages)
	require.NoError(t, err)
	require.Equal(t, "first\n\nsecond", got)
}

func TestResponsesToAnthropicFindsFirstOutputText(t *testing.T) {
	resp := ResponsesResponse{}
	resp.Output = append(resp.Output, struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}{Type: "message", Content: []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{{Type: "output_text", Text: "hello"}}})

	out := ResponsesToAnthropic("gpt-5.2-codex", resp)
	require.Equal(t, "end_turn", out.StopReason)
	require.Len(t, out.Content, 1)
	require.Equal(t, "hello", out.Content[0].Text)
}

func TestResponsesToChatCompletion(t *testing.T) {
	resp := ResponsesResponse{Usage: json.RawMessage(`{"input_tokens":4,"output_tokens":2}`)}
	resp.Output = append(resp.Output, struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}{Type: "message", Content: []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{{Type: "output_text", Text: "hello"}}})

	out := ResponsesToChatCompletion("gpt-5.2-codex", resp)
	require.Equal(t, "chat.completion", out.Object)
	require.Contains(t, out.ID, "chatcmpl-")
	require.Len(t, out.Choices, 1)
	require.Equal(t, "stop", out.Choices[0].FinishReason)
	require.Equal(t, "assistant", out.Choices[0].Message.Role)
	require.JSONEq(t, `"hello"`, string(out.Choices[0].Message.Content))
	require.JSONEq(t, `{"input_tokens":4,"output_tokens":2}`, string(out.Usage))
}

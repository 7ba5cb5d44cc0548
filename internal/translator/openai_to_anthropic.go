package translator

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/copilot-gateway/copilot-api/internal/streaming"
)

// ChatCompletionResponse is the OpenAI chat-completions non-streaming
// response shape.
type ChatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content   json.RawMessage `json:"content"`
			ToolCalls []ToolCall      `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int  `json:"prompt_tokens"`
		CompletionTokens int  `json:"completion_tokens"`
		CachedTokens     *int `json:"cached_tokens,omitempty"`
	} `json:"usage"`
}

// ToAnthropicResponse converts a non-streaming OpenAI chat-completions
// response into an Anthropic Messages API response: text blocks first
// (collected across all choices), then tool_use blocks built from each
// tool_call's JSON-encoded arguments.
func ToAnthropicResponse(model string, resp ChatCompletionResponse) (AnthropicResponse, error) {
	var content []AnthropicContentBlock
	var toolCalls []ToolCall
	var finishReason string

	for _, choice := range resp.Choices {
		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}
		if text, err := contentAsString(choice.Message.Content); err == nil && text != "" {
			content = append(content, AnthropicContentBlock{Type: "text", Text: text})
		}
		toolCalls = append(toolCalls, choice.Message.ToolCalls...)
	}

	for _, tc := range toolCalls {
		var input json.RawMessage
		if tc.Function.Arguments != "" {
			input = json.RawMessage(tc.Function.Arguments)
		} else {
			input = json.RawMessage("{}")
		}
		content = append(content, AnthropicContentBlock{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}

	usage := AnthropicUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if resp.Usage.CachedTokens != nil {
		usage.InputTokens -= *resp.Usage.CachedTokens
		if usage.InputTokens < 0 {
			usage.InputTokens = 0
		}
		usage.CacheReadInputTokens = resp.Usage.CachedTokens
	}

	return AnthropicResponse{
		ID:         "msg_" + uuid.NewString(),
		Type:       "message",
		Role:       "assistant",
		Model:      model,
		Content:    content,
		StopReason: streaming.MapOpenAIStopReason(finishReason),
		Usage:      usage,
	}, nil
}

func contentAsString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var asString string
	if json.Unmarshal(raw, &asString) == nil {
		return asString, nil
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", err
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Type == "text" {
			texts = append(texts, p.Text)
		}
	}
	return joinParagraphs(texts), nil
}

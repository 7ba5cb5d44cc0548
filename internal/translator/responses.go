package translator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResponsesInputItem is one element of a Copilot Responses API request's
// "input" array.
type ResponsesInputItem struct {
	Type      string `json:"type"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	ID        string `json:"id,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

// ResponsesTool is a Responses API tool definition; unlike chat
// completions, the function fields sit at the top level.
type ResponsesTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ResponsesPayload is the Copilot Responses API request shape.
type ResponsesPayload struct {
	Model           string               `json:"model"`
	Input           []ResponsesInputItem `json:"input"`
	Instructions    string               `json:"instructions,omitempty"`
	MaxOutputTokens *int                 `json:"max_output_tokens,omitempty"`
	Temperature     *float64             `json:"temperature,omitempty"`
	TopP            *float64             `json:"top_p,omitempty"`
	Stream          bool                 `json:"stream,omitempty"`
	Tools           []ResponsesTool      `json:"tools,omitempty"`
	ToolChoice      json.RawMessage      `json:"tool_choice,omitempty"`
}

// BuildResponsesPayload converts a chat-completions request into the
// Responses API shape: system messages become instructions, the remaining
// messages become input items, and chat-style tool definitions are
// flattened to the Responses tool shape.
func BuildResponsesPayload(model string, chat ChatCompletionsPayload) (ResponsesPayload, error) {
	input, err := MessagesToResponsesInput(chat.Messages)
	if err != nil {
		return ResponsesPayload{}, err
	}
	if len(input) == 0 {
		return ResponsesPayload{}, fmt.Errorf("translator: no valid input messages")
	}
	instructions, err := ExtractInstructions(chat.Messages)
	if err != nil {
		return ResponsesPayload{}, err
	}

	var tools []ResponsesTool
	for _, t := range chat.Tools {
		tools = append(tools, ResponsesTool{
			Type:        "function",
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}

	return ResponsesPayload{
		Model:           model,
		Input:           input,
		Instructions:    instructions,
		MaxOutputTokens: chat.MaxTokens,
		Temperature:     chat.Temperature,
		TopP:            chat.TopP,
		Stream:          chat.Stream,
		Tools:           tools,
		ToolChoice:      chat.ToolChoice,
	}, nil
}

// MessagesToResponsesInput converts OpenAI chat-completions messages into
// Copilot Responses API input items. System messages are dropped here —
// their text is surfaced separately via ExtractInstructions — user
// messages become a single message item (images are dropped, since the
// Responses input item shape used here is text-only), assistant messages
// become an optional message item plus one function_call item per tool
// call (carrying call_id, name, arguments), and tool messages become
// function_call_output items (carrying call_id and output).
func MessagesToResponsesInput(messages []ChatMessage) ([]ResponsesInputItem, error) {
	var out []ResponsesInputItem

	for _, m := range messages {
		switch m.Role {
		case "system":
			continue
		case "user":
			text, err := contentAsString(m.Content)
			if err != nil {
				return nil, err
			}
			out = append(out, ResponsesInputItem{Type: "message", Role: "user", Content: text})
		case "assistant":
			if text, err := contentAsString(m.Content); err == nil && text != "" {
				out = append(out, ResponsesInputItem{Type: "message", Role: "assistant", Content: text})
			}
			for _, tc := range m.ToolCalls {
				out = append(out, ResponsesInputItem{
					Type:      "function_call",
					ID:        tc.ID,
					CallID:    tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				})
			}
		case "tool":
			text, err := contentAsString(m.Content)
			if err != nil {
				return nil, err
			}
			out = append(out, ResponsesInputItem{
				Type:   "function_call_output",
				CallID: m.ToolCallID,
				Output: text,
			})
		}
	}
	return out, nil
}

// ExtractInstructions joins every system message's text content into a
// single instructions string, or "" if there were none.
func ExtractInstructions(messages []ChatMessage) (string, error) {
	var texts []string
	for _, m := range messages {
		if m.Role != "system" {
			continue
		}
		text, err := contentAsString(m.Content)
		if err != nil {
			return "", err
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	return joinParagraphs(texts), nil
}

// ResponsesResponse is the Copilot Responses API non-streaming response
// shape, narrowed to the fields needed to translate back to Anthropic.
type ResponsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage json.RawMessage `json:"usage,omitempty"`
}

// ResponsesToAnthropic wraps a Responses API response's first output_text
// as a single-text-block Anthropic message, passing usage through
// unchanged (the Responses usage object already speaks in
// input_tokens/output_tokens).
func ResponsesToAnthropic(model string, resp ResponsesResponse) AnthropicResponse {
	text := ""
outer:
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				text = c.Text
				break outer
			}
		}
	}

	var usage AnthropicUsage
	_ = json.Unmarshal(resp.Usage, &usage)

	return AnthropicResponse{
		ID:         "msg_" + uuid.NewString(),
		Type:       "message",
		Role:       "assistant",
		Model:      model,
		Content:    []AnthropicContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      usage,
	}
}

// ChatCompletionObject is a full chat-completions response the gateway
// synthesizes itself (as opposed to ChatCompletionResponse, which only
// needs to read an upstream reply).
type ChatCompletionObject struct {
	ID      string          `json:"id"`
	Object  string          `json:"object"`
	Created int64           `json:"created"`
	Model   string          `json:"model"`
	Choices []ChatChoice    `json:"choices"`
	Usage   json.RawMessage `json:"usage,omitempty"`
}

type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ResponsesToChatCompletion re-frames a buffered Responses API reply as a
// chat-completion object: the message output's first output_text becomes a
// single assistant choice with finish_reason "stop", and the upstream usage
// field rides along unchanged.
func ResponsesToChatCompletion(model string, resp ResponsesResponse) ChatCompletionObject {
	text := ""
outer:
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				text = c.Text
				break outer
			}
		}
	}

	return ChatCompletionObject{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatChoice{{
			Message:      ChatMessage{Role: "assistant", Content: jsonString(text)},
			FinishReason: "stop",
		}},
		Usage: resp.Usage,
	}
}

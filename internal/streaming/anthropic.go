package streaming

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ChatCompletionChunk is the subset of an OpenAI chat-completions stream
// chunk the Anthropic re-framer needs.
type ChatCompletionChunk struct {
	Choices []ChunkChoice `json:"choices"`
	Usage   *ChatUsage    `json:"usage,omitempty"`
}

type ChunkChoice struct {
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type ChunkDelta struct {
	Content   string          `json:"content"`
	ToolCalls []ToolCallDelta `json:"tool_calls"`
}

type ToolCallDelta struct {
	Index    int               `json:"index"`
	ID       string            `json:"id,omitempty"`
	Function ToolCallFuncDelta `json:"function"`
}

type ToolCallFuncDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type ChatUsage struct {
	PromptTokens         int  `json:"prompt_tokens"`
	CompletionTokens     int  `json:"completion_tokens"`
	CachedTokens         *int `json:"cached_tokens,omitempty"`
}

// Event is one Anthropic streaming event: its SSE "event:" name plus the
// JSON-encodable payload for "data:".
type Event struct {
	Type string
	Data any
}

// toolCallState tracks a single in-flight tool_use content block.
type toolCallState struct {
	anthropicBlockIndex int
}

// AnthropicState is the per-stream state machine translating OpenAI
// chat-completions chunks into Anthropic Messages streaming events. It is
// not safe for concurrent use; one instance per in-flight response.
type AnthropicState struct {
	messageStartSent  bool
	contentBlockIndex int
	contentBlockOpen  bool
	openBlockIsTool   bool
	toolCalls         map[int]*toolCallState
	messageID         string
	model             string
}

func NewAnthropicState(model string) *AnthropicState {
	return &AnthropicState{toolCalls: map[int]*toolCallState{}, messageID: "msg_" + uuid.NewString(), model: model}
}

// TranslateChunk converts one upstream chunk into zero or more Anthropic
// events, mirroring the original translate_chunk_to_anthropic_events.
func (s *AnthropicState) TranslateChunk(chunk ChatCompletionChunk) []Event {
	var events []Event

	if !s.messageStartSent {
		s.messageStartSent = true
		usage := map[string]any{"input_tokens": 0, "output_tokens": 0}
		if chunk.Usage != nil {
			usage["input_tokens"] = chunk.Usage.PromptTokens
		}
		events = append(events, Event{Type: "message_start", Data: map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id":            s.messageID,
				"type":          "message",
				"role":          "assistant",
				"content":       []any{},
				"model":         s.model,
				"stop_reason":   nil,
				"stop_sequence": nil,
				"usage":         usage,
			},
		}})
	}

	if len(chunk.Choices) == 0 {
		return events
	}
	choice := chunk.Choices[0]

	if choice.Delta.Content != "" {
		if s.contentBlockOpen && s.openBlockIsTool {
			events = append(events, s.closeBlock())
		}
		if !s.contentBlockOpen {
			events = append(events, s.openTextBlock())
		}
		events = append(events, Event{Type: "content_block_delta", Data: map[string]any{
			"type":  "content_block_delta",
			"index": s.contentBlockIndex,
			"delta": map[string]any{"type": "text_delta", "text": choice.Delta.Content},
		}})
	}

	for _, tc := range choice.Delta.ToolCalls {
		if tc.ID != "" && tc.Function.Name != "" {
			if s.contentBlockOpen {
				events = append(events, s.closeBlock())
			}
			events = append(events, s.openToolBlock(tc))
			continue
		}
		if tc.Function.Arguments != "" {
			if state, ok := s.toolCalls[tc.Index]; ok {
				events = append(events, Event{Type: "content_block_delta", Data: map[string]any{
					"type":  "content_block_delta",
					"index": state.anthropicBlockIndex,
					"delta": map[string]any{"type": "input_json_delta", "partial_json": tc.Function.Arguments},
				}})
			}
		}
	}

	if choice.FinishReason != nil {
		if s.contentBlockOpen {
			events = append(events, s.closeBlock())
		}
		usage := map[string]any{}
		if chunk.Usage != nil {
			usage["input_tokens"] = chunk.Usage.PromptTokens
			usage["output_tokens"] = chunk.Usage.CompletionTokens
			if chunk.Usage.CachedTokens != nil {
				usage["cache_read_input_tokens"] = *chunk.Usage.CachedTokens
			}
		}
		events = append(events, Event{Type: "message_delta", Data: map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{"stop_reason": MapOpenAIStopReason(*choice.FinishReason), "stop_sequence": nil},
			"usage": usage,
		}})
		events = append(events, Event{Type: "message_stop", Data: map[string]any{"type": "message_stop"}})
	}

	return events
}

func (s *AnthropicState) openTextBlock() Event {
	s.contentBlockOpen = true
	s.openBlockIsTool = false
	ev := Event{Type: "content_block_start", Data: map[string]any{
		"type":          "content_block_start",
		"index":         s.contentBlockIndex,
		"content_block": map[string]any{"type": "text", "text": ""},
	}}
	return ev
}

func (s *AnthropicState) openToolBlock(tc ToolCallDelta) Event {
	s.contentBlockOpen = true
	s.openBlockIsTool = true
	s.toolCalls[tc.Index] = &toolCallState{anthropicBlockIndex: s.contentBlockIndex}
	ev := Event{Type: "content_block_start", Data: map[string]any{
		"type":  "content_block_start",
		"index": s.contentBlockIndex,
		"content_block": map[string]any{
			"type":  "tool_use",
			"id":    tc.ID,
			"name":  tc.Function.Name,
			"input": map[string]any{},
		},
	}}
	return ev
}

func (s *AnthropicState) closeBlock() Event {
	ev := Event{Type: "content_block_stop", Data: map[string]any{"type": "content_block_stop", "index": s.contentBlockIndex}}
	s.contentBlockOpen = false
	s.contentBlockIndex++
	return ev
}

// MapOpenAIStopReason translates an OpenAI finish_reason to the
// corresponding Anthropic stop_reason.
func MapOpenAIStopReason(reason string) string {
	switch reason {
	case "length":
		return "max_tokens"
	case "tool_calls":
		return "tool_use"
	case "content_filter":
		return "content_filter"
	default:
		return "end_turn"
	}
}

// ResponsesStreamState synthesizes Anthropic streaming events from a
// Copilot Responses API stream, which has no tool-call framing of its own
// in this gateway's scope — it's a plain text-delta stream.
type ResponsesStreamState struct {
	messageID    string
	model        string
	opened       bool
	outputTokens int
}

func NewResponsesStreamState(model string) *ResponsesStreamState {
	return &ResponsesStreamState{messageID: "msg_" + uuid.NewString(), model: model}
}

// Start emits the synthesized message_start + content_block_start pair
// immediately, since the Responses stream carries no separate "message
// begins now" signal of its own.
func (s *ResponsesStreamState) Start() []Event {
	s.opened = true
	return []Event{
		{Type: "message_start", Data: map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id": s.messageID, "type": "message", "role": "assistant",
				"content": []any{}, "model": s.model,
				"stop_reason": nil, "stop_sequence": nil,
				"usage": map[string]any{"input_tokens": 0, "output_tokens": 0},
			},
		}},
		{Type: "content_block_start", Data: map[string]any{
			"type": "content_block_start", "index": 0,
			"content_block": map[string]any{"type": "text", "text": ""},
		}},
	}
}

// ResponsesEvent is the subset of a Copilot Responses SSE event this
// gateway re-frames.
type ResponsesEvent struct {
	Type     string `json:"type"`
	Delta    string `json:"delta,omitempty"`
	Response struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"response,omitempty"`
}

// HandleEvent processes one upstream Responses event and returns any
// Anthropic events it produces.
func (s *ResponsesStreamState) HandleEvent(ev ResponsesEvent) []Event {
	switch ev.Type {
	case "response.output_text.delta":
		return []Event{{Type: "content_block_delta", Data: map[string]any{
			"type": "content_block_delta", "index": 0,
			"delta": map[string]any{"type": "text_delta", "text": ev.Delta},
		}}}
	case "response.completed":
		s.outputTokens = ev.Response.Usage.OutputTokens
	}
	return nil
}

// Finish emits the closing block_stop/message_delta/message_stop trio once
// the upstream Responses stream ends.
func (s *ResponsesStreamState) Finish() []Event {
	return []Event{
		{Type: "content_block_stop", Data: map[string]any{"type": "content_block_stop", "index": 0}},
		{Type: "message_delta", Data: map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{"stop_reason": "end_turn", "stop_sequence": nil},
			"usage": map[string]any{"output_tokens": s.outputTokens},
		}},
		{Type: "message_stop", Data: map[string]any{"type": "message_stop"}},
	}
}

// ErrorEvent builds the generic Anthropic streaming error event emitted
// when an upstream chunk can't be parsed as JSON.
func ErrorEvent() Event {
	return Event{Type: "error", Data: map[string]any{
		"type": "error",
		"error": map[string]any{
			"type":    "api_error",
			"message": "An unexpected error occurred during streaming.",
		},
	}}
}

// MarshalEvent JSON-encodes an event's data payload for the SSE data line.
func MarshalEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev.Data)
}

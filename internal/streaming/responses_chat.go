package streaming

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ResponsesToChatState re-frames a Copilot Responses API stream as OpenAI
// chat-completions chunks, for clients that asked for /chat/completions
// against a model the gateway had to serve through /responses. Every chunk
// carries the same synthesized "chatcmpl-" id; the final chunk carries the
// finish_reason and the usage captured from response.completed.
type ResponsesToChatState struct {
	id        string
	model     string
	created   int64
	finalSent bool

	inputTokens  int
	outputTokens int
}

func NewResponsesToChatState(model string) *ResponsesToChatState {
	return &ResponsesToChatState{
		id:      "chatcmpl-" + uuid.NewString(),
		model:   model,
		created: time.Now().Unix(),
	}
}

// HandleEvent converts one upstream Responses event into zero or more
// JSON-encoded chat-completion chunks ready for SSE data lines.
func (s *ResponsesToChatState) HandleEvent(ev ResponsesEvent) [][]byte {
	switch ev.Type {
	case "response.output_text.delta":
		if ev.Delta == "" {
			return nil
		}
		return [][]byte{s.chunk(map[string]any{"content": ev.Delta}, nil, nil)}
	case "response.completed":
		s.inputTokens = ev.Response.Usage.InputTokens
		s.outputTokens = ev.Response.Usage.OutputTokens
		s.finalSent = true
		reason := "stop"
		return [][]byte{s.chunk(map[string]any{}, &reason, s.usage())}
	}
	return nil
}

// Finish closes the stream for an upstream that ended without a
// response.completed event, so the client still sees a terminal chunk
// before [DONE].
func (s *ResponsesToChatState) Finish() [][]byte {
	if s.finalSent {
		return nil
	}
	s.finalSent = true
	reason := "stop"
	return [][]byte{s.chunk(map[string]any{}, &reason, s.usage())}
}

func (s *ResponsesToChatState) usage() map[string]any {
	return map[string]any{
		"prompt_tokens":     s.inputTokens,
		"completion_tokens": s.outputTokens,
		"total_tokens":      s.inputTokens + s.outputTokens,
	}
}

func (s *ResponsesToChatState) chunk(delta map[string]any, finishReason *string, usage map[string]any) []byte {
	choice := map[string]any{
		"index":         0,
		"delta":         delta,
		"finish_reason": finishReason,
	}
	body := map[string]any{
		"id":      s.id,
		"object":  "chat.completion.chunk",
		"created": s.created,
		"model":   s.model,
		"choices": []any{choice},
	}
	if usage != nil {
		body["usage"] = usage
	}
	b, _ := json.Marshal(body)
	return b
}

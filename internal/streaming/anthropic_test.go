package streaming

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func eventTypes(evs []Event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}

func finishReasonPtr(s string) *string { return &s }

func textChunk(text string) ChatCompletionChunk {
	return ChatCompletionChunk{Choices: []ChunkChoice{{Delta: ChunkDelta{Content: text}}}}
}

func toolStartChunk(index int, id, name string) ChatCompletionChunk {
	return ChatCompletionChunk{Choices: []ChunkChoice{{Delta: ChunkDelta{
		ToolCalls: []ToolCallDelta{{Index: index, ID: id, Function: ToolCallFuncDelta{Name: name}}},
	}}}}
}

func toolArgsChunk(index int, args string) ChatCompletionChunk {
	return ChatCompletionChunk{Choices: []ChunkChoice{{Delta: ChunkDelta{
		ToolCalls: []ToolCallDelta{{Index: index, Function: ToolCallFuncDelta{Arguments: args}}},
	}}}}
}

func finishChunk(reason string) ChatCompletionChunk {
	return ChatCompletionChunk{Choices: []ChunkChoice{{FinishReason: finishReasonPtr(reason)}}}
}

// TestAnthropicStateSequenceInvariant checks the streaming event-order
// invariant: exactly one message_start; each content_block_start on index
// i is followed eventually by exactly one content_block_stop on index i,
// with no two blocks open simultaneously; exactly one message_delta
// followed by exactly one message_stop at the end.
func TestAnthropicStateSequenceInvariant(t *testing.T) {
	s := NewAnthropicState("gpt-5.2-codex")
	var all []Event

	all = append(all, s.TranslateChunk(textChunk("hi"))...)
	all = append(all, s.TranslateChunk(toolStartChunk(0, "call_1", "search"))...)
	all = append(all, s.TranslateChunk(toolArgsChunk(0, `{"q":1}`))...)
	all = append(all, s.TranslateChunk(finishChunk("tool_calls"))...)

	types := eventTypes(all)
	require.Equal(t, 1, countType(types, "message_start"))
	require.Equal(t, "message_start", types[0])
	require.Equal(t, 2, countType(types, "content_block_start"))
	require.Equal(t, 2, countType(types, "content_block_stop"))
	require.Equal(t, 1, countType(types, "message_delta"))
	require.Equal(t, 1, countType(types, "message_stop"))
	require.Equal(t, "message_delta", types[len(types)-2])
	require.Equal(t, "message_stop", types[len(types)-1])

	open := -1
	for _, e := range all {
		switch e.Type {
		case "content_block_start":
			require.Equal(t, -1, open, "two blocks open simultaneously")
			open = e.Data.(map[string]any)["index"].(int)
		case "content_block_stop":
			require.NotEqual(t, -1, open)
			require.Equal(t, open, e.Data.(map[string]any)["index"].(int))
			open = -1
		}
	}
}

// A tool-call delta whose first chunk carries neither id nor name has no
// block to attach its argument fragments to; they are dropped rather than
// corrupting an unrelated open block.
func TestAnthropicStateDropsOrphanToolArguments(t *testing.T) {
	s := NewAnthropicState("gpt-5.2-codex")
	evs := s.TranslateChunk(toolArgsChunk(3, `{"q":1}`))
	require.Equal(t, []string{"message_start"}, eventTypes(evs))
}

func TestAnthropicStateInterleavedTextAfterTool(t *testing.T) {
	s := NewAnthropicState("gpt-5.2-codex")
	var all []Event
	all = append(all, s.TranslateChunk(toolStartChunk(0, "call_1", "search"))...)
	all = append(all, s.TranslateChunk(textChunk("done"))...)
	all = append(all, s.TranslateChunk(finishChunk("stop"))...)

	types := eventTypes(all)
	require.Equal(t, 2, countType(types, "content_block_start"))
	require.Equal(t, 2, countType(types, "content_block_stop"))
}

func countType(types []string, want string) int {
	n := 0
	for _, t := range types {
		if t == want {
			n++
		}
	}
	return n
}

func TestMapOpenAIStopReason(t *testing.T) {
	require.Equal(t, "max_tokens", MapOpenAIStopReason("length"))
	require.Equal(t, "tool_use", MapOpenAIStopReason("tool_calls"))
	require.Equal(t, "content_filter", MapOpenAIStopReason("content_filter"))
	require.Equal(t, "end_turn", MapOpenAIStopReason("stop"))
	require.Equal(t, "end_turn", MapOpenAIStopReason("whatever"))
}

func TestResponsesStreamStateSequence(t *testing.T) {
	s := NewResponsesStreamState("gpt-5.2-codex")
	var all []Event
	all = append(all, s.Start()...)
	all = append(all, s.HandleEvent(ResponsesEvent{Type: "response.output_text.delta", Delta: "hi"})...)
	var completed ResponsesEvent
	completed.Type = "response.completed"
	completed.Response.Usage.OutputTokens = 5
	all = append(all, s.HandleEvent(completed)...)
	all = append(all, s.Finish()...)

	types := eventTypes(all)
	require.Equal(t, []string{
		"message_start", "content_block_start", "content_block_delta",
		"content_block_stop", "message_delta", "message_stop",
	}, types)
}

func TestResponsesToChatStateEmitsStableIDAndUsage(t *testing.T) {
	s := NewResponsesToChatState("gpt-5.2-codex")

	first := s.HandleEvent(ResponsesEvent{Type: "response.output_text.delta", Delta: "hel"})
	require.Len(t, first, 1)
	second := s.HandleEvent(ResponsesEvent{Type: "response.output_text.delta", Delta: "lo"})
	require.Len(t, second, 1)

	var a, b map[string]any
	require.NoError(t, json.Unmarshal(first[0], &a))
	require.NoError(t, json.Unmarshal(second[0], &b))
	require.Equal(t, a["id"], b["id"])
	require.Contains(t, a["id"], "chatcmpl-")
	require.Equal(t, "chat.completion.chunk", a["object"])

	var completed ResponsesEvent
	completed.Type = "response.completed"
	completed.Response.Usage.InputTokens = 7
	completed.Response.Usage.OutputTokens = 5
	final := s.HandleEvent(completed)
	require.Len(t, final, 1)

	var f map[string]any
	require.NoError(t, json.Unmarshal(final[0], &f))
	choice := f["choices"].([]any)[0].(map[string]any)
	require.Equal(t, "stop", choice["finish_reason"])
	usage := f["usage"].(map[string]any)
	require.EqualValues(t, 7, usage["prompt_tokens"])
	require.EqualValues(t, 5, usage["completion_tokens"])
	require.EqualValues(t, 12, usage["total_tokens"])

	require.Empty(t, s.Finish())
}

func TestResponsesToChatStateFinishWithoutCompleted(t *testing.T) {
	s := NewResponsesToChatState("gpt-5.2-codex")
	out := s.Finish()
	require.Len(t, out, 1)
	var f map[string]any
	require.NoError(t, json.Unmarshal(out[0], &f))
	choice := f["choices"].([]any)[0].(map[string]any)
	require.Equal(t, "stop", choice["finish_reason"])
}

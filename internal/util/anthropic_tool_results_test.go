package util

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestNormalizeAnthropicToolResultsPullsResultForward(t *testing.T) {
	in := []byte(`{
  "model":"claude-opus-4.5",
  "messages":[
    {"role":"user","content":"hi"},
    {"role":"assistant","content":[{"type":"tool_use","id":"call_a","name":"a","input":{}}]},
    {"role":"user","content":[{"type":"text","text":"interleaved text"}]},
    {"role":"user","content":[{"type":"tool_result","tool_use_id":"call_a","content":"outA"}]}
  ]
}`)

	out := NormalizeAnthropicToolResults(in)

	require.EqualValues(t, 4, gjson.GetBytes(out, "messages.#").Int(), "body=%s", out)
	require.Equal(t, "tool_result", gjson.GetBytes(out, "messages.2.content.0.type").String(), "body=%s", out)
	require.Equal(t, "call_a", gjson.GetBytes(out, "messages.2.content.0.tool_use_id").String(), "body=%s", out)
	require.Equal(t, "interleaved text", gjson.GetBytes(out, "messages.3.content.0.text").String(), "body=%s", out)
}

func TestNormalizeAnthropicToolResultsSplitsMixedUserTurn(t *testing.T) {
	in := []byte(`{
  "messages":[
    {"role":"assistant","content":[{"type":"tool_use","id":"call_a","name":"a","input":{}}]},
    {"role":"user","content":[
      {"type":"text","text":"and also"},
      {"type":"tool_result","tool_use_id":"call_a","content":"outA"}
    ]}
  ]
}`)

	out := NormalizeAnthropicToolResults(in)

	require.EqualValues(t, 3, gjson.GetBytes(out, "messages.#").Int(), "body=%s", out)
	require.Equal(t, "tool_result", gjson.GetBytes(out, "messages.1.content.0.type").String(), "body=%s", out)
	require.Equal(t, "and also", gjson.GetBytes(out, "messages.2.content.0.text").String(), "body=%s", out)
}

func TestNormalizeAnthropicToolResultsLeavesWellFormedPayloadAlone(t *testing.T) {
	in := []byte(`{"messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`)
	require.Equal(t, string(in), string(NormalizeAnthropicToolResults(in)))
}

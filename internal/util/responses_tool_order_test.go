package util

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestNormalizeResponsesToolOrderPairsOutputsWithCalls(t *testing.T) {
	in := []byte(`{
  "model":"x",
  "input":[
    {"type":"message","role":"user","content":"hi"},
    {"type":"function_call","call_id":"call_a","name":"a","arguments":"{}"},
    {"type":"function_call","call_id":"call_b","name":"b","arguments":"{}"},
    {"type":"message","role":"user","content":"(interleaved)"},
    {"type":"function_call_output","call_id":"call_b","output":"outB"},
    {"type":"function_call_output","call_id":"call_a","output":"outA"}
  ]
}`)

	out := NormalizeResponsesToolOrder(in)

	require.EqualValues(t, 6, gjson.GetBytes(out, "input.#").Int(), "body=%s", out)
	require.Equal(t, "function_call", gjson.GetBytes(out, "input.1.type").String(), "body=%s", out)
	require.Equal(t, "call_a", gjson.GetBytes(out, "input.2.call_id").String(), "body=%s", out)
	require.Equal(t, "function_call_output", gjson.GetBytes(out, "input.2.type").String(), "body=%s", out)
	require.Equal(t, "call_b", gjson.GetBytes(out, "input.4.call_id").String(), "body=%s", out)
	require.Equal(t, "function_call_output", gjson.GetBytes(out, "input.4.type").String(), "body=%s", out)
	require.Equal(t, "message", gjson.GetBytes(out, "input.5.type").String(), "body=%s", out)
}

func TestNormalizeResponsesToolOrderDropsOrphanCalls(t *testing.T) {
	in := []byte(`{
  "model":"x",
  "input":[
    {"type":"message","role":"user","content":"hi"},
    {"type":"function_call","call_id":"call_a","name":"a","arguments":"{}"},
    {"type":"message","role":"user","content":"continue"}
  ]
}`)

	out := NormalizeResponsesToolOrder(in)
	require.EqualValues(t, 2, gjson.GetBytes(out, "input.#").Int(), "body=%s", out)
	require.Equal(t, "message", gjson.GetBytes(out, "input.0.type").String(), "body=%s", out)
	require.Equal(t, "message", gjson.GetBytes(out, "input.1.type").String(), "body=%s", out)
}

func TestNormalizeResponsesToolOrderNoToolItemsPassthrough(t *testing.T) {
	in := []byte(`{"model":"x","input":[{"type":"message","role":"user","content":"hi"}]}`)
	require.Equal(t, string(in), string(NormalizeResponsesToolOrder(in)))
}

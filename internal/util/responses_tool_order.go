package util

import "encoding/json"

// NormalizeResponsesToolOrder reorders a Responses API request's "input"
// array so every function_call_output sits directly after the
// function_call that produced it, and drops calls whose output never
// arrives anywhere in the request. The Responses endpoint rejects both
// shapes, and multi-turn clients produce them routinely.
func NormalizeResponsesToolOrder(body []byte) []byte {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return body
	}
	input, ok := root["input"].([]any)
	if !ok || len(input) == 0 {
		return body
	}

	callIDs := map[string]bool{}
	for _, item := range input {
		if inputItemType(item) == "function_call" {
			if id := inputItemCallID(item); id != "" {
				callIDs[id] = true
			}
		}
	}
	if len(callIDs) == 0 {
		return body
	}

	// Index each call's outputs; these get re-homed behind their call.
	outputsByCall := map[string][]any{}
	rehomed := map[int]bool{}
	for idx, item := range input {
		if inputItemType(item) != "function_call_output" {
			continue
		}
		id := inputItemCallID(item)
		if id != "" && callIDs[id] {
			outputsByCall[id] = append(outputsByCall[id], item)
			rehomed[idx] = true
		}
	}

	out := make([]any, 0, len(input))
	touched := false
	for idx, item := range input {
		if rehomed[idx] {
			touched = true
			continue
		}
		if inputItemType(item) == "function_call" {
			id := inputItemCallID(item)
			if id != "" {
				outputs, ok := outputsByCall[id]
				if !ok {
					touched = true
					continue
				}
				out = append(out, item)
				out = append(out, outputs...)
				continue
			}
		}
		out = append(out, item)
	}

	if !touched {
		return body
	}
	root["input"] = out
	updated, err := json.Marshal(root)
	if err != nil {
		return body
	}
	return updated
}

func inputItemType(item any) string {
	obj, ok := item.(map[string]any)
	if !ok {
		return ""
	}
	if t, _ := obj["type"].(string); t != "" {
		return t
	}
	if _, hasRole := obj["role"]; hasRole {
		return "message"
	}
	return ""
}

func inputItemCallID(item any) string {
	obj, ok := item.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := obj["call_id"].(string)
	return id
}

package util

import "encoding/json"

// NormalizeAnthropicToolResults rewrites an Anthropic Messages payload so
// every tool_result block sits in a user message directly after the
// assistant turn whose tool_use it answers. Clients in long multi-turn
// tool conversations sometimes interleave plain user text between the two,
// which the chat-completions translation downstream cannot represent.
func NormalizeAnthropicToolResults(body []byte) []byte {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return body
	}
	msgs, ok := root["messages"].([]any)
	if !ok || len(msgs) == 0 {
		return body
	}

	changed := false
	out := make([]any, 0, len(msgs))

	for i := 0; i < len(msgs); i++ {
		if msgs[i] == nil {
			continue
		}
		msg, ok := msgs[i].(map[string]any)
		if !ok {
			out = append(out, msgs[i])
			continue
		}
		out = append(out, msg)

		ids := toolUseIDs(msg)
		if len(ids) == 0 {
			continue
		}

		// Pull every matching tool_result forward out of later user turns.
		var pulled []any
		for j := i + 1; j < len(msgs); j++ {
			later, ok := msgs[j].(map[string]any)
			if !ok || messageRole(later) != "user" {
				continue
			}
			blocks, ok := later["content"].([]any)
			if !ok {
				continue
			}
			var kept []any
			for _, b := range blocks {
				if id := toolResultID(b); id != "" && ids[id] {
					pulled = append(pulled, b)
					continue
				}
				kept = append(kept, b)
			}
			if len(kept) == len(blocks) {
				continue
			}
			changed = changed || j != i+1 || len(kept) > 0
			if len(kept) == 0 {
				msgs[j] = nil
			} else {
				later["content"] = kept
			}
		}
		if len(pulled) > 0 {
			out = append(out, map[string]any{"role": "user", "content": pulled})
		}
	}

	if !changed {
		return body
	}
	root["messages"] = out
	updated, err := json.Marshal(root)
	if err != nil {
		return body
	}
	return updated
}

func messageRole(msg map[string]any) string {
	role, _ := msg["role"].(string)
	return role
}

// toolUseIDs collects the ids of every tool_use block in an assistant
// message's content array.
func toolUseIDs(msg map[string]any) map[string]bool {
	if messageRole(msg) != "assistant" {
		return nil
	}
	blocks, ok := msg["content"].([]any)
	if !ok {
		return nil
	}
	ids := map[string]bool{}
	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := block["type"].(string); t != "tool_use" {
			continue
		}
		if id, _ := block["id"].(string); id != "" {
			ids[id] = true
		}
	}
	return ids
}

// toolResultID returns the tool_use_id of a tool_result block, or "".
func toolResultID(b any) string {
	block, ok := b.(map[string]any)
	if !ok {
		return ""
	}
	if t, _ := block["type"].(string); t != "tool_result" {
		return ""
	}
	id, _ := block["tool_use_id"].(string)
	return id
}

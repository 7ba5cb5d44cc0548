package translator

import (
	"encoding/json"
	"fmt"
)

// ToOpenAIChat builds an OpenAI chat-completions payload from an Anthropic
// Messages API request: the system prompt (if any) becomes a leading
// system message, each Anthropic message is expanded via translateMessages,
// and tool defs/user metadata are carried across.
func ToOpenAIChat(model string, in AnthropicMessagesPayload) (ChatCompletionsPayload, error) {
	messages, err := translateMessages(in.System, in.Messages)
	if err != nil {
		return ChatCompletionsPayload{}, err
	}

	out := ChatCompletionsPayload{
		Model:       model,
		Messages:    messages,
		Tools:       translateTools(in.Tools),
		ToolChoice:  in.ToolChoice,
		Stream:      in.Stream,
		Temperature: in.Temperature,
		TopP:        in.TopP,
	}
	if in.MaxTokens > 0 {
		mt := in.MaxTokens
		out.MaxTokens = &mt
	}
	if len(in.StopSequences) > 0 {
		out.Stop, _ = json.Marshal(in.StopSequences)
	}
	if in.Metadata != nil {
		out.User = in.Metadata.UserID
	}
	return out, nil
}

func translateTools(tools []AnthropicTool) []Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, Tool{
			Type: "function",
			Function: ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}

// systemText normalizes Anthropic's "system" field, which is either a bare
// string or an array of {type:"text",text} blocks, into a single string.
func systemText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var asString string
	if json.Unmarshal(raw, &asString) == nil {
		return asString, nil
	}
	var blocks []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", err
	}
	texts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			texts = append(texts, b.Text)
		}
	}
	return joinParagraphs(texts), nil
}

func translateMessages(system json.RawMessage, in []AnthropicMessage) ([]ChatMessage, error) {
	var out []ChatMessage

	sysText, err := systemText(system)
	if err != nil {
		return nil, err
	}
	if sysText != "" {
		out = append(out, ChatMessage{Role: "system", Content: jsonString(sysText)})
	}

	for _, m := range in {
		blocks, err := decodeContent(m.Content)
		if err != nil {
			return nil, err
		}
		switch m.Role {
		case "user":
			msgs, err := handleUserMessage(blocks)
			if err != nil {
				return nil, err
			}
			out = append(out, msgs...)
		case "assistant":
			msg, err := handleAssistantMessage(blocks)
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		default:
			return nil, fmt.Errorf("translator: unsupported anthropic message role %q", m.Role)
		}
	}
	return out, nil
}

// handleUserMessage splits tool_result blocks out into their own
// role:"tool" messages (OpenAI has no equivalent of an inline tool result
// inside a user turn) and folds everything else into one role:"user"
// message.
func handleUserMessage(blocks []AnthropicContentBlock) ([]ChatMessage, error) {
	var out []ChatMessage
	var rest []AnthropicContentBlock

	for _, b := range blocks {
		if b.Type == "tool_result" {
			content := b.Content
			if len(content) == 0 {
				content = jsonString("")
			}
			out = append(out, ChatMessage{
				Role:       "tool",
				ToolCallID: b.ToolUseID,
				Content:    content,
			})
			continue
		}
		rest = append(rest, b)
	}

	if len(rest) > 0 {
		content, err := mapContent(rest)
		if err != nil {
			return nil, err
		}
		out = append(out, ChatMessage{Role: "user", Content: content})
	}
	return out, nil
}

// handleAssistantMessage builds one assistant message. If the assistant
// turn includes tool_use blocks, text/thinking blocks become the message
// content (or null if there's none) and each tool_use becomes a tool_call
// with its input JSON-stringified into "arguments". Otherwise the content
// passes straight through mapContent.
func handleAssistantMessage(blocks []AnthropicContentBlock) (ChatMessage, error) {
	var toolUses []AnthropicContentBlock
	var textBlocks []AnthropicContentBlock
	for _, b := range blocks {
		if b.Type == "tool_use" {
			toolUses = append(toolUses, b)
		} else {
			textBlocks = append(textBlocks, b)
		}
	}

	if len(toolUses) == 0 {
		content, err := mapContent(blocks)
		if err != nil {
			return ChatMessage{}, err
		}
		return ChatMessage{Role: "assistant", Content: content}, nil
	}

	var content json.RawMessage
	if len(textBlocks) > 0 {
		c, err := mapContent(textBlocks)
		if err != nil {
			return ChatMessage{}, err
		}
		content = c
	} else {
		content = json.RawMessage("null")
	}

	toolCalls := make([]ToolCall, 0, len(toolUses))
	for _, tu := range toolUses {
		args := tu.Input
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		toolCalls = append(toolCalls, ToolCall{
			ID:   tu.ID,
			Type: "function",
			Function: ToolCallFunc{
				Name:      tu.Name,
				Arguments: string(args),
			},
		})
	}

	return ChatMessage{Role: "assistant", Content: content, ToolCalls: toolCalls}, nil
}

// mapContent joins text/thinking blocks with a blank line into a bare
// string when there are no image blocks present, or otherwise builds an
// OpenAI-style content-parts array mixing text and data-URL image parts.
func mapContent(blocks []AnthropicContentBlock) (json.RawMessage, error) {
	hasImage := false
	for _, b := range blocks {
		if b.Type == "image" {
			hasImage = true
			break
		}
	}

	if !hasImage {
		var texts []string
		for _, b := range blocks {
			switch b.Type {
			case "text":
				texts = append(texts, b.Text)
			case "thinking":
				texts = append(texts, b.Thinking)
			}
		}
		return jsonString(joinParagraphs(texts)), nil
	}

	var parts []ContentPart
	for _, b := range blocks {
		switch b.Type {
		case "text":
			parts = append(parts, ContentPart{Type: "text", Text: b.Text})
		case "thinking":
			parts = append(parts, ContentPart{Type: "text", Text: b.Thinking})
		case "image":
			if b.Source == nil {
				continue
			}
			url := fmt.Sprintf("data:%s;base64,%s", b.Source.MediaType, b.Source.Data)
			parts = append(parts, ContentPart{Type: "image_url", ImageURL: &struct {
				URL string `json:"url"`
			}{URL: url}})
		}
	}
	return json.Marshal(parts)
}

func joinParagraphs(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n\n"
		}
		out += p
	}
	return out
}

func jsonString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// Package tokenestimator estimates token counts for chat payloads, either
// precisely via a BPE tokenizer or, when precision isn't worth the cost,
// via a cheap length-based heuristic — the same duality the original
// gateway's tokenizer module and its Anthropic count_tokens endpoint use.
package tokenestimator

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"github.com/copilot-gateway/copilot-api/internal/models"
)

// Message is the minimal chat-completions-shaped message the estimator
// needs: a role, a name (optional), string-or-array content, and any tool
// calls the assistant emitted.
type Message struct {
	Role      string          `json:"role"`
	Name      string          `json:"name,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	ToolCalls []ToolCall      `json:"tool_calls,omitempty"`
}

type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// perMessageConstants bundles the per-message token overheads tiktoken's
// chat-format accounting uses, which differ slightly between the legacy
// gpt-3.5-turbo/gpt-4 chat format and every model that came after it.
type perMessageConstants struct {
	funcInit        int
	funcEnd         int
	tokensPerMessage int
	tokensPerName   int
}

func constantsForModel(model string) perMessageConstants {
	if model == "gpt-3.5-turbo" || model == "gpt-4" {
		return perMessageConstants{funcInit: 10, funcEnd: 12, tokensPerMessage: 3, tokensPerName: 1}
	}
	return perMessageConstants{funcInit: 7, funcEnd: 12, tokensPerMessage: 3, tokensPerName: 1}
}

func encoderForModel(model string) tokenizer.Encoding {
	switch {
	case strings.Contains(model, "gpt-4o"), strings.Contains(model, "gpt-5"), strings.Contains(model, "o1"), strings.Contains(model, "o3"):
		return tokenizer.O200kBase
	case strings.Contains(model, "gpt-4"), strings.Contains(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	case strings.Contains(model, "text-davinci-edit"), strings.Contains(model, "code-davinci-edit"):
		return tokenizer.P50kEdit
	case strings.Contains(model, "davinci"), strings.Contains(model, "curie"):
		return tokenizer.P50kBase
	case strings.Contains(model, "ada"), strings.Contains(model, "babbage"):
		return tokenizer.R50kBase
	default:
		return tokenizer.O200kBase
	}
}

const imageTokenOverhead = 85

// EstimateChatTokens runs a precise BPE token count over a full chat
// payload, honoring the same per-message/per-name/per-tool-call overheads
// OpenAI's own cookbook accounting uses.
func EstimateChatTokens(model string, messages []Message) (int, error) {
	enc, err := tokenizer.Get(encoderForModel(model))
	if err != nil {
		return 0, err
	}
	c := constantsForModel(model)

	total := 0
	for _, m := range messages {
		total += c.tokensPerMessage
		if m.Name != "" {
			total += c.tokensPerName
			total += countTokens(enc, m.Name)
		}
		total += contentTokens(enc, m.Content)

		for _, tc := range m.ToolCalls {
			total += c.funcInit
			encoded, _ := json.Marshal(tc)
			total += countTokens(enc, string(encoded))
		}
		if len(m.ToolCalls) > 0 {
			total += c.funcEnd
		}
	}
	total += 3 // assistant priming tokens
	return total, nil
}

func countTokens(enc tokenizer.Codec, text string) int {
	if text == "" {
		return 0
	}
	ids, _, err := enc.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}

func contentTokens(enc tokenizer.Codec, raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var asString string
	if json.Unmarshal(raw, &asString) == nil {
		return countTokens(enc, asString)
	}

	var parts []struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		ImageURL *struct {
			URL string `json:"url"`
		} `json:"image_url"`
	}
	if json.Unmarshal(raw, &parts) != nil {
		return 0
	}
	total := 0
	for _, p := range parts {
		switch p.Type {
		case "text":
			total += countTokens(enc, p.Text)
		case "image_url":
			if p.ImageURL != nil {
				total += countTokens(enc, p.ImageURL.URL)
			}
			total += imageTokenOverhead
		}
	}
	return total
}

// EstimateHeuristic implements the cheap fallback the Anthropic
// count_tokens endpoint uses when an exact tokenizer pass isn't
// warranted: roughly one token per four JSON-encoded bytes, with a flat
// overhead for tool definitions and a small per-family multiplier to
// correct for that family's typical token density.
func EstimateHeuristic(model string, openAIPayloadJSON []byte, hasTools bool) int {
	lower := strings.ToLower(model)
	base := math.Ceil(float64(len(openAIPayloadJSON)) / 4.0)

	if hasTools {
		switch {
		case strings.HasPrefix(lower, "claude"):
			base += 346
		case strings.HasPrefix(lower, "grok"):
			base += 480
		}
	}

	switch {
	case strings.HasPrefix(lower, "claude"):
		base = math.Round(base * 1.15)
	case strings.HasPrefix(lower, "grok"):
		base = math.Round(base * 1.03)
	}

	return int(base)
}

// ResolvedModelForEstimate resolves a client-facing model alias to the
// backing model before choosing an encoder, so estimates reflect the
// tokenizer the backing model actually uses.
func ResolvedModelForEstimate(model string) string {
	return models.ResolveAlias(model)
}

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/copilot-gateway/copilot-api/internal/api/middleware"
	apperrors "github.com/copilot-gateway/copilot-api/internal/errors"
	"github.com/copilot-gateway/copilot-api/internal/hooks"
	"github.com/copilot-gateway/copilot-api/internal/models"
	"github.com/copilot-gateway/copilot-api/internal/streaming"
	"github.com/copilot-gateway/copilot-api/internal/tokenestimator"
	"github.com/copilot-gateway/copilot-api/internal/translator"
	"github.com/copilot-gateway/copilot-api/internal/upstream"
	"github.com/copilot-gateway/copilot-api/internal/util"
)

// Handlers implements the gateway's HTTP route surface.
type Handlers struct {
	deps Deps
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"active_connections": middleware.GetActiveConnections(),
	})
}

// ListModels proxies Copilot's model catalog unchanged.
func (h *Handlers) ListModels(c *gin.Context) {
	resp, err := h.deps.Upstream.CopilotRequest(c.Request.Context(), http.MethodGet, "/models", nil, false)
	if err != nil {
		writeErr(c, err)
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	c.Data(resp.StatusCode, "application/json", body)
}

// Usage surfaces the Copilot plan/quota snapshot for the authenticated
// account. This rides GitHub's own API with the user token, not the
// Copilot inference host.
func (h *Handlers) Usage(c *gin.Context) {
	token := h.deps.Cfg.GitHubToken()
	if token == "" {
		writeErr(c, apperrors.Unauthorized("no github token available; authenticate first", nil))
		return
	}
	usage, err := h.deps.AuthClient.GetCopilotUsage(c.Request.Context(), token)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

// ChatCompletions forwards an OpenAI-shaped chat completion request to
// Copilot (or a passthrough provider), streaming the response back when
// requested. Models served only by the Responses API are called through
// it and their replies are converted back to the chat-completions shape.
func (h *Handlers) ChatCompletions(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeErr(c, apperrors.BadRequest("failed to read request body", err))
		return
	}

	if err := h.gate(c, "ChatCompletions", body); err != nil {
		writeErr(c, err)
		return
	}

	model := gjson.GetBytes(body, "model").String()
	resolved := models.ResolveAlias(model)
	body, _ = setJSONField(body, "model", resolved)
	body = h.fillMaxTokens(c, resolved, body)

	vision := detectVision(body)
	stream := gjson.GetBytes(body, "stream").Bool()

	route := upstream.ResolveProvider(resolved, c.Query("provider"))
	if route.Model != resolved {
		resolved = route.Model
		body, _ = setJSONField(body, "model", resolved)
	}
	c.Set("provider", route.Provider)
	c.Set("model", resolved)

	resp, viaResponses, err := h.forwardChat(c, route, resolved, body, vision)
	if err != nil {
		writeErr(c, err)
		return
	}
	defer resp.Body.Close()

	if stream {
		if viaResponses && resp.StatusCode == http.StatusOK {
			h.streamChatFromResponses(c, resp, resolved)
		} else {
			h.relayStream(c, resp)
		}
		h.firePostToolUse("ChatCompletions", body, nil)
		return
	}
	out, _ := io.ReadAll(resp.Body)
	if viaResponses && resp.StatusCode == http.StatusOK {
		var responsesResp translator.ResponsesResponse
		if err := json.Unmarshal(out, &responsesResp); err != nil {
			writeErr(c, apperrors.Upstream("failed to parse copilot responses reply", err))
			return
		}
		c.JSON(http.StatusOK, translator.ResponsesToChatCompletion(resolved, responsesResp))
		h.firePostToolUse("ChatCompletions", body, out)
		return
	}
	c.Data(resp.StatusCode, "application/json", out)
	h.firePostToolUse("ChatCompletions", body, out)
}

// fillMaxTokens populates an absent "max_tokens" field from the cached
// model catalog's max_output_tokens limit, fetching the catalog once (best
// effort) if it hasn't been populated yet. A fetch failure or cache miss
// leaves the request untouched rather than blocking it.
func (h *Handlers) fillMaxTokens(c *gin.Context, resolvedModel string, body []byte) []byte {
	if gjson.GetBytes(body, "max_tokens").Exists() {
		return body
	}
	if !h.deps.Cfg.HasModelCatalog() {
		_ = h.deps.Upstream.FetchModelCatalog(c.Request.Context())
	}
	limit, ok := h.deps.Cfg.ModelMaxOutputTokens(resolvedModel)
	if !ok || limit <= 0 {
		return body
	}
	out, err := sjson.SetBytes(body, "max_tokens", limit)
	if err != nil {
		return body
	}
	return out
}

// forwardChat sends a chat-completions request to whichever upstream the
// route selects. The second return value reports whether the reply speaks
// the Responses API shape and must be translated back before it reaches
// the client.
func (h *Handlers) forwardChat(c *gin.Context, route upstream.ProviderRoute, resolvedModel string, body []byte, vision bool) (*http.Response, bool, error) {
	switch route.Provider {
	case "azure":
		url := upstream.AzureChatURL("")
		if url == "" {
			return nil, false, apperrors.InternalServerError("azure openai endpoint/deployment not configured", nil)
		}
		resp, err := h.deps.Upstream.PassthroughRequest(c.Request.Context(), http.MethodPost, url, body, upstream.AzureHeaders())
		return resp, false, err
	case "openai":
		url := upstream.OpenAICompatibleURL("")
		resp, err := h.deps.Upstream.PassthroughRequest(c.Request.Context(), http.MethodPost, url, body, upstream.OpenAIHeaders())
		return resp, false, err
	default:
		if models.RequiresResponsesAPI(resolvedModel) {
			resp, err := h.forwardAsResponses(c, resolvedModel, body, vision)
			return resp, true, err
		}
		resp, err := h.deps.Upstream.CopilotRequest(c.Request.Context(), http.MethodPost, "/chat/completions", body, vision)
		return resp, false, err
	}
}

func (h *Handlers) forwardAsResponses(c *gin.Context, model string, chatBody []byte, vision bool) (*http.Response, error) {
	var chat translator.ChatCompletionsPayload
	if err := json.Unmarshal(chatBody, &chat); err != nil {
		return nil, apperrors.BadRequest("invalid chat completions payload", err)
	}
	payload, err := translator.BuildResponsesPayload(model, chat)
	if err != nil {
		return nil, apperrors.BadRequest("failed to translate chat payload for responses api", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	encoded = util.NormalizeResponsesToolOrder(encoded)
	return h.deps.Upstream.CopilotRequest(c.Request.Context(), http.MethodPost, "/responses", encoded, vision)
}

// Responses forwards an OpenAI Responses API request to Copilot (or a
// passthrough provider based on model prefix/COPILOT_PROVIDER).
func (h *Handlers) Responses(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeErr(c, apperrors.BadRequest("failed to read request body", err))
		return
	}
	if err := h.gate(c, "Responses", body); err != nil {
		writeErr(c, err)
		return
	}

	model := gjson.GetBytes(body, "model").String()
	resolved := models.ResolveAlias(model)
	body, _ = setJSONField(body, "model", resolved)
	body = util.NormalizeResponsesToolOrder(body)
	vision := detectVision(body)
	stream := gjson.GetBytes(body, "stream").Bool()

	route := upstream.ResolveProvider(resolved, c.Query("provider"))
	if route.Model != resolved {
		resolved = route.Model
		body, _ = setJSONField(body, "model", resolved)
	}
	c.Set("provider", route.Provider)
	c.Set("model", resolved)
	var resp *http.Response
	switch route.Provider {
	case "azure":
		url := upstream.AzureChatURL("responses")
		if url == "" {
			writeErr(c, apperrors.InternalServerError("azure openai endpoint/deployment not configured", nil))
			return
		}
		resp, err = h.deps.Upstream.PassthroughRequest(c.Request.Context(), http.MethodPost, url, body, upstream.AzureHeaders())
	case "openai":
		url := upstream.OpenAICompatibleURL("/v1/responses")
		resp, err = h.deps.Upstream.PassthroughRequest(c.Request.Context(), http.MethodPost, url, body, upstream.OpenAIHeaders())
	default:
		resp, err = h.deps.Upstream.CopilotRequest(c.Request.Context(), http.MethodPost, "/responses", body, vision)
	}
	if err != nil {
		writeErr(c, err)
		return
	}
	defer resp.Body.Close()

	if stream {
		h.relayStream(c, resp)
		h.firePostToolUse("Responses", body, nil)
		return
	}
	out, _ := io.ReadAll(resp.Body)
	c.Data(resp.StatusCode, "application/json", out)
	h.firePostToolUse("Responses", body, out)
}

// Messages implements the Anthropic Messages API surface: translation
// to/from OpenAI chat-completions or Responses, with its own streaming
// re-framing when the upstream speaks a different event shape.
func (h *Handlers) Messages(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeErr(c, apperrors.BadRequest("failed to read request body", err))
		return
	}
	if err := h.gate(c, "Messages", body); err != nil {
		writeErr(c, err)
		return
	}

	body = util.NormalizeAnthropicToolResults(body)

	var in translator.AnthropicMessagesPayload
	if err := json.Unmarshal(body, &in); err != nil {
		writeErr(c, apperrors.BadRequest("invalid anthropic messages payload", err))
		return
	}

	if apiKey, ok := upstream.AnthropicPassthroughEligible(c.Query("provider"), in.Model); ok {
		h.passthroughAnthropic(c, apiKey, body, in.Stream)
		return
	}

	resolved := models.ResolveAlias(in.Model)
	c.Set("provider", "copilot")
	c.Set("model", resolved)
	chat, err := translator.ToOpenAIChat(resolved, in)
	if err != nil {
		writeErr(c, apperrors.BadRequest("failed to translate anthropic request", err))
		return
	}
	chatBody, err := json.Marshal(chat)
	if err != nil {
		writeErr(c, apperrors.InternalServerError("failed to encode translated request", err))
		return
	}
	vision := detectVision(chatBody)

	if models.RequiresResponsesAPI(resolved) {
		h.messagesViaResponses(c, resolved, chat, vision, in.Stream)
		return
	}
	h.messagesViaChat(c, resolved, chatBody, vision, in.Stream)
}

func (h *Handlers) messagesViaChat(c *gin.Context, model string, chatBody []byte, vision, stream bool) {
	resp, err := h.deps.Upstream.CopilotRequest(c.Request.Context(), http.MethodPost, "/chat/completions", chatBody, vision)
	if err != nil {
		writeErr(c, err)
		return
	}
	defer resp.Body.Close()

	if !stream {
		var chatResp translator.ChatCompletionResponse
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &chatResp); err != nil {
			writeErr(c, apperrors.Upstream("failed to parse copilot response", err))
			return
		}
		anth, err := translator.ToAnthropicResponse(model, chatResp)
		if err != nil {
			writeErr(c, apperrors.InternalServerError("failed to translate response", err))
			return
		}
		c.JSON(http.StatusOK, anth)
		h.firePostToolUse("Messages", chatBody, raw)
		return
	}

	h.streamAnthropicFromChat(c, resp, model)
	h.firePostToolUse("Messages", chatBody, nil)
}

func (h *Handlers) messagesViaResponses(c *gin.Context, model string, chat translator.ChatCompletionsPayload, vision, stream bool) {
	payload, err := translator.BuildResponsesPayload(model, chat)
	if err != nil {
		writeErr(c, apperrors.BadRequest("failed to translate messages for responses api", err))
		return
	}
	payload.Stream = stream
	encoded, err := json.Marshal(payload)
	if err != nil {
		writeErr(c, apperrors.InternalServerError("failed to encode responses payload", err))
		return
	}
	encoded = util.NormalizeResponsesToolOrder(encoded)

	resp, err := h.deps.Upstream.CopilotRequest(c.Request.Context(), http.MethodPost, "/responses", encoded, vision)
	if err != nil {
		writeErr(c, err)
		return
	}
	defer resp.Body.Close()

	if !stream {
		var responsesResp translator.ResponsesResponse
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &responsesResp); err != nil {
			writeErr(c, apperrors.Upstream("failed to parse copilot responses reply", err))
			return
		}
		c.JSON(http.StatusOK, translator.ResponsesToAnthropic(model, responsesResp))
		h.firePostToolUse("Messages", encoded, raw)
		return
	}

	h.streamAnthropicFromResponses(c, resp, model)
	h.firePostToolUse("Messages", encoded, nil)
}

func (h *Handlers) passthroughAnthropic(c *gin.Context, apiKey string, body []byte, stream bool) {
	resp, err := h.deps.Upstream.PassthroughRequest(c.Request.Context(), http.MethodPost, upstream.AnthropicMessagesURL(), body, upstream.AnthropicHeaders(apiKey))
	if err != nil {
		writeErr(c, err)
		return
	}
	defer resp.Body.Close()
	if stream {
		h.relayStream(c, resp)
		return
	}
	out, _ := io.ReadAll(resp.Body)
	c.Data(resp.StatusCode, "application/json", out)
}

func (h *Handlers) streamAnthropicFromChat(c *gin.Context, resp *http.Response, model string) {
	streaming.WriteSSEHeaders(c.Writer)
	c.Status(http.StatusOK)
	flusher, _ := c.Writer.(http.Flusher)

	w := bufio.NewWriter(c.Writer)
	reader := streaming.NewReader(bufio.NewReader(resp.Body))
	state := streaming.NewAnthropicState(model)

	for {
		data, err := reader.NextBlock()
		if err != nil {
			break
		}
		if streaming.IsTerminal(data) {
			continue
		}
		var chunk streaming.ChatCompletionChunk
		if json.Unmarshal([]byte(data), &chunk) != nil {
			writeEvent(w, streaming.ErrorEvent())
			if flusher != nil {
				flusher.Flush()
			}
			continue
		}
		for _, ev := range state.TranslateChunk(chunk) {
			writeEvent(w, ev)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (h *Handlers) streamAnthropicFromResponses(c *gin.Context, resp *http.Response, model string) {
	streaming.WriteSSEHeaders(c.Writer)
	c.Status(http.StatusOK)
	flusher, _ := c.Writer.(http.Flusher)

	w := bufio.NewWriter(c.Writer)
	reader := streaming.NewReader(bufio.NewReader(resp.Body))
	state := streaming.NewResponsesStreamState(model)

	for _, ev := range state.Start() {
		writeEvent(w, ev)
	}
	if flusher != nil {
		flusher.Flush()
	}

	for {
		data, err := reader.NextBlock()
		if err != nil {
			break
		}
		if streaming.IsTerminal(data) {
			continue
		}
		var ev streaming.ResponsesEvent
		if json.Unmarshal([]byte(data), &ev) != nil {
			continue
		}
		for _, out := range state.HandleEvent(ev) {
			writeEvent(w, out)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	for _, ev := range state.Finish() {
		writeEvent(w, ev)
	}
	if flusher != nil {
		flusher.Flush()
	}
}

func (h *Handlers) streamChatFromResponses(c *gin.Context, resp *http.Response, model string) {
	streaming.WriteSSEHeaders(c.Writer)
	c.Status(http.StatusOK)
	flusher, _ := c.Writer.(http.Flusher)

	w := bufio.NewWriter(c.Writer)
	reader := streaming.NewReader(bufio.NewReader(resp.Body))
	state := streaming.NewResponsesToChatState(model)

	for {
		data, err := reader.NextBlock()
		if err != nil {
			break
		}
		if streaming.IsTerminal(data) {
			continue
		}
		var ev streaming.ResponsesEvent
		if json.Unmarshal([]byte(data), &ev) != nil {
			continue
		}
		for _, chunk := range state.HandleEvent(ev) {
			_ = streaming.WriteEvent(w, "", chunk)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	for _, chunk := range state.Finish() {
		_ = streaming.WriteEvent(w, "", chunk)
	}
	_ = streaming.WriteDone(w)
	if flusher != nil {
		flusher.Flush()
	}
}

func writeEvent(w *bufio.Writer, ev streaming.Event) {
	data, err := streaming.MarshalEvent(ev)
	if err != nil {
		return
	}
	_ = streaming.WriteEvent(w, ev.Type, data)
}

// Embeddings forwards an OpenAI-shaped embeddings request to Copilot (or a
// passthrough provider), matching the same provider-selection precedence
// chat-completions uses.
func (h *Handlers) Embeddings(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeErr(c, apperrors.BadRequest("failed to read request body", err))
		return
	}
	if err := h.gate(c, "Embeddings", body); err != nil {
		writeErr(c, err)
		return
	}

	model := gjson.GetBytes(body, "model").String()
	resolved := models.ResolveAlias(model)
	body, _ = setJSONField(body, "model", resolved)

	route := upstream.ResolveProvider(resolved, c.Query("provider"))
	if route.Model != resolved {
		resolved = route.Model
		body, _ = setJSONField(body, "model", resolved)
	}
	c.Set("provider", route.Provider)
	c.Set("model", resolved)
	var resp *http.Response
	switch route.Provider {
	case "azure":
		url := upstream.AzureChatURL("embeddings")
		if url == "" {
			writeErr(c, apperrors.InternalServerError("azure openai endpoint/deployment not configured", nil))
			return
		}
		resp, err = h.deps.Upstream.PassthroughRequest(c.Request.Context(), http.MethodPost, url, body, upstream.AzureHeaders())
	case "openai":
		url := upstream.OpenAICompatibleURL("/v1/embeddings")
		resp, err = h.deps.Upstream.PassthroughRequest(c.Request.Context(), http.MethodPost, url, body, upstream.OpenAIHeaders())
	default:
		resp, err = h.deps.Upstream.CopilotRequest(c.Request.Context(), http.MethodPost, "/embeddings", body, false)
	}
	if err != nil {
		writeErr(c, err)
		return
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	c.Data(resp.StatusCode, "application/json", out)
	h.firePostToolUse("Embeddings", body, out)
}

// CountTokens estimates token usage for an Anthropic-shaped payload
// without sending it upstream: a precise BPE pass when enabled, otherwise
// the JSON-length heuristic.
func (h *Handlers) CountTokens(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeErr(c, apperrors.BadRequest("failed to read request body", err))
		return
	}

	var in translator.AnthropicMessagesPayload
	if err := json.Unmarshal(body, &in); err != nil {
		writeErr(c, apperrors.BadRequest("invalid anthropic messages payload", err))
		return
	}
	resolved := models.ResolveAlias(in.Model)
	chat, err := translator.ToOpenAIChat(resolved, in)
	if err != nil {
		writeErr(c, apperrors.BadRequest("failed to translate anthropic request", err))
		return
	}

	if h.deps.Cfg.UseTiktoken() {
		msgs := make([]tokenestimator.Message, 0, len(chat.Messages))
		for _, m := range chat.Messages {
			msgs = append(msgs, tokenestimator.Message{Role: m.Role, Name: m.Name, Content: m.Content, ToolCalls: toEstimatorToolCalls(m.ToolCalls)})
		}
		count, err := tokenestimator.EstimateChatTokens(resolved, msgs)
		if err != nil {
			writeErr(c, apperrors.InternalServerError("failed to estimate tokens", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"input_tokens": count})
		return
	}

	encoded, _ := json.Marshal(chat)
	count := tokenestimator.EstimateHeuristic(in.Model, encoded, len(in.Tools) > 0)
	c.JSON(http.StatusOK, gin.H{"input_tokens": count})
}

func toEstimatorToolCalls(in []translator.ToolCall) []tokenestimator.ToolCall {
	out := make([]tokenestimator.ToolCall, 0, len(in))
	for _, tc := range in {
		var e tokenestimator.ToolCall
		e.ID = tc.ID
		e.Type = tc.Type
		e.Function.Name = tc.Function.Name
		e.Function.Arguments = tc.Function.Arguments
		out = append(out, e)
	}
	return out
}

// firePostToolUse runs PostToolUse hooks in the background once a
// response has been sent; post-hook failure never affects the response
// that already left.
func (h *Handlers) firePostToolUse(toolName string, input, output []byte) {
	if h.deps.Hooks == nil {
		return
	}
	go func() {
		in := hooks.Input{Cwd: ".", ToolName: toolName, ToolInput: input, ToolOutput: output}
		h.deps.Hooks.Run(context.Background(), hooks.EventPostToolUse, in)
	}()
}

// gate runs the shared pre-request checks in pipeline order: manual
// approval, rate limiting, then PreToolUse hooks, any of which can stop
// the request before an upstream call is made.
func (h *Handlers) gate(c *gin.Context, toolName string, body []byte) error {
	if h.deps.Approval != nil {
		if err := h.deps.Approval.Check(); err != nil {
			return err
		}
	}
	if h.deps.RateLimit != nil {
		if err := h.deps.RateLimit.Admit(c.Request.Context()); err != nil {
			return err
		}
	}
	if h.deps.Hooks != nil {
		in := hooks.Input{Cwd: ".", ToolName: toolName, ToolInput: body}
		results := h.deps.Hooks.Run(c.Request.Context(), hooks.EventPreToolUse, in)
		if hooks.AnyVetoed(results) {
			return apperrors.BadRequest("Hook blocked request", nil)
		}
	}
	return nil
}

func (h *Handlers) relayStream(c *gin.Context, resp *http.Response) {
	streaming.WriteSSEHeaders(c.Writer)
	c.Status(resp.StatusCode)
	flusher, _ := c.Writer.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			c.Writer.Write(buf[:n])
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

func detectVision(chatBody []byte) bool {
	return strings.Contains(gjson.GetBytes(chatBody, "messages.#.content").Raw, "image_url")
}

func setJSONField(body []byte, field, value string) ([]byte, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return body, err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return body, err
	}
	m[field] = encoded
	return json.Marshal(m)
}

func writeErr(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		middleware.RecordAPIError(appErr.Code, "copilot")
		c.Data(appErr.HTTPStatusCode, "application/json", appErr.ToJSON())
		return
	}
	wrapped := apperrors.InternalServerError(err.Error(), err)
	c.Data(wrapped.HTTPStatusCode, "application/json", wrapped.ToJSON())
}

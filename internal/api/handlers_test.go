package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/copilot-gateway/copilot-api/internal/config"
	"github.com/copilot-gateway/copilot-api/internal/hooks"
	"github.com/copilot-gateway/copilot-api/internal/models"
	"github.com/copilot-gateway/copilot-api/internal/tokenestimator"
	"github.com/copilot-gateway/copilot-api/internal/translator"
)

func testRouterWithManifest(t *testing.T, manifest string) http.Handler {
	t.Helper()
	hookExec := hooks.NewExecutor()
	if manifest != "" {
		path := filepath.Join(t.TempDir(), "hooks.json")
		require.NoError(t, os.WriteFile(path, []byte(manifest), 0o600))
		hookExec.ExplicitManifestPath = path
	} else {
		hookExec.ExplicitManifestPath = filepath.Join(t.TempDir(), "absent.json")
	}
	return NewRouter(Deps{
		Cfg:   config.New(nil),
		Hooks: hookExec,
	})
}

func TestChatCompletionsHookVetoReturns400(t *testing.T) {
	router := testRouterWithManifest(t, `{
	  "PreToolUse": [
	    {"matcher": "tool == \"ChatCompletions\"", "hooks": [{"type": "command", "command": "exit 1"}]}
	  ]
	}`)

	body := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":{"message":"Hook blocked request"}}`, w.Body.String())
}

func TestCountTokensHeuristic(t *testing.T) {
	router := testRouterWithManifest(t, "")

	payload := `{
	  "model":"claude-3.5-sonnet",
	  "max_tokens":16,
	  "messages":[{"role":"user","content":"hi"}],
	  "tools":[{"name":"search","description":"find things","input_schema":{"type":"object"}}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/count_tokens", bytes.NewReader([]byte(payload)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		InputTokens int `json:"input_tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))

	var in translator.AnthropicMessagesPayload
	require.NoError(t, json.Unmarshal([]byte(payload), &in))
	chat, err := translator.ToOpenAIChat(models.ResolveAlias(in.Model), in)
	require.NoError(t, err)
	encoded, err := json.Marshal(chat)
	require.NoError(t, err)
	want := tokenestimator.EstimateHeuristic(in.Model, encoded, true)

	require.Equal(t, want, out.InputTokens)
	require.Greater(t, out.InputTokens, 0)
}

func TestLivenessEndpoint(t *testing.T) {
	router := testRouterWithManifest(t, "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ok")
}

func TestCORSPreflight(t *testing.T) {
	router := testRouterWithManifest(t, "")
	req := httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// Package api wires the gateway's gin router: middleware chain, route
// surface, and the handlers backing each endpoint.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/copilot-gateway/copilot-api/internal/api/middleware"
	"github.com/copilot-gateway/copilot-api/internal/approval"
	"github.com/copilot-gateway/copilot-api/internal/auth"
	"github.com/copilot-gateway/copilot-api/internal/config"
	"github.com/copilot-gateway/copilot-api/internal/hooks"
	"github.com/copilot-gateway/copilot-api/internal/logging"
	"github.com/copilot-gateway/copilot-api/internal/ratelimit"
	"github.com/copilot-gateway/copilot-api/internal/upstream"
)

// Deps bundles every shared dependency the route handlers need.
type Deps struct {
	Cfg        *config.Config
	Upstream   *upstream.Client
	Hooks      *hooks.Executor
	RateLimit  *ratelimit.Limiter
	Approval   *approval.Gate
	AuthClient *auth.Client
	AuthPaths  *auth.Paths
}

// NewRouter builds the gin engine with the full middleware chain and
// route surface installed. Every API endpoint is registered both bare and
// under "/v1/"; the auth and operational endpoints exist bare only.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(logging.GinLogrusRecovery())
	r.Use(logging.GinLogrusLogger())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.ConnectionTrackerMiddleware())
	r.Use(middleware.RequestDecompressionMiddleware())
	r.Use(middleware.PrometheusMiddleware())

	h := &Handlers{deps: deps}

	r.GET("/", h.Liveness)
	r.GET("/healthz", h.Health)
	r.GET("/metrics", middleware.MetricsHandler())

	r.GET("/token", h.ShowToken)
	r.GET("/auth/device-code", h.AuthDeviceCode)
	r.POST("/auth/poll", h.AuthPoll)
	r.GET("/auth/token", h.AuthToken)

	for _, prefix := range []string{"", "/v1"} {
		r.GET(prefix+"/models", h.ListModels)
		r.POST(prefix+"/chat/completions", h.ChatCompletions)
		r.POST(prefix+"/embeddings", h.Embeddings)
		r.GET(prefix+"/usage", h.Usage)
		r.POST(prefix+"/responses", h.Responses)
		r.POST(prefix+"/messages", h.Messages)
		r.POST(prefix+"/messages/count_tokens", h.CountTokens)
	}

	return r
}

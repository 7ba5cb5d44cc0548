package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/copilot-gateway/copilot-api/internal/auth"
	apperrors "github.com/copilot-gateway/copilot-api/internal/errors"
)

// Liveness answers the bare "/" health probe external tooling (the
// desktop front-end, smoke tests) polls before trusting the gateway is up.
func (h *Handlers) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "copilot-api is running"})
}

// ShowToken reports the current token state, masked unless the process
// was started with --show-token / COPILOT_SHOW_TOKEN.
func (h *Handlers) ShowToken(c *gin.Context) {
	snap := h.deps.Cfg.Describe()
	c.JSON(http.StatusOK, gin.H{
		"github_token":  snap.GitHubToken,
		"copilot_token": snap.CopilotToken,
	})
}

// AuthDeviceCode starts the device-code OAuth flow on behalf of a caller
// that can't run the `auth` CLI subcommand directly (the desktop
// front-end's own login button). It returns the code the caller must
// display and the device_code it will hand back to AuthPoll.
func (h *Handlers) AuthDeviceCode(c *gin.Context) {
	if h.deps.AuthClient == nil {
		writeErr(c, apperrors.InternalServerError("auth client not configured", nil))
		return
	}
	device, err := h.deps.AuthClient.GetDeviceCode(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

// authPollRequest is the device_code AuthDeviceCode returned, echoed back
// so AuthPoll knows which device flow to resume.
type authPollRequest struct {
	DeviceCode string `json:"device_code"`
	Interval   int    `json:"interval"`
}

// AuthPoll blocks until the user has authorized the device code (or the
// client disconnects), then persists the resulting GitHub access token and
// installs it into the live config, exactly like the `auth` CLI
// subcommand does.
func (h *Handlers) AuthPoll(c *gin.Context) {
	if h.deps.AuthClient == nil {
		writeErr(c, apperrors.InternalServerError("auth client not configured", nil))
		return
	}
	var req authPollRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DeviceCode == "" {
		writeErr(c, apperrors.BadRequest("device_code is required", err))
		return
	}

	accessToken, err := h.deps.AuthClient.PollAccessToken(c.Request.Context(), &auth.DeviceCodeResponse{
		DeviceCode: req.DeviceCode,
		Interval:   req.Interval,
	})
	if err != nil {
		writeErr(c, apperrors.Unauthorized("device authorization failed", err))
		return
	}

	if h.deps.AuthPaths != nil {
		_ = auth.WriteToken(h.deps.AuthPaths.GitHubTokenPath, accessToken)
	}
	h.deps.Cfg.SetGitHubToken(accessToken)

	user, err := h.deps.AuthClient.GetUser(c.Request.Context(), accessToken)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// AuthToken reports whether a GitHub access token is currently installed,
// without ever returning its value unmasked.
func (h *Handlers) AuthToken(c *gin.Context) {
	tok := h.deps.Cfg.GitHubToken()
	c.JSON(http.StatusOK, gin.H{"authenticated": tok != ""})
}

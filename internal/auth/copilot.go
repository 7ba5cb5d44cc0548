package auth

import (
	"fmt"

	"github.com/google/uuid"
)

// CopilotBaseURL resolves the host Copilot chat requests are sent to. The
// individual plan is served off the bare domain; every other account type
// is served off an account-type-scoped subdomain.
func CopilotBaseURL(accountType string) string {
	if accountType == "" || accountType == "individual" {
		return "https://api.githubcopilot.com"
	}
	return fmt.Sprintf("https://api.%s.githubcopilot.com", accountType)
}

// CopilotHeaders assembles the header set GitHub Copilot Chat's own
// backend expects, mirroring editor-origin metadata byte for byte so
// requests aren't rejected as coming from an unrecognized client.
func CopilotHeaders(token, vscodeVersion string, vision bool) map[string]string {
	h := map[string]string{
		"Authorization":               "Bearer " + token,
		"Copilot-Integration-Id":      "vscode-chat",
		"Editor-Version":              "vscode/" + vscodeVersion,
		"Editor-Plugin-Version":       "copilot-chat/" + CopilotVersion,
		"User-Agent":                  "GitHubCopilotChat/" + CopilotVersion,
		"Openai-Intent":               "conversation-panel",
		"X-Github-Api-Version":        APIVersion,
		"X-Request-Id":                uuid.NewString(),
		"X-Vscode-User-Agent-Library-Version": "electron-fetch",
		"Content-Type":                "application/json",
	}
	if vision {
		h["Copilot-Vision-Request"] = "true"
	}
	return h
}

// Initiator returns the X-Initiator header value Copilot uses to tell
// user-originated turns from agent-continued ones: "agent" if any prior
// message in the conversation came from the assistant or a tool, else
// "user".
func Initiator(roles []string) string {
	for _, r := range roles {
		if r == "assistant" || r == "tool" {
			return "agent"
		}
	}
	return "user"
}

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/steadylabs/briefbot/internal/v0"
)

// UIBuildTool lets the model hand a UI-generation prompt to the v0 builder:
// submit, poll until terminal, then publish a deployment. A chat_id from an
// earlier build continues that build instead of starting a new one.
type UIBuildTool struct {
	Builder *v0.Client
}

func NewUIBuildTool(builder *v0.Client) *UIBuildTool {
	return &UIBuildTool{Builder: builder}
}

func (t *UIBuildTool) Name() string { return "ui_build" }
func (t *UIBuildTool) Description() string {
	return "Generate a working web UI from a natural-language prompt using the v0 builder. Returns chat_id, version_id, demo_url and web_url. Pass the chat_id of a previous build to iterate on it. Builds take up to 90 seconds."
}

func (t *UIBuildTool) ParameterSchema() string {
	return `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "prompt": { "type": "string", "description": "What to build, in plain language. Include layout, content and styling requirements." },
    "chat_id": { "type": "string", "description": "Optional chat_id of a previous build to continue iterating on." }
  },
  "required": ["prompt"]
}`
}

func (t *UIBuildTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	if t.Builder == nil {
		return "", fmt.Errorf("builder client is not configured")
	}
	prompt := strings.TrimSpace(getString(params, "prompt"))
	if prompt == "" {
		return "", fmt.Errorf("missing prompt")
	}
	continuation := strings.TrimSpace(getString(params, "chat_id"))

	job, err := t.Builder.Submit(ctx, prompt, continuation)
	if err != nil {
		return "", fmt.Errorf("submit build: %w", err)
	}
	job, err = t.Builder.PollUntilTerminal(ctx, job)
	if err != nil {
		return "", err
	}
	job, err = t.Builder.Deploy(ctx, job)
	if err != nil {
		return "", fmt.Errorf("deploy build: %w", err)
	}

	raw, err := json.Marshal(map[string]any{
		"chat_id":    job.ChatID,
		"version_id": job.VersionID,
		"demo_url":   job.DemoURL,
		"web_url":    job.WebURL,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

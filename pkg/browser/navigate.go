package browser

import (
	"context"
	"fmt"

	"github.com/altamira-dev/webpilot/pkg/agent/tools"
)

// NavigateTool loads a URL in the session's browser context.
type NavigateTool struct {
	sessionTool
}

// Name returns the tool name.
func (t *NavigateTool) Name() string {
	return "navigate"
}

// Description returns the tool description.
func (t *NavigateTool) Description() string {
	return "Navigate the browser to a URL and wait for the page to finish loading. Use this to open websites before interacting with them."
}

// Schema returns the tool's JSON schema.
func (t *NavigateTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to navigate to, including the protocol (e.g., https://example.com)",
			},
		},
		[]string{"url"},
	)
}

// Execute navigates to the requested URL.
func (t *NavigateTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	url := tools.StringArg(args, "url")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	browserCtx, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}

	info, err := browserCtx.Navigate(url)
	if err != nil {
		return nil, err
	}

	return tools.TextResult(fmt.Sprintf(
		"Navigated to %s\nTitle: %s\nStatus: %d\nThe page has loaded and is ready for interaction.",
		info.URL, info.Title, info.Status)), nil
}

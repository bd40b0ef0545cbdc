package browser

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/altamira-dev/webpilot/pkg/agent/tools"
	"github.com/altamira-dev/webpilot/pkg/artifacts"
)

// ScreenshotTool captures the current page. The image goes back to the
// model as a multimodal part and is also saved to the session's artifact
// store so clients can fetch it.
type ScreenshotTool struct {
	sessionTool
	store *artifacts.Scope
}

// Name returns the tool name.
func (t *ScreenshotTool) Name() string {
	return "screenshot"
}

// Description returns the tool description.
func (t *ScreenshotTool) Description() string {
	return "Take a screenshot of the current page. Use this to see what the page looks like before deciding where to click or type."
}

// Schema returns the tool's JSON schema.
func (t *ScreenshotTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"full_page": map[string]interface{}{
				"type":        "boolean",
				"description": "Capture the full scrollable page instead of just the viewport (default false)",
			},
		},
		nil,
	)
}

// Execute captures and stores the screenshot.
func (t *ScreenshotTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	fullPage := tools.BoolArg(args, "full_page")

	browserCtx, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}

	image, err := browserCtx.Screenshot(fullPage)
	if err != nil {
		return nil, err
	}

	text := "Screenshot captured."
	if t.store != nil {
		filename := fmt.Sprintf("screenshot_%s.jpeg", uuid.New().String())
		if saved, saveErr := t.store.Write(filename, image); saveErr == nil {
			text = fmt.Sprintf("Screenshot captured and saved as %s.", saved)
		}
	}

	return tools.ImageResult(text, "image/jpeg", image), nil
}

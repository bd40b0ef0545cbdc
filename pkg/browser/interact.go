package browser

import (
	"context"
	"fmt"

	"github.com/altamira-dev/webpilot/pkg/agent/tools"
)

// ClickTool clicks at viewport coordinates.
type ClickTool struct {
	sessionTool
}

// Name returns the tool name.
func (t *ClickTool) Name() string {
	return "click"
}

// Description returns the tool description.
func (t *ClickTool) Description() string {
	return "Click at specific x,y coordinates on the page. Take a screenshot first to find the right coordinates."
}

// Schema returns the tool's JSON schema.
func (t *ClickTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"x": map[string]interface{}{
				"type":        "number",
				"description": "X coordinate of the click, in viewport pixels",
			},
			"y": map[string]interface{}{
				"type":        "number",
				"description": "Y coordinate of the click, in viewport pixels",
			},
		},
		[]string{"x", "y"},
	)
}

// Execute performs the click.
func (t *ClickTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	x, okX := tools.NumberArg(args, "x")
	y, okY := tools.NumberArg(args, "y")
	if !okX || !okY {
		return nil, fmt.Errorf("x and y coordinates are required")
	}

	browserCtx, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}

	if err := browserCtx.Click(x, y); err != nil {
		return nil, err
	}
	return tools.TextResult(fmt.Sprintf("Clicked at (%.0f, %.0f).", x, y)), nil
}

// ScrollTool scrolls the page vertically.
type ScrollTool struct {
	sessionTool
}

// Name returns the tool name.
func (t *ScrollTool) Name() string {
	return "scroll"
}

// Description returns the tool description.
func (t *ScrollTool) Description() string {
	return "Scroll the page up or down by a number of pixels."
}

// Schema returns the tool's JSON schema.
func (t *ScrollTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"direction": map[string]interface{}{
				"type":        "string",
				"description": "Direction to scroll: 'up' or 'down'",
			},
			"amount": map[string]interface{}{
				"type":        "number",
				"description": "Distance to scroll in pixels (e.g., 500)",
			},
		},
		[]string{"direction", "amount"},
	)
}

// Execute performs the scroll.
func (t *ScrollTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	direction := tools.StringArg(args, "direction")
	amount, ok := tools.NumberArg(args, "amount")
	if direction == "" || !ok {
		return nil, fmt.Errorf("direction and amount are required")
	}

	browserCtx, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}

	if err := browserCtx.Scroll(direction, amount); err != nil {
		return nil, err
	}
	return tools.TextResult(fmt.Sprintf("Scrolled %s by %.0f pixels.", direction, amount)), nil
}

// TypeTool sends keystrokes to the focused element.
type TypeTool struct {
	sessionTool
}

// Name returns the tool name.
func (t *TypeTool) Name() string {
	return "type"
}

// Description returns the tool description.
func (t *TypeTool) Description() string {
	return "Type text into the currently focused element, such as an input field you just clicked. Set submit to true to press Enter afterwards."
}

// Schema returns the tool's JSON schema.
func (t *TypeTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Text to type",
			},
			"submit": map[string]interface{}{
				"type":        "boolean",
				"description": "Press Enter after typing to submit the form (default false)",
			},
		},
		[]string{"text"},
	)
}

// Execute types the text.
func (t *TypeTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	text := tools.StringArg(args, "text")
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	submit := tools.BoolArg(args, "submit")

	browserCtx, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}

	if err := browserCtx.Type(text, submit); err != nil {
		return nil, err
	}

	if submit {
		return tools.TextResult(fmt.Sprintf("Typed %q and pressed Enter.", text)), nil
	}
	return tools.TextResult(fmt.Sprintf("Typed %q.", text)), nil
}

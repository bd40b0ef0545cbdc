package browser

import (
	"context"
	"fmt"

	"github.com/altamira-dev/webpilot/pkg/agent/tools"
)

// ExtractTextTool returns the page reduced to readable text.
type ExtractTextTool struct {
	sessionTool
}

// Name returns the tool name.
func (t *ExtractTextTool) Name() string {
	return "extract_text"
}

// Description returns the tool description.
func (t *ExtractTextTool) Description() string {
	return "Extract the readable text content of the current page, with links shown inline. Cheaper than a screenshot when you only need to read."
}

// Schema returns the tool's JSON schema.
func (t *ExtractTextTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"max_length": map[string]interface{}{
				"type":        "number",
				"description": "Maximum number of characters to return (default 20000)",
			},
		},
		nil,
	)
}

// Execute extracts the page text.
func (t *ExtractTextTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	maxLength := 0
	if v, ok := tools.NumberArg(args, "max_length"); ok {
		maxLength = int(v)
	}

	browserCtx, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}

	text, err := browserCtx.ExtractText(maxLength)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return tools.TextResult("The page has no readable text content."), nil
	}
	return tools.TextResult(text), nil
}

// PageInfoTool reports the current URL and title.
type PageInfoTool struct {
	sessionTool
}

// Name returns the tool name.
func (t *PageInfoTool) Name() string {
	return "get_page_info"
}

// Description returns the tool description.
func (t *PageInfoTool) Description() string {
	return "Get the current page's title and URL."
}

// Schema returns the tool's JSON schema.
func (t *PageInfoTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(map[string]interface{}{}, nil)
}

// Execute reads the page info.
func (t *PageInfoTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	browserCtx, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}

	info, err := browserCtx.PageInfo()
	if err != nil {
		return nil, err
	}
	return tools.TextResult(fmt.Sprintf("Current page: Title=%q, URL=%q", info.Title, info.URL)), nil
}

// EvaluateTool runs JavaScript in the page.
type EvaluateTool struct {
	sessionTool
}

// Name returns the tool name.
func (t *EvaluateTool) Name() string {
	return "evaluate_javascript"
}

// Description returns the tool description.
func (t *EvaluateTool) Description() string {
	return "Evaluate a JavaScript expression in the page and return its result. Useful for reading values the other tools cannot reach."
}

// Schema returns the tool's JSON schema.
func (t *EvaluateTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"script": map[string]interface{}{
				"type":        "string",
				"description": "JavaScript expression to evaluate",
			},
		},
		[]string{"script"},
	)
}

// Execute evaluates the script.
func (t *EvaluateTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	script := tools.StringArg(args, "script")
	if script == "" {
		return nil, fmt.Errorf("script is required")
	}

	browserCtx, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}

	result, err := browserCtx.Evaluate(ctx, script)
	if err != nil {
		return nil, err
	}
	if result == "" {
		return tools.TextResult("Script executed; no value returned."), nil
	}
	return tools.TextResult(fmt.Sprintf("Script result: %s", result)), nil
}

// Package tools defines the tool abstraction the agent loop executes and
// the static catalog rendered into the model's instructions.
package tools

import "context"

// Tool represents a capability the agent can use during task execution.
// Tools are invoked by the LLM through fenced json tool calls.
//
// Example tool call format from LLM:
//
//	```json
//	{"tool": "navigate", "arguments": {"url": "https://example.com"}}
//	```
type Tool interface {
	// Name returns the unique identifier for this tool (e.g., "navigate")
	Name() string

	// Description returns a human-readable description of what this tool does
	Description() string

	// Schema returns the JSON schema for this tool's input parameters.
	// The schema should be a valid JSON Schema object defining the structure
	// of the arguments that this tool accepts
	Schema() map[string]interface{}

	// Execute runs the tool with the given arguments. Expected failures
	// (bad arguments, engine errors, timeouts) are returned as errors and
	// surfaced to the model as tool errors; they never abort the task.
	Execute(ctx context.Context, args map[string]interface{}) (*Result, error)
}

// Result is a successful tool outcome. Image is set for screenshot-style
// tools and is surfaced to the client as a distinct event.
type Result struct {
	// Text is the compact textual result fed back to the model.
	Text string

	// Image holds raw image bytes when the tool produced one.
	Image []byte

	// ImageMIME is the media type of Image.
	ImageMIME string
}

// TextResult creates a plain text result.
func TextResult(text string) *Result {
	return &Result{Text: text}
}

// ImageResult creates an image-bearing result.
func ImageResult(text, mime string, image []byte) *Result {
	return &Result{Text: text, Image: image, ImageMIME: mime}
}

// HasImage returns true if the result carries image bytes.
func (r *Result) HasImage() bool {
	return len(r.Image) > 0
}

// BaseToolSchema creates a common JSON schema structure for a tool
// with the given properties and required fields
func BaseToolSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringArg extracts a string argument, tolerating absence.
func StringArg(args map[string]interface{}, key string) string {
	value, _ := args[key].(string)
	return value
}

// NumberArg extracts a numeric argument. JSON numbers decode as float64;
// integers passed by stricter clients are accepted too.
func NumberArg(args map[string]interface{}, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// BoolArg extracts a boolean argument, tolerating absence.
func BoolArg(args map[string]interface{}, key string) bool {
	value, _ := args[key].(bool)
	return value
}

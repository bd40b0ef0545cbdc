// Package parser extracts structured tool invocations from free-form model
// replies. The model is instructed to emit exactly one fenced json block
// when invoking a tool and prose otherwise; the parser tolerates prose
// around the block but is strict about what qualifies as an invocation, so
// conversational JSON-like text is never treated as a command.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// maxResponseSize bounds how much reply text is scanned for a tool call.
	maxResponseSize = 10 * 1024 * 1024

	toolField      = "tool"
	argumentsField = "arguments"
)

// Compile regex once at package level for efficiency.
// Matches a fenced block tagged json and captures the first object inside it.
var fencedJSONRegex = regexp.MustCompile("(?is)```json\\s*(\\{.*?\\})\\s*```")

// Invocation is a parsed tool request from a model reply.
type Invocation struct {
	// ID uniquely identifies this invocation for event correlation.
	ID string

	// Tool is the requested tool name. Whether it names a registered tool
	// is for the catalog to decide.
	Tool string

	// Arguments is the string-keyed argument map. Schema validation beyond
	// presence is left to the tool itself.
	Arguments map[string]interface{}
}

// Extract returns the tool invocation embedded in the reply, or (nil, false)
// when the reply is prose.
//
// Two-stage search: first a fenced json block anywhere in the text, then —
// if none is present — the whole trimmed text when it looks like a single
// object. Malformed JSON is never an error: the reply is simply treated as
// prose.
func Extract(text string) (*Invocation, bool) {
	if len(text) > maxResponseSize {
		return nil, false
	}

	candidate := ""
	if match := fencedJSONRegex.FindStringSubmatch(text); match != nil {
		candidate = match[1]
	} else {
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
			candidate = trimmed
		}
	}

	if candidate == "" {
		return nil, false
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		// Malformed block — the model produced prose that merely resembles
		// an invocation.
		return nil, false
	}

	return validate(parsed)
}

// validate qualifies a parsed object as an invocation only if it carries
// both a non-empty tool name and an object-valued arguments field.
func validate(parsed map[string]interface{}) (*Invocation, bool) {
	name, ok := parsed[toolField].(string)
	if !ok || name == "" {
		return nil, false
	}

	rawArgs, ok := parsed[argumentsField]
	if !ok {
		return nil, false
	}

	args, ok := rawArgs.(map[string]interface{})
	if !ok {
		// "arguments": null or a scalar — not a well-formed invocation.
		return nil, false
	}

	return &Invocation{
		ID:        uuid.New().String(),
		Tool:      name,
		Arguments: args,
	}, true
}

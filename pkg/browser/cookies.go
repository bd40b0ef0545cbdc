package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/altamira-dev/webpilot/pkg/agent/tools"
)

// CookiesTool reads, sets, or clears the context's cookies.
type CookiesTool struct {
	sessionTool
}

// Name returns the tool name.
func (t *CookiesTool) Name() string {
	return "cookies"
}

// Description returns the tool description.
func (t *CookiesTool) Description() string {
	return "Manage browser cookies. Action 'get' lists cookies, 'set' adds the cookies given in the cookies argument, 'clear' removes all cookies."
}

// Schema returns the tool's JSON schema.
func (t *CookiesTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"description": "One of 'get', 'set', or 'clear'",
			},
			"cookies": map[string]interface{}{
				"type":        "array",
				"description": "For 'set': cookies to add, each with name, value, and optionally domain and path",
			},
		},
		[]string{"action"},
	)
}

// Execute performs the cookie action.
func (t *CookiesTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	action := tools.StringArg(args, "action")

	browserCtx, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}

	switch action {
	case "get":
		cookies, err := browserCtx.Cookies()
		if err != nil {
			return nil, err
		}
		if len(cookies) == 0 {
			return tools.TextResult("No cookies set."), nil
		}
		rendered, err := json.MarshalIndent(cookies, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to render cookies: %w", err)
		}
		return tools.TextResult(string(rendered)), nil

	case "set":
		cookies, err := parseCookiesArg(args["cookies"])
		if err != nil {
			return nil, err
		}
		if len(cookies) == 0 {
			return nil, fmt.Errorf("at least one cookie is required for 'set'")
		}
		if err := browserCtx.SetCookies(cookies); err != nil {
			return nil, err
		}
		return tools.TextResult(fmt.Sprintf("Set %d cookie(s).", len(cookies))), nil

	case "clear":
		if err := browserCtx.ClearCookies(); err != nil {
			return nil, err
		}
		return tools.TextResult("All cookies cleared."), nil

	default:
		return nil, fmt.Errorf("invalid action %q (must be 'get', 'set', or 'clear')", action)
	}
}

// parseCookiesArg converts the decoded JSON cookies argument into Cookie
// values. Round-tripping through json handles the map shape the parser
// produces.
func parseCookiesArg(raw interface{}) ([]Cookie, error) {
	if raw == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid cookies argument: %w", err)
	}
	var cookies []Cookie
	if err := json.Unmarshal(encoded, &cookies); err != nil {
		return nil, fmt.Errorf("invalid cookies argument: %w", err)
	}
	return cookies, nil
}

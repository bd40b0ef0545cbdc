package browser

import (
	"context"

	"github.com/altamira-dev/webpilot/pkg/agent/tools"
	"github.com/altamira-dev/webpilot/pkg/artifacts"
)

// sessionTool carries what every browser tool needs: the pool and the
// session whose context the tool drives. The context is acquired lazily
// on first use so a chat-only session never launches a browser.
type sessionTool struct {
	pool      *Pool
	sessionID string
}

func (t sessionTool) acquire(ctx context.Context) (*Context, error) {
	return t.pool.Acquire(ctx, t.sessionID)
}

// RegisterTools registers the full browser toolset for one session on the
// given catalog. The artifact scope receives screenshots, downloads, and
// written files.
func RegisterTools(catalog *tools.Catalog, pool *Pool, sessionID string, store *artifacts.Scope) error {
	base := sessionTool{pool: pool, sessionID: sessionID}

	all := []tools.Tool{
		&NavigateTool{sessionTool: base},
		&ScreenshotTool{sessionTool: base, store: store},
		&ClickTool{sessionTool: base},
		&ScrollTool{sessionTool: base},
		&TypeTool{sessionTool: base},
		&ExtractTextTool{sessionTool: base},
		&PageInfoTool{sessionTool: base},
		&EvaluateTool{sessionTool: base},
		&CookiesTool{sessionTool: base},
		&DownloadTool{sessionTool: base, store: store},
		&WriteFileTool{store: store},
	}

	for _, tool := range all {
		if err := catalog.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

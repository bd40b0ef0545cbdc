package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/altamira-dev/webpilot/pkg/agent/tools"
	"github.com/altamira-dev/webpilot/pkg/artifacts"
)

// downloadLimit caps how much a single download may pull into memory.
const downloadLimit = 100 << 20 // 100 MiB

// DownloadTool fetches a URL and stores the body as a session artifact.
type DownloadTool struct {
	sessionTool
	store  *artifacts.Scope
	client *http.Client
}

// Name returns the tool name.
func (t *DownloadTool) Name() string {
	return "download"
}

// Description returns the tool description.
func (t *DownloadTool) Description() string {
	return "Download a file from a URL and save it as a session artifact. Use for files the browser cannot display, like PDFs or archives."
}

// Schema returns the tool's JSON schema.
func (t *DownloadTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL of the file to download",
			},
			"filename": map[string]interface{}{
				"type":        "string",
				"description": "Name to store the file under (defaults to the last path segment of the URL)",
			},
		},
		[]string{"url"},
	)
}

func (t *DownloadTool) httpClient() *http.Client {
	if t.client != nil {
		return t.client
	}
	return &http.Client{Timeout: 2 * time.Minute}
}

// Execute fetches and stores the file.
func (t *DownloadTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	target := tools.StringArg(args, "url")
	if target == "" {
		return nil, fmt.Errorf("url is required")
	}
	if t.store == nil {
		return nil, fmt.Errorf("no artifact store configured")
	}

	filename := tools.StringArg(args, "filename")
	if filename == "" {
		filename = filenameFromURL(target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid download URL: %w", err)
	}
	req.Header.Set("User-Agent", randomUserAgent())

	resp, err := t.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: server returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, downloadLimit+1))
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if len(data) > downloadLimit {
		return nil, fmt.Errorf("download exceeds the %d byte limit", downloadLimit)
	}

	saved, err := t.store.Write(filename, data)
	if err != nil {
		return nil, err
	}
	return tools.TextResult(fmt.Sprintf("Downloaded %d bytes to artifact %s.", len(data), saved)), nil
}

// filenameFromURL derives a storable name from the URL path, falling
// back to a generated one when the path carries none.
func filenameFromURL(target string) string {
	parsed, err := url.Parse(target)
	if err == nil {
		if name := path.Base(parsed.Path); name != "" && name != "/" && name != "." {
			return name
		}
	}
	return fmt.Sprintf("download_%s", uuid.New().String())
}

// WriteFileTool writes agent-provided content into the session's
// artifact store. It needs no browser context.
type WriteFileTool struct {
	store *artifacts.Scope
}

// Name returns the tool name.
func (t *WriteFileTool) Name() string {
	return "write_file"
}

// Description returns the tool description.
func (t *WriteFileTool) Description() string {
	return "Write text content to a named file in the session's artifacts, for example to save extracted data or a summary."
}

// Schema returns the tool's JSON schema.
func (t *WriteFileTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"filename": map[string]interface{}{
				"type":        "string",
				"description": "Name of the file to write",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Content to write to the file",
			},
		},
		[]string{"filename", "content"},
	)
}

// Execute writes the file.
func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) (*tools.Result, error) {
	filename := tools.StringArg(args, "filename")
	content := tools.StringArg(args, "content")
	if filename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	if t.store == nil {
		return nil, fmt.Errorf("no artifact store configured")
	}

	saved, err := t.store.Write(filename, []byte(content))
	if err != nil {
		return nil, err
	}
	return tools.TextResult(fmt.Sprintf("Wrote %d bytes to artifact %s.", len(content), saved)), nil
}

package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altamira-dev/webpilot/pkg/agent/tools"
	"github.com/altamira-dev/webpilot/pkg/artifacts"
)

func newToolFixture(t *testing.T) (*fakeLauncher, *Pool, *artifacts.Scope) {
	t.Helper()

	launcher := &fakeLauncher{}
	pool := NewPool(launcher)
	t.Cleanup(pool.Close)

	store, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)
	return launcher, pool, store.Scope("user-1", "sess-1")
}

func TestRegisterToolsPopulatesCatalog(t *testing.T) {
	_, pool, scope := newToolFixture(t)

	catalog := tools.NewCatalog()
	require.NoError(t, RegisterTools(catalog, pool, "sess-1", scope))

	expected := []string{
		"click", "cookies", "download", "evaluate_javascript", "extract_text",
		"get_page_info", "navigate", "screenshot", "scroll", "type", "write_file",
	}
	var names []string
	for _, tool := range catalog.List() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, expected, names)
}

func TestNavigateToolExecute(t *testing.T) {
	launcher, pool, _ := newToolFixture(t)
	tool := &NavigateTool{sessionTool: sessionTool{pool: pool, sessionID: "sess-1"}}

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"url": "https://example.com",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "Navigated to https://example.com")
	assert.Contains(t, result.Text, "Status: 200")
	assert.False(t, result.HasImage())
	assert.Equal(t, []string{"https://example.com"}, launcher.drivers[0].navigated)
}

func TestNavigateToolRequiresURL(t *testing.T) {
	_, pool, _ := newToolFixture(t)
	tool := &NavigateTool{sessionTool: sessionTool{pool: pool, sessionID: "sess-1"}}

	_, err := tool.Execute(context.Background(), map[string]interface{}{})
	require.Error(t, err)
	// No browser gets launched for a rejected call.
	assert.Equal(t, 0, pool.Len())
}

func TestScreenshotToolStoresArtifact(t *testing.T) {
	launcher, pool, scope := newToolFixture(t)
	tool := &ScreenshotTool{sessionTool: sessionTool{pool: pool, sessionID: "sess-1"}, store: scope}

	// Pre-acquire so we can seed the fake's image bytes.
	_, err := pool.Acquire(context.Background(), "sess-1")
	require.NoError(t, err)
	launcher.drivers[0].image = []byte{0xff, 0xd8, 0xff}

	result, err := tool.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.HasImage())
	assert.Equal(t, "image/jpeg", result.ImageMIME)
	assert.Contains(t, result.Text, "saved as screenshot_")

	// The artifact landed on disk.
	entries, err := os.ReadDir(filepath.Dir(scope.Path("x")))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "screenshot_")
}

func TestClickToolValidatesCoordinates(t *testing.T) {
	launcher, pool, _ := newToolFixture(t)
	tool := &ClickTool{sessionTool: sessionTool{pool: pool, sessionID: "sess-1"}}

	_, err := tool.Execute(context.Background(), map[string]interface{}{"x": 100.0})
	assert.Error(t, err)

	result, err := tool.Execute(context.Background(), map[string]interface{}{"x": 100.0, "y": 250.0})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "Clicked at (100, 250)")
	assert.Equal(t, [2]float64{100, 250}, launcher.drivers[0].clicks[0])
}

func TestTypeToolSubmits(t *testing.T) {
	launcher, pool, _ := newToolFixture(t)
	tool := &TypeTool{sessionTool: sessionTool{pool: pool, sessionID: "sess-1"}}

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"text":   "golang testing",
		"submit": true,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "pressed Enter")
	assert.Equal(t, []string{"golang testing"}, launcher.drivers[0].typed)
	assert.Equal(t, []bool{true}, launcher.drivers[0].submits)
}

func TestExtractTextTool(t *testing.T) {
	launcher, pool, _ := newToolFixture(t)
	tool := &ExtractTextTool{sessionTool: sessionTool{pool: pool, sessionID: "sess-1"}}

	_, err := pool.Acquire(context.Background(), "sess-1")
	require.NoError(t, err)
	launcher.drivers[0].content = "<html><head><title>T</title></head><body><p>body text</p></body></html>"

	result, err := tool.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "body text")
}

func TestPageInfoTool(t *testing.T) {
	launcher, pool, _ := newToolFixture(t)
	tool := &PageInfoTool{sessionTool: sessionTool{pool: pool, sessionID: "sess-1"}}

	_, err := pool.Acquire(context.Background(), "sess-1")
	require.NoError(t, err)
	launcher.drivers[0].title = "Example Domain"
	launcher.drivers[0].url = "https://example.com"

	result, err := tool.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Contains(t, result.Text, `Title="Example Domain"`)
	assert.Contains(t, result.Text, `URL="https://example.com"`)
}

func TestEvaluateTool(t *testing.T) {
	launcher, pool, _ := newToolFixture(t)
	tool := &EvaluateTool{sessionTool: sessionTool{pool: pool, sessionID: "sess-1"}}

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"script": "document.title",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "Script result: 42")
	assert.Equal(t, []string{"document.title"}, launcher.drivers[0].scripts)
}

func TestCookiesToolRoundTrip(t *testing.T) {
	_, pool, _ := newToolFixture(t)
	tool := &CookiesTool{sessionTool: sessionTool{pool: pool, sessionID: "sess-1"}}

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"action": "set",
		"cookies": []interface{}{
			map[string]interface{}{"name": "sid", "value": "abc", "domain": "example.com"},
		},
	})
	require.NoError(t, err)

	result, err := tool.Execute(context.Background(), map[string]interface{}{"action": "get"})
	require.NoError(t, err)
	assert.Contains(t, result.Text, `"sid"`)
	assert.Contains(t, result.Text, `"abc"`)

	_, err = tool.Execute(context.Background(), map[string]interface{}{"action": "clear"})
	require.NoError(t, err)

	result, err = tool.Execute(context.Background(), map[string]interface{}{"action": "get"})
	require.NoError(t, err)
	assert.Equal(t, "No cookies set.", result.Text)

	_, err = tool.Execute(context.Background(), map[string]interface{}{"action": "eat"})
	assert.Error(t, err)
}

func TestWriteFileTool(t *testing.T) {
	_, _, scope := newToolFixture(t)
	tool := &WriteFileTool{store: scope}

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"filename": "my summary.txt",
		"content":  "findings",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "my_summary.txt")

	data, err := os.ReadFile(scope.Path("my summary.txt"))
	require.NoError(t, err)
	assert.Equal(t, "findings", string(data))
}

func TestWriteFileToolValidates(t *testing.T) {
	_, _, scope := newToolFixture(t)
	tool := &WriteFileTool{store: scope}

	_, err := tool.Execute(context.Background(), map[string]interface{}{"content": "x"})
	assert.Error(t, err)
	_, err = tool.Execute(context.Background(), map[string]interface{}{"filename": "x.txt"})
	assert.Error(t, err)
}

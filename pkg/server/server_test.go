package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altamira-dev/webpilot/pkg/artifacts"
	"github.com/altamira-dev/webpilot/pkg/browser"
	"github.com/altamira-dev/webpilot/pkg/session"
	"github.com/altamira-dev/webpilot/pkg/types"
)

// echoProvider answers every completion with a canned reply, optionally
// blocking until released so tests can observe in-flight runs.
type echoProvider struct {
	mu      sync.Mutex
	replies []string
	calls   int
	block   chan struct{}
}

func (p *echoProvider) Complete(ctx context.Context, instructions string, history []*types.Turn) (string, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	call := p.calls
	p.calls++
	if call < len(p.replies) {
		return p.replies[call], nil
	}
	return "All done.", nil
}

func (p *echoProvider) Reset() {}

func (p *echoProvider) Model() string { return "echo" }

type fakeDriver struct{}

func (d *fakeDriver) Navigate(url string) (browser.PageInfo, error) {
	return browser.PageInfo{URL: url, Title: "Stub", Status: 200}, nil
}
func (d *fakeDriver) PageInfo() (browser.PageInfo, error) {
	return browser.PageInfo{URL: "about:blank", Title: "Stub"}, nil
}
func (d *fakeDriver) Screenshot(fullPage bool) ([]byte, error) { return []byte{0xff, 0xd8}, nil }
func (d *fakeDriver) Click(x, y float64) error { return nil }
func (d *fakeDriver) Scroll(delta float64) error { return nil }
func (d *fakeDriver) Type(text string, submit bool) error { return nil }
func (d *fakeDriver) Content() (string, error) { return "<html></html>", nil }
func (d *fakeDriver) Evaluate(script string) (string, error) { return "", nil }
func (d *fakeDriver) Cookies() ([]browser.Cookie, error) { return nil, nil }
func (d *fakeDriver) SetCookies(cookies []browser.Cookie) error { return nil }
func (d *fakeDriver) ClearCookies() error { return nil }
func (d *fakeDriver) Close() error { return nil }

type fakeLauncher struct{}

func (l *fakeLauncher) Launch(opts browser.LaunchOptions) (browser.Driver, error) {
	return &fakeDriver{}, nil
}

type fixture struct {
	server   *httptest.Server
	provider *echoProvider
	registry *session.Registry
	store    *artifacts.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)

	pool := browser.NewPool(&fakeLauncher{})
	t.Cleanup(pool.Close)

	registry := session.NewRegistry(pool, store)
	t.Cleanup(registry.Shutdown)

	provider := &echoProvider{}
	srv := New(registry, provider, store, TokenMap{
		"alice-token": "alice",
		"bob-token":   "bob",
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{server: ts, provider: provider, registry: registry, store: store}
}

func (f *fixture) request(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (f *fixture) createSession(t *testing.T, token string) string {
	t.Helper()

	resp := f.request(t, http.MethodPost, "/api/sessions", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created sessionResponse
	decodeJSON(t, resp, &created)
	require.NotEmpty(t, created.ID)
	return created.ID
}

func TestHealthNeedsNoAuth(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodGet, "/health", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIRejectsMissingOrBadTokens(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/api/sessions", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.request(t, http.MethodPost, "/api/sessions", "wrong", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAndCloseSession(t *testing.T) {
	f := newFixture(t)

	id := f.createSession(t, "alice-token")
	assert.Equal(t, 1, f.registry.Len())

	resp := f.request(t, http.MethodDelete, "/api/sessions/"+id, "alice-token", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, f.registry.Len())

	// A closed session is gone for every route.
	resp = f.request(t, http.MethodPost, "/api/sessions/"+id+"/chat", "alice-token", chatRequest{Message: "hi"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionsAreScopedToTheirOwner(t *testing.T) {
	f := newFixture(t)

	id := f.createSession(t, "alice-token")

	resp := f.request(t, http.MethodPost, "/api/sessions/"+id+"/chat", "bob-token", chatRequest{Message: "hi"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatReturnsReply(t *testing.T) {
	f := newFixture(t)
	f.provider.replies = []string{"Hello! What should we look up?"}

	id := f.createSession(t, "alice-token")

	resp := f.request(t, http.MethodPost, "/api/sessions/"+id+"/chat", "alice-token", chatRequest{Message: "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeJSON(t, resp, &body)
	assert.Equal(t, "Hello! What should we look up?", body["reply"])
	assert.Equal(t, "completed", body["state"])
}

func TestChatValidatesBody(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t, "alice-token")

	resp := f.request(t, http.MethodPost, "/api/sessions/"+id+"/chat", "alice-token", chatRequest{})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTaskRunsInBackgroundAndEmitsEvents(t *testing.T) {
	f := newFixture(t)
	f.provider.replies = []string{"The answer is 42."}

	id := f.createSession(t, "alice-token")

	resp := f.request(t, http.MethodPost, "/api/sessions/"+id+"/task", "alice-token", taskRequest{Goal: "find the answer"})
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var seen []string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := f.request(t, http.MethodGet, "/api/sessions/"+id+"/events", "alice-token", nil)
		var body struct {
			Events []*types.ProgressEvent `json:"events"`
		}
		decodeJSON(t, resp, &body)
		for _, event := range body.Events {
			seen = append(seen, string(event.Type))
		}
		if len(seen) > 0 && seen[len(seen)-1] == string(types.EventTypeTaskCompleted) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	assert.Contains(t, seen, string(types.EventTypeTaskStarted))
	assert.Contains(t, seen, string(types.EventTypeTaskCompleted))
}

func TestTaskConflictsWithRunInProgress(t *testing.T) {
	f := newFixture(t)
	f.provider.block = make(chan struct{})
	defer close(f.provider.block)

	id := f.createSession(t, "alice-token")

	resp := f.request(t, http.MethodPost, "/api/sessions/"+id+"/task", "alice-token", taskRequest{Goal: "first"})
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// The first run is blocked inside the provider; a second must be refused.
	require.Eventually(t, func() bool {
		sess, ok := f.registry.Get(id)
		return ok && sess.Busy()
	}, 2*time.Second, 10*time.Millisecond)

	resp = f.request(t, http.MethodPost, "/api/sessions/"+id+"/task", "alice-token", taskRequest{Goal: "second"})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelWithoutRunConflicts(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t, "alice-token")

	resp := f.request(t, http.MethodPost, "/api/sessions/"+id+"/cancel", "alice-token", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelStopsRunningTask(t *testing.T) {
	f := newFixture(t)
	f.provider.block = make(chan struct{})

	id := f.createSession(t, "alice-token")

	resp := f.request(t, http.MethodPost, "/api/sessions/"+id+"/task", "alice-token", taskRequest{Goal: "slow task"})
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		sess, ok := f.registry.Get(id)
		return ok && sess.Busy()
	}, 2*time.Second, 10*time.Millisecond)

	resp = f.request(t, http.MethodPost, "/api/sessions/"+id+"/cancel", "alice-token", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		sess, ok := f.registry.Get(id)
		return ok && !sess.Busy()
	}, 2*time.Second, 10*time.Millisecond)

	resp = f.request(t, http.MethodGet, "/api/sessions/"+id+"/events", "alice-token", nil)
	var body struct {
		Events []*types.ProgressEvent `json:"events"`
	}
	decodeJSON(t, resp, &body)

	var stopped bool
	for _, event := range body.Events {
		if event.Type == types.EventTypeSystemMessage && strings.Contains(event.Message, "stopped by user") {
			stopped = true
		}
	}
	assert.True(t, stopped)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	f := newFixture(t)
	f.provider.replies = []string{"Done already."}

	id := f.createSession(t, "alice-token")

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		fmt.Sprintf("/api/sessions/%s/ws?token=alice-token", id)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	httpResp := f.request(t, http.MethodPost, "/api/sessions/"+id+"/task", "alice-token", taskRequest{Goal: "quick task"})
	httpResp.Body.Close()
	require.Equal(t, http.StatusAccepted, httpResp.StatusCode)

	var seen []string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var event types.ProgressEvent
		require.NoError(t, conn.ReadJSON(&event))
		seen = append(seen, string(event.Type))
		if event.Type == types.EventTypeTaskCompleted {
			break
		}
	}

	assert.Contains(t, seen, string(types.EventTypeTaskStarted))
	assert.Contains(t, seen, string(types.EventTypeTaskCompleted))
}

func TestArtifactDownload(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t, "alice-token")

	sess, ok := f.registry.Get(id)
	require.True(t, ok)
	name, err := sess.Artifacts().Write("report.txt", []byte("findings"))
	require.NoError(t, err)

	resp := f.request(t, http.MethodGet, "/api/artifacts/"+id+"/"+name, "alice-token", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "findings", buf.String())

	// Another user cannot read it.
	other := f.request(t, http.MethodGet, "/api/artifacts/"+id+"/"+name, "bob-token", nil)
	other.Body.Close()
	assert.Equal(t, http.StatusNotFound, other.StatusCode)
}

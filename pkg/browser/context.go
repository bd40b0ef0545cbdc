package browser

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

// DefaultEvaluateTimeout bounds model-supplied script execution. The
// page's default timeout does not cover evaluate calls, so a script
// that never returns would otherwise wedge the session.
const DefaultEvaluateTimeout = 30 * time.Second

// Context is one session's browsing surface. Commands are serialized:
// a context drives a single page and concurrent commands against it
// would interleave on the wire.
type Context struct {
	sessionID   string
	driver      Driver
	allowedURLs []glob.Glob
	evalTimeout time.Duration

	mu       sync.Mutex
	lastUsed time.Time
	closed   bool
}

// SessionID returns the owning session's id.
func (c *Context) SessionID() string {
	return c.sessionID
}

// LastUsed returns the time of the most recent command.
func (c *Context) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

func (c *Context) touch() {
	c.mu.Lock()
	c.lastUsed = time.Now()
	c.mu.Unlock()
}

// begin serializes a command and rejects it if the context is closed.
// The caller must call the returned func when the command finishes.
func (c *Context) begin() (func(), error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("browser context for session %s is closed", c.sessionID)
	}
	c.lastUsed = time.Now()
	return c.mu.Unlock, nil
}

// close tears the driver down. Safe to call more than once.
func (c *Context) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.driver.Close()
}

// urlAllowed checks a target against the allowlist. Both the full URL
// and the bare host are matched so patterns like "*.example.com" and
// "https://example.com/*" both work. An empty allowlist allows all.
func (c *Context) urlAllowed(target string) error {
	if len(c.allowedURLs) == 0 {
		return nil
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", target, err)
	}

	for _, g := range c.allowedURLs {
		if g.Match(target) || g.Match(parsed.Host) {
			return nil
		}
	}
	return fmt.Errorf("navigation to %q is not permitted", target)
}

// Navigate loads a URL after checking it against the allowlist.
func (c *Context) Navigate(target string) (PageInfo, error) {
	done, err := c.begin()
	if err != nil {
		return PageInfo{}, err
	}
	defer done()

	if err := c.urlAllowed(target); err != nil {
		return PageInfo{}, err
	}
	return c.driver.Navigate(target)
}

// Screenshot captures the current page as a JPEG.
func (c *Context) Screenshot(fullPage bool) ([]byte, error) {
	done, err := c.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	return c.driver.Screenshot(fullPage)
}

// Click clicks at viewport coordinates.
func (c *Context) Click(x, y float64) error {
	done, err := c.begin()
	if err != nil {
		return err
	}
	defer done()

	return c.driver.Click(x, y)
}

// Scroll scrolls the page by amount pixels in the given direction
// ("up" or "down").
func (c *Context) Scroll(direction string, amount float64) error {
	done, err := c.begin()
	if err != nil {
		return err
	}
	defer done()

	switch direction {
	case "down":
		return c.driver.Scroll(amount)
	case "up":
		return c.driver.Scroll(-amount)
	default:
		return fmt.Errorf("invalid scroll direction %q (must be 'up' or 'down')", direction)
	}
}

// Type sends keystrokes to the focused element, pressing Enter when
// submit is set.
func (c *Context) Type(text string, submit bool) error {
	done, err := c.begin()
	if err != nil {
		return err
	}
	defer done()

	return c.driver.Type(text, submit)
}

// ExtractText returns the page reduced to readable text, truncated to
// maxLength characters.
func (c *Context) ExtractText(maxLength int) (string, error) {
	done, err := c.begin()
	if err != nil {
		return "", err
	}
	defer done()

	content, err := c.driver.Content()
	if err != nil {
		return "", err
	}
	return extractReadableText(content, maxLength)
}

// PageInfo reports the current URL and title.
func (c *Context) PageInfo() (PageInfo, error) {
	done, err := c.begin()
	if err != nil {
		return PageInfo{}, err
	}
	defer done()

	return c.driver.PageInfo()
}

// Evaluate runs a script in the page. The call is bounded: a script
// still running after DefaultEvaluateTimeout, or one outlived by ctx,
// fails here even though the engine call itself cannot be interrupted.
// The abandoned evaluation's result is discarded when it eventually
// lands.
func (c *Context) Evaluate(ctx context.Context, script string) (string, error) {
	done, err := c.begin()
	if err != nil {
		return "", err
	}
	defer done()

	type evalResult struct {
		value string
		err   error
	}
	results := make(chan evalResult, 1)
	go func() {
		value, evalErr := c.driver.Evaluate(script)
		results <- evalResult{value: value, err: evalErr}
	}()

	timeout := c.evalTimeout
	if timeout <= 0 {
		timeout = DefaultEvaluateTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-results:
		return r.value, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("script evaluation cancelled: %w", ctx.Err())
	case <-timer.C:
		return "", fmt.Errorf("script evaluation timed out after %s", timeout)
	}
}

// Cookies returns the context's cookies.
func (c *Context) Cookies() ([]Cookie, error) {
	done, err := c.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	return c.driver.Cookies()
}

// SetCookies adds cookies to the context.
func (c *Context) SetCookies(cookies []Cookie) error {
	done, err := c.begin()
	if err != nil {
		return err
	}
	defer done()

	return c.driver.SetCookies(cookies)
}

// ClearCookies removes every cookie from the context.
func (c *Context) ClearCookies() error {
	done, err := c.begin()
	if err != nil {
		return err
	}
	defer done()

	return c.driver.ClearCookies()
}

// Package browser manages pooled, isolated browser contexts and exposes
// the page primitives agents drive: navigation, screenshots, coordinate
// clicks, scrolling, typing, content extraction, script evaluation, and
// cookie management. The production engine is Playwright; the pool only
// depends on the Launcher interface so tests can inject a fake.
package browser

import (
	"math/rand"
)

// Defaults for launched contexts.
const (
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultTimeout        = 30000.0 // milliseconds
	DefaultNavigateWait   = "networkidle"
)

// userAgents are realistic desktop user agents. Each launched context
// picks one at random so a fleet of sessions does not share a fingerprint.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
}

// randomUserAgent returns one of the realistic user agents.
func randomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// LaunchOptions configures a new browser context.
type LaunchOptions struct {
	Headless       bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Timeout        float64 // default per-operation timeout in milliseconds
}

// PageInfo describes the current page.
type PageInfo struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Status int    `json:"status,omitempty"`
}

// Cookie is the engine-independent cookie representation.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
}

// Driver is the engine-level surface of one isolated browsing context:
// a dedicated browser instance, one context, one page. Close tears the
// whole stack down.
type Driver interface {
	// Navigate loads a URL and waits for the page to settle.
	Navigate(url string) (PageInfo, error)
	// PageInfo reports the current URL and title.
	PageInfo() (PageInfo, error)
	// Screenshot captures the viewport, or the full page when fullPage is set.
	Screenshot(fullPage bool) ([]byte, error)
	// Click clicks at viewport coordinates.
	Click(x, y float64) error
	// Scroll scrolls vertically by delta pixels (negative scrolls up).
	Scroll(delta float64) error
	// Type sends keystrokes to the focused element, pressing Enter when
	// submit is set.
	Type(text string, submit bool) error
	// Content returns the current page HTML.
	Content() (string, error)
	// Evaluate runs a script in the page and returns its result rendered
	// as a string.
	Evaluate(script string) (string, error)
	// Cookies returns the context's cookies.
	Cookies() ([]Cookie, error)
	// SetCookies adds cookies to the context.
	SetCookies(cookies []Cookie) error
	// ClearCookies removes all cookies from the context.
	ClearCookies() error
	// Close releases the page, context, and browser in that order. Errors
	// on individual steps do not stop the teardown.
	Close() error
}

// Launcher creates drivers. The Playwright launcher is the production
// implementation; tests substitute fakes so pool behavior can be verified
// without a real browser.
type Launcher interface {
	Launch(opts LaunchOptions) (Driver, error)
}

package browser

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightLauncher launches real Chromium contexts through Playwright.
// The Playwright process starts lazily on first Launch and is shared by
// every driver.
type PlaywrightLauncher struct {
	mu sync.Mutex
	pw *playwright.Playwright
}

// NewPlaywrightLauncher returns an unstarted launcher.
func NewPlaywrightLauncher() *PlaywrightLauncher {
	return &PlaywrightLauncher{}
}

// ensureStarted installs and starts the Playwright process once.
func (l *PlaywrightLauncher) ensureStarted() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw != nil {
		return nil
	}

	// Discard driver output so it doesn't mix into our own logs.
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	l.pw = pw
	return nil
}

// Launch creates an isolated browser, context, and page.
func (l *PlaywrightLauncher) Launch(opts LaunchOptions) (Driver, error) {
	if err := l.ensureStarted(); err != nil {
		return nil, err
	}

	if opts.UserAgent == "" {
		opts.UserAgent = randomUserAgent()
	}
	if opts.ViewportWidth == 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	if opts.ViewportHeight == 0 {
		opts.ViewportHeight = DefaultViewportHeight
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	browser, err := l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(opts.UserAgent),
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(opts.Timeout)

	return &playwrightDriver{
		browser: browser,
		context: context,
		page:    page,
	}, nil
}

// Stop shuts the shared Playwright process down. Drivers must be closed
// first.
func (l *PlaywrightLauncher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw == nil {
		return nil
	}
	err := l.pw.Stop()
	l.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// playwrightDriver drives one browser/context/page stack.
type playwrightDriver struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

func (d *playwrightDriver) Navigate(url string) (PageInfo, error) {
	resp, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	if err != nil {
		return PageInfo{}, fmt.Errorf("navigation failed: %w", err)
	}

	info := PageInfo{URL: d.page.URL()}
	if title, titleErr := d.page.Title(); titleErr == nil {
		info.Title = title
	}
	if resp != nil {
		info.Status = resp.Status()
	}
	return info, nil
}

func (d *playwrightDriver) PageInfo() (PageInfo, error) {
	title, err := d.page.Title()
	if err != nil {
		return PageInfo{}, fmt.Errorf("failed to read page title: %w", err)
	}
	return PageInfo{URL: d.page.URL(), Title: title}, nil
}

func (d *playwrightDriver) Screenshot(fullPage bool) ([]byte, error) {
	data, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypeJpeg,
		Quality:  playwright.Int(80),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

func (d *playwrightDriver) Click(x, y float64) error {
	if err := d.page.Mouse().Click(x, y); err != nil {
		return fmt.Errorf("click at (%.0f, %.0f) failed: %w", x, y, err)
	}
	return nil
}

func (d *playwrightDriver) Scroll(delta float64) error {
	if _, err := d.page.Evaluate(fmt.Sprintf("window.scrollBy(0, %f)", delta)); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

func (d *playwrightDriver) Type(text string, submit bool) error {
	if err := d.page.Keyboard().Type(text); err != nil {
		return fmt.Errorf("typing failed: %w", err)
	}
	if submit {
		if err := d.page.Keyboard().Press("Enter"); err != nil {
			return fmt.Errorf("submit failed: %w", err)
		}
	}
	return nil
}

func (d *playwrightDriver) Content() (string, error) {
	content, err := d.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return content, nil
}

func (d *playwrightDriver) Evaluate(script string) (string, error) {
	result, err := d.page.Evaluate(script)
	if err != nil {
		return "", fmt.Errorf("script evaluation failed: %w", err)
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", result), nil
}

func (d *playwrightDriver) Cookies() ([]Cookie, error) {
	raw, err := d.context.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		})
	}
	return cookies, nil
}

func (d *playwrightDriver) SetCookies(cookies []Cookie) error {
	converted := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := playwright.OptionalCookie{
			Name:  c.Name,
			Value: c.Value,
		}
		if c.Domain != "" {
			cookie.Domain = playwright.String(c.Domain)
		}
		if c.Path != "" {
			cookie.Path = playwright.String(c.Path)
		}
		if c.Expires != 0 {
			cookie.Expires = playwright.Float(c.Expires)
		}
		if c.Secure {
			cookie.Secure = playwright.Bool(true)
		}
		if c.HTTPOnly {
			cookie.HttpOnly = playwright.Bool(true)
		}
		converted = append(converted, cookie)
	}

	if err := d.context.AddCookies(converted); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

func (d *playwrightDriver) ClearCookies() error {
	if err := d.context.ClearCookies(); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return nil
}

// Close tears the stack down page first. A failing step does not stop
// the teardown; the collected errors come back so the pool can log what
// a half-dead browser refused to release.
func (d *playwrightDriver) Close() error {
	var errs []error
	if err := d.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing page: %w", err))
	}
	if err := d.context.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing context: %w", err))
	}
	if err := d.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing browser: %w", err))
	}
	return errors.Join(errs...)
}

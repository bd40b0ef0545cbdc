package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/altamira-dev/webpilot/pkg/logging"
)

// Pool defaults.
const (
	DefaultIdleTimeout  = 10 * time.Minute
	DefaultReapInterval = time.Minute
)

// Pool hands out one browser Context per session id. A context is
// launched lazily on first Acquire and torn down on Release or when the
// idle reaper finds it stale.
type Pool struct {
	mu       sync.Mutex
	launcher Launcher
	contexts map[string]*Context
	launches map[string]*sync.Mutex

	headless     bool
	allowedURLs  []glob.Glob
	idleTimeout  time.Duration
	reapInterval time.Duration

	logger     *logging.Logger
	reaperStop chan struct{}
	reaperOnce sync.Once
	stopOnce   sync.Once
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithHeadless controls whether launched browsers run headless.
func WithHeadless(headless bool) PoolOption {
	return func(p *Pool) {
		p.headless = headless
	}
}

// WithIdleTimeout sets how long a context may sit unused before the
// reaper closes it.
func WithIdleTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.idleTimeout = d
	}
}

// WithReapInterval sets how often the idle reaper sweeps.
func WithReapInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.reapInterval = d
	}
}

// WithAllowedURLs restricts navigation to URLs matching at least one of
// the given glob patterns. An empty list allows everything.
func WithAllowedURLs(patterns []string) (PoolOption, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid URL pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return func(p *Pool) {
		p.allowedURLs = globs
	}, nil
}

// NewPool creates a pool backed by the given launcher.
func NewPool(launcher Launcher, opts ...PoolOption) *Pool {
	logger, _ := logging.NewLogger("browser-pool")

	p := &Pool{
		launcher:     launcher,
		contexts:     make(map[string]*Context),
		launches:     make(map[string]*sync.Mutex),
		headless:     true,
		idleTimeout:  DefaultIdleTimeout,
		reapInterval: DefaultReapInterval,
		logger:       logger,
		reaperStop:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// launchLock returns the per-session launch mutex, creating it on first
// use. Holding it across the launch guarantees concurrent first acquires
// create exactly one context.
func (p *Pool) launchLock(sessionID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.launches[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		p.launches[sessionID] = lock
	}
	return lock
}

// Acquire returns the session's live context, launching one if needed.
func (p *Pool) Acquire(ctx context.Context, sessionID string) (*Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := p.launchLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	p.mu.Lock()
	if existing, ok := p.contexts[sessionID]; ok {
		existing.touch()
		p.mu.Unlock()
		return existing, nil
	}
	p.mu.Unlock()

	p.logger.Infof("Launching browser context for session %s", sessionID)
	driver, err := p.launcher.Launch(LaunchOptions{
		Headless:       p.headless,
		UserAgent:      randomUserAgent(),
		ViewportWidth:  DefaultViewportWidth,
		ViewportHeight: DefaultViewportHeight,
		Timeout:        DefaultTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser context: %w", err)
	}

	c := &Context{
		sessionID:   sessionID,
		driver:      driver,
		allowedURLs: p.allowedURLs,
		evalTimeout: DefaultEvaluateTimeout,
		lastUsed:    time.Now(),
	}

	p.mu.Lock()
	p.contexts[sessionID] = c
	p.mu.Unlock()
	return c, nil
}

// Get returns the session's context without launching one.
func (p *Pool) Get(sessionID string) (*Context, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.contexts[sessionID]
	return c, ok
}

// Release closes and removes the session's context. Releasing a session
// that has no context is a no-op, so double release is safe.
func (p *Pool) Release(sessionID string) {
	p.mu.Lock()
	c, ok := p.contexts[sessionID]
	if ok {
		delete(p.contexts, sessionID)
	}
	delete(p.launches, sessionID)
	p.mu.Unlock()

	if !ok {
		return
	}

	p.logger.Infof("Releasing browser context for session %s", sessionID)
	if err := c.close(); err != nil {
		p.logger.Warnf("Error closing browser context for session %s: %v", sessionID, err)
	}
}

// Len returns the number of live contexts.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.contexts)
}

// StartReaper launches the background goroutine that closes idle
// contexts. It may be called at most once.
func (p *Pool) StartReaper() {
	p.reaperOnce.Do(func() {
		go p.reapLoop()
	})
}

func (p *Pool) reapLoop() {
	ticker := time.NewTicker(p.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.ReapIdle()
		case <-p.reaperStop:
			return
		}
	}
}

// ReapIdle closes every context idle past the pool's threshold and
// returns how many were closed.
func (p *Pool) ReapIdle() int {
	now := time.Now()

	p.mu.Lock()
	var stale []string
	for id, c := range p.contexts {
		if now.Sub(c.LastUsed()) > p.idleTimeout {
			stale = append(stale, id)
		}
	}
	p.mu.Unlock()

	for _, id := range stale {
		p.logger.Infof("Reaping idle browser context for session %s", id)
		p.Release(id)
	}
	return len(stale)
}

// Close stops the reaper and releases every context.
func (p *Pool) Close() {
	p.stopOnce.Do(func() {
		close(p.reaperStop)
	})

	p.mu.Lock()
	ids := make([]string, 0, len(p.contexts))
	for id := range p.contexts {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.Release(id)
	}
}

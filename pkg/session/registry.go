package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/altamira-dev/webpilot/pkg/agent/memory"
	"github.com/altamira-dev/webpilot/pkg/agent/tools"
	"github.com/altamira-dev/webpilot/pkg/artifacts"
	"github.com/altamira-dev/webpilot/pkg/browser"
	"github.com/altamira-dev/webpilot/pkg/logging"
	"github.com/altamira-dev/webpilot/pkg/progress"
)

// Registry defaults.
const (
	DefaultIdleTimeout  = 30 * time.Minute
	DefaultReapInterval = time.Minute
)

// Registry owns every live session. All lookups and lifecycle changes
// go through it; HTTP handlers never touch session storage directly.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	pool  *browser.Pool
	store *artifacts.Store

	queueCapacity    int
	idleTimeout      time.Duration
	reapInterval     time.Duration
	conversationOpts []memory.Option

	logger     *logging.Logger
	reaperStop chan struct{}
	reaperOnce sync.Once
	stopOnce   sync.Once
}

// Option configures a Registry.
type Option func(*Registry)

// WithQueueCapacity sets the per-session progress queue capacity.
func WithQueueCapacity(n int) Option {
	return func(r *Registry) {
		r.queueCapacity = n
	}
}

// WithIdleTimeout sets how long a session may be inactive before the
// reaper closes it.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.idleTimeout = d
	}
}

// WithReapInterval sets how often the idle reaper sweeps.
func WithReapInterval(d time.Duration) Option {
	return func(r *Registry) {
		r.reapInterval = d
	}
}

// WithConversationOptions forwards options to each session's
// conversation, such as the summarization threshold.
func WithConversationOptions(opts ...memory.Option) Option {
	return func(r *Registry) {
		r.conversationOpts = opts
	}
}

// NewRegistry creates a registry backed by the given browser pool and
// artifact store.
func NewRegistry(pool *browser.Pool, store *artifacts.Store, opts ...Option) *Registry {
	logger, _ := logging.NewLogger("session-registry")

	r := &Registry{
		sessions:      make(map[string]*Session),
		pool:          pool,
		store:         store,
		queueCapacity: progress.DefaultCapacity,
		idleTimeout:   DefaultIdleTimeout,
		reapInterval:  DefaultReapInterval,
		logger:        logger,
		reaperStop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create builds a new session for the user: fresh conversation, progress
// queue, artifact scope, and a tool catalog bound to the session's
// browser context. The browser itself launches lazily on first tool use.
func (r *Registry) Create(userID string) (*Session, error) {
	id := uuid.New().String()
	scope := r.store.Scope(userID, id)

	catalog := tools.NewCatalog()
	if err := browser.RegisterTools(catalog, r.pool, id, scope); err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{
		ID:           id,
		UserID:       userID,
		CreatedAt:    now,
		lastActivity: now,
		conversation: memory.New(r.conversationOpts...),
		queue:        progress.NewQueue(r.queueCapacity),
		catalog:      catalog,
		scope:        scope,
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.logger.Infof("Created session %s for user %s", id, userID)
	return s, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetForUser returns the session only when it belongs to the user.
func (r *Registry) GetForUser(id, userID string) (*Session, bool) {
	s, ok := r.Get(id)
	if !ok || s.UserID != userID {
		return nil, false
	}
	return s, ok
}

// Close tears a session down: any in-flight run is cancelled, the
// browser context is released, and the progress queue closes. Closing
// an unknown or already-closed session is a no-op.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok || !s.markClosed() {
		return
	}

	r.logger.Infof("Closing session %s", id)
	r.pool.Release(id)
	s.queue.Close()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StartReaper launches the background sweep that closes idle sessions.
func (r *Registry) StartReaper() {
	r.reaperOnce.Do(func() {
		go r.reapLoop()
	})
}

func (r *Registry) reapLoop() {
	ticker := time.NewTicker(r.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.ReapIdle()
		case <-r.reaperStop:
			return
		}
	}
}

// ReapIdle closes every session inactive past the idle threshold, and
// returns how many were closed. Sessions with a run in progress are
// left alone regardless of their timestamps.
func (r *Registry) ReapIdle() int {
	now := time.Now()

	r.mu.RLock()
	var stale []string
	for id, s := range r.sessions {
		if !s.Busy() && now.Sub(s.LastActivity()) > r.idleTimeout {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		r.logger.Infof("Reaping idle session %s", id)
		r.Close(id)
	}
	return len(stale)
}

// Shutdown stops the reaper and closes every session.
func (r *Registry) Shutdown() {
	r.stopOnce.Do(func() {
		close(r.reaperStop)
	})

	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Close(id)
	}
}

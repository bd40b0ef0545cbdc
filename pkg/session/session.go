// Package session tracks the per-client state of the service: one
// Session per connected client, each owning a conversation, a progress
// queue, a tool catalog, and lazily a browser context. The Registry is
// the synchronized home of all sessions.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/altamira-dev/webpilot/pkg/agent/memory"
	"github.com/altamira-dev/webpilot/pkg/agent/tools"
	"github.com/altamira-dev/webpilot/pkg/artifacts"
	"github.com/altamira-dev/webpilot/pkg/progress"
)

// Session is one client's workspace. All agent activity for the client
// flows through it; runs are serialized so a session never executes two
// tasks at once.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	conversation *memory.Conversation
	queue        *progress.Queue
	catalog      *tools.Catalog
	scope        *artifacts.Scope

	mu           sync.Mutex
	lastActivity time.Time
	running      bool
	cancelRun    context.CancelFunc
	closed       bool
}

// Conversation returns the session's conversation history.
func (s *Session) Conversation() *memory.Conversation {
	return s.conversation
}

// Queue returns the session's progress event queue.
func (s *Session) Queue() *progress.Queue {
	return s.queue
}

// Catalog returns the session's tool catalog.
func (s *Session) Catalog() *tools.Catalog {
	return s.catalog
}

// Artifacts returns the session's artifact scope.
func (s *Session) Artifacts() *artifacts.Scope {
	return s.scope
}

// Touch records client activity for idle accounting.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the most recent client activity.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Busy reports whether a run is in progress.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// StartRun claims the session for one chat or task execution. It fails
// when a run is already in progress or the session is closed. The
// returned context is cancelled by CancelRun; the finish func must be
// called when the run ends.
func (s *Session) StartRun(parent context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, fmt.Errorf("session %s is closed", s.ID)
	}
	if s.running {
		return nil, nil, fmt.Errorf("session %s already has a run in progress", s.ID)
	}

	ctx, cancel := context.WithCancel(parent)
	s.running = true
	s.cancelRun = cancel
	s.lastActivity = time.Now()

	finish := func() {
		s.mu.Lock()
		s.running = false
		s.cancelRun = nil
		s.lastActivity = time.Now()
		s.mu.Unlock()
		cancel()
	}
	return ctx, finish, nil
}

// CancelRun requests cancellation of the in-flight run. It reports
// whether there was one to cancel.
func (s *Session) CancelRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelRun == nil {
		return false
	}
	s.cancelRun()
	return true
}

// markClosed flips the session to closed and cancels any in-flight run.
// Returns false if it was already closed.
func (s *Session) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	if s.cancelRun != nil {
		s.cancelRun()
	}
	return true
}

// Package server exposes the control surface: session lifecycle, chat
// and task execution, progress delivery over polling and websockets,
// and artifact retrieval. Handlers never reach past the session
// registry into the underlying state.
package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/altamira-dev/webpilot/pkg/agent"
	"github.com/altamira-dev/webpilot/pkg/artifacts"
	"github.com/altamira-dev/webpilot/pkg/llm"
	"github.com/altamira-dev/webpilot/pkg/logging"
	"github.com/altamira-dev/webpilot/pkg/session"
)

// Server wires HTTP routes to the session registry.
type Server struct {
	registry *session.Registry
	provider llm.Provider
	store    *artifacts.Store
	verifier Verifier

	maxSteps int
	logger   *logging.Logger
	router   *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithMaxSteps overrides the task step ceiling passed to each run.
func WithMaxSteps(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxSteps = n
		}
	}
}

// New creates a server over the given registry, model provider, and
// artifact store. The verifier gates every /api route.
func New(registry *session.Registry, provider llm.Provider, store *artifacts.Store, verifier Verifier, opts ...Option) *Server {
	logger, _ := logging.NewLogger("server")

	s := &Server{
		registry: registry,
		provider: provider,
		store:    store,
		verifier: verifier,
		maxSteps: agent.DefaultMaxSteps,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleCloseSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/task", s.handleTask).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/ws", s.handleWebSocket).Methods(http.MethodGet)
	api.HandleFunc("/artifacts/{session}/{filename}", s.handleArtifact).Methods(http.MethodGet)
	return r
}

// Handler returns the fully routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// newRunner builds the per-run agent loop over a session's state.
func (s *Server) newRunner(sess *session.Session) *agent.Runner {
	return agent.NewRunner(
		s.provider,
		sess.Catalog(),
		sess.Conversation(),
		sess.Queue(),
		agent.WithMaxSteps(s.maxSteps),
	)
}

// sessionFromRequest resolves the {id} route variable to a session owned
// by the authenticated user. It writes the error response itself.
func (s *Server) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := mux.Vars(r)["id"]
	sess, ok := s.registry.GetForUser(id, userIDFrom(r.Context()))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// userIDFrom returns the authenticated user id stored by the auth
// middleware.
func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/altamira-dev/webpilot/pkg/artifacts"
)

type chatRequest struct {
	Message string `json:"message"`
}

type taskRequest struct {
	Goal string `json:"goal"`
}

type sessionResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Create(userIDFrom(r.Context()))
	if err != nil {
		s.logger.Errorf("Session creation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	s.registry.Close(sess.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// handleChat answers a single message synchronously. The session is
// claimed for the duration of the exchange so a concurrent task cannot
// interleave with it.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx, finish, err := sess.StartRun(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	defer finish()

	runner := s.newRunner(sess)
	reply, state := runner.Chat(ctx, req.Message)
	writeJSON(w, http.StatusOK, map[string]string{
		"reply": reply,
		"state": string(state),
	})
}

// handleTask starts a task run in the background and returns
// immediately. Progress arrives through the events and ws routes.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Goal == "" {
		writeError(w, http.StatusBadRequest, "goal is required")
		return
	}

	// The run outlives this request, so it is not tied to r.Context().
	ctx, finish, err := sess.StartRun(context.Background())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	runner := s.newRunner(sess)
	go func() {
		defer finish()
		runner.Run(ctx, req.Goal)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	if !sess.CancelRun() {
		writeError(w, http.StatusConflict, "no run in progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// handleEvents drains and returns the session's buffered progress
// events. Polling and websocket delivery share the same queue.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	sess.Touch()
	events := sess.Queue().Drain()
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// handleArtifact serves a stored session file. Artifacts are looked up
// through the store directly so they remain retrievable after the
// session that produced them has closed.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["session"]
	filename := vars["filename"]

	file, err := s.store.Open(userIDFrom(r.Context()), sessionID, filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", artifacts.ContentType(filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, file); err != nil {
		s.logger.Warnf("Artifact transfer interrupted: %v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package server

import (
	"context"
	"net/http"
	"strings"
)

// Verifier authenticates bearer tokens and maps them to user ids.
type Verifier interface {
	Verify(token string) (userID string, ok bool)
}

// TokenMap is a static token-to-user verifier backed by configuration.
type TokenMap map[string]string

// Verify implements Verifier.
func (m TokenMap) Verify(token string) (string, bool) {
	userID, ok := m[token]
	return userID, ok
}

type contextKey string

const userIDKey contextKey = "userID"

// authMiddleware rejects requests without a valid bearer token and
// stashes the resolved user id on the request context. Websocket
// clients that cannot set headers may pass the token as a query
// parameter instead.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, ok := s.verifier.Verify(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := withUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Package artifacts stores files produced during browsing sessions
// (screenshots, downloads, agent-written files) under a per-user,
// per-session directory tree and serves them back over HTTP.
package artifacts

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// unsafeChars matches every character that is not allowed in a stored
// filename. Anything outside this set is replaced before the name touches
// the filesystem, so traversal sequences and separators can never survive.
var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Store is a filesystem-backed artifact store. Files live at
// <root>/<userID>/<sessionID>/<filename>, with all three path components
// sanitized.
type Store struct {
	root string
}

// NewStore creates the store root if it does not exist yet.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact root is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Write stores data under the given user and session, returning the
// sanitized filename actually used.
func (s *Store) Write(userID, sessionID, filename string, data []byte) (string, error) {
	name := SanitizeFilename(filename)
	dir := filepath.Join(s.root, SanitizeFilename(userID), SanitizeFilename(sessionID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	return name, nil
}

// Open returns a handle to a stored artifact. The caller owns the handle.
func (s *Store) Open(userID, sessionID, filename string) (*os.File, error) {
	path := s.Path(userID, sessionID, filename)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("artifact not found: %w", err)
	}
	return f, nil
}

// Path returns the on-disk location an artifact would occupy. The
// components are sanitized the same way Write sanitizes them.
func (s *Store) Path(userID, sessionID, filename string) string {
	return filepath.Join(s.root,
		SanitizeFilename(userID),
		SanitizeFilename(sessionID),
		SanitizeFilename(filename))
}

// Scope binds the store to one user and session so callers that operate
// inside a session do not have to carry the identifiers around.
func (s *Store) Scope(userID, sessionID string) *Scope {
	return &Scope{store: s, userID: userID, sessionID: sessionID}
}

// Scope is a Store restricted to a single user and session.
type Scope struct {
	store     *Store
	userID    string
	sessionID string
}

// Write stores data in the scope's directory and returns the sanitized
// filename.
func (sc *Scope) Write(filename string, data []byte) (string, error) {
	return sc.store.Write(sc.userID, sc.sessionID, filename, data)
}

// Path returns the on-disk location a file in this scope would occupy.
func (sc *Scope) Path(filename string) string {
	return sc.store.Path(sc.userID, sc.sessionID, filename)
}

// SessionID returns the session this scope is bound to.
func (sc *Scope) SessionID() string {
	return sc.sessionID
}

// SanitizeFilename reduces a name to the characters [A-Za-z0-9._-].
// Unsafe characters become underscores, leading dots are stripped so a
// name can never become a hidden file or a relative traversal, and an
// empty result falls back to "file".
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "file"
	}
	return name
}

// ContentType guesses a MIME type from the filename extension, falling
// back to application/octet-stream.
func ContentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

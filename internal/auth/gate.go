package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/postdesk/internal/apperr"
)

// SessionLoader resolves the session attached to a request.
type SessionLoader interface {
	Load(r *http.Request) (*Session, error)
}

// Gate admits requests whose session email is on the allow-list.
type Gate struct {
	sessions SessionLoader
	allowed  map[string]struct{}
	logger   *slog.Logger
}

// NewGate creates a Gate. An empty allow-list admits every authenticated
// identity.
func NewGate(sessions SessionLoader, allowList []string, logger *slog.Logger) *Gate {
	allowed := make(map[string]struct{}, len(allowList))
	for _, e := range allowList {
		allowed[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	if len(allowed) == 0 {
		logger.Warn("auth: no allowed emails configured, every signed-in user is accepted")
	}
	return &Gate{sessions: sessions, allowed: allowed, logger: logger}
}

// ParseAllowList splits a comma-separated list into lower-cased emails.
func ParseAllowList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if e := strings.ToLower(strings.TrimSpace(part)); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Allowed reports whether email passes the allow-list.
func (g *Gate) Allowed(email string) bool {
	if len(g.allowed) == 0 {
		return true
	}
	_, ok := g.allowed[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// RequireSession returns the request's session if it is present, has an
// email and passes the allow-list. Otherwise it fails with
// apperr.ErrUnauthorized.
func (g *Gate) RequireSession(r *http.Request) (*Session, error) {
	sess, err := g.sessions.Load(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	if sess == nil || sess.Email == "" {
		return nil, fmt.Errorf("%w: no session found", apperr.ErrUnauthorized)
	}
	if !g.Allowed(sess.Email) {
		g.logger.Info("auth: email not allowed", slog.String("email", sess.Email))
		return nil, fmt.Errorf("%w: email not allowed", apperr.ErrUnauthorized)
	}
	if len(g.allowed) == 0 {
		g.logger.Debug("auth: accepted without allow-list", slog.String("email", sess.Email))
	}
	return sess, nil
}

// Package auth implements session handling, the email allow-list gate
// and the GitHub OAuth sign-in flow.
package auth

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName = "postdesk_session"
	keyEmail    = "email"
	keyName     = "name"
	keyState    = "oauth_state"
	sessionTTL  = 30 * 24 * 60 * 60
)

// Session is the identity asserted by the provider.
type Session struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Sessions stores the identity in a signed cookie.
type Sessions struct {
	store *sessions.CookieStore
}

// NewSessions creates a cookie-backed session store.
func NewSessions(secret []byte, secure bool) *Sessions {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   sessionTTL,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
	return &Sessions{store: store}
}

// Load returns the session carried by r, or nil when there is none. A
// cookie that fails verification counts as no session.
func (s *Sessions) Load(r *http.Request) (*Session, error) {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return nil, nil //nolint:nilerr // tampered or expired cookie
	}
	email, _ := sess.Values[keyEmail].(string)
	if email == "" {
		return nil, nil
	}
	name, _ := sess.Values[keyName].(string)
	return &Session{Email: email, Name: name}, nil
}

// Save writes the identity to the session cookie.
func (s *Sessions) Save(w http.ResponseWriter, r *http.Request, id Session) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values[keyEmail] = id.Email
	sess.Values[keyName] = id.Name
	delete(sess.Values, keyState)
	return sess.Save(r, w)
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values = map[any]any{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

func (s *Sessions) setState(w http.ResponseWriter, r *http.Request, state string) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values[keyState] = state
	return sess.Save(r, w)
}

func (s *Sessions) state(r *http.Request) string {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return ""
	}
	st, _ := sess.Values[keyState].(string)
	return st
}

type ctxKey struct{}

// WithSession returns ctx carrying the validated session.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}

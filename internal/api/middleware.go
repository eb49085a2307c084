// Package api implements the postdesk REST API using chi.
package api

import (
	"net/http"

	"github.com/starford/postdesk/internal/auth"
)

// Gate validates the identity attached to a request.
type Gate interface {
	RequireSession(r *http.Request) (*auth.Session, error)
}

// AuthMiddleware rejects requests that do not carry an allowed session and
// stores the validated session on the request context.
func AuthMiddleware(gate Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := gate.RequireSession(r)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
		})
	}
}

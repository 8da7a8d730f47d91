package daemon

import (
	"net/http"
	"strings"

	"github.com/moogar0880/problems"
)

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
// Otherwise, requests must include "Authorization: Bearer <token>" header.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
			w.Header().Set("WWW-Authenticate", `Bearer realm="quill"`)
			writeProblem(w, problems.NewStatusProblem(http.StatusUnauthorized).
				WithInstance(r.URL.Path).
				WithType("unauthorized").
				WithDetail("missing or invalid bearer token"))
			return
		}
		next(w, r)
	}
}

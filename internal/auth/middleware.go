package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// TokenHeader carries the login token on API requests.
const TokenHeader = "X-Flipbook-Token"

// TokenFromRequest reads the token from the header, a bearer
// Authorization header or the token query parameter (used by websockets).
func TokenFromRequest(r *http.Request) string {
	if t := r.Header.Get(TokenHeader); t != "" {
		return t
	}
	if t, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return t
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests without a valid token when login is required.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Required() {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := s.Verify(r.Context(), TokenFromRequest(r)); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth requires apiKey as a Bearer token or X-API-Key header on every path
// except public ones. An empty apiKey disables the check.
func Auth(apiKey string, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}
	want := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := open[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			switch token := requestToken(r); {
			case token == "":
				writeError(w, http.StatusUnauthorized, "missing authentication token")
			case subtle.ConstantTimeCompare([]byte(token), want) != 1:
				writeError(w, http.StatusUnauthorized, "invalid authentication token")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func requestToken(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

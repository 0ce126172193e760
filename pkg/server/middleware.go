package server

import (
	"net/http"
	"strings"
)

// allowedHeaders lists every request header a browser client may send,
// including the provider credential and tracking headers.
var allowedHeaders = strings.Join([]string{
	"content-type",
	"authorization",
	"accept",
	"x-provider",
	"x-magicapi-api-key",
	"x-aws-access-key-id",
	"x-aws-secret-access-key",
	"x-aws-session-token",
	"x-aws-region",
	"x-project-id",
	"x-organisation-id",
	"x-organization-id",
	"x-user-id",
	"x-experiment-id",
	"x-thread-id",
}, ", ")

// corsMiddleware adds permissive CORS headers on every response, including
// errors, and answers preflight requests directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", allowedHeaders)
		h.Set("Access-Control-Expose-Headers", "*")
		h.Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

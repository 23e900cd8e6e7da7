package middleware

import (
	"net/http"

	"github.com/substrate-kb/substrate/internal/api"
)

// MaxBodyBytes caps the request body size. Ingest payloads carry full
// embedding vectors, so the limit is configurable per deployment rather
// than hardcoded. Oversized declared lengths are rejected up front; the
// rest are clamped with http.MaxBytesReader so chunked uploads cannot
// sidestep the cap.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit && r.ContentLength != -1 {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import "net/http"

// MaxBytes caps the request body size; oversized bodies fail with 413 when
// read. Credential payloads (GCP key files in particular) stay well under 1 MiB.
func MaxBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

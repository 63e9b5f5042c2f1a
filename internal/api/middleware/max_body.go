package middleware

import (
	"net/http"

	"github.com/cloo-solutions/lessonlens/internal/api"
)

const codePayloadTooLarge = "PAYLOAD_TOO_LARGE"

// MaxBodyBytes caps request bodies on write methods. Declared oversize bodies
// are rejected up front; chunked bodies fail when the handler reads past limit.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil || !hasBody(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.JSON(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{
					Error: "request body too large",
					Code:  codePayloadTooLarge,
				})
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

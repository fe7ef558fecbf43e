package logging

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"go.uber.org/zap"
)

// RequestID is middleware that tags every control API request with a short
// hex id and logs the method and path under it. Secret material never
// appears in request logs.
func RequestID(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := newRequestID()
			w.Header().Set("X-Request-Id", id)
			log.Debug("request",
				zap.String("requestId", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r)
		})
	}
}

func newRequestID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Package middleware holds the HTTP middleware chain applied in main.
package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Probe paths hit by orchestrators every few seconds; logged at a lower
// level so steady-state logs stay readable.
var probePaths = map[string]bool{
	"/health": true,
	"/ping":   true,
}

// RequestLogger logs each request with its status, byte count and
// elapsed time. Questions stream for many seconds, so the entry is
// written after the response completes, not at arrival. A nil logger
// disables the middleware entirely.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}
		log := logger.Named("http")

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Int("bytes", rec.written),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if probePaths[r.URL.Path] {
				log.Debug("Request", fields...)
				return
			}
			log.Info("Request", fields...)
		})
	}
}

// statusRecorder captures the status code and body size while forwarding
// streaming flushes, which the ask handler depends on.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.written += n
	return n, err
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

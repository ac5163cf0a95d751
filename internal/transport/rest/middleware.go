package rest

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"mindvault/internal/bootstrap/logging"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestLogger tags the request context with a request id and logs one
// line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithAttrs(r.Context(),
			slog.String("request_id", uuid.NewString()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		logging.Info(ctx, "request handled",
			slog.Int("status", sw.status),
			slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
		)
	})
}

// Recovery turns handler panics into 500s instead of dropped connections.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Error(r.Context(), "handler panic",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/uploadvault/internal/logging"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// requestLogger tags the request context with its request id, so handler
// logs carry it too, and logs method, path, status code and duration.
func requestLogger(l logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			if id := chiMiddleware.GetReqID(ctx); id != "" {
				ctx = logging.ContextWith(ctx, "request_id", id)
			}

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))
			l.Debug(ctx, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start))
		})
	}
}

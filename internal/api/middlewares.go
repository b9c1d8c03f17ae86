package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stakevault-io/staking-vault/internal/observability/metrics"
	"github.com/stakevault-io/staking-vault/internal/observability/tracing"
)

// tracingMiddleware gives every request a trace-id scoped logger and
// records the request duration.
func (s *Server) tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tracing.InjectTraceID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		metrics.ObserveHttpRequest(r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

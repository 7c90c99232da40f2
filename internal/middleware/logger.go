package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vaughan-dsouza/postagg/internal/logging"
	"github.com/vaughan-dsouza/postagg/internal/metrics"
)

// RequestLogger logs one line per request and records request metrics.
// m may be nil.
func RequestLogger(logger logging.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			m.IncrementActiveRequests()
			defer func() {
				m.DecrementActiveRequests()

				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				m.ObserveRequest(r.Method, status)

				fields := []logging.Field{
					logging.String("method", r.Method),
					logging.String("path", r.URL.Path),
					logging.Int("status", status),
					logging.Int("bytes", ww.BytesWritten()),
					logging.Duration("took", time.Since(start)),
				}
				if id := chimw.GetReqID(r.Context()); id != "" {
					fields = append(fields, logging.String("request_id", id))
				}
				if status >= http.StatusInternalServerError {
					logger.Warn("request failed", fields...)
					return
				}
				logger.Info("request", fields...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

package observability

import (
	"net/http"
	"strconv"
	"time"
)

// MetricsMiddleware records werkbank_requests_total and
// werkbank_request_duration_seconds for every request passing through.
// Status codes are folded into classes ("2xx", "4xx", "5xx") to keep
// label cardinality flat.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		class := strconv.Itoa(rec.status/100) + "xx"
		RequestsTotal.WithLabelValues(r.Method, class).Inc()
		RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status. Only the first
// WriteHeader counts; a bare Write pins the implicit 200.
type statusRecorder struct {
	http.ResponseWriter
	status    int
	committed bool
}

func (w *statusRecorder) WriteHeader(status int) {
	if !w.committed {
		w.status = status
		w.committed = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	w.committed = true
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

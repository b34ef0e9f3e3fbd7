package metrics

import (
	"net/http"
	"strconv"
)

// statusRecorder wraps http.ResponseWriter to capture the response code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument wraps a handler and counts its responses per status code under
// the given endpoint label.
func Instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Default to 200 OK if WriteHeader is never called.
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		EndpointResponses.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

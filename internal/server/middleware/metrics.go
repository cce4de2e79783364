package middleware

import (
	"net/http"
	"time"
)

// DurationObserver records the latency of a served request.
type DurationObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// Metrics returns an HTTP middleware that reports each request to obs,
// labelled with the chi route pattern that matched it.
func Metrics(obs DurationObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			obs.ObserveHTTP(r.Method, routePattern(r), sw.status, time.Since(start))
		})
	}
}

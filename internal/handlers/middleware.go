package handlers

import (
	"net/http"
	"time"

	"github.com/BalmDeveloper/balm-health-app-sub001/internal/log"
)

// WithRecover wraps an http.Handler and recovers from panics, returning
// HTTP 500 instead of crashing the server.
func WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error.Printf("panic: %v (%s %s)", rec, r.Method, r.URL.Path)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// WithRequestLog logs every request with its duration.
func WithRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info.Printf("%s %s %s %s", r.Method, r.URL.Path, time.Since(start), r.RemoteAddr)
	})
}

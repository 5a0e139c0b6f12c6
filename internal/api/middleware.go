package api

import (
	"net"
	"net/http"
	"strconv"

	"github.com/shehryarbajwa/bluetooth-emulator/internal/ratelimit"
)

// RateLimitMiddleware creates a middleware that enforces per-client rate
// limits. The X-Client-ID header is only honored when trustClientHeader is
// set, i.e. behind a proxy that assigns it.
func RateLimitMiddleware(limiter *ratelimit.Limiter, trustClientHeader bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := getClientID(r, trustClientHeader)
			limit := strconv.Itoa(limiter.Burst())

			if !limiter.Allow(clientID) {
				w.Header().Set("X-RateLimit-Limit", limit)
				w.Header().Set("X-RateLimit-Remaining", "0")
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
				return
			}

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens(clientID))))
			next.ServeHTTP(w, r)
		})
	}
}

// getClientID identifies the caller by remote host, or by X-Client-ID when
// the header is trusted.
func getClientID(r *http.Request, trustClientHeader bool) string {
	if trustClientHeader {
		if id := r.Header.Get("X-Client-ID"); id != "" {
			return id
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

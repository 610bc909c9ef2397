package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/gestly/gestly/internal/app/metrics"
	"github.com/gestly/gestly/internal/ratelimit"
	"github.com/gestly/gestly/pkg/logger"
)

// RateLimit applies limiter per API key, falling back to the client IP.
// Limiter failures let the request through.
func RateLimit(limiter ratelimit.Limiter, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			if k, ok := APIKey(r.Context()); ok {
				key = "key:" + k.ID
			}

			d, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.WithError(err).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				metrics.RecordRateLimited()
				retry := int(math.Ceil(d.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				log.WithField("key", key).WithField("path", r.URL.Path).Warn("rate limit exceeded")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

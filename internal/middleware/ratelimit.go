package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/veridata/consent-server-go/internal/audit"
	apperrors "github.com/veridata/consent-server-go/internal/errors"
	"github.com/veridata/consent-server-go/internal/httputil"
	"github.com/veridata/consent-server-go/internal/service"
)

// IPRateLimit limits requests per client IP using a Redis sliding window.
// Mounted on the auth and OAuth routes, which are the only unauthenticated
// write surface.
func IPRateLimit(limiter *service.RateLimiter, scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			key := fmt.Sprintf("%s:%s", scope, ip)

			allowed, resetAt := limiter.CheckLimit(r.Context(), key, limit, window)
			if !allowed {
				audit.LogFromRequest(r, audit.Event{
					Type:    audit.EventRateLimitExceed,
					Details: map[string]interface{}{"scope": scope},
				})
				w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(resetAt).Seconds())+1, 10))
				httputil.WriteError(w, apperrors.RateLimitExceeded())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

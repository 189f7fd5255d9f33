package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/freightdesk/sentinel/pkg/http"
	"github.com/go-chi/httprate"
)

// DefaultLoginRequestsPerMinute is the per-address ceiling on /auth/login
const DefaultLoginRequestsPerMinute = 20

// RateLimitByIP limits requests per client address in a sliding one-minute window.
// The key is the same address the anomaly gate sees, so proxies are handled identically.
// The counter lives in process memory; it is a coarse flood guard in front of the gate.
func RateLimitByIP(requestsPerMinute int, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultLoginRequestsPerMinute
	}

	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}

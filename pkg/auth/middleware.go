package auth

import (
	"log/slog"
	"net/http"

	"github.com/jkoenig/werkbank/pkg/observability"
	"github.com/jkoenig/werkbank/pkg/storage"
)

// DefaultBypassEndpoints lists paths served without authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// Middleware wires a Chain and an optional RateLimiter in front of a
// handler. Bypass paths skip both checks. On success the identity and
// its tenant are attached to the request context.
func Middleware(chain *Chain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]struct{}, len(bypassEndpoints))
	for _, path := range bypassEndpoints {
		bypass[path] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := bypass[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			res := chain.Authenticate(r.Context(), r)
			switch {
			case res.Decision == Deny:
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", res.Err,
				)
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			case res.Decision != Allow || res.Identity == nil:
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			case res.Identity.Subject == "":
				slog.Error("authenticator produced identity without subject")
				writeAuthError(w, http.StatusInternalServerError, "internal", "internal authentication error")
				return
			}

			if limiter != nil {
				if err := limiter.Allow(r.Context(), res.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", res.Identity.Subject,
						"tier", res.Identity.Tier,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(res.Identity.Tier).Inc()
					writeAuthError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
					return
				}
			}

			slog.Debug("authentication succeeded",
				"subject", res.Identity.Subject,
				"path", r.URL.Path,
			)

			ctx := WithIdentity(r.Context(), res.Identity)
			if tenant := res.Identity.TenantID(); tenant != "" {
				ctx = storage.SetTenant(ctx, tenant)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError emits the same error envelope the turn API uses, so
// clients see a single wire format for all failures.
func writeAuthError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":{"kind":"` + kind + `","message":"` + message + `"}}`))
}

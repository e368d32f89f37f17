package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/zazmarga/online-cinema/api/responses"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/logger"
	pkgredis "github.com/zazmarga/online-cinema/pkg/redis"
)

// RateLimitPolicy defines a fixed-window throttle for one traffic surface.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	limit  int
}

// NewRateLimitPolicy builds a policy; a non-positive limit or window disables it.
func NewRateLimitPolicy(name string, window time.Duration, limit int) RateLimitPolicy {
	return RateLimitPolicy{
		name:   strings.ToLower(strings.TrimSpace(name)),
		window: window,
		limit:  limit,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

func (p RateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "default"
	}
	return p.name
}

func (p RateLimitPolicy) scope(subject string) string {
	return fmt.Sprintf("%s:%s", p.normalizedName(), subject)
}

// RateLimit counts requests per authenticated user, or per client IP for
// anonymous callers, and rejects them once the window is exhausted.
func RateLimit(policy RateLimitPolicy, limiter pkgredis.RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			subject := UserIDFromContext(ctx)
			if subject == "" {
				subject = "ip:" + clientIP(r)
			}

			allowed, count, err := limiter.FixedWindowAllow(ctx, policy.scope(subject), int64(policy.limit), policy.window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				respondRateLimited(ctx, logg, w, policy, subject, count)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, subject string, count int64) {
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"policy":         policy.normalizedName(),
			"subject":        subject,
			"attempts":       count,
			"limit":          policy.limit,
			"window_seconds": int(policy.window.Seconds()),
		})
		logg.Warn(logCtx, "rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

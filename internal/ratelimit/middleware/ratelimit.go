// Package middleware throttles callers over a sliding window. Authenticated
// requests are keyed by caller identity, anonymous ones by client address.
package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"phonelease/internal/ratelimit/metrics"
	"phonelease/internal/ratelimit/models"
	"phonelease/pkg/domain"
	"phonelease/pkg/platform/httputil"
	"phonelease/pkg/requestcontext"
)

// Store admits or refuses one request for key.
type Store interface {
	Allow(ctx context.Context, key string, policy models.Policy) (*models.Result, error)
}

type Limiter struct {
	store   Store
	policy  models.Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Limiter)

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func New(store Store, policy models.Policy, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{store: store, policy: policy, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	if !policy.Enabled() {
		logger.Info("rate limiting disabled")
	}
	return l
}

// Limit returns middleware that charges each request to scope. Store errors
// fail open.
func (l *Limiter) Limit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.policy.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key := scope + ":" + callerKey(r)

			result, err := l.store.Allow(ctx, key, l.policy)
			if err != nil {
				l.logger.ErrorContext(ctx, "rate limit check failed",
					"request_id", requestcontext.RequestID(ctx),
					"scope", scope,
					"error", err,
				)
				if l.metrics != nil {
					l.metrics.IncrementStoreErrors()
				}
				next.ServeHTTP(w, r)
				return
			}
			if l.metrics != nil {
				l.metrics.ObserveDecision(scope, result.Allowed)
			}

			addHeaders(w, result)
			if !result.Allowed {
				l.logger.WarnContext(ctx, "rate limit exceeded",
					"request_id", requestcontext.RequestID(ctx),
					"scope", scope,
					"key", key,
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
					Error:            "rate_limit_exceeded",
					ErrorDescription: "too many requests, retry later",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if id := requestcontext.Identity(r.Context()); id != domain.ZeroIdentity {
		return "id:" + id.Hex()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func addHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// Package middleware throttles anonymous donor endpoints per client IP. Checks go
// to the shared store; while it fails, a circuit breaker routes them to an
// in-process fallback and responses carry X-RateLimit-Status: degraded.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"fasela/internal/ratelimit/metrics"
	"fasela/internal/ratelimit/models"
	"fasela/pkg/platform/circuit"
	"fasela/pkg/platform/httputil"
	"fasela/pkg/platform/middleware/metadata"
	"fasela/pkg/platform/middleware/request"
)

// Limiter admits or rejects one request under a key.
type Limiter interface {
	Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error)
}

type Middleware struct {
	primary  Limiter
	fallback Limiter
	breaker  *circuit.Breaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithFallback sets the limiter used while the primary store is failing. Without
// one, requests are admitted during an outage.
func WithFallback(l Limiter) Option {
	return func(m *Middleware) {
		m.fallback = l
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		if b != nil {
			m.breaker = b
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

// WithDisabled turns every check into a pass, for local demos.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(primary Limiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		breaker: circuit.New("ratelimit-store"),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// LimitByIP rejects requests with 429 once the client IP exhausted limit for
// class.
func (m *Middleware) LimitByIP(class models.EndpointClass, limit models.Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := metadata.GetClientIP(ctx)
			if ip == "" {
				ip = metadata.ClientIPFromRequest(r, false)
			}

			result, degraded := m.check(ctx, models.Key(class, ip), limit)
			if degraded {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}
			if result == nil {
				m.observe(class, "unchecked")
				next.ServeHTTP(w, r)
				return
			}

			addHeaders(w, result)
			if !result.Allowed {
				m.observe(class, "rejected")
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", class,
					"request_id", request.GetRequestID(ctx),
				)
				writeExceeded(w, result)
				return
			}
			m.observe(class, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

// check returns a nil result when no limiter could answer.
func (m *Middleware) check(ctx context.Context, key string, limit models.Limit) (*models.Result, bool) {
	if m.breaker.Allow() {
		result, err := m.primary.Allow(ctx, key, limit)
		if err == nil {
			if _, change := m.breaker.RecordSuccess(); change.Closed {
				m.logger.InfoContext(ctx, "rate limit store recovered")
				m.setBreaker(false)
			}
			if !m.breaker.IsOpen() {
				return result, false
			}
			return result, true
		}

		if m.metrics != nil {
			m.metrics.IncrementStoreError()
		}
		m.logger.ErrorContext(ctx, "rate limit check failed", "error", err)
		if _, change := m.breaker.RecordFailure(); change.Opened {
			m.logger.WarnContext(ctx, "rate limit store unavailable, using fallback")
			m.setBreaker(true)
		}
	}

	if m.fallback == nil {
		return nil, true
	}
	if m.metrics != nil {
		m.metrics.IncrementFallback()
	}
	result, err := m.fallback.Allow(ctx, key, limit)
	if err != nil {
		m.logger.ErrorContext(ctx, "fallback rate limit check failed", "error", err)
		return nil, true
	}
	return result, true
}

func (m *Middleware) setBreaker(open bool) {
	if m.metrics != nil {
		m.metrics.SetBreakerOpen(open)
	}
}

func (m *Middleware) observe(class models.EndpointClass, outcome string) {
	if m.metrics != nil {
		m.metrics.IncrementDecision(string(class), outcome)
	}
}

func addHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeExceeded(w http.ResponseWriter, result *models.Result) {
	retry := result.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many donations from this address. Please try again later.",
		RetryAfter: retry,
	})
}

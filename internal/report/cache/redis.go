// Package cache stores computed reports per organization generation. A ledger
// change bumps the generation, so entries written before it are never read again
// and simply expire.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	reportmetrics "fasela/internal/report/metrics"
	id "fasela/pkg/domain"
	"fasela/pkg/platform/circuit"
	"fasela/pkg/platform/sentinel"
)

const (
	keyPrefix  = "fasela:report:"
	defaultTTL = 5 * time.Minute
)

func generationKey(orgID id.OrganizationID) string {
	return keyPrefix + orgID.String() + ":gen"
}

func entryKey(orgID id.OrganizationID, gen int64, key string) string {
	return keyPrefix + orgID.String() + ":" + strconv.FormatInt(gen, 10) + ":" + key
}

// Redis is the shared report cache. Reads and writes go through a circuit
// breaker; while it is open every call fails fast with sentinel.ErrUnavailable.
type Redis struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *circuit.Breaker
	metrics *reportmetrics.Metrics
	logger  *slog.Logger
}

type Option func(*Redis)

func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Redis) {
		if b != nil {
			r.breaker = b
		}
	}
}

func WithMetrics(m *reportmetrics.Metrics) Option {
	return func(r *Redis) {
		r.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Redis) {
		r.logger = logger
	}
}

func NewRedis(client *redis.Client, opts ...Option) *Redis {
	r := &Redis{
		client:  client,
		ttl:     defaultTTL,
		breaker: circuit.New("report-cache"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generation returns the current generation of orgID; 0 before the first
// invalidation.
func (r *Redis) Generation(ctx context.Context, orgID id.OrganizationID) (int64, error) {
	var gen int64
	err := r.guard(ctx, func(ctx context.Context) error {
		v, err := r.client.Get(ctx, generationKey(orgID)).Int64()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		gen = v
		return err
	})
	return gen, err
}

func (r *Redis) Get(ctx context.Context, orgID id.OrganizationID, gen int64, key string) ([]byte, bool, error) {
	var (
		raw   []byte
		found bool
	)
	err := r.guard(ctx, func(ctx context.Context) error {
		v, err := r.client.Get(ctx, entryKey(orgID, gen, key)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, found = v, true
		return nil
	})
	return raw, found, err
}

func (r *Redis) Set(ctx context.Context, orgID id.OrganizationID, gen int64, key string, value []byte) error {
	return r.guard(ctx, func(ctx context.Context) error {
		return r.client.Set(ctx, entryKey(orgID, gen, key), value, r.ttl).Err()
	})
}

// Invalidate bumps the generation of orgID. It bypasses the open breaker since a
// missed bump leaves stale entries readable until they expire.
func (r *Redis) Invalidate(ctx context.Context, orgID id.OrganizationID) {
	err := r.client.Incr(ctx, generationKey(orgID)).Err()
	r.record(ctx, err)
	if err != nil {
		r.logger.WarnContext(ctx, "report cache invalidation failed",
			"organization_id", orgID,
			"error", err,
		)
	}
}

// Health pings the server without touching the breaker.
func (r *Redis) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) guard(ctx context.Context, op func(ctx context.Context) error) error {
	if !r.breaker.Allow() {
		return fmt.Errorf("report cache: %w", sentinel.ErrUnavailable)
	}
	err := op(ctx)
	r.record(ctx, err)
	return err
}

func (r *Redis) record(ctx context.Context, err error) {
	var change circuit.StateChange
	if err != nil {
		_, change = r.breaker.RecordFailure()
	} else {
		_, change = r.breaker.RecordSuccess()
	}
	switch {
	case change.Opened:
		r.logger.WarnContext(ctx, "report cache circuit opened", "breaker", r.breaker.Name(), "error", err)
	case change.Closed:
		r.logger.InfoContext(ctx, "report cache circuit closed", "breaker", r.breaker.Name())
	default:
		return
	}
	if r.metrics != nil {
		r.metrics.SetBreakerOpen(change.Opened)
	}
}

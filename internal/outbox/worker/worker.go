package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	outboxmetrics "fasela/internal/outbox/metrics"
	"fasela/internal/outbox/models"
	"fasela/pkg/platform/tx"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 100
)

type Store interface {
	ClaimBatch(ctx context.Context, limit int) ([]*models.Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type Publisher interface {
	Publish(ctx context.Context, events []*models.Event) error
}

// Worker relays unpublished outbox rows to the event feed. Delivery is at least
// once: a batch is marked published only after the publisher acknowledged it.
type Worker struct {
	store     Store
	publisher Publisher
	tx        tx.Runner
	interval  time.Duration
	batchSize int
	metrics   *outboxmetrics.Metrics
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

type Option func(*Worker)

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithTxRunner(runner tx.Runner) Option {
	return func(w *Worker) {
		w.tx = runner
	}
}

func WithMetrics(m *outboxmetrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func New(store Store, publisher Publisher, opts ...Option) *Worker {
	w := &Worker{
		store:     store,
		publisher: publisher,
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.tx == nil {
		w.tx = tx.NewLocking()
	}
	return w
}

// Start launches the relay loop. It returns an error if already running.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("outbox worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.loop(ctx)

	w.logger.InfoContext(ctx, "outbox worker started", "poll_interval", w.interval, "batch_size", w.batchSize)
	return nil
}

// Stop signals the loop and waits until the in-flight batch finishes or ctx ends.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	select {
	case <-done:
		w.logger.InfoContext(ctx, "outbox worker stopped")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "outbox worker stop timed out")
		return ctx.Err()
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
		}
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch, publishes it and marks it published, all in one
// transaction. It returns the number of relayed events.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	var relayed []*models.Event
	err := w.tx.RunInTx(ctx, func(txCtx context.Context) error {
		events, err := w.store.ClaimBatch(txCtx, w.batchSize)
		if err != nil {
			return err
		}
		if w.metrics != nil {
			w.metrics.ObserveBatch(len(events))
		}
		if len(events) == 0 {
			return nil
		}
		if err := w.publisher.Publish(txCtx, events); err != nil {
			if w.metrics != nil {
				w.metrics.IncrementFailure()
			}
			return err
		}
		ids := make([]uuid.UUID, len(events))
		for i, e := range events {
			ids[i] = e.ID
		}
		if err := w.store.MarkPublished(txCtx, ids, time.Now().UTC()); err != nil {
			return err
		}
		relayed = events
		return nil
	})
	if err != nil {
		return 0, err
	}
	if w.metrics != nil {
		for _, e := range relayed {
			w.metrics.IncrementPublished(string(e.EventType))
		}
	}
	if len(relayed) > 0 {
		w.logger.DebugContext(ctx, "outbox batch relayed", "count", len(relayed))
	}
	return len(relayed), nil
}

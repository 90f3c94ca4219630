package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fasela/internal/outbox/models"
	"fasela/internal/outbox/store"
	id "fasela/pkg/domain"
	"fasela/pkg/platform/tx"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []*models.Event
	fail      error
}

func (p *recordingPublisher) Publish(_ context.Context, events []*models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.published = append(p.published, events...)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func appendEvents(t *testing.T, s *store.InMemory, n int) {
	t.Helper()
	orgID := id.NewOrganizationID()
	for i := 0; i < n; i++ {
		ev, err := models.NewEvent(models.AggregateDonation, id.NewDonationID().String(), orgID,
			models.EventDonationCreated, map[string]int{"n": i}, time.Now())
		require.NoError(t, err)
		require.NoError(t, s.Append(context.Background(), ev))
	}
}

func TestRunOnce(t *testing.T) {
	t.Run("relays in batches and marks rows published", func(t *testing.T) {
		s := store.NewInMemory()
		pub := &recordingPublisher{}
		appendEvents(t, s, 5)
		w := New(s, pub, WithBatchSize(3))

		n, err := w.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = w.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = w.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)

		assert.Equal(t, 5, pub.count())
		for _, e := range s.Events() {
			assert.NotNil(t, e.PublishedAt)
		}
	})

	t.Run("failed publish leaves events for the next cycle", func(t *testing.T) {
		s := store.NewInMemory()
		pub := &recordingPublisher{fail: errors.New("broker down")}
		appendEvents(t, s, 2)
		w := New(s, pub)

		_, err := w.RunOnce(context.Background())
		require.Error(t, err)
		for _, e := range s.Events() {
			assert.Nil(t, e.PublishedAt)
		}

		pub.fail = nil
		n, err := w.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("preserves append order", func(t *testing.T) {
		s := store.NewInMemory()
		pub := &recordingPublisher{}
		appendEvents(t, s, 4)
		_, err := New(s, pub).RunOnce(context.Background())
		require.NoError(t, err)

		stored := s.Events()
		for i, e := range pub.published {
			assert.Equal(t, stored[i].ID, e.ID)
		}
	})
}

func TestStartStop(t *testing.T) {
	s := store.NewInMemory()
	pub := &recordingPublisher{}
	appendEvents(t, s, 3)
	w := New(s, pub, WithPollInterval(10*time.Millisecond))

	require.NoError(t, w.Start(context.Background()))
	require.Error(t, w.Start(context.Background()), "second start must fail")

	require.Eventually(t, func() bool { return pub.count() == 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
	require.NoError(t, w.Stop(ctx), "stop is idempotent")
}

type blockingPublisher struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPublisher) Publish(context.Context, []*models.Event) error {
	close(p.entered)
	<-p.release
	return nil
}

func TestRelayDoesNotHoldTheLedgerLock(t *testing.T) {
	s := store.NewInMemory()
	appendEvents(t, s, 1)
	ledger := tx.NewLocking()
	pub := &blockingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	w := New(s, pub, WithTxRunner(tx.NewLocking()))

	done := make(chan error, 1)
	go func() {
		_, err := w.RunOnce(context.Background())
		done <- err
	}()
	<-pub.entered

	committed := make(chan error, 1)
	go func() {
		committed <- ledger.RunInTx(context.Background(), func(txCtx context.Context) error {
			ev, err := models.NewEvent(models.AggregateDonation, id.NewDonationID().String(), id.NewOrganizationID(),
				models.EventDonationConfirmed, map[string]string{}, time.Now())
			if err != nil {
				return err
			}
			return s.Append(txCtx, ev)
		})
	}()

	select {
	case err := <-committed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ledger unit waited on the broker")
	}

	close(pub.release)
	require.NoError(t, <-done)
	assert.Len(t, s.Events(), 2)
}

func TestUncommittedEventsAreNotRelayed(t *testing.T) {
	s := store.NewInMemory()
	pub := &recordingPublisher{}
	w := New(s, pub, WithTxRunner(tx.NewLocking()))
	ledger := tx.NewLocking()

	err := ledger.RunInTx(context.Background(), func(txCtx context.Context) error {
		ev, err := models.NewEvent(models.AggregateHandover, id.NewHandoverID().String(), id.NewOrganizationID(),
			models.EventHandoverRecorded, map[string]string{}, time.Now())
		require.NoError(t, err)
		require.NoError(t, s.Append(txCtx, ev))

		n, err := w.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n, "the unit has not committed yet")
		return errors.New("rolled back")
	})
	require.Error(t, err)

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, s.Events())
	assert.Zero(t, pub.count())
}

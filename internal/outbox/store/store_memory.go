package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"fasela/internal/outbox/models"
	"fasela/pkg/platform/tx"
)

// InMemory keeps outbox events in commit order. Events appended inside a unit of
// work become visible to ClaimBatch only once the unit commits.
type InMemory struct {
	mu     sync.RWMutex
	events []*models.Event
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(ctx context.Context, event *models.Event) error {
	c := *event
	tx.OnCommit(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.events = append(s.events, &c)
	})
	return nil
}

// ClaimBatch returns up to limit unpublished events, oldest first.
func (s *InMemory) ClaimBatch(_ context.Context, limit int) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Event, 0, limit)
	for _, e := range s.events {
		if len(out) == limit {
			break
		}
		if e.PublishedAt == nil {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *InMemory) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var marked []*models.Event
	for _, e := range s.events {
		if e.PublishedAt == nil && slices.Contains(ids, e.ID) {
			t := at
			e.PublishedAt = &t
			marked = append(marked, e)
		}
	}
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, e := range marked {
			e.PublishedAt = nil
		}
	})
	return nil
}

// Events returns a copy of every stored event.
func (s *InMemory) Events() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Event, len(s.events))
	for i, e := range s.events {
		out[i] = *e
	}
	return out
}

// Clear drops all events.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

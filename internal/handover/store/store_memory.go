package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"fasela/internal/handover/models"
	id "fasela/pkg/domain"
	"fasela/pkg/platform/sentinel"
	"fasela/pkg/platform/tx"
	"fasela/pkg/requestcontext"
)

// InMemory stores handovers keyed by id. Rows outside the caller's
// organizations are invisible.
type InMemory struct {
	mu        sync.RWMutex
	handovers map[id.HandoverID]*models.Handover
}

func NewInMemory() *InMemory {
	return &InMemory{handovers: make(map[id.HandoverID]*models.Handover)}
}

func clone(h *models.Handover) *models.Handover {
	c := *h
	return &c
}

func visible(ctx context.Context, h *models.Handover) bool {
	return requestcontext.CallerFrom(ctx).CanAccess(h.OrganizationID)
}

func (s *InMemory) Create(ctx context.Context, h *models.Handover) error {
	if !requestcontext.CallerFrom(ctx).CanAccess(h.OrganizationID) {
		return fmt.Errorf("handover %s outside caller scope: %w", h.ID, sentinel.ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.handovers[h.ID]; exists {
		return fmt.Errorf("handover %s: %w", h.ID, sentinel.ErrConflict)
	}
	s.handovers[h.ID] = clone(h)
	tx.OnRollback(ctx, func() { s.remove(h.ID) })
	return nil
}

// Update overwrites the amount, notes and updated_at of an existing handover.
func (s *InMemory) Update(ctx context.Context, h *models.Handover) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.handovers[h.ID]
	if !ok || !visible(ctx, existing) {
		return sentinel.ErrNotFound
	}
	updated := clone(existing)
	updated.Amount = h.Amount
	updated.Notes = h.Notes
	updated.UpdatedAt = h.UpdatedAt
	s.handovers[h.ID] = updated
	tx.OnRollback(ctx, func() { s.restore(existing) })
	return nil
}

func (s *InMemory) remove(handoverID id.HandoverID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handovers, handoverID)
}

func (s *InMemory) restore(h *models.Handover) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handovers[h.ID] = h
}

func (s *InMemory) FindByID(ctx context.Context, handoverID id.HandoverID) (*models.Handover, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handovers[handoverID]
	if !ok || !visible(ctx, h) {
		return nil, sentinel.ErrNotFound
	}
	return clone(h), nil
}

// ListByDonation returns the donation's handovers ordered by handover date.
func (s *InMemory) ListByDonation(ctx context.Context, donationID id.DonationID) ([]*models.Handover, error) {
	return s.collect(ctx, func(h *models.Handover) bool { return h.DonationID == donationID }), nil
}

func (s *InMemory) ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*models.Handover, error) {
	return s.collect(ctx, func(h *models.Handover) bool { return h.OrganizationID == orgID }), nil
}

func (s *InMemory) ListByCase(ctx context.Context, caseID id.CaseID) ([]*models.Handover, error) {
	return s.collect(ctx, func(h *models.Handover) bool { return h.CaseID == caseID }), nil
}

func (s *InMemory) collect(ctx context.Context, keep func(*models.Handover) bool) []*models.Handover {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Handover, 0)
	for _, h := range s.handovers {
		if visible(ctx, h) && keep(h) {
			out = append(out, clone(h))
		}
	}
	slices.SortFunc(out, func(a, b *models.Handover) int {
		if c := a.HandoverDate.Compare(b.HandoverDate); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// Seed inserts a handover as-is, bypassing scope checks. Used for fixtures that
// model inconsistent historical data.
func (s *InMemory) Seed(h *models.Handover) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handovers[h.ID] = clone(h)
}

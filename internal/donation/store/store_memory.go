package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"fasela/internal/donation/models"
	id "fasela/pkg/domain"
	"fasela/pkg/platform/sentinel"
	"fasela/pkg/platform/tx"
	"fasela/pkg/requestcontext"
)

// InMemory keeps donations in a map guarded by an RWMutex. Reads and writes
// outside the caller's organizations behave as if the row did not exist.
type InMemory struct {
	mu        sync.RWMutex
	donations map[id.DonationID]*models.Donation
}

func NewInMemory() *InMemory {
	return &InMemory{donations: make(map[id.DonationID]*models.Donation)}
}

func clone(d *models.Donation) *models.Donation {
	c := *d
	return &c
}

func visible(ctx context.Context, d *models.Donation) bool {
	return requestcontext.CallerFrom(ctx).CanAccess(d.OrganizationID)
}

// Create inserts a new pending donation. It is the donor-facing write and does
// not require the caller to belong to the organization.
func (s *InMemory) Create(ctx context.Context, d *models.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.donations[d.ID]; exists {
		return fmt.Errorf("donation %s: %w", d.ID, sentinel.ErrConflict)
	}
	s.donations[d.ID] = clone(d)
	tx.OnRollback(ctx, func() { s.remove(d.ID) })
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, donationID id.DonationID) (*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.donations[donationID]
	if !ok || !visible(ctx, d) {
		return nil, sentinel.ErrNotFound
	}
	return clone(d), nil
}

// FindForUpdate is FindByID; the in-memory transaction runner already holds a
// process-wide lock for the whole unit of work.
func (s *InMemory) FindForUpdate(ctx context.Context, donationID id.DonationID) (*models.Donation, error) {
	return s.FindByID(ctx, donationID)
}

// Execute validates and mutates one donation under the store lock.
func (s *InMemory) Execute(ctx context.Context, donationID id.DonationID, validate func(*models.Donation) error, mutate func(*models.Donation)) (*models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[donationID]
	if !ok || !visible(ctx, d) {
		return nil, sentinel.ErrNotFound
	}
	working := clone(d)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	working.Version = d.Version + 1
	s.donations[donationID] = working
	tx.OnRollback(ctx, func() { s.restore(d) })
	return clone(working), nil
}

// UpdateHandedOver writes the cached handover total if the donation is still at
// expectedVersion.
func (s *InMemory) UpdateHandedOver(ctx context.Context, donationID id.DonationID, total decimal.Decimal, expectedVersion int64) (*models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[donationID]
	if !ok || !visible(ctx, d) {
		return nil, sentinel.ErrNotFound
	}
	if d.Version != expectedVersion {
		return nil, fmt.Errorf("donation %s at version %d, expected %d: %w", donationID, d.Version, expectedVersion, sentinel.ErrConflict)
	}
	if total.IsNegative() || total.GreaterThan(d.Amount) {
		return nil, fmt.Errorf("handed over total %s outside [0, %s]: %w", total, d.Amount, sentinel.ErrInvalidState)
	}
	updated := clone(d)
	updated.TotalHandedOver = total
	updated.Version++
	s.donations[donationID] = updated
	tx.OnRollback(ctx, func() { s.restore(d) })
	return clone(updated), nil
}

func (s *InMemory) remove(donationID id.DonationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.donations, donationID)
}

// restore puts back the row a failed unit replaced.
func (s *InMemory) restore(d *models.Donation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donations[d.ID] = d
}

// List returns one page ordered by creation time descending plus the total count.
func (s *InMemory) List(ctx context.Context, filter models.ListFilter) ([]*models.Donation, int, error) {
	s.mu.RLock()
	matched := make([]*models.Donation, 0)
	for _, d := range s.donations {
		if visible(ctx, d) && filter.Matches(d) {
			matched = append(matched, clone(d))
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(matched)
	total := len(matched)
	if filter.Offset >= total {
		return []*models.Donation{}, total, nil
	}
	end := min(filter.Offset+filter.Limit, total)
	return matched[filter.Offset:end], total, nil
}

// ListByOrganization returns every donation of the organization, oldest first.
func (s *InMemory) ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*models.Donation, error) {
	return s.collect(ctx, func(d *models.Donation) bool { return d.OrganizationID == orgID }), nil
}

// ListByCase returns every donation of the case, oldest first.
func (s *InMemory) ListByCase(ctx context.Context, caseID id.CaseID) ([]*models.Donation, error) {
	return s.collect(ctx, func(d *models.Donation) bool { return d.CaseID == caseID }), nil
}

func (s *InMemory) collect(ctx context.Context, keep func(*models.Donation) bool) []*models.Donation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Donation
	for _, d := range s.donations {
		if visible(ctx, d) && keep(d) {
			out = append(out, clone(d))
		}
	}
	slices.SortFunc(out, func(a, b *models.Donation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

func sortNewestFirst(ds []*models.Donation) {
	slices.SortFunc(ds, func(a, b *models.Donation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}

// Seed inserts a donation as-is, bypassing scope checks. Used to load legacy
// redeemed donations and fixtures.
func (s *InMemory) Seed(d *models.Donation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donations[d.ID] = clone(d)
}

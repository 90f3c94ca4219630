package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"fasela/internal/organization/models"
	id "fasela/pkg/domain"
	"fasela/pkg/platform/sentinel"
	"fasela/pkg/requestcontext"
)

// InMemory stores organizations and cases in maps. Reads apply the same caller
// scope as the Postgres row policies.
type InMemory struct {
	mu    sync.RWMutex
	orgs  map[id.OrganizationID]*models.Organization
	cases map[id.CaseID]*models.Case
}

func NewInMemory() *InMemory {
	return &InMemory{
		orgs:  make(map[id.OrganizationID]*models.Organization),
		cases: make(map[id.CaseID]*models.Case),
	}
}

func (s *InMemory) CreateOrganization(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orgs {
		if strings.EqualFold(existing.Slug, org.Slug) {
			return fmt.Errorf("organization slug %q: %w", org.Slug, sentinel.ErrConflict)
		}
	}
	clone := *org
	s.orgs[org.ID] = &clone
	return nil
}

func (s *InMemory) CreateCase(_ context.Context, c *models.Case) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[c.OrganizationID]; !ok {
		return fmt.Errorf("organization %s: %w", c.OrganizationID, sentinel.ErrNotFound)
	}
	clone := *c
	s.cases[c.ID] = &clone
	return nil
}

func (s *InMemory) FindOrganization(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	if !requestcontext.CallerFrom(ctx).CanAccess(orgID) {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *org
	return &clone, nil
}

func (s *InMemory) FindCase(ctx context.Context, caseID id.CaseID) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok || !requestcontext.CallerFrom(ctx).CanAccess(c.OrganizationID) {
		return nil, sentinel.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

// FindDonatableCase is the public lookup used by donors: it ignores caller scope
// and only returns cases that accept donations under an active organization.
func (s *InMemory) FindDonatableCase(_ context.Context, caseID id.CaseID) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok || c.AcceptsDonations() != nil {
		return nil, sentinel.ErrNotFound
	}
	if org, ok := s.orgs[c.OrganizationID]; !ok || !org.Active {
		return nil, sentinel.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

// ListCases returns the organization's cases ordered by creation time.
func (s *InMemory) ListCases(ctx context.Context, orgID id.OrganizationID) ([]*models.Case, error) {
	if !requestcontext.CallerFrom(ctx).CanAccess(orgID) {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Case
	for _, c := range s.cases {
		if c.OrganizationID == orgID {
			clone := *c
			out = append(out, &clone)
		}
	}
	slices.SortFunc(out, func(a, b *models.Case) int {
		if cmp := a.CreatedAt.Compare(b.CreatedAt); cmp != 0 {
			return cmp
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"fasela/internal/organization/models"
	id "fasela/pkg/domain"
	"fasela/pkg/platform/sentinel"
	"fasela/pkg/testutil"
)

type OrganizationStoreSuite struct {
	suite.Suite
	store *InMemory
	org   *models.Organization
	ctx   context.Context
}

func TestOrganizationStoreSuite(t *testing.T) {
	suite.Run(t, new(OrganizationStoreSuite))
}

func (s *OrganizationStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.org = &models.Organization{ID: id.NewOrganizationID(), Name: "Paws", Slug: "paws", Active: true, CreatedAt: time.Now()}
	s.Require().NoError(s.store.CreateOrganization(context.Background(), s.org))
	s.ctx = testutil.AdminContext(s.org.ID)
}

func (s *OrganizationStoreSuite) newCase(mutate func(c *models.Case)) *models.Case {
	c := &models.Case{
		ID:             id.NewCaseID(),
		OrganizationID: s.org.ID,
		Title:          "Luna",
		MonthlyCost:    decimal.NewFromInt(100),
		MonthsNeeded:   3,
		CareType:       models.CareTypeSponsorship,
		Status:         models.CaseStatusActive,
		Published:      true,
		PaymentCode:    "LUNA-01",
		CreatedAt:      time.Now(),
	}
	if mutate != nil {
		mutate(c)
	}
	s.Require().NoError(s.store.CreateCase(context.Background(), c))
	return c
}

func (s *OrganizationStoreSuite) TestScopedLookups() {
	c := s.newCase(nil)

	s.Run("caller of the organization sees the case", func() {
		found, err := s.store.FindCase(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal("LUNA-01", found.PaymentCode)
	})

	s.Run("caller of another organization does not", func() {
		_, err := s.store.FindCase(testutil.AdminContext(id.NewOrganizationID()), c.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.FindOrganization(testutil.AdminContext(id.NewOrganizationID()), s.org.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("anonymous caller sees nothing scoped", func() {
		_, err := s.store.FindCase(context.Background(), c.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)

		cases, err := s.store.ListCases(context.Background(), s.org.ID)
		s.Require().NoError(err)
		s.Empty(cases)
	})
}

func (s *OrganizationStoreSuite) TestFindDonatableCase() {
	open := s.newCase(nil)
	draft := s.newCase(func(c *models.Case) { c.Status = models.CaseStatusDraft })
	hidden := s.newCase(func(c *models.Case) { c.Published = false })
	cancelled := s.newCase(func(c *models.Case) { c.CareType = models.CareTypeCancelled })

	found, err := s.store.FindDonatableCase(context.Background(), open.ID)
	s.Require().NoError(err)
	s.Equal(open.ID, found.ID)

	for _, c := range []*models.Case{draft, hidden, cancelled} {
		_, err := s.store.FindDonatableCase(context.Background(), c.ID)
		s.ErrorIs(err, sentinel.ErrNotFound, c.Title)
	}

	s.Run("inactive organization closes its cases", func() {
		inactive := &models.Organization{ID: id.NewOrganizationID(), Name: "Closed", Slug: "closed", Active: false}
		s.Require().NoError(s.store.CreateOrganization(context.Background(), inactive))
		c := s.newCase(func(c *models.Case) { c.OrganizationID = inactive.ID })

		_, err := s.store.FindDonatableCase(context.Background(), c.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *OrganizationStoreSuite) TestCreateValidation() {
	s.Run("duplicate slug conflicts", func() {
		err := s.store.CreateOrganization(context.Background(), &models.Organization{ID: id.NewOrganizationID(), Slug: "PAWS"})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("case for unknown organization", func() {
		c := &models.Case{
			ID: id.NewCaseID(), OrganizationID: id.NewOrganizationID(), Title: "x",
			CareType: models.CareTypeSponsorship, Status: models.CaseStatusActive,
		}
		s.ErrorIs(s.store.CreateCase(context.Background(), c), sentinel.ErrNotFound)
	})
}

func (s *OrganizationStoreSuite) TestListCasesOrdered() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := s.newCase(func(c *models.Case) { c.CreatedAt = base.Add(time.Hour) })
	first := s.newCase(func(c *models.Case) { c.CreatedAt = base })

	cases, err := s.store.ListCases(s.ctx, s.org.ID)
	s.Require().NoError(err)
	s.Require().Len(cases, 2)
	s.Equal(first.ID, cases[0].ID)
	s.Equal(second.ID, cases[1].ID)
}

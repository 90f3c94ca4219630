package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"fasela/internal/donation/models"
	donationstore "fasela/internal/donation/store"
	orgmodels "fasela/internal/organization/models"
	orgstore "fasela/internal/organization/store"
	outboxmodels "fasela/internal/outbox/models"
	outboxstore "fasela/internal/outbox/store"
	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
	"fasela/pkg/testutil"
)

type recordingInvalidator struct {
	mu   sync.Mutex
	orgs []id.OrganizationID
}

func (r *recordingInvalidator) Invalidate(_ context.Context, orgID id.OrganizationID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orgs = append(r.orgs, orgID)
}

type failingAppender struct {
	cancel context.CancelFunc
}

func (a failingAppender) Append(context.Context, *outboxmodels.Event) error {
	if a.cancel != nil {
		a.cancel()
		return nil
	}
	return errors.New("outbox down")
}

type DonationServiceSuite struct {
	suite.Suite
	service     *Service
	donations   *donationstore.InMemory
	cases       *orgstore.InMemory
	outbox      *outboxstore.InMemory
	invalidator *recordingInvalidator
	org         *orgmodels.Organization
	kase        *orgmodels.Case
	admin       context.Context
	now         time.Time
}

func TestDonationServiceSuite(t *testing.T) {
	suite.Run(t, new(DonationServiceSuite))
}

func (s *DonationServiceSuite) SetupTest() {
	s.donations = donationstore.NewInMemory()
	s.cases = orgstore.NewInMemory()
	s.outbox = outboxstore.NewInMemory()
	s.invalidator = &recordingInvalidator{}
	s.service = New(s.donations, s.cases,
		WithEventAppender(s.outbox),
		WithReportInvalidator(s.invalidator),
	)

	s.now = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	s.org = &orgmodels.Organization{ID: id.NewOrganizationID(), Name: "Paws", Slug: "paws", Active: true, CreatedAt: s.now}
	s.Require().NoError(s.cases.CreateOrganization(context.Background(), s.org))
	s.kase = s.newCase(nil)
	s.admin = testutil.AtTime(testutil.AdminContext(s.org.ID), s.now)
}

func (s *DonationServiceSuite) newCase(mutate func(c *orgmodels.Case)) *orgmodels.Case {
	c := &orgmodels.Case{
		ID:             id.NewCaseID(),
		OrganizationID: s.org.ID,
		Title:          "Luna",
		MonthlyCost:    decimal.NewFromInt(120),
		MonthsNeeded:   6,
		CareType:       orgmodels.CareTypeSponsorship,
		Status:         orgmodels.CaseStatusActive,
		Published:      true,
		PaymentCode:    "LUNA-01",
		CreatedAt:      s.now,
	}
	if mutate != nil {
		mutate(c)
	}
	s.Require().NoError(s.cases.CreateCase(context.Background(), c))
	return c
}

func (s *DonationServiceSuite) donate(amount string) *models.Donation {
	d, err := s.service.Create(testutil.AtTime(context.Background(), s.now), models.CreateDonationRequest{
		CaseID:        s.kase.ID,
		Amount:        decimal.RequireFromString(amount),
		DonationType:  models.DonationTypeMonthly,
		MonthsPledged: 1,
		DonorEmail:    "Donor@Example.org",
	})
	s.Require().NoError(err)
	return d
}

func (s *DonationServiceSuite) assertCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, code), "expected %s, got %v", code, err)
}

func (s *DonationServiceSuite) TestCreate() {
	s.Run("anonymous donor creates a pending donation", func() {
		d := s.donate("50.00")

		s.Equal(models.StatusPending, d.Status)
		s.Equal(s.kase.ID, d.CaseID)
		s.Equal(s.org.ID, d.OrganizationID)
		s.Equal("LUNA-01", d.PaymentCode)
		s.Equal("donor@example.org", d.DonorEmail)
		s.True(d.TotalHandedOver.IsZero())
		s.Equal(s.now, d.CreatedAt)

		stored, err := s.service.Get(s.admin, d.ID)
		s.Require().NoError(err)
		s.Equal(d.ID, stored.ID)
	})

	s.Run("records an outbox event and invalidates reports", func() {
		s.outbox.Clear()
		s.invalidator.orgs = nil
		d := s.donate("10")

		events := s.outbox.Events()
		s.Require().Len(events, 1)
		s.Equal(outboxmodels.EventDonationCreated, events[0].EventType)
		s.Equal(d.ID.String(), events[0].AggregateID)
		s.Equal([]id.OrganizationID{s.org.ID}, s.invalidator.orgs)
	})

	s.Run("rejects invalid input before any write", func() {
		s.outbox.Clear()
		for _, amount := range []string{"0", "-1"} {
			_, err := s.service.Create(context.Background(), models.CreateDonationRequest{
				CaseID: s.kase.ID, Amount: decimal.RequireFromString(amount), DonationType: models.DonationTypeCustom,
			})
			s.assertCode(err, dErrors.CodeValidation)
		}
		_, err := s.service.Create(context.Background(), models.CreateDonationRequest{
			CaseID: s.kase.ID, Amount: decimal.NewFromInt(5), DonationType: models.DonationTypeMonthly,
		})
		s.assertCode(err, dErrors.CodeValidation)
		s.Empty(s.outbox.Events())
	})

	s.Run("rejects cases that do not accept donations", func() {
		closed := []*orgmodels.Case{
			s.newCase(func(c *orgmodels.Case) { c.Status = orgmodels.CaseStatusCompleted }),
			s.newCase(func(c *orgmodels.Case) { c.Published = false }),
			s.newCase(func(c *orgmodels.Case) { c.CareType = orgmodels.CareTypeCancelled }),
		}
		for _, c := range closed {
			_, err := s.service.Create(context.Background(), models.CreateDonationRequest{
				CaseID: c.ID, Amount: decimal.NewFromInt(5), DonationType: models.DonationTypeCustom,
			})
			s.assertCode(err, dErrors.CodeValidation)
		}

		_, err := s.service.Create(context.Background(), models.CreateDonationRequest{
			CaseID: id.NewCaseID(), Amount: decimal.NewFromInt(5), DonationType: models.DonationTypeCustom,
		})
		s.assertCode(err, dErrors.CodeValidation)
	})
}

func (s *DonationServiceSuite) TestConfirm() {
	s.Run("admin confirms a pending donation", func() {
		d := s.donate("50.00")
		caller := testutil.Admin(s.org.ID)
		ctx := testutil.AtTime(testutil.AsCaller(context.Background(), caller), s.now.Add(time.Hour))

		confirmed, err := s.service.Confirm(ctx, d.ID, models.ConfirmRequest{PaymentReference: " BANK-77 "})
		s.Require().NoError(err)

		s.Equal(models.StatusConfirmed, confirmed.Status)
		s.Equal("BANK-77", confirmed.PaymentReference)
		s.Equal(s.now.Add(time.Hour), *confirmed.ConfirmedAt)
		s.Equal(caller.UserID, *confirmed.ConfirmedBy)
		s.True(decimal.RequireFromString("50").Equal(confirmed.Amount))
	})

	s.Run("a second confirmation is an invalid transition", func() {
		d := s.donate("20")
		_, err := s.service.Confirm(s.admin, d.ID, models.ConfirmRequest{})
		s.Require().NoError(err)

		_, err = s.service.Confirm(s.admin, d.ID, models.ConfirmRequest{})
		s.assertCode(err, dErrors.CodeInvalidTransition)
	})

	s.Run("volunteers cannot confirm", func() {
		d := s.donate("20")
		_, err := s.service.Confirm(testutil.AsCaller(context.Background(), testutil.Volunteer(s.org.ID)), d.ID, models.ConfirmRequest{})
		s.assertCode(err, dErrors.CodeForbidden)
	})

	s.Run("anonymous callers cannot confirm", func() {
		d := s.donate("20")
		_, err := s.service.Confirm(context.Background(), d.ID, models.ConfirmRequest{})
		s.assertCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("admins of another organization see not found", func() {
		d := s.donate("20")
		_, err := s.service.Confirm(testutil.AdminContext(id.NewOrganizationID()), d.ID, models.ConfirmRequest{})
		s.assertCode(err, dErrors.CodeNotFound)

		unchanged, err := s.service.Get(s.admin, d.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, unchanged.Status)
	})
}

func (s *DonationServiceSuite) TestCancel() {
	s.Run("admin cancels a pending donation", func() {
		d := s.donate("15")
		cancelled, err := s.service.Cancel(s.admin, d.ID, models.CancelRequest{Notes: "donor changed mind"})
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, cancelled.Status)
		s.Equal("donor changed mind", cancelled.AdminNotes)
		s.Equal(s.now, *cancelled.CancelledAt)
	})

	s.Run("cancelling a confirmed donation fails and leaves it unchanged", func() {
		d := s.donate("100.00")
		confirmed, err := s.service.Confirm(s.admin, d.ID, models.ConfirmRequest{PaymentReference: "REF"})
		s.Require().NoError(err)

		_, err = s.service.Cancel(s.admin, d.ID, models.CancelRequest{})
		s.assertCode(err, dErrors.CodeInvalidTransition)

		after, err := s.service.Get(s.admin, d.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusConfirmed, after.Status)
		s.Equal(confirmed.ConfirmedAt, after.ConfirmedAt)
		s.Equal(confirmed.Version, after.Version)
	})

	s.Run("nothing leaves a terminal state", func() {
		d := s.donate("5")
		_, err := s.service.Cancel(s.admin, d.ID, models.CancelRequest{})
		s.Require().NoError(err)

		_, err = s.service.Confirm(s.admin, d.ID, models.ConfirmRequest{})
		s.assertCode(err, dErrors.CodeInvalidTransition)
		_, err = s.service.Cancel(s.admin, d.ID, models.CancelRequest{})
		s.assertCode(err, dErrors.CodeInvalidTransition)
	})

	s.Run("unknown donation is not found", func() {
		_, err := s.service.Cancel(s.admin, id.NewDonationID(), models.CancelRequest{})
		s.assertCode(err, dErrors.CodeNotFound)
	})
}

func (s *DonationServiceSuite) TestFailedTransitionLeavesDonationPending() {
	for name, cancelled := range map[string]bool{"event rejected": false, "cancelled mid-unit": true} {
		s.Run(name, func() {
			d := s.donate("30")
			ctx, cancel := context.WithCancel(s.admin)
			defer cancel()
			appender := failingAppender{}
			if cancelled {
				appender.cancel = cancel
			}
			svc := New(s.donations, s.cases, WithEventAppender(appender))

			_, err := svc.Confirm(ctx, d.ID, models.ConfirmRequest{PaymentReference: "REF"})
			s.Require().Error(err)

			after, err := s.service.Get(s.admin, d.ID)
			s.Require().NoError(err)
			s.Equal(models.StatusPending, after.Status)
			s.Nil(after.ConfirmedAt)
			s.Equal(d.Version, after.Version)

			_, err = s.service.Confirm(s.admin, d.ID, models.ConfirmRequest{})
			s.Require().NoError(err, "the donation can still be confirmed")
		})
	}
}

func (s *DonationServiceSuite) TestConcurrentTransitions() {
	d := s.donate("40")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(confirm bool) {
			defer wg.Done()
			var err error
			if confirm {
				_, err = s.service.Confirm(s.admin, d.ID, models.ConfirmRequest{})
			} else {
				_, err = s.service.Cancel(s.admin, d.ID, models.CancelRequest{})
			}
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), err)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	s.Equal(1, successes, "exactly one transition wins")
}

func (s *DonationServiceSuite) TestList() {
	other := s.newCase(func(c *orgmodels.Case) { c.PaymentCode = "MAX-02" })
	for i := 0; i < 3; i++ {
		s.donate("10")
	}
	_, err := s.service.Create(context.Background(), models.CreateDonationRequest{
		CaseID: other.ID, Amount: decimal.NewFromInt(7), DonationType: models.DonationTypeCustom,
	})
	s.Require().NoError(err)

	s.Run("pages with an exact total", func() {
		page, err := s.service.List(s.admin, models.ListFilter{Limit: 2})
		s.Require().NoError(err)
		s.Equal(4, page.Total)
		s.Len(page.Items, 2)
	})

	s.Run("filters by case and status", func() {
		page, err := s.service.List(s.admin, models.ListFilter{CaseID: &other.ID, Statuses: []models.Status{models.StatusPending}})
		s.Require().NoError(err)
		s.Equal(1, page.Total)
		s.Equal(other.ID, page.Items[0].CaseID)
	})

	s.Run("volunteers may list", func() {
		page, err := s.service.List(testutil.AsCaller(context.Background(), testutil.Volunteer(s.org.ID)), models.ListFilter{})
		s.Require().NoError(err)
		s.Equal(4, page.Total)
	})

	s.Run("other organizations see nothing", func() {
		page, err := s.service.List(testutil.AdminContext(id.NewOrganizationID()), models.ListFilter{})
		s.Require().NoError(err)
		s.Zero(page.Total)
		s.Empty(page.Items)
	})

	s.Run("anonymous callers are rejected", func() {
		_, err := s.service.List(context.Background(), models.ListFilter{})
		s.assertCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("plain users are forbidden", func() {
		caller := testutil.Volunteer(s.org.ID)
		caller.Role = id.RoleUser
		_, err := s.service.List(testutil.AsCaller(context.Background(), caller), models.ListFilter{})
		s.assertCode(err, dErrors.CodeForbidden)
	})
}

// Package store adapts the ledger stores into the read-only data source reports
// are built from.
package store

import (
	"context"

	donationmodels "fasela/internal/donation/models"
	handovermodels "fasela/internal/handover/models"
	orgmodels "fasela/internal/organization/models"
	id "fasela/pkg/domain"
)

type CaseReader interface {
	FindCase(ctx context.Context, caseID id.CaseID) (*orgmodels.Case, error)
	ListCases(ctx context.Context, orgID id.OrganizationID) ([]*orgmodels.Case, error)
}

type DonationReader interface {
	ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*donationmodels.Donation, error)
	ListByCase(ctx context.Context, caseID id.CaseID) ([]*donationmodels.Donation, error)
}

type HandoverReader interface {
	ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*handovermodels.Handover, error)
	ListByCase(ctx context.Context, caseID id.CaseID) ([]*handovermodels.Handover, error)
}

// Source reads cases, donations and handovers of one organization, or of one
// case when a case id is given.
type Source struct {
	cases     CaseReader
	donations DonationReader
	handovers HandoverReader
}

func NewSource(cases CaseReader, donations DonationReader, handovers HandoverReader) *Source {
	return &Source{cases: cases, donations: donations, handovers: handovers}
}

func (s *Source) FindCase(ctx context.Context, caseID id.CaseID) (*orgmodels.Case, error) {
	return s.cases.FindCase(ctx, caseID)
}

func (s *Source) ListCases(ctx context.Context, orgID id.OrganizationID) ([]*orgmodels.Case, error) {
	return s.cases.ListCases(ctx, orgID)
}

func (s *Source) ListDonations(ctx context.Context, orgID id.OrganizationID, caseID *id.CaseID) ([]*donationmodels.Donation, error) {
	if caseID != nil {
		return s.donations.ListByCase(ctx, *caseID)
	}
	return s.donations.ListByOrganization(ctx, orgID)
}

func (s *Source) ListHandovers(ctx context.Context, orgID id.OrganizationID, caseID *id.CaseID) ([]*handovermodels.Handover, error) {
	if caseID != nil {
		return s.handovers.ListByCase(ctx, *caseID)
	}
	return s.handovers.ListByOrganization(ctx, orgID)
}

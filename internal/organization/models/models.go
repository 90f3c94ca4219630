package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
)

// Organization is the tenant that owns cases, donations and handovers.
type Organization struct {
	ID        id.OrganizationID `json:"id"`
	Name      string            `json:"name"`
	Slug      string            `json:"slug"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
}

type CareType string

const (
	CareTypeSponsorship     CareType = "sponsorship"
	CareTypeOneTimeDonation CareType = "one_time_donation"
	CareTypeCancelled       CareType = "cancelled"
)

func (c CareType) IsValid() bool {
	switch c {
	case CareTypeSponsorship, CareTypeOneTimeDonation, CareTypeCancelled:
		return true
	}
	return false
}

type CaseStatus string

const (
	CaseStatusDraft     CaseStatus = "draft"
	CaseStatusActive    CaseStatus = "active"
	CaseStatusCompleted CaseStatus = "completed"
	CaseStatusArchived  CaseStatus = "archived"
)

func (s CaseStatus) IsValid() bool {
	switch s {
	case CaseStatusDraft, CaseStatusActive, CaseStatusCompleted, CaseStatusArchived:
		return true
	}
	return false
}

// Case is a beneficiary that donations are earmarked for. Case content is
// managed elsewhere; the ledger only reads it.
type Case struct {
	ID             id.CaseID         `json:"id"`
	OrganizationID id.OrganizationID `json:"organization_id"`
	Title          string            `json:"title"`
	MonthlyCost    decimal.Decimal   `json:"monthly_cost"`
	MonthsNeeded   int               `json:"months_needed"`
	MonthsCovered  int               `json:"months_covered"`
	CareType       CareType          `json:"care_type"`
	Status         CaseStatus        `json:"status"`
	Published      bool              `json:"published"`
	PaymentCode    string            `json:"payment_code"`
	CreatedAt      time.Time         `json:"created_at"`
}

// AcceptsDonations reports why a donation may not be created against the case.
func (c *Case) AcceptsDonations() error {
	switch {
	case c.Status != CaseStatusActive:
		return dErrors.New(dErrors.CodeValidation, "case is not active")
	case !c.Published:
		return dErrors.New(dErrors.CodeValidation, "case is not published")
	case c.CareType == CareTypeCancelled:
		return dErrors.New(dErrors.CodeValidation, "case care has been cancelled")
	}
	return nil
}

// TargetAmount is the funding goal: monthly cost times months needed.
func (c *Case) TargetAmount() decimal.Decimal {
	return c.MonthlyCost.Mul(decimal.NewFromInt(int64(c.MonthsNeeded)))
}

// Validate checks the structural fields of a case before it is stored.
func (c *Case) Validate() error {
	if c.ID.IsNil() || c.OrganizationID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "case and organization ids are required")
	}
	if c.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "case title is required")
	}
	if c.MonthlyCost.IsNegative() || c.MonthsNeeded < 0 || c.MonthsCovered < 0 {
		return dErrors.New(dErrors.CodeValidation, "case costs and months cannot be negative")
	}
	if !c.CareType.IsValid() || !c.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown case care type or status")
	}
	return nil
}

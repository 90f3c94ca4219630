package models

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
)

const (
	maxDonorNameLength = 200
	maxNotesLength     = 2000
	maxReferenceLength = 200
	maxMonthsPledged   = 120

	DefaultListLimit = 50
	MaxListLimit     = 200
)

// CreateDonationRequest is a donor's pledge against a case.
type CreateDonationRequest struct {
	CaseID        id.CaseID
	Amount        decimal.Decimal
	DonationType  DonationType
	MonthsPledged int
	DonorName     string
	DonorEmail    string
}

// Normalize trims donor fields and defaults months for custom donations.
func (r *CreateDonationRequest) Normalize() {
	r.DonorName = strings.TrimSpace(r.DonorName)
	r.DonorEmail = strings.ToLower(strings.TrimSpace(r.DonorEmail))
	r.DonationType = DonationType(strings.ToLower(strings.TrimSpace(string(r.DonationType))))
	if r.DonationType == DonationTypeCustom && r.MonthsPledged == 0 {
		r.MonthsPledged = 1
	}
}

func (r *CreateDonationRequest) Validate() error {
	if r.CaseID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "case id is required")
	}
	if err := id.RequirePositiveAmount(r.Amount); err != nil {
		return err
	}
	if !r.DonationType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "donation type must be monthly or custom")
	}
	if r.MonthsPledged < 1 {
		return dErrors.New(dErrors.CodeValidation, "months pledged must be at least 1")
	}
	if r.MonthsPledged > maxMonthsPledged {
		return dErrors.New(dErrors.CodeValidation, "months pledged is too large")
	}
	if len(r.DonorName) > maxDonorNameLength {
		return dErrors.New(dErrors.CodeValidation, "donor name is too long")
	}
	if r.DonorEmail != "" {
		addr, err := mail.ParseAddress(r.DonorEmail)
		if err != nil || addr.Address != r.DonorEmail {
			return dErrors.New(dErrors.CodeValidation, "donor email is invalid")
		}
	}
	return nil
}

type ConfirmRequest struct {
	PaymentReference string
	Notes            string
}

func (r *ConfirmRequest) Normalize() {
	r.PaymentReference = strings.TrimSpace(r.PaymentReference)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *ConfirmRequest) Validate() error {
	if len(r.PaymentReference) > maxReferenceLength {
		return dErrors.New(dErrors.CodeValidation, "payment reference is too long")
	}
	if len(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	return nil
}

type CancelRequest struct {
	Notes string
}

func (r *CancelRequest) Normalize() {
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *CancelRequest) Validate() error {
	if len(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	return nil
}

// ListFilter narrows a donation listing. From is inclusive, To exclusive.
type ListFilter struct {
	OrganizationID *id.OrganizationID
	CaseID         *id.CaseID
	Statuses       []Status
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

func (f *ListFilter) Validate() error {
	for _, s := range f.Statuses {
		if !s.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "unknown donation status: "+string(s))
		}
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return dErrors.New(dErrors.CodeValidation, "from must be before to")
	}
	return nil
}

// Matches applies the filter to one donation. Used by the in-memory store.
func (f *ListFilter) Matches(d *Donation) bool {
	if f.OrganizationID != nil && d.OrganizationID != *f.OrganizationID {
		return false
	}
	if f.CaseID != nil && d.CaseID != *f.CaseID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if d.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && d.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !d.CreatedAt.Before(*f.To) {
		return false
	}
	return true
}

// Page is one slice of a listing with the exact number of matching rows.
type Page struct {
	Items  []*Donation `json:"items"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

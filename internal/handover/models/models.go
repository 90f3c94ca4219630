package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
)

const maxNotesLength = 2000

// Handover is one disbursement of a confirmed donation to its case.
//
// Invariants:
//   - Amount is strictly positive
//   - CaseID and OrganizationID equal the owning donation's
//   - HandoverDate is a calendar day (UTC midnight) and never changes once recorded
type Handover struct {
	ID             id.HandoverID     `json:"id"`
	OrganizationID id.OrganizationID `json:"organization_id"`
	DonationID     id.DonationID     `json:"donation_id"`
	CaseID         id.CaseID         `json:"case_id"`
	Amount         decimal.Decimal   `json:"amount"`
	HandoverDate   time.Time         `json:"handover_date"`
	Notes          string            `json:"notes,omitempty"`
	CreatedBy      *id.UserID        `json:"created_by,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// AllocateRequest records a new handover, or amends ExistingHandoverID when set.
type AllocateRequest struct {
	DonationID         id.DonationID
	Amount             decimal.Decimal
	Date               time.Time
	Notes              string
	ExistingHandoverID *id.HandoverID
}

func (r *AllocateRequest) Normalize() {
	r.Notes = strings.TrimSpace(r.Notes)
	if !r.Date.IsZero() {
		r.Date = DateOnly(r.Date)
	}
}

func (r *AllocateRequest) Validate() error {
	if r.DonationID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "donation id is required")
	}
	if err := id.RequirePositiveAmount(r.Amount); err != nil {
		return err
	}
	if r.Date.IsZero() && !r.IsEdit() {
		return dErrors.New(dErrors.CodeValidation, "handover date is required")
	}
	if len(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	return nil
}

// IsEdit reports whether the request amends an existing handover.
func (r *AllocateRequest) IsEdit() bool {
	return r.ExistingHandoverID != nil
}

// CheckDateUnchanged rejects an amendment that names a different date than the
// stored handover. A zero date means the caller did not send one.
func (r *AllocateRequest) CheckDateUnchanged(stored time.Time) error {
	if r.Date.IsZero() || r.Date.Equal(DateOnly(stored)) {
		return nil
	}
	return dErrors.New(dErrors.CodeValidation,
		"handover date cannot be changed, handover is dated "+DateOnly(stored).Format(time.DateOnly))
}

// CheckAllocation fails with OverAllocation when others+amount would exceed the
// donation amount.
func CheckAllocation(donationAmount, others, amount decimal.Decimal) error {
	if others.Add(amount).GreaterThan(donationAmount) {
		remaining := donationAmount.Sub(others)
		return dErrors.New(dErrors.CodeOverAllocation,
			"handover of "+amount.StringFixed(id.AmountScale)+" exceeds remaining balance of "+remaining.StringFixed(id.AmountScale))
	}
	return nil
}

// DateOnly truncates t to its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Sum adds the amounts of hs, skipping the handover with id exclude.
func Sum(hs []*Handover, exclude *id.HandoverID) decimal.Decimal {
	total := decimal.Zero
	for _, h := range hs {
		if exclude != nil && h.ID == *exclude {
			continue
		}
		total = total.Add(h.Amount)
	}
	return total
}

// HandoverEvent is the payload of handover.* events on the ledger feed.
type HandoverEvent struct {
	HandoverID      id.HandoverID     `json:"handover_id"`
	DonationID      id.DonationID     `json:"donation_id"`
	OrganizationID  id.OrganizationID `json:"organization_id"`
	CaseID          id.CaseID         `json:"case_id"`
	Amount          decimal.Decimal   `json:"amount"`
	HandoverDate    string            `json:"handover_date"`
	TotalHandedOver decimal.Decimal   `json:"total_handed_over"`
	ActorID         id.UserID         `json:"actor_id"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

func NewHandoverEvent(h *Handover, totalHandedOver decimal.Decimal, actor id.UserID, now time.Time) HandoverEvent {
	return HandoverEvent{
		HandoverID:      h.ID,
		DonationID:      h.DonationID,
		OrganizationID:  h.OrganizationID,
		CaseID:          h.CaseID,
		Amount:          h.Amount,
		HandoverDate:    h.HandoverDate.Format(time.DateOnly),
		TotalHandedOver: totalHandedOver,
		ActorID:         actor,
		OccurredAt:      now,
	}
}

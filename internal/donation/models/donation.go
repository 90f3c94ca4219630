package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	// StatusRedeemed marks donations settled by the retired single-shot
	// redemption flow. It is terminal and counts as fully handed over.
	StatusRedeemed Status = "redeemed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusRedeemed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the ledger allows moving from s to target.
// Only pending donations move; confirmed, cancelled and redeemed are terminal.
func (s Status) CanTransitionTo(target Status) bool {
	if s != StatusPending {
		return false
	}
	return target == StatusConfirmed || target == StatusCancelled
}

// CountsAsConfirmed reports whether the donation's money has been received.
func (s Status) CountsAsConfirmed() bool {
	return s == StatusConfirmed || s == StatusRedeemed
}

type DonationType string

const (
	DonationTypeMonthly DonationType = "monthly"
	DonationTypeCustom  DonationType = "custom"
)

func (t DonationType) IsValid() bool {
	return t == DonationTypeMonthly || t == DonationTypeCustom
}

// Donation is the aggregate root of the ledger.
//
// Invariants:
//   - Amount > 0 and never changes
//   - CaseID and OrganizationID are fixed at creation
//   - Status moves pending→confirmed or pending→cancelled only
//   - TotalHandedOver equals the sum of the donation's handovers and never
//     exceeds Amount; it is written by the allocator, never by this package
type Donation struct {
	ID               id.DonationID     `json:"id"`
	OrganizationID   id.OrganizationID `json:"organization_id"`
	CaseID           id.CaseID         `json:"case_id"`
	DonorName        string            `json:"donor_name,omitempty"`
	DonorEmail       string            `json:"donor_email,omitempty"`
	Amount           decimal.Decimal   `json:"amount"`
	DonationType     DonationType      `json:"donation_type"`
	MonthsPledged    int               `json:"months_pledged"`
	PaymentCode      string            `json:"payment_code"`
	Status           Status            `json:"status"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	AdminNotes       string            `json:"admin_notes,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	ConfirmedAt      *time.Time        `json:"confirmed_at,omitempty"`
	ConfirmedBy      *id.UserID        `json:"confirmed_by,omitempty"`
	CancelledAt      *time.Time        `json:"cancelled_at,omitempty"`
	TotalHandedOver  decimal.Decimal   `json:"total_handed_over"`
	Version          int64             `json:"version"`
}

// HandedOver is the amount already passed to the case. Redeemed donations were
// settled in full by the legacy flow.
func (d *Donation) HandedOver() decimal.Decimal {
	if d.Status == StatusRedeemed {
		return d.Amount
	}
	return d.TotalHandedOver
}

// Remaining is the amount still to be handed over.
func (d *Donation) Remaining() decimal.Decimal {
	return d.Amount.Sub(d.HandedOver())
}

// CanConfirm checks the pending→confirmed transition.
// Use with ApplyConfirmation in Execute callbacks.
func (d *Donation) CanConfirm() error {
	if !d.Status.CanTransitionTo(StatusConfirmed) {
		return dErrors.New(dErrors.CodeInvalidTransition, "only pending donations can be confirmed, donation is "+string(d.Status))
	}
	return nil
}

// ApplyConfirmation records receipt of the payment. Call CanConfirm first.
func (d *Donation) ApplyConfirmation(paymentReference, notes string, actor id.UserID, now time.Time) {
	d.Status = StatusConfirmed
	d.PaymentReference = paymentReference
	if notes != "" {
		d.AdminNotes = notes
	}
	confirmedAt := now
	d.ConfirmedAt = &confirmedAt
	if !actor.IsNil() {
		by := actor
		d.ConfirmedBy = &by
	}
}

// CanCancel checks the pending→cancelled transition.
func (d *Donation) CanCancel() error {
	if !d.Status.CanTransitionTo(StatusCancelled) {
		return dErrors.New(dErrors.CodeInvalidTransition, "only pending donations can be cancelled, donation is "+string(d.Status))
	}
	return nil
}

// ApplyCancellation closes the donation without receipt. Call CanCancel first.
func (d *Donation) ApplyCancellation(notes string, now time.Time) {
	d.Status = StatusCancelled
	if notes != "" {
		d.AdminNotes = notes
	}
	cancelledAt := now
	d.CancelledAt = &cancelledAt
}

// CaseRef is the subset of a case a new donation copies.
type CaseRef struct {
	ID             id.CaseID
	OrganizationID id.OrganizationID
	PaymentCode    string
}

// NewDonation builds a pending donation against a case that accepts donations.
func NewDonation(donationID id.DonationID, c CaseRef, req CreateDonationRequest, now time.Time) *Donation {
	return &Donation{
		ID:              donationID,
		OrganizationID:  c.OrganizationID,
		CaseID:          c.ID,
		DonorName:       req.DonorName,
		DonorEmail:      req.DonorEmail,
		Amount:          req.Amount,
		DonationType:    req.DonationType,
		MonthsPledged:   req.MonthsPledged,
		PaymentCode:     c.PaymentCode,
		Status:          StatusPending,
		CreatedAt:       now,
		TotalHandedOver: decimal.Zero,
	}
}

package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "fasela/pkg/domain"
)

// LifecycleEvent is the payload of donation.* events on the ledger feed.
type LifecycleEvent struct {
	DonationID       id.DonationID     `json:"donation_id"`
	OrganizationID   id.OrganizationID `json:"organization_id"`
	CaseID           id.CaseID         `json:"case_id"`
	Amount           decimal.Decimal   `json:"amount"`
	DonationType     DonationType      `json:"donation_type"`
	Status           Status            `json:"status"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	ActorID          *id.UserID        `json:"actor_id,omitempty"`
	OccurredAt       time.Time         `json:"occurred_at"`
}

// NewLifecycleEvent snapshots d after a transition by actor.
func NewLifecycleEvent(d *Donation, actor id.UserID, now time.Time) LifecycleEvent {
	ev := LifecycleEvent{
		DonationID:       d.ID,
		OrganizationID:   d.OrganizationID,
		CaseID:           d.CaseID,
		Amount:           d.Amount,
		DonationType:     d.DonationType,
		Status:           d.Status,
		PaymentReference: d.PaymentReference,
		OccurredAt:       now,
	}
	if !actor.IsNil() {
		a := actor
		ev.ActorID = &a
	}
	return ev
}

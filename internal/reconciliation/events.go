// Package reconciliation merges the two historical ledger representations
// (legacy redeemed donations and per-period handover rows) into one stream of
// handover events and aggregates it into monthly and per-case totals.
//
// Everything here is a pure function over slices: no I/O, no clock, and output
// order depends only on the input values.
package reconciliation

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	donationmodels "fasela/internal/donation/models"
	handovermodels "fasela/internal/handover/models"
	id "fasela/pkg/domain"
)

// Source tells which representation a HandoverEvent came from.
type Source string

const (
	SourceLegacy Source = "legacy"
	SourceModern Source = "modern"
)

// HandoverEvent is one disbursement regardless of how it was recorded. Legacy
// events have a nil HandoverID.
type HandoverEvent struct {
	OrganizationID id.OrganizationID
	CaseID         id.CaseID
	DonationID     id.DonationID
	HandoverID     *id.HandoverID
	Amount         decimal.Decimal
	Date           time.Time
	Source         Source
}

// Normalize turns every handover row into a modern event and every redeemed
// donation with a confirmation date into a legacy event dated at confirmation.
// A redeemed donation that also owns handover rows contributes only its rows.
func Normalize(donations []*donationmodels.Donation, handovers []*handovermodels.Handover) []HandoverEvent {
	hasRows := make(map[id.DonationID]bool, len(handovers))
	events := make([]HandoverEvent, 0, len(handovers))
	for _, h := range handovers {
		hasRows[h.DonationID] = true
		hid := h.ID
		events = append(events, HandoverEvent{
			OrganizationID: h.OrganizationID,
			CaseID:         h.CaseID,
			DonationID:     h.DonationID,
			HandoverID:     &hid,
			Amount:         h.Amount,
			Date:           h.HandoverDate,
			Source:         SourceModern,
		})
	}
	for _, d := range donations {
		if d.Status != donationmodels.StatusRedeemed || d.ConfirmedAt == nil || hasRows[d.ID] {
			continue
		}
		events = append(events, HandoverEvent{
			OrganizationID: d.OrganizationID,
			CaseID:         d.CaseID,
			DonationID:     d.ID,
			Amount:         d.Amount,
			Date:           *d.ConfirmedAt,
			Source:         SourceLegacy,
		})
	}
	slices.SortFunc(events, compareEvents)
	return events
}

func compareEvents(a, b HandoverEvent) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	if c := cmp.Compare(a.DonationID.String(), b.DonationID.String()); c != 0 {
		return c
	}
	return cmp.Compare(handoverKey(a), handoverKey(b))
}

func handoverKey(e HandoverEvent) string {
	if e.HandoverID == nil {
		return ""
	}
	return e.HandoverID.String()
}

// FilterEvents keeps events dated in [from, to). A nil bound is open.
func FilterEvents(events []HandoverEvent, from, to *time.Time) []HandoverEvent {
	out := make([]HandoverEvent, 0, len(events))
	for _, e := range events {
		if from != nil && e.Date.Before(*from) {
			continue
		}
		if to != nil && !e.Date.Before(*to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

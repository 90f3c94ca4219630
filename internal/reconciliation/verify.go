package reconciliation

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	donationmodels "fasela/internal/donation/models"
	handovermodels "fasela/internal/handover/models"
	id "fasela/pkg/domain"
)

// FaultKind names a broken ledger invariant.
type FaultKind string

const (
	FaultOverAllocated         FaultKind = "over_allocated"
	FaultCachedTotalMismatch   FaultKind = "cached_total_mismatch"
	FaultCaseMismatch          FaultKind = "case_mismatch"
	FaultOrphanHandover        FaultKind = "orphan_handover"
	FaultLegacyWithHandovers   FaultKind = "legacy_with_handovers"
	FaultLegacyUndated         FaultKind = "legacy_undated"
	FaultHandoverOnUnconfirmed FaultKind = "handover_on_unconfirmed"
	FaultNegativeRemaining     FaultKind = "negative_remaining"
)

// Fault is one integrity finding. Expected and Actual carry the amounts that
// disagree, when the fault is about money.
type Fault struct {
	Kind       FaultKind        `json:"kind"`
	CaseID     *id.CaseID       `json:"case_id,omitempty"`
	DonationID *id.DonationID   `json:"donation_id,omitempty"`
	HandoverID *id.HandoverID   `json:"handover_id,omitempty"`
	Expected   *decimal.Decimal `json:"expected,omitempty"`
	Actual     *decimal.Decimal `json:"actual,omitempty"`
}

// Verify checks donations and handovers of one organization against the ledger
// invariants and returns every violation, sorted by kind then ids.
func Verify(donations []*donationmodels.Donation, handovers []*handovermodels.Handover) []Fault {
	var faults []Fault
	byID := make(map[id.DonationID]*donationmodels.Donation, len(donations))
	for _, d := range donations {
		byID[d.ID] = d
	}

	sums := make(map[id.DonationID]decimal.Decimal)
	for _, h := range handovers {
		d, ok := byID[h.DonationID]
		if !ok {
			faults = append(faults, handoverFault(FaultOrphanHandover, h))
			continue
		}
		sums[h.DonationID] = sums[h.DonationID].Add(h.Amount)
		if h.CaseID != d.CaseID {
			f := handoverFault(FaultCaseMismatch, h)
			f.CaseID = ptr(d.CaseID)
			faults = append(faults, f)
		}
	}

	for _, d := range donations {
		sum, hasRows := sums[d.ID]
		if !hasRows {
			sum = decimal.Zero
		}
		switch d.Status {
		case donationmodels.StatusRedeemed:
			if hasRows {
				faults = append(faults, donationFault(FaultLegacyWithHandovers, d))
			}
			if d.ConfirmedAt == nil && !hasRows {
				faults = append(faults, donationFault(FaultLegacyUndated, d))
			}
		case donationmodels.StatusConfirmed:
			if !d.TotalHandedOver.Equal(sum) {
				f := donationFault(FaultCachedTotalMismatch, d)
				f.Expected, f.Actual = ptr(sum), ptr(d.TotalHandedOver)
				faults = append(faults, f)
			}
		default:
			if hasRows {
				faults = append(faults, donationFault(FaultHandoverOnUnconfirmed, d))
			}
		}
		if sum.GreaterThan(d.Amount) {
			f := donationFault(FaultOverAllocated, d)
			f.Expected, f.Actual = ptr(d.Amount), ptr(sum)
			faults = append(faults, f)
		}
	}

	for _, t := range CaseTotals(donations, Normalize(donations, handovers)) {
		if t.RemainingAmount.IsNegative() {
			faults = append(faults, Fault{
				Kind:     FaultNegativeRemaining,
				CaseID:   ptr(t.CaseID),
				Expected: ptr(t.ConfirmedAmount),
				Actual:   ptr(t.HandedOverAmount),
			})
		}
	}

	slices.SortFunc(faults, compareFaults)
	return faults
}

func donationFault(kind FaultKind, d *donationmodels.Donation) Fault {
	return Fault{Kind: kind, CaseID: ptr(d.CaseID), DonationID: ptr(d.ID)}
}

func handoverFault(kind FaultKind, h *handovermodels.Handover) Fault {
	return Fault{Kind: kind, CaseID: ptr(h.CaseID), DonationID: ptr(h.DonationID), HandoverID: ptr(h.ID)}
}

func ptr[T any](v T) *T {
	return &v
}

func compareFaults(a, b Fault) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(idString(a.CaseID), idString(b.CaseID)); c != 0 {
		return c
	}
	if c := cmp.Compare(idString(a.DonationID), idString(b.DonationID)); c != 0 {
		return c
	}
	return cmp.Compare(idString(a.HandoverID), idString(b.HandoverID))
}

func idString[T interface{ String() string }](v *T) string {
	if v == nil {
		return ""
	}
	return (*v).String()
}

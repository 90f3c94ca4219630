package reconciliation

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	donationmodels "fasela/internal/donation/models"
	id "fasela/pkg/domain"
)

// CaseTotal is the money position of one case.
//
// ConfirmedAmount counts confirmed and redeemed pledges regardless of how much
// was disbursed. RemainingAmount may be negative; that is an integrity fault and
// is reported as-is.
type CaseTotal struct {
	CaseID           id.CaseID
	OrganizationID   id.OrganizationID
	ConfirmedAmount  decimal.Decimal
	HandedOverAmount decimal.Decimal
	RemainingAmount  decimal.Decimal
	PendingCount     int
	PendingAmount    decimal.Decimal
}

// CaseTotals computes one CaseTotal per case seen in donations or events,
// ordered by case id.
func CaseTotals(donations []*donationmodels.Donation, events []HandoverEvent) []CaseTotal {
	totals := make(map[id.CaseID]*CaseTotal)
	get := func(caseID id.CaseID, orgID id.OrganizationID) *CaseTotal {
		t, ok := totals[caseID]
		if !ok {
			t = &CaseTotal{
				CaseID:           caseID,
				OrganizationID:   orgID,
				ConfirmedAmount:  decimal.Zero,
				HandedOverAmount: decimal.Zero,
				PendingAmount:    decimal.Zero,
			}
			totals[caseID] = t
		}
		return t
	}

	for _, d := range donations {
		t := get(d.CaseID, d.OrganizationID)
		switch {
		case d.Status.CountsAsConfirmed():
			t.ConfirmedAmount = t.ConfirmedAmount.Add(d.Amount)
		case d.Status == donationmodels.StatusPending:
			t.PendingCount++
			t.PendingAmount = t.PendingAmount.Add(d.Amount)
		}
	}
	for _, e := range events {
		t := get(e.CaseID, e.OrganizationID)
		t.HandedOverAmount = t.HandedOverAmount.Add(e.Amount)
	}

	out := make([]CaseTotal, 0, len(totals))
	for _, t := range totals {
		t.RemainingAmount = t.ConfirmedAmount.Sub(t.HandedOverAmount)
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b CaseTotal) int {
		return cmp.Compare(a.CaseID.String(), b.CaseID.String())
	})
	return out
}

// TotalsByCase indexes totals by case id.
func TotalsByCase(totals []CaseTotal) map[id.CaseID]CaseTotal {
	out := make(map[id.CaseID]CaseTotal, len(totals))
	for _, t := range totals {
		out[t.CaseID] = t
	}
	return out
}

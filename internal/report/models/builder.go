package models

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	donationmodels "fasela/internal/donation/models"
	handovermodels "fasela/internal/handover/models"
	orgmodels "fasela/internal/organization/models"
	"fasela/internal/reconciliation"
	id "fasela/pkg/domain"
)

// DashboardMonths is how many monthly buckets the dashboard shows.
const DashboardMonths = 12

// Snapshot is the ledger of one organization (or one case) as loaded for a
// report.
type Snapshot struct {
	Cases     []*orgmodels.Case
	Donations []*donationmodels.Donation
	Handovers []*handovermodels.Handover
}

// Events normalizes the snapshot into handover events.
func (s *Snapshot) Events() []reconciliation.HandoverEvent {
	return reconciliation.Normalize(s.Donations, s.Handovers)
}

// BuildCaseSummary combines case metadata with its reconciled totals. c may be
// nil for a case that is referenced by the ledger but was not loaded.
func BuildCaseSummary(c *orgmodels.Case, total reconciliation.CaseTotal) CaseFinancialSummary {
	s := CaseFinancialSummary{
		CaseID:                 total.CaseID,
		MonthlyCost:            decimal.Zero,
		TargetAmount:           decimal.Zero,
		ConfirmedAmount:        total.ConfirmedAmount,
		HandedOverAmount:       total.HandedOverAmount,
		RemainingAmount:        total.RemainingAmount,
		PendingDonationsCount:  total.PendingCount,
		PendingDonationsAmount: total.PendingAmount,
	}
	if c != nil {
		s.Title = c.Title
		s.MonthlyCost = c.MonthlyCost
		s.TargetAmount = c.TargetAmount()
		s.MonthsSecured = MonthsSecured(total.ConfirmedAmount, c.MonthlyCost)
	}
	return s
}

// MonthsSecured is how many whole months of care the confirmed amount pays for.
func MonthsSecured(confirmed, monthlyCost decimal.Decimal) int {
	if !monthlyCost.IsPositive() || !confirmed.IsPositive() {
		return 0
	}
	return int(confirmed.Div(monthlyCost).Floor().IntPart())
}

func emptyTotal(caseID id.CaseID, orgID id.OrganizationID) reconciliation.CaseTotal {
	return reconciliation.CaseTotal{
		CaseID:           caseID,
		OrganizationID:   orgID,
		ConfirmedAmount:  decimal.Zero,
		HandedOverAmount: decimal.Zero,
		RemainingAmount:  decimal.Zero,
		PendingAmount:    decimal.Zero,
	}
}

// BuildOrganizationSummary summarizes every loaded case, plus any case the ledger
// references that was not loaded, in case id order. Organization totals are the
// sum of the case summaries.
func BuildOrganizationSummary(orgID id.OrganizationID, snap *Snapshot) *OrganizationSummary {
	totals := reconciliation.CaseTotals(snap.Donations, snap.Events())
	byCase := reconciliation.TotalsByCase(totals)

	known := make(map[id.CaseID]bool, len(snap.Cases))
	merged := make([]reconciliation.CaseTotal, 0, len(totals)+len(snap.Cases))
	cases := make(map[id.CaseID]*orgmodels.Case, len(snap.Cases))
	for _, c := range snap.Cases {
		known[c.ID] = true
		cases[c.ID] = c
		if t, ok := byCase[c.ID]; ok {
			merged = append(merged, t)
		} else {
			merged = append(merged, emptyTotal(c.ID, orgID))
		}
	}
	for _, t := range totals {
		if !known[t.CaseID] {
			merged = append(merged, t)
		}
	}
	sortTotals(merged)

	out := &OrganizationSummary{
		OrganizationID: orgID,
		Totals:         ZeroTotals(),
		Cases:          make([]CaseFinancialSummary, 0, len(merged)),
		Faults:         reconciliation.Verify(snap.Donations, snap.Handovers),
	}
	for _, t := range merged {
		cs := BuildCaseSummary(cases[t.CaseID], t)
		out.Cases = append(out.Cases, cs)
		out.Totals = out.Totals.Add(cs)
	}
	out.CaseCount = len(out.Cases)
	if out.Faults == nil {
		out.Faults = []reconciliation.Fault{}
	}
	return out
}

// BuildMonthlyReport buckets the snapshot's handover events dated in [from, to).
func BuildMonthlyReport(orgID id.OrganizationID, snap *Snapshot, from, to *time.Time) *MonthlyReport {
	events := reconciliation.FilterEvents(snap.Events(), from, to)
	return &MonthlyReport{
		OrganizationID: orgID,
		From:           from,
		To:             to,
		Months:         reconciliation.MonthlySummaries(events),
	}
}

func BuildIntegrityReport(orgID id.OrganizationID, snap *Snapshot) *IntegrityReport {
	faults := reconciliation.Verify(snap.Donations, snap.Handovers)
	if faults == nil {
		faults = []reconciliation.Fault{}
	}
	return &IntegrityReport{
		OrganizationID: orgID,
		DonationCount:  len(snap.Donations),
		HandoverCount:  len(snap.Handovers),
		Faults:         faults,
	}
}

func BuildDashboard(summary *OrganizationSummary, monthly *MonthlyReport) *Dashboard {
	return &Dashboard{
		OrganizationID: summary.OrganizationID,
		Totals:         summary.Totals,
		CaseCount:      summary.CaseCount,
		RecentMonths:   reconciliation.LastMonths(monthly.Months, DashboardMonths),
		FaultCount:     len(summary.Faults),
	}
}

// DegradedDashboard is the placeholder served when the dashboard cannot be built.
func DegradedDashboard(orgID id.OrganizationID) *Dashboard {
	return &Dashboard{
		OrganizationID: orgID,
		Totals:         ZeroTotals(),
		RecentMonths:   []reconciliation.MonthlyHandoverSummary{},
		Degraded:       true,
	}
}

func sortTotals(ts []reconciliation.CaseTotal) {
	slices.SortFunc(ts, func(a, b reconciliation.CaseTotal) int {
		return cmp.Compare(a.CaseID.String(), b.CaseID.String())
	})
}

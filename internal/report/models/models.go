package models

import (
	"time"

	"github.com/shopspring/decimal"

	"fasela/internal/reconciliation"
	id "fasela/pkg/domain"
)

// CaseFinancialSummary is the money position of one case.
type CaseFinancialSummary struct {
	CaseID                 id.CaseID       `json:"case_id"`
	Title                  string          `json:"title"`
	MonthlyCost            decimal.Decimal `json:"monthly_cost"`
	TargetAmount           decimal.Decimal `json:"target_amount"`
	ConfirmedAmount        decimal.Decimal `json:"confirmed_amount"`
	HandedOverAmount       decimal.Decimal `json:"handed_over_amount"`
	RemainingAmount        decimal.Decimal `json:"remaining_amount"`
	PendingDonationsCount  int             `json:"pending_donations_count"`
	PendingDonationsAmount decimal.Decimal `json:"pending_donations_amount"`
	MonthsSecured          int             `json:"months_secured"`
}

// Totals sums a set of case summaries.
type Totals struct {
	ConfirmedAmount        decimal.Decimal `json:"confirmed_amount"`
	HandedOverAmount       decimal.Decimal `json:"handed_over_amount"`
	RemainingAmount        decimal.Decimal `json:"remaining_amount"`
	PendingDonationsCount  int             `json:"pending_donations_count"`
	PendingDonationsAmount decimal.Decimal `json:"pending_donations_amount"`
}

func ZeroTotals() Totals {
	return Totals{
		ConfirmedAmount:        decimal.Zero,
		HandedOverAmount:       decimal.Zero,
		RemainingAmount:        decimal.Zero,
		PendingDonationsAmount: decimal.Zero,
	}
}

// Add accumulates one case summary.
func (t Totals) Add(c CaseFinancialSummary) Totals {
	return Totals{
		ConfirmedAmount:        t.ConfirmedAmount.Add(c.ConfirmedAmount),
		HandedOverAmount:       t.HandedOverAmount.Add(c.HandedOverAmount),
		RemainingAmount:        t.RemainingAmount.Add(c.RemainingAmount),
		PendingDonationsCount:  t.PendingDonationsCount + c.PendingDonationsCount,
		PendingDonationsAmount: t.PendingDonationsAmount.Add(c.PendingDonationsAmount),
	}
}

// OrganizationSummary aggregates every case of one organization. Faults lists
// ledger integrity violations found while building it.
type OrganizationSummary struct {
	OrganizationID id.OrganizationID      `json:"organization_id"`
	CaseCount      int                    `json:"case_count"`
	Totals         Totals                 `json:"totals"`
	Cases          []CaseFinancialSummary `json:"cases"`
	Faults         []reconciliation.Fault `json:"faults"`
}

// MonthlyReport lists handover buckets, newest month first.
type MonthlyReport struct {
	OrganizationID id.OrganizationID                       `json:"organization_id"`
	From           *time.Time                              `json:"from,omitempty"`
	To             *time.Time                              `json:"to,omitempty"`
	Months         []reconciliation.MonthlyHandoverSummary `json:"months"`
}

// IntegrityReport is the result of verifying one organization's ledger.
type IntegrityReport struct {
	OrganizationID id.OrganizationID      `json:"organization_id"`
	DonationCount  int                    `json:"donation_count"`
	HandoverCount  int                    `json:"handover_count"`
	Faults         []reconciliation.Fault `json:"faults"`
}

func (r *IntegrityReport) Healthy() bool {
	return len(r.Faults) == 0
}

// Dashboard is the overview widget. Degraded is set when it could not be built;
// the remaining fields are then empty.
type Dashboard struct {
	OrganizationID id.OrganizationID                       `json:"organization_id"`
	Totals         Totals                                  `json:"totals"`
	CaseCount      int                                     `json:"case_count"`
	RecentMonths   []reconciliation.MonthlyHandoverSummary `json:"recent_months"`
	FaultCount     int                                     `json:"fault_count"`
	Degraded       bool                                    `json:"degraded"`
}

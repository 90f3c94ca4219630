package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"fasela/internal/reconciliation"
	"fasela/internal/report/models"
	id "fasela/pkg/domain"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(id.AmountScale)
}

type CaseSummaryResponse struct {
	CaseID                 string `json:"case_id"`
	Title                  string `json:"title"`
	MonthlyCost            string `json:"monthly_cost"`
	TargetAmount           string `json:"target_amount"`
	ConfirmedAmount        string `json:"confirmed_amount"`
	HandedOverAmount       string `json:"handed_over_amount"`
	RemainingAmount        string `json:"remaining_amount"`
	PendingDonationsCount  int    `json:"pending_donations_count"`
	PendingDonationsAmount string `json:"pending_donations_amount"`
	MonthsSecured          int    `json:"months_secured"`
}

type TotalsResponse struct {
	ConfirmedAmount        string `json:"confirmed_amount"`
	HandedOverAmount       string `json:"handed_over_amount"`
	RemainingAmount        string `json:"remaining_amount"`
	PendingDonationsCount  int    `json:"pending_donations_count"`
	PendingDonationsAmount string `json:"pending_donations_amount"`
}

type FaultResponse struct {
	Kind       string `json:"kind"`
	CaseID     string `json:"case_id,omitempty"`
	DonationID string `json:"donation_id,omitempty"`
	HandoverID string `json:"handover_id,omitempty"`
	Expected   string `json:"expected,omitempty"`
	Actual     string `json:"actual,omitempty"`
}

type OrganizationSummaryResponse struct {
	OrganizationID string                `json:"organization_id"`
	CaseCount      int                   `json:"case_count"`
	Totals         TotalsResponse        `json:"totals"`
	Cases          []CaseSummaryResponse `json:"cases"`
	Faults         []FaultResponse       `json:"faults"`
}

type MonthResponse struct {
	Month           string `json:"month"`
	Year            int    `json:"year"`
	MonthNum        int    `json:"month_num"`
	TotalAmount     string `json:"total_amount"`
	HandoverCount   int    `json:"handover_count"`
	UniqueCaseCount int    `json:"unique_case_count"`
	LegacyAmount    string `json:"legacy_amount"`
}

type MonthlyResponse struct {
	OrganizationID string          `json:"organization_id"`
	From           *time.Time      `json:"from,omitempty"`
	To             *time.Time      `json:"to,omitempty"`
	Months         []MonthResponse `json:"months"`
}

type IntegrityResponse struct {
	OrganizationID string          `json:"organization_id"`
	Healthy        bool            `json:"healthy"`
	DonationCount  int             `json:"donation_count"`
	HandoverCount  int             `json:"handover_count"`
	Faults         []FaultResponse `json:"faults"`
}

type DashboardResponse struct {
	OrganizationID string          `json:"organization_id"`
	Degraded       bool            `json:"degraded"`
	CaseCount      int             `json:"case_count"`
	FaultCount     int             `json:"fault_count"`
	Totals         TotalsResponse  `json:"totals"`
	RecentMonths   []MonthResponse `json:"recent_months"`
}

func toCaseSummary(c *models.CaseFinancialSummary) CaseSummaryResponse {
	return CaseSummaryResponse{
		CaseID:                 c.CaseID.String(),
		Title:                  c.Title,
		MonthlyCost:            money(c.MonthlyCost),
		TargetAmount:           money(c.TargetAmount),
		ConfirmedAmount:        money(c.ConfirmedAmount),
		HandedOverAmount:       money(c.HandedOverAmount),
		RemainingAmount:        money(c.RemainingAmount),
		PendingDonationsCount:  c.PendingDonationsCount,
		PendingDonationsAmount: money(c.PendingDonationsAmount),
		MonthsSecured:          c.MonthsSecured,
	}
}

func toTotals(t models.Totals) TotalsResponse {
	return TotalsResponse{
		ConfirmedAmount:        money(t.ConfirmedAmount),
		HandedOverAmount:       money(t.HandedOverAmount),
		RemainingAmount:        money(t.RemainingAmount),
		PendingDonationsCount:  t.PendingDonationsCount,
		PendingDonationsAmount: money(t.PendingDonationsAmount),
	}
}

func toFaults(faults []reconciliation.Fault) []FaultResponse {
	out := make([]FaultResponse, 0, len(faults))
	for _, f := range faults {
		r := FaultResponse{Kind: string(f.Kind)}
		if f.CaseID != nil {
			r.CaseID = f.CaseID.String()
		}
		if f.DonationID != nil {
			r.DonationID = f.DonationID.String()
		}
		if f.HandoverID != nil {
			r.HandoverID = f.HandoverID.String()
		}
		if f.Expected != nil {
			r.Expected = money(*f.Expected)
		}
		if f.Actual != nil {
			r.Actual = money(*f.Actual)
		}
		out = append(out, r)
	}
	return out
}

func toMonths(months []reconciliation.MonthlyHandoverSummary) []MonthResponse {
	out := make([]MonthResponse, 0, len(months))
	for _, m := range months {
		out = append(out, MonthResponse{
			Month:           m.Month,
			Year:            m.Year,
			MonthNum:        m.MonthNum,
			TotalAmount:     money(m.TotalAmount),
			HandoverCount:   m.HandoverCount,
			UniqueCaseCount: m.UniqueCaseCount,
			LegacyAmount:    money(m.LegacyAmount),
		})
	}
	return out
}

func toOrganizationSummary(s *models.OrganizationSummary) OrganizationSummaryResponse {
	cases := make([]CaseSummaryResponse, 0, len(s.Cases))
	for i := range s.Cases {
		cases = append(cases, toCaseSummary(&s.Cases[i]))
	}
	return OrganizationSummaryResponse{
		OrganizationID: s.OrganizationID.String(),
		CaseCount:      s.CaseCount,
		Totals:         toTotals(s.Totals),
		Cases:          cases,
		Faults:         toFaults(s.Faults),
	}
}

func toMonthly(r *models.MonthlyReport) MonthlyResponse {
	return MonthlyResponse{
		OrganizationID: r.OrganizationID.String(),
		From:           r.From,
		To:             r.To,
		Months:         toMonths(r.Months),
	}
}

func toIntegrity(r *models.IntegrityReport) IntegrityResponse {
	return IntegrityResponse{
		OrganizationID: r.OrganizationID.String(),
		Healthy:        r.Healthy(),
		DonationCount:  r.DonationCount,
		HandoverCount:  r.HandoverCount,
		Faults:         toFaults(r.Faults),
	}
}

func toDashboard(d *models.Dashboard) DashboardResponse {
	return DashboardResponse{
		OrganizationID: d.OrganizationID.String(),
		Degraded:       d.Degraded,
		CaseCount:      d.CaseCount,
		FaultCount:     d.FaultCount,
		Totals:         toTotals(d.Totals),
		RecentMonths:   toMonths(d.RecentMonths),
	}
}

package reconciliation

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	id "fasela/pkg/domain"
)

// MonthlyHandoverSummary aggregates the events of one calendar month (UTC).
type MonthlyHandoverSummary struct {
	Month           string          `json:"month"`
	Year            int             `json:"year"`
	MonthNum        int             `json:"month_num"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	HandoverCount   int             `json:"handover_count"`
	UniqueCaseCount int             `json:"unique_case_count"`
	LegacyAmount    decimal.Decimal `json:"legacy_amount"`
}

type monthKey struct {
	year  int
	month time.Month
}

// MonthlySummaries buckets events by the year and month of their date, newest
// month first.
func MonthlySummaries(events []HandoverEvent) []MonthlyHandoverSummary {
	buckets := make(map[monthKey]*MonthlyHandoverSummary)
	cases := make(map[monthKey]map[id.CaseID]struct{})
	for _, e := range events {
		y, m, _ := e.Date.UTC().Date()
		key := monthKey{year: y, month: m}
		b, ok := buckets[key]
		if !ok {
			b = &MonthlyHandoverSummary{
				Month:        fmt.Sprintf("%04d-%02d", y, int(m)),
				Year:         y,
				MonthNum:     int(m),
				TotalAmount:  decimal.Zero,
				LegacyAmount: decimal.Zero,
			}
			buckets[key] = b
			cases[key] = make(map[id.CaseID]struct{})
		}
		b.TotalAmount = b.TotalAmount.Add(e.Amount)
		b.HandoverCount++
		if e.Source == SourceLegacy {
			b.LegacyAmount = b.LegacyAmount.Add(e.Amount)
		}
		cases[key][e.CaseID] = struct{}{}
	}

	out := make([]MonthlyHandoverSummary, 0, len(buckets))
	for key, b := range buckets {
		b.UniqueCaseCount = len(cases[key])
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b MonthlyHandoverSummary) int {
		if a.Year != b.Year {
			return b.Year - a.Year
		}
		return b.MonthNum - a.MonthNum
	})
	return out
}

// LastMonths keeps the n most recent buckets of summaries, which must already be
// ordered newest first.
func LastMonths(summaries []MonthlyHandoverSummary, n int) []MonthlyHandoverSummary {
	if n < 0 || len(summaries) <= n {
		return summaries
	}
	return summaries[:n]
}

package domain

import (
	"strings"

	"github.com/shopspring/decimal"

	dErrors "fasela/pkg/domain-errors"
)

// AmountScale is the number of fractional digits stored for money.
const AmountScale = 2

// MaxAmount is the exclusive upper bound of a single amount. Money columns are
// NUMERIC(12,2), which holds at most ten integer digits.
var MaxAmount = decimal.New(1, 10)

// ParseAmount converts user input into a strictly positive amount with at most
// two fractional digits. Both "12.34" and "12,34" are accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE+") {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, "invalid amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, "invalid amount")
	}
	if err := RequirePositiveAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// RequirePositiveAmount enforces 0 < amount < MaxAmount with at most two
// fractional digits.
func RequirePositiveAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "amount must be greater than zero")
	}
	if d.GreaterThanOrEqual(MaxAmount) {
		return dErrors.New(dErrors.CodeValidation, "amount must be less than "+MaxAmount.String())
	}
	if !d.Equal(d.Truncate(AmountScale)) {
		return dErrors.New(dErrors.CodeValidation, "amount must have at most two decimal places")
	}
	return nil
}

// SumAmounts adds amounts exactly.
func SumAmounts(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

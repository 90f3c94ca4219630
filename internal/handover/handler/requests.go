package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
)

// AllocateRequest is the body of POST and PUT handover endpoints. handover_date
// is required on POST. On PUT it may be omitted; when sent it must match the
// stored date, which never changes.
type AllocateRequest struct {
	Amount       string `json:"amount"`
	HandoverDate string `json:"handover_date"`
	Notes        string `json:"notes"`

	parsedAmount decimal.Decimal
	parsedDate   time.Time
}

func (r *AllocateRequest) Validate() error {
	amount, err := id.ParseAmount(r.Amount)
	if err != nil {
		return err
	}
	r.parsedAmount = amount

	date := strings.TrimSpace(r.HandoverDate)
	if date == "" {
		return nil
	}
	r.parsedDate, err = time.Parse(time.DateOnly, date)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "handover_date must be YYYY-MM-DD")
	}
	return nil
}

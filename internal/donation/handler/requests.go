package handler

import (
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"fasela/internal/donation/models"
	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
	strutil "fasela/pkg/platform/strings"
)

// CreateDonationRequest is the body of POST /cases/{caseID}/donations.
type CreateDonationRequest struct {
	Amount        string `json:"amount"`
	DonationType  string `json:"donation_type"`
	MonthsPledged int    `json:"months_pledged"`
	DonorName     string `json:"donor_name"`
	DonorEmail    string `json:"donor_email"`

	parsedAmount decimal.Decimal
}

// Validate parses the amount. Business rules are checked by the service.
func (r *CreateDonationRequest) Validate() error {
	amount, err := id.ParseAmount(r.Amount)
	if err != nil {
		return err
	}
	r.parsedAmount = amount
	return nil
}

func (r *CreateDonationRequest) toModel(caseID id.CaseID) models.CreateDonationRequest {
	return models.CreateDonationRequest{
		CaseID:        caseID,
		Amount:        r.parsedAmount,
		DonationType:  models.DonationType(r.DonationType),
		MonthsPledged: r.MonthsPledged,
		DonorName:     r.DonorName,
		DonorEmail:    r.DonorEmail,
	}
}

type ConfirmRequest struct {
	PaymentReference string `json:"payment_reference"`
	Notes            string `json:"notes"`
}

func (r *ConfirmRequest) Validate() error { return nil }

type CancelRequest struct {
	Notes string `json:"notes"`
}

func (r *CancelRequest) Validate() error { return nil }

// parseListFilter reads case_id, status (repeatable or comma separated), from,
// to, limit and offset. Dates accept RFC 3339 or YYYY-MM-DD.
func parseListFilter(q url.Values) (models.ListFilter, error) {
	var f models.ListFilter
	if v := q.Get("case_id"); v != "" {
		caseID, err := id.ParseCaseID(v)
		if err != nil {
			return f, err
		}
		f.CaseID = &caseID
	}
	for _, s := range strutil.NormalizeList(q["status"]) {
		f.Statuses = append(f.Statuses, models.Status(s))
	}
	var err error
	if f.From, err = parseTimeParam(q, "from"); err != nil {
		return f, err
	}
	if f.To, err = parseTimeParam(q, "to"); err != nil {
		return f, err
	}
	if f.Limit, err = parseIntParam(q, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = parseIntParam(q, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func parseTimeParam(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, name+" must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	return &t, nil
}

func parseIntParam(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" must be a non-negative integer")
	}
	return n, nil
}

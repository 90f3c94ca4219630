package handler

import (
	"time"

	"fasela/internal/donation/models"
	id "fasela/pkg/domain"
)

// DonationResponse renders amounts with exactly two decimals.
type DonationResponse struct {
	ID               string     `json:"id"`
	OrganizationID   string     `json:"organization_id"`
	CaseID           string     `json:"case_id"`
	DonorName        string     `json:"donor_name,omitempty"`
	DonorEmail       string     `json:"donor_email,omitempty"`
	Amount           string     `json:"amount"`
	DonationType     string     `json:"donation_type"`
	MonthsPledged    int        `json:"months_pledged"`
	PaymentCode      string     `json:"payment_code"`
	Status           string     `json:"status"`
	PaymentReference string     `json:"payment_reference,omitempty"`
	AdminNotes       string     `json:"admin_notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy      string     `json:"confirmed_by,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	TotalHandedOver  string     `json:"total_handed_over"`
	Remaining        string     `json:"remaining"`
}

// PublicDonationResponse is what an anonymous donor gets back: enough to pay.
type PublicDonationResponse struct {
	ID          string `json:"id"`
	CaseID      string `json:"case_id"`
	Amount      string `json:"amount"`
	PaymentCode string `json:"payment_code"`
	Status      string `json:"status"`
}

type ListResponse struct {
	Items  []DonationResponse `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func toDonationResponse(d *models.Donation) DonationResponse {
	resp := DonationResponse{
		ID:               d.ID.String(),
		OrganizationID:   d.OrganizationID.String(),
		CaseID:           d.CaseID.String(),
		DonorName:        d.DonorName,
		DonorEmail:       d.DonorEmail,
		Amount:           d.Amount.StringFixed(id.AmountScale),
		DonationType:     string(d.DonationType),
		MonthsPledged:    d.MonthsPledged,
		PaymentCode:      d.PaymentCode,
		Status:           string(d.Status),
		PaymentReference: d.PaymentReference,
		AdminNotes:       d.AdminNotes,
		CreatedAt:        d.CreatedAt,
		ConfirmedAt:      d.ConfirmedAt,
		CancelledAt:      d.CancelledAt,
		TotalHandedOver:  d.HandedOver().StringFixed(id.AmountScale),
		Remaining:        d.Remaining().StringFixed(id.AmountScale),
	}
	if d.ConfirmedBy != nil {
		resp.ConfirmedBy = d.ConfirmedBy.String()
	}
	return resp
}

func toPublicResponse(d *models.Donation) PublicDonationResponse {
	return PublicDonationResponse{
		ID:          d.ID.String(),
		CaseID:      d.CaseID.String(),
		Amount:      d.Amount.StringFixed(id.AmountScale),
		PaymentCode: d.PaymentCode,
		Status:      string(d.Status),
	}
}

func toListResponse(p *models.Page) ListResponse {
	items := make([]DonationResponse, len(p.Items))
	for i, d := range p.Items {
		items[i] = toDonationResponse(d)
	}
	return ListResponse{Items: items, Total: p.Total, Limit: p.Limit, Offset: p.Offset}
}

package handler

import (
	"time"

	"fasela/internal/handover/models"
	id "fasela/pkg/domain"
)

type HandoverResponse struct {
	ID           string    `json:"id"`
	DonationID   string    `json:"donation_id"`
	CaseID       string    `json:"case_id"`
	Amount       string    `json:"amount"`
	HandoverDate string    `json:"handover_date"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ListResponse struct {
	Items []HandoverResponse `json:"items"`
	Total string             `json:"total"`
}

func toResponse(h *models.Handover) HandoverResponse {
	return HandoverResponse{
		ID:           h.ID.String(),
		DonationID:   h.DonationID.String(),
		CaseID:       h.CaseID.String(),
		Amount:       h.Amount.StringFixed(id.AmountScale),
		HandoverDate: h.HandoverDate.Format(time.DateOnly),
		Notes:        h.Notes,
		CreatedAt:    h.CreatedAt,
		UpdatedAt:    h.UpdatedAt,
	}
}

func toListResponse(hs []*models.Handover) ListResponse {
	items := make([]HandoverResponse, len(hs))
	for i, h := range hs {
		items[i] = toResponse(h)
	}
	return ListResponse{Items: items, Total: models.Sum(hs, nil).StringFixed(id.AmountScale)}
}

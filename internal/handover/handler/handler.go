package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fasela/internal/handover/models"
	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
	"fasela/pkg/platform/httputil"
	"fasela/pkg/platform/middleware/auth"
	"fasela/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type Service interface {
	Allocate(ctx context.Context, req models.AllocateRequest) (*models.Handover, error)
	ListByDonation(ctx context.Context, donationID id.DonationID) ([]*models.Handover, error)
}

// Handler wires handover endpoints to the allocator.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.With(auth.RequireLedgerReader(h.logger)).Get("/donations/{donationID}/handovers", h.HandleList)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireLedgerAdmin(h.logger))
		r.Post("/donations/{donationID}/handovers", h.HandleAllocate)
		r.Put("/donations/{donationID}/handovers/{handoverID}", h.HandleAmend)
	})
}

// HandleAllocate handles POST /donations/{donationID}/handovers.
func (h *Handler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	h.allocate(w, r, nil, http.StatusCreated)
}

// HandleAmend handles PUT /donations/{donationID}/handovers/{handoverID}.
func (h *Handler) HandleAmend(w http.ResponseWriter, r *http.Request) {
	handoverID, err := id.ParseHandoverID(chi.URLParam(r, "handoverID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.allocate(w, r, &handoverID, http.StatusOK)
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request, existing *id.HandoverID, status int) {
	ctx := r.Context()
	donationID, err := id.ParseDonationID(chi.URLParam(r, "donationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AllocateRequest](w, r, h.logger)
	if !ok {
		return
	}
	if existing == nil && req.parsedDate.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "handover_date is required"))
		return
	}

	handover, err := h.service.Allocate(ctx, models.AllocateRequest{
		DonationID:         donationID,
		Amount:             req.parsedAmount,
		Date:               req.parsedDate,
		Notes:              req.Notes,
		ExistingHandoverID: existing,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "allocate handover failed",
			"donation_id", donationID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, status, toResponse(handover))
}

// HandleList handles GET /donations/{donationID}/handovers.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	donationID, err := id.ParseDonationID(chi.URLParam(r, "donationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.ListByDonation(r.Context(), donationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(list))
}

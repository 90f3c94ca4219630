package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fasela/internal/donation/models"
	id "fasela/pkg/domain"
	"fasela/pkg/platform/httputil"
	"fasela/pkg/platform/middleware/auth"
	"fasela/pkg/requestcontext"
)

// Service defines the donation operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, req models.CreateDonationRequest) (*models.Donation, error)
	Confirm(ctx context.Context, donationID id.DonationID, req models.ConfirmRequest) (*models.Donation, error)
	Cancel(ctx context.Context, donationID id.DonationID, req models.CancelRequest) (*models.Donation, error)
	Get(ctx context.Context, donationID id.DonationID) (*models.Donation, error)
	List(ctx context.Context, filter models.ListFilter) (*models.Page, error)
}

// Handler wires donation endpoints to the donation service.
type Handler struct {
	service     Service
	logger      *slog.Logger
	createGuard []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithCreateGuard adds middleware in front of anonymous donation creation, such
// as a per-IP rate limit.
func WithCreateGuard(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.createGuard = append(h.createGuard, mw...)
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts donation endpoints. The router must already run the
// authentication middleware; donor creation also accepts anonymous callers.
func (h *Handler) Register(r chi.Router) {
	r.With(h.createGuard...).Post("/cases/{caseID}/donations", h.HandleCreate)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireLedgerReader(h.logger))
		r.Get("/donations", h.HandleList)
		r.Get("/donations/{donationID}", h.HandleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireLedgerAdmin(h.logger))
		r.Post("/donations/{donationID}/confirm", h.HandleConfirm)
		r.Post("/donations/{donationID}/cancel", h.HandleCancel)
	})
}

// HandleCreate handles POST /cases/{caseID}/donations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateDonationRequest](w, r, h.logger)
	if !ok {
		return
	}

	d, err := h.service.Create(ctx, req.toModel(caseID))
	if err != nil {
		h.logFailure(ctx, "create donation failed", err, "case_id", caseID)
		httputil.WriteError(w, err)
		return
	}

	if caller := requestcontext.CallerFrom(ctx); caller.CanAccess(d.OrganizationID) {
		httputil.WriteJSON(w, http.StatusCreated, toDonationResponse(d))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPublicResponse(d))
}

// HandleConfirm handles POST /donations/{donationID}/confirm.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donationID, ok := h.donationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ConfirmRequest](w, r, h.logger)
	if !ok {
		return
	}
	d, err := h.service.Confirm(ctx, donationID, models.ConfirmRequest{
		PaymentReference: req.PaymentReference,
		Notes:            req.Notes,
	})
	if err != nil {
		h.logFailure(ctx, "confirm donation failed", err, "donation_id", donationID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDonationResponse(d))
}

// HandleCancel handles POST /donations/{donationID}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donationID, ok := h.donationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CancelRequest](w, r, h.logger)
	if !ok {
		return
	}
	d, err := h.service.Cancel(ctx, donationID, models.CancelRequest{Notes: req.Notes})
	if err != nil {
		h.logFailure(ctx, "cancel donation failed", err, "donation_id", donationID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDonationResponse(d))
}

// HandleGet handles GET /donations/{donationID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	donationID, ok := h.donationID(w, r)
	if !ok {
		return
	}
	d, err := h.service.Get(r.Context(), donationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDonationResponse(d))
}

// HandleList handles GET /donations.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logFailure(r.Context(), "list donations failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(page))
}

func (h *Handler) donationID(w http.ResponseWriter, r *http.Request) (id.DonationID, bool) {
	donationID, err := id.ParseDonationID(chi.URLParam(r, "donationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DonationID{}, false
	}
	return donationID, true
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	h.logger.WarnContext(ctx, msg, attrs...)
}

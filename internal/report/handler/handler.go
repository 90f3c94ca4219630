package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fasela/internal/report/models"
	id "fasela/pkg/domain"
	"fasela/pkg/platform/httputil"
	"fasela/pkg/platform/middleware/auth"
	"fasela/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the report operations exposed over HTTP.
type Service interface {
	CaseSummary(ctx context.Context, caseID id.CaseID) (*models.CaseFinancialSummary, error)
	OrganizationSummary(ctx context.Context, orgID id.OrganizationID) (*models.OrganizationSummary, error)
	MonthlyHandovers(ctx context.Context, orgID id.OrganizationID, from, to *time.Time) (*models.MonthlyReport, error)
	Integrity(ctx context.Context, orgID id.OrganizationID) (*models.IntegrityReport, error)
	Dashboard(ctx context.Context, orgID id.OrganizationID) (*models.Dashboard, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the read-only report endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireLedgerReader(h.logger))
		r.Get("/cases/{caseID}/summary", h.HandleCaseSummary)
		r.Get("/organizations/{orgID}/summary", h.HandleOrganizationSummary)
		r.Get("/organizations/{orgID}/handovers/monthly", h.HandleMonthly)
		r.Get("/organizations/{orgID}/dashboard", h.HandleDashboard)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireLedgerAdmin(h.logger))
		r.Get("/organizations/{orgID}/integrity", h.HandleIntegrity)
	})
}

// HandleCaseSummary handles GET /cases/{caseID}/summary.
func (h *Handler) HandleCaseSummary(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	summary, err := h.service.CaseSummary(r.Context(), caseID)
	if err != nil {
		h.fail(w, r, "case summary failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseSummary(summary))
}

// HandleOrganizationSummary handles GET /organizations/{orgID}/summary.
func (h *Handler) HandleOrganizationSummary(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.OrganizationSummary(r.Context(), orgID)
	if err != nil {
		h.fail(w, r, "organization summary failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toOrganizationSummary(summary))
}

// HandleMonthly handles GET /organizations/{orgID}/handovers/monthly.
func (h *Handler) HandleMonthly(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	from, to, err := parseRange(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.MonthlyHandovers(r.Context(), orgID, from, to)
	if err != nil {
		h.fail(w, r, "monthly handover report failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMonthly(report))
}

// HandleIntegrity handles GET /organizations/{orgID}/integrity.
func (h *Handler) HandleIntegrity(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	report, err := h.service.Integrity(r.Context(), orgID)
	if err != nil {
		h.fail(w, r, "integrity check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIntegrity(report))
}

// HandleDashboard handles GET /organizations/{orgID}/dashboard.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	dashboard, err := h.service.Dashboard(r.Context(), orgID)
	if err != nil {
		h.fail(w, r, "dashboard failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDashboard(dashboard))
}

func (h *Handler) orgID(w http.ResponseWriter, r *http.Request) (id.OrganizationID, bool) {
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.OrganizationID{}, false
	}
	return orgID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.WarnContext(r.Context(), msg,
		"path", r.URL.Path,
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err,
	)
	httputil.WriteError(w, err)
}

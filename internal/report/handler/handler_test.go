package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"fasela/internal/reconciliation"
	"fasela/internal/report/handler/mocks"
	"fasela/internal/report/models"
	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
	"fasela/pkg/requestcontext"
	"fasela/pkg/testutil"
)

type ReportHandlerSuite struct {
	suite.Suite
	orgID id.OrganizationID
}

func TestReportHandlerSuite(t *testing.T) {
	suite.Run(t, new(ReportHandlerSuite))
}

func (s *ReportHandlerSuite) SetupSuite() {
	s.orgID = id.NewOrganizationID()
}

func (s *ReportHandlerSuite) newHandler(t *testing.T, caller requestcontext.Caller) (*mocks.MockService, *chi.Mux) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockService := mocks.NewMockService(ctrl)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, testutil.WithCaller(req, caller))
		})
	})
	New(mockService, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return mockService, r
}

func get(t *testing.T, router http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rr := testutil.Serve(router, http.MethodGet, path, "")
	if rr.Body.Len() == 0 {
		return rr.Code, nil
	}
	return rr.Code, testutil.DecodeJSON[map[string]any](t, rr)
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func (s *ReportHandlerSuite) TestCaseSummary() {
	caseID := id.NewCaseID()

	s.T().Run("formats amounts with two decimals", func(t *testing.T) {
		mockService, router := s.newHandler(t, testutil.Volunteer(s.orgID))
		mockService.EXPECT().CaseSummary(gomock.Any(), caseID).Return(&models.CaseFinancialSummary{
			CaseID: caseID, Title: "Luna",
			MonthlyCost: dec("100"), TargetAmount: dec("1200"),
			ConfirmedAmount: dec("2300"), HandedOverAmount: dec("1300"), RemainingAmount: dec("1000"),
			PendingDonationsCount: 1, PendingDonationsAmount: dec("30.5"), MonthsSecured: 23,
		}, nil)

		status, body := get(t, router, "/cases/"+caseID.String()+"/summary")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "2300.00", body["confirmed_amount"])
		assert.Equal(t, "1000.00", body["remaining_amount"])
		assert.Equal(t, "30.50", body["pending_donations_amount"])
		assert.Equal(t, float64(23), body["months_secured"])
	})

	s.T().Run("malformed id - 400", func(t *testing.T) {
		_, router := s.newHandler(t, testutil.Admin(s.orgID))
		status, body := get(t, router, "/cases/nope/summary")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_input", body["error"])
	})

	s.T().Run("users cannot read reports - 403", func(t *testing.T) {
		_, router := s.newHandler(t, requestcontext.Caller{UserID: id.NewUserID(), Role: id.RoleUser, OrganizationIDs: []id.OrganizationID{s.orgID}})
		status, _ := get(t, router, "/cases/"+caseID.String()+"/summary")
		assert.Equal(t, http.StatusForbidden, status)
	})
}

func (s *ReportHandlerSuite) TestOrganizationSummary() {
	mockService, router := s.newHandler(s.T(), testutil.Admin(s.orgID))
	caseID := id.NewCaseID()
	expected, actual := dec("100"), dec("130")
	mockService.EXPECT().OrganizationSummary(gomock.Any(), s.orgID).Return(&models.OrganizationSummary{
		OrganizationID: s.orgID,
		CaseCount:      1,
		Totals:         models.ZeroTotals(),
		Cases:          []models.CaseFinancialSummary{{CaseID: caseID, RemainingAmount: dec("-30")}},
		Faults:         []reconciliation.Fault{{Kind: reconciliation.FaultNegativeRemaining, CaseID: &caseID, Expected: &expected, Actual: &actual}},
	}, nil)

	status, body := get(s.T(), router, "/organizations/"+s.orgID.String()+"/summary")
	s.Equal(http.StatusOK, status)
	cases := body["cases"].([]any)
	s.Require().Len(cases, 1)
	s.Equal("-30.00", cases[0].(map[string]any)["remaining_amount"])
	faults := body["faults"].([]any)
	s.Require().Len(faults, 1)
	fault := faults[0].(map[string]any)
	s.Equal("negative_remaining", fault["kind"])
	s.Equal("130.00", fault["actual"])
	s.Equal("0.00", body["totals"].(map[string]any)["confirmed_amount"])
}

func (s *ReportHandlerSuite) TestMonthly() {
	s.T().Run("parses month bounds", func(t *testing.T) {
		mockService, router := s.newHandler(t, testutil.Volunteer(s.orgID))
		mockService.EXPECT().MonthlyHandovers(gomock.Any(), s.orgID, gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, orgID id.OrganizationID, from, to *time.Time) (*models.MonthlyReport, error) {
				require.NotNil(t, from)
				require.NotNil(t, to)
				assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *from)
				assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *to)
				return &models.MonthlyReport{OrganizationID: orgID, From: from, To: to, Months: []reconciliation.MonthlyHandoverSummary{
					{Month: "2024-02", Year: 2024, MonthNum: 2, TotalAmount: dec("1000"), HandoverCount: 1, UniqueCaseCount: 1, LegacyAmount: decimal.Zero},
				}}, nil
			})

		status, body := get(t, router, "/organizations/"+s.orgID.String()+"/handovers/monthly?from=2024-01&to=2024-03-15")
		assert.Equal(t, http.StatusOK, status)
		months := body["months"].([]any)
		require.Len(t, months, 1)
		assert.Equal(t, "1000.00", months[0].(map[string]any)["total_amount"])
	})

	s.T().Run("rejects garbage bounds - 400", func(t *testing.T) {
		_, router := s.newHandler(t, testutil.Volunteer(s.orgID))
		status, body := get(t, router, "/organizations/"+s.orgID.String()+"/handovers/monthly?from=last-week")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_input", body["error"])
	})

	s.T().Run("maps service validation - 400", func(t *testing.T) {
		mockService, router := s.newHandler(t, testutil.Volunteer(s.orgID))
		mockService.EXPECT().MonthlyHandovers(gomock.Any(), s.orgID, gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "from must be before to"))
		status, body := get(t, router, "/organizations/"+s.orgID.String()+"/handovers/monthly?from=2024-03&to=2024-01")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "validation_error", body["error"])
	})
}

func (s *ReportHandlerSuite) TestIntegrity() {
	s.T().Run("admins - 200", func(t *testing.T) {
		mockService, router := s.newHandler(t, testutil.Admin(s.orgID))
		mockService.EXPECT().Integrity(gomock.Any(), s.orgID).Return(&models.IntegrityReport{
			OrganizationID: s.orgID, DonationCount: 3, HandoverCount: 2, Faults: []reconciliation.Fault{},
		}, nil)
		status, body := get(t, router, "/organizations/"+s.orgID.String()+"/integrity")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["healthy"])
		assert.Equal(t, float64(3), body["donation_count"])
	})

	s.T().Run("volunteers - 403", func(t *testing.T) {
		_, router := s.newHandler(t, testutil.Volunteer(s.orgID))
		status, _ := get(t, router, "/organizations/"+s.orgID.String()+"/integrity")
		assert.Equal(t, http.StatusForbidden, status)
	})
}

func (s *ReportHandlerSuite) TestDashboard() {
	s.T().Run("degraded view is still 200", func(t *testing.T) {
		mockService, router := s.newHandler(t, testutil.Volunteer(s.orgID))
		mockService.EXPECT().Dashboard(gomock.Any(), s.orgID).Return(models.DegradedDashboard(s.orgID), nil)
		status, body := get(t, router, "/organizations/"+s.orgID.String()+"/dashboard")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["degraded"])
		assert.Empty(t, body["recent_months"])
	})

	s.T().Run("other organization - 404", func(t *testing.T) {
		mockService, router := s.newHandler(t, testutil.Volunteer(s.orgID))
		other := id.NewOrganizationID()
		mockService.EXPECT().Dashboard(gomock.Any(), other).Return(nil, dErrors.New(dErrors.CodeNotFound, "organization not found"))
		status, body := get(t, router, "/organizations/"+other.String()+"/dashboard")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "not_found", body["error"])
	})
}

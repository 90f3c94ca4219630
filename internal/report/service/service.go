package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	donationmodels "fasela/internal/donation/models"
	handovermodels "fasela/internal/handover/models"
	orgmodels "fasela/internal/organization/models"
	"fasela/internal/reconciliation"
	"fasela/internal/report/cache"
	reportmetrics "fasela/internal/report/metrics"
	"fasela/internal/report/models"
	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
	"fasela/pkg/platform/sentinel"
	"fasela/pkg/platform/tx"
	"fasela/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks DataSource,Cache

// DataSource reads the ledger of one organization. A non-nil caseID narrows
// donations and handovers to that case.
type DataSource interface {
	FindCase(ctx context.Context, caseID id.CaseID) (*orgmodels.Case, error)
	ListCases(ctx context.Context, orgID id.OrganizationID) ([]*orgmodels.Case, error)
	ListDonations(ctx context.Context, orgID id.OrganizationID, caseID *id.CaseID) ([]*donationmodels.Donation, error)
	ListHandovers(ctx context.Context, orgID id.OrganizationID, caseID *id.CaseID) ([]*handovermodels.Handover, error)
}

// Cache stores serialized reports per organization generation.
type Cache interface {
	Generation(ctx context.Context, orgID id.OrganizationID) (int64, error)
	Get(ctx context.Context, orgID id.OrganizationID, gen int64, key string) ([]byte, bool, error)
	Set(ctx context.Context, orgID id.OrganizationID, gen int64, key string, value []byte) error
	Invalidate(ctx context.Context, orgID id.OrganizationID)
}

// Service builds read-only financial reports from the ledger. It never writes
// ledger data.
type Service struct {
	source  DataSource
	cache   Cache
	tx      tx.Runner
	metrics *reportmetrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *reportmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithCache(c Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func New(source DataSource, opts ...Option) *Service {
	s := &Service{
		source: source,
		cache:  cache.Noop{},
		logger: slog.Default(),
		tracer: otel.Tracer("fasela/report"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewLocking()
	}
	return s
}

// Invalidate drops cached reports of orgID. Ledger services call it after every
// committed change.
func (s *Service) Invalidate(ctx context.Context, orgID id.OrganizationID) {
	s.cache.Invalidate(ctx, orgID)
}

// CaseSummary reports the money position of one case.
func (s *Service) CaseSummary(ctx context.Context, caseID id.CaseID) (*models.CaseFinancialSummary, error) {
	ctx, span := s.tracer.Start(ctx, "report.CaseSummary", trace.WithAttributes(attribute.String("case.id", caseID.String())))
	defer span.End()
	defer s.observe("case_summary", time.Now())

	if _, err := requireReader(ctx); err != nil {
		return nil, err
	}

	var c *orgmodels.Case
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		c, err = s.source.FindCase(txCtx, caseID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		return err
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, wrapLoadErr(err)
	}

	summary, err := cached(ctx, s, c.OrganizationID, "case:"+caseID.String(), func(ctx context.Context) (*models.CaseFinancialSummary, error) {
		snap, err := s.load(ctx, c.OrganizationID, &caseID)
		if err != nil {
			return nil, err
		}
		snap.Cases = []*orgmodels.Case{c}
		totals := reconciliation.TotalsByCase(reconciliation.CaseTotals(snap.Donations, snap.Events()))
		t, ok := totals[caseID]
		if !ok {
			t = reconciliation.CaseTotal{CaseID: caseID, OrganizationID: c.OrganizationID}
		}
		cs := models.BuildCaseSummary(c, t)
		if cs.RemainingAmount.IsNegative() {
			s.reportFaults(ctx, c.OrganizationID, []reconciliation.Fault{{Kind: reconciliation.FaultNegativeRemaining, CaseID: &caseID}})
		}
		return &cs, nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return summary, nil
}

// OrganizationSummary reports every case of orgID with organization totals and
// the integrity faults found on the way.
func (s *Service) OrganizationSummary(ctx context.Context, orgID id.OrganizationID) (*models.OrganizationSummary, error) {
	ctx, span := s.tracer.Start(ctx, "report.OrganizationSummary", trace.WithAttributes(attribute.String("organization.id", orgID.String())))
	defer span.End()
	defer s.observe("organization_summary", time.Now())

	if err := requireOrganizationReader(ctx, orgID); err != nil {
		return nil, err
	}
	summary, err := cached(ctx, s, orgID, "summary", func(ctx context.Context) (*models.OrganizationSummary, error) {
		return s.buildOrganizationSummary(ctx, orgID)
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return summary, nil
}

func (s *Service) buildOrganizationSummary(ctx context.Context, orgID id.OrganizationID) (*models.OrganizationSummary, error) {
	snap, err := s.load(ctx, orgID, nil)
	if err != nil {
		return nil, err
	}
	summary := models.BuildOrganizationSummary(orgID, snap)
	s.reportFaults(ctx, orgID, summary.Faults)
	return summary, nil
}

// MonthlyHandovers buckets handovers of orgID dated in [from, to) by month.
func (s *Service) MonthlyHandovers(ctx context.Context, orgID id.OrganizationID, from, to *time.Time) (*models.MonthlyReport, error) {
	ctx, span := s.tracer.Start(ctx, "report.MonthlyHandovers", trace.WithAttributes(attribute.String("organization.id", orgID.String())))
	defer span.End()
	defer s.observe("monthly_handovers", time.Now())

	if err := requireOrganizationReader(ctx, orgID); err != nil {
		return nil, err
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, dErrors.New(dErrors.CodeValidation, "from must be before to")
	}

	report, err := cached(ctx, s, orgID, "monthly:"+rangeKey(from, to), func(ctx context.Context) (*models.MonthlyReport, error) {
		snap, err := s.load(ctx, orgID, nil)
		if err != nil {
			return nil, err
		}
		return models.BuildMonthlyReport(orgID, snap, from, to), nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return report, nil
}

// Integrity verifies the ledger of orgID. It always reads fresh data.
func (s *Service) Integrity(ctx context.Context, orgID id.OrganizationID) (*models.IntegrityReport, error) {
	ctx, span := s.tracer.Start(ctx, "report.Integrity", trace.WithAttributes(attribute.String("organization.id", orgID.String())))
	defer span.End()
	defer s.observe("integrity", time.Now())

	caller := requestcontext.CallerFrom(ctx)
	if caller.IsAnonymous() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !caller.Role.CanManageLedger() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins can verify the ledger")
	}
	if !caller.CanAccess(orgID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "organization not found")
	}

	snap, err := s.load(ctx, orgID, nil)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	report := models.BuildIntegrityReport(orgID, snap)
	s.reportFaults(ctx, orgID, report.Faults)
	span.SetAttributes(attribute.Int("faults", len(report.Faults)))
	s.logger.InfoContext(ctx, "ledger verified",
		"organization_id", orgID,
		"donations", report.DonationCount,
		"handovers", report.HandoverCount,
		"faults", len(report.Faults),
		"request_id", requestcontext.RequestID(ctx),
	)
	return report, nil
}

// Dashboard is the overview widget for orgID. Access errors are returned; any
// failure while building it yields a degraded, empty dashboard instead.
func (s *Service) Dashboard(ctx context.Context, orgID id.OrganizationID) (*models.Dashboard, error) {
	ctx, span := s.tracer.Start(ctx, "report.Dashboard", trace.WithAttributes(attribute.String("organization.id", orgID.String())))
	defer span.End()
	defer s.observe("dashboard", time.Now())

	if err := requireOrganizationReader(ctx, orgID); err != nil {
		return nil, err
	}

	dashboard, err := cached(ctx, s, orgID, "dashboard", func(ctx context.Context) (d *models.Dashboard, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = dErrors.New(dErrors.CodeInternal, fmt.Sprintf("dashboard build panicked: %v", r))
			}
		}()
		snap, err := s.load(ctx, orgID, nil)
		if err != nil {
			return nil, err
		}
		summary := models.BuildOrganizationSummary(orgID, snap)
		s.reportFaults(ctx, orgID, summary.Faults)
		return models.BuildDashboard(summary, models.BuildMonthlyReport(orgID, snap, nil, nil)), nil
	})
	if err != nil {
		recordSpanError(span, err)
		if s.metrics != nil {
			s.metrics.IncrementDegraded()
		}
		s.logger.WarnContext(ctx, "dashboard degraded",
			"organization_id", orgID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return models.DegradedDashboard(orgID), nil
	}
	return dashboard, nil
}

// cached serves key from the cache at the organization's current generation, or
// builds and stores it. The generation is read before building, so a result
// computed from data that changes meanwhile lands under a dead generation. Cache
// failures fall back to building directly.
func cached[T any](ctx context.Context, s *Service, orgID id.OrganizationID, key string, build func(context.Context) (*T, error)) (*T, error) {
	gen, err := s.cache.Generation(ctx, orgID)
	if err != nil {
		s.cacheFailed(ctx, orgID, err)
		return build(ctx)
	}

	raw, ok, err := s.cache.Get(ctx, orgID, gen, key)
	switch {
	case err != nil:
		s.cacheFailed(ctx, orgID, err)
	case ok:
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			if s.metrics != nil {
				s.metrics.IncrementCacheHit()
			}
			return &v, nil
		}
		s.logger.WarnContext(ctx, "discarding unreadable cached report", "organization_id", orgID, "key", key)
	}
	if s.metrics != nil {
		s.metrics.IncrementCacheMiss()
	}

	v, err := build(ctx)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		s.logger.WarnContext(ctx, "report not cacheable", "key", key, "error", err)
		return v, nil
	}
	if err := s.cache.Set(ctx, orgID, gen, key, encoded); err != nil {
		s.cacheFailed(ctx, orgID, err)
	}
	return v, nil
}

func (s *Service) cacheFailed(ctx context.Context, orgID id.OrganizationID, err error) {
	if s.metrics != nil {
		s.metrics.IncrementCacheError()
	}
	s.logger.DebugContext(ctx, "report cache unavailable",
		"organization_id", orgID,
		"error", err,
	)
}

func (s *Service) reportFaults(ctx context.Context, orgID id.OrganizationID, faults []reconciliation.Fault) {
	for _, f := range faults {
		if s.metrics != nil {
			s.metrics.IncrementFault(string(f.Kind))
		}
		attrs := []any{
			"organization_id", orgID,
			"kind", f.Kind,
			"request_id", requestcontext.RequestID(ctx),
		}
		if f.CaseID != nil {
			attrs = append(attrs, "case_id", *f.CaseID)
		}
		if f.DonationID != nil {
			attrs = append(attrs, "donation_id", *f.DonationID)
		}
		s.logger.WarnContext(ctx, "ledger integrity fault", attrs...)
	}
}

func (s *Service) observe(report string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveBuild(report, start)
	}
}

func rangeKey(from, to *time.Time) string {
	format := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.UTC().Format(time.RFC3339)
	}
	return format(from) + ".." + format(to)
}

func requireReader(ctx context.Context) (requestcontext.Caller, error) {
	caller := requestcontext.CallerFrom(ctx)
	if caller.IsAnonymous() {
		return caller, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !caller.Role.CanReadLedger() {
		return caller, dErrors.New(dErrors.CodeForbidden, "role cannot read financial reports")
	}
	return caller, nil
}

func requireOrganizationReader(ctx context.Context, orgID id.OrganizationID) error {
	caller, err := requireReader(ctx)
	if err != nil {
		return err
	}
	if !caller.CanAccess(orgID) {
		return dErrors.New(dErrors.CodeNotFound, "organization not found")
	}
	return nil
}

func wrapLoadErr(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodePersistence, "failed to load report data")
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}

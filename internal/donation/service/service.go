package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	donationmetrics "fasela/internal/donation/metrics"
	"fasela/internal/donation/models"
	orgmodels "fasela/internal/organization/models"
	outboxmodels "fasela/internal/outbox/models"
	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
	"fasela/pkg/platform/sentinel"
	"fasela/pkg/platform/tx"
	"fasela/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,CaseLookup,EventAppender,ReportInvalidator

type Store interface {
	Create(ctx context.Context, d *models.Donation) error
	FindByID(ctx context.Context, donationID id.DonationID) (*models.Donation, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Donation, int, error)
	Execute(ctx context.Context, donationID id.DonationID, validate func(*models.Donation) error, mutate func(*models.Donation)) (*models.Donation, error)
}

// CaseLookup resolves the public view of a case a donor is giving to.
type CaseLookup interface {
	FindDonatableCase(ctx context.Context, caseID id.CaseID) (*orgmodels.Case, error)
}

// EventAppender writes ledger events into the outbox within the caller's
// transaction.
type EventAppender interface {
	Append(ctx context.Context, event *outboxmodels.Event) error
}

// ReportInvalidator drops cached reports of an organization after a committed
// ledger change.
type ReportInvalidator interface {
	Invalidate(ctx context.Context, orgID id.OrganizationID)
}

// Service owns the donation lifecycle: creation by donors and the admin
// confirm/cancel transitions.
type Service struct {
	store       Store
	cases       CaseLookup
	tx          tx.Runner
	events      EventAppender
	invalidator ReportInvalidator
	metrics     *donationmetrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *donationmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithEventAppender(events EventAppender) Option {
	return func(s *Service) {
		s.events = events
	}
}

func WithReportInvalidator(inv ReportInvalidator) Option {
	return func(s *Service) {
		s.invalidator = inv
	}
}

func New(store Store, cases CaseLookup, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cases:  cases,
		logger: slog.Default(),
		tracer: otel.Tracer("fasela/donation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewLocking()
	}
	return s
}

// Create records a pending donation. Callers may be anonymous donors; the case
// must exist and accept donations.
func (s *Service) Create(ctx context.Context, req models.CreateDonationRequest) (*models.Donation, error) {
	ctx, span := s.tracer.Start(ctx, "donation.Create")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var created *models.Donation
	err := s.tx.RunInTx(tx.WithPublicAccess(ctx), func(txCtx context.Context) error {
		c, err := s.cases.FindDonatableCase(txCtx, req.CaseID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeValidation, "case does not exist or does not accept donations")
			}
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to load case")
		}

		now := requestcontext.Now(txCtx)
		d := models.NewDonation(id.NewDonationID(), models.CaseRef{
			ID:             c.ID,
			OrganizationID: c.OrganizationID,
			PaymentCode:    c.PaymentCode,
		}, req, now)

		if err := s.store.Create(txCtx, d); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to create donation")
		}
		if err := s.emit(txCtx, d, outboxmodels.EventDonationCreated, id.UserID{}, now); err != nil {
			return err
		}
		created = d
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("donation.id", created.ID.String()))
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	s.invalidate(ctx, created.OrganizationID)
	s.logger.InfoContext(ctx, "donation created",
		"donation_id", created.ID,
		"case_id", created.CaseID,
		"organization_id", created.OrganizationID,
		"amount", created.Amount.StringFixed(id.AmountScale),
		"request_id", requestcontext.RequestID(ctx),
	)
	return created, nil
}

// Confirm records that a pending donation's payment was received.
//
// Uses the Execute callback pattern for atomic validate-then-mutate.
// The store's Execute method holds the lock (mutex or FOR UPDATE) during both validation and mutation.
func (s *Service) Confirm(ctx context.Context, donationID id.DonationID, req models.ConfirmRequest) (*models.Donation, error) {
	ctx, span := s.tracer.Start(ctx, "donation.Confirm", trace.WithAttributes(attribute.String("donation.id", donationID.String())))
	defer span.End()

	caller, err := requireManager(ctx)
	if err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	now := requestcontext.Now(ctx)
	d, err := s.transition(ctx, donationID, outboxmodels.EventDonationConfirmed, caller.UserID, now,
		func(d *models.Donation) error { return d.CanConfirm() },
		func(d *models.Donation) { d.ApplyConfirmation(req.PaymentReference, req.Notes, caller.UserID, now) },
	)
	if err != nil {
		s.recordRejection(err, models.StatusConfirmed)
		recordSpanError(span, err)
		return nil, err
	}
	s.afterTransition(ctx, d, start, "donation confirmed", caller)
	return d, nil
}

// Cancel closes a pending donation without receipt.
func (s *Service) Cancel(ctx context.Context, donationID id.DonationID, req models.CancelRequest) (*models.Donation, error) {
	ctx, span := s.tracer.Start(ctx, "donation.Cancel", trace.WithAttributes(attribute.String("donation.id", donationID.String())))
	defer span.End()

	caller, err := requireManager(ctx)
	if err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	now := requestcontext.Now(ctx)
	d, err := s.transition(ctx, donationID, outboxmodels.EventDonationCancelled, caller.UserID, now,
		func(d *models.Donation) error { return d.CanCancel() },
		func(d *models.Donation) { d.ApplyCancellation(req.Notes, now) },
	)
	if err != nil {
		s.recordRejection(err, models.StatusCancelled)
		recordSpanError(span, err)
		return nil, err
	}
	s.afterTransition(ctx, d, start, "donation cancelled", caller)
	return d, nil
}

func (s *Service) transition(
	ctx context.Context,
	donationID id.DonationID,
	eventType outboxmodels.EventType,
	actor id.UserID,
	now time.Time,
	validate func(*models.Donation) error,
	mutate func(*models.Donation),
) (*models.Donation, error) {
	var updated *models.Donation
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		d, err := s.store.Execute(txCtx, donationID, validate, mutate)
		if err != nil {
			return wrapDonationErr(err)
		}
		if err := s.emit(txCtx, d, eventType, actor, now); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns one donation visible to the caller.
func (s *Service) Get(ctx context.Context, donationID id.DonationID) (*models.Donation, error) {
	if _, err := requireReader(ctx); err != nil {
		return nil, err
	}
	var d *models.Donation
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		d, err = s.store.FindByID(txCtx, donationID)
		if err != nil {
			return wrapDonationErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// List returns a page of donations visible to the caller, newest first, with
// the exact number of matches.
func (s *Service) List(ctx context.Context, filter models.ListFilter) (*models.Page, error) {
	if _, err := requireReader(ctx); err != nil {
		return nil, err
	}
	filter.Normalize()
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var (
		items []*models.Donation
		total int
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		items, total, err = s.store.List(txCtx, filter)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to list donations")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &models.Page{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *Service) emit(ctx context.Context, d *models.Donation, eventType outboxmodels.EventType, actor id.UserID, now time.Time) error {
	if s.events == nil {
		return nil
	}
	ev, err := outboxmodels.NewEvent(outboxmodels.AggregateDonation, d.ID.String(), d.OrganizationID, eventType,
		models.NewLifecycleEvent(d, actor, now), now)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build ledger event")
	}
	if err := s.events.Append(ctx, ev); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to record ledger event")
	}
	return nil
}

func (s *Service) afterTransition(ctx context.Context, d *models.Donation, start time.Time, msg string, caller requestcontext.Caller) {
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(d.Status))
		s.metrics.ObserveTransition(start)
	}
	s.invalidate(ctx, d.OrganizationID)
	s.logger.InfoContext(ctx, msg,
		"donation_id", d.ID,
		"organization_id", d.OrganizationID,
		"status", d.Status,
		"actor_id", caller.UserID,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) recordRejection(err error, target models.Status) {
	if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
		s.metrics.IncrementRejected(string(target))
	}
}

func (s *Service) invalidate(ctx context.Context, orgID id.OrganizationID) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, orgID)
	}
}

func requireManager(ctx context.Context) (requestcontext.Caller, error) {
	caller := requestcontext.CallerFrom(ctx)
	if caller.IsAnonymous() {
		return caller, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !caller.Role.CanManageLedger() {
		return caller, dErrors.New(dErrors.CodeForbidden, "only admins can change the donation ledger")
	}
	return caller, nil
}

func requireReader(ctx context.Context) (requestcontext.Caller, error) {
	caller := requestcontext.CallerFrom(ctx)
	if caller.IsAnonymous() {
		return caller, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !caller.Role.CanReadLedger() {
		return caller, dErrors.New(dErrors.CodeForbidden, "role cannot read the donation ledger")
	}
	return caller, nil
}

func wrapDonationErr(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "donation not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodePersistence, "donation changed concurrently, retry the request")
	default:
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to access donation")
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}

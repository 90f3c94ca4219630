package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	donationmodels "fasela/internal/donation/models"
	handovermetrics "fasela/internal/handover/metrics"
	"fasela/internal/handover/models"
	outboxmodels "fasela/internal/outbox/models"
	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
	"fasela/pkg/platform/sentinel"
	"fasela/pkg/platform/tx"
	"fasela/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, h *models.Handover) error
	Update(ctx context.Context, h *models.Handover) error
	ListByDonation(ctx context.Context, donationID id.DonationID) ([]*models.Handover, error)
}

// DonationStore is the slice of the donation ledger the allocator needs. It is
// the only writer of the cached handed-over total.
type DonationStore interface {
	FindByID(ctx context.Context, donationID id.DonationID) (*donationmodels.Donation, error)
	FindForUpdate(ctx context.Context, donationID id.DonationID) (*donationmodels.Donation, error)
	UpdateHandedOver(ctx context.Context, donationID id.DonationID, total decimal.Decimal, expectedVersion int64) (*donationmodels.Donation, error)
}

type EventAppender interface {
	Append(ctx context.Context, event *outboxmodels.Event) error
}

type ReportInvalidator interface {
	Invalidate(ctx context.Context, orgID id.OrganizationID)
}

// Service records disbursements of confirmed donations.
type Service struct {
	store       Store
	donations   DonationStore
	tx          tx.Runner
	events      EventAppender
	invalidator ReportInvalidator
	metrics     *handovermetrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *handovermetrics.Metrics) Option {
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

func New(store Store, donations DonationStore, opts ...Option) *Service {
	s := &Service{
		store:     store,
		donations: donations,
		logger:    slog.Default(),
		tracer:    otel.Tracer("fasela/handover"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewLocking()
	}
	return s
}

// Allocate records a handover against a confirmed donation, or amends the amount
// and notes of an existing one.
//
// The donation row is locked for the whole unit of work, so the balance check,
// the handover write and the cached total update see one consistent state.
// Concurrent allocations on the same donation queue behind the lock.
func (s *Service) Allocate(ctx context.Context, req models.AllocateRequest) (*models.Handover, error) {
	ctx, span := s.tracer.Start(ctx, "handover.Allocate",
		trace.WithAttributes(attribute.String("donation.id", req.DonationID.String())))
	defer span.End()

	caller := requestcontext.CallerFrom(ctx)
	if caller.IsAnonymous() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !caller.Role.CanManageLedger() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins can record handovers")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		result *models.Handover
		total  decimal.Decimal
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		d, err := s.donations.FindForUpdate(txCtx, req.DonationID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "donation not found")
			}
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to lock donation")
		}
		if d.Status != donationmodels.StatusConfirmed {
			return dErrors.New(dErrors.CodeInvalidTransition, "handovers can only be recorded for confirmed donations, donation is "+string(d.Status))
		}

		existing, err := s.store.ListByDonation(txCtx, d.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to load handovers")
		}
		var target *models.Handover
		if req.IsEdit() {
			for _, h := range existing {
				if h.ID == *req.ExistingHandoverID {
					target = h
					break
				}
			}
			if target == nil {
				return dErrors.New(dErrors.CodeNotFound, "handover not found")
			}
			if err := req.CheckDateUnchanged(target.HandoverDate); err != nil {
				return err
			}
		}

		others := models.Sum(existing, req.ExistingHandoverID)
		if err := models.CheckAllocation(d.Amount, others, req.Amount); err != nil {
			return err
		}
		if err := txCtx.Err(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "allocation aborted: context cancelled")
		}

		now := requestcontext.Now(txCtx)
		eventType := outboxmodels.EventHandoverRecorded
		if target != nil {
			target.Amount = req.Amount
			target.Notes = req.Notes
			target.UpdatedAt = now
			if err := s.store.Update(txCtx, target); err != nil {
				return dErrors.Wrap(err, dErrors.CodePersistence, "failed to update handover")
			}
			eventType = outboxmodels.EventHandoverAmended
		} else {
			actor := caller.UserID
			target = &models.Handover{
				ID:             id.NewHandoverID(),
				OrganizationID: d.OrganizationID,
				DonationID:     d.ID,
				CaseID:         d.CaseID,
				Amount:         req.Amount,
				HandoverDate:   req.Date,
				Notes:          req.Notes,
				CreatedBy:      &actor,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := s.store.Create(txCtx, target); err != nil {
				return dErrors.Wrap(err, dErrors.CodePersistence, "failed to record handover")
			}
		}

		total = others.Add(req.Amount)
		if _, err := s.donations.UpdateHandedOver(txCtx, d.ID, total, d.Version); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to update handed over total")
		}
		if err := s.emit(txCtx, target, eventType, total, caller.UserID, now); err != nil {
			return err
		}
		result = target
		return nil
	})
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeOverAllocation) {
			s.metrics.IncrementOverAllocation()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		s.logger.WarnContext(ctx, "handover allocation rejected",
			"donation_id", req.DonationID,
			"amount", req.Amount.StringFixed(id.AmountScale),
			"code", dErrors.CodeOf(err),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}

	kind := "recorded"
	if req.IsEdit() {
		kind = "amended"
	}
	if s.metrics != nil {
		s.metrics.IncrementRecorded(kind)
		s.metrics.ObserveAllocation(start)
		if !req.IsEdit() {
			s.metrics.AddAmount(req.Amount.InexactFloat64())
		}
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, result.OrganizationID)
	}
	s.logger.InfoContext(ctx, "handover "+kind,
		"handover_id", result.ID,
		"donation_id", result.DonationID,
		"case_id", result.CaseID,
		"amount", result.Amount.StringFixed(id.AmountScale),
		"total_handed_over", total.StringFixed(id.AmountScale),
		"actor_id", caller.UserID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// ListByDonation returns the donation's handovers ordered by date.
func (s *Service) ListByDonation(ctx context.Context, donationID id.DonationID) ([]*models.Handover, error) {
	caller := requestcontext.CallerFrom(ctx)
	if caller.IsAnonymous() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !caller.Role.CanReadLedger() {
		return nil, dErrors.New(dErrors.CodeForbidden, "role cannot read the donation ledger")
	}

	var out []*models.Handover
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.donations.FindByID(txCtx, donationID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "donation not found")
			}
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to load donation")
		}
		var err error
		out, err = s.store.ListByDonation(txCtx, donationID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to list handovers")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) emit(ctx context.Context, h *models.Handover, eventType outboxmodels.EventType, total decimal.Decimal, actor id.UserID, now time.Time) error {
	if s.events == nil {
		return nil
	}
	ev, err := outboxmodels.NewEvent(outboxmodels.AggregateHandover, h.ID.String(), h.OrganizationID, eventType,
		models.NewHandoverEvent(h, total, actor, now), now)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build ledger event")
	}
	if err := s.events.Append(ctx, ev); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to record ledger event")
	}
	return nil
}

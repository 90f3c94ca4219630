package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"fasela/internal/report/models"
	id "fasela/pkg/domain"
	"fasela/pkg/platform/tx"
)

// load reads cases and the ledger of orgID in parallel. Donations and handovers
// come from one snapshot transaction so the cached totals on donations agree
// with the handover rows read next to them. Cases are skipped for case-scoped
// loads.
func (s *Service) load(ctx context.Context, orgID id.OrganizationID, caseID *id.CaseID) (*models.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "report.load")
	defer span.End()

	g, ctx := errgroup.WithContext(ctx)
	snap := &models.Snapshot{}

	if caseID == nil {
		g.Go(func() error {
			start := time.Now()
			err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
				var err error
				snap.Cases, err = s.source.ListCases(txCtx, orgID)
				return err
			})
			s.observeLoad("cases", start)
			return err
		})
	}

	g.Go(func() error {
		start := time.Now()
		err := s.tx.RunInTx(tx.WithSnapshot(ctx), func(txCtx context.Context) error {
			var err error
			if snap.Donations, err = s.source.ListDonations(txCtx, orgID, caseID); err != nil {
				return err
			}
			snap.Handovers, err = s.source.ListHandovers(txCtx, orgID, caseID)
			return err
		})
		s.observeLoad("ledger", start)
		return err
	})

	if err := g.Wait(); err != nil {
		recordSpanError(span, err)
		return nil, wrapLoadErr(err)
	}
	return snap, nil
}

func (s *Service) observeLoad(source string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveLoadLatency(source, time.Since(start))
	}
}

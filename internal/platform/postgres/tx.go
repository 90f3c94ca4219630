package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	dErrors "fasela/pkg/domain-errors"
	"fasela/pkg/platform/sentinel"
	"fasela/pkg/platform/tx"
	"fasela/pkg/requestcontext"
)

const defaultTxTimeout = 5 * time.Second

// PostgreSQL SQLSTATEs surfaced as persistence failures or integrity faults.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateCheckViolation       = "23514"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateInsufficientPrivs    = "42501"
	sqlStateNumericOutOfRange    = "22003"
)

// TxRunner implements tx.Runner on a *sql.DB. Every transaction is scoped to
// the caller's organizations through transaction-local settings read by the
// row-level security policies.
type TxRunner struct {
	db      *sql.DB
	timeout time.Duration
	role    string
}

type TxOption func(*TxRunner)

// WithTimeout overrides the default deadline applied to contexts without one.
func WithTimeout(d time.Duration) TxOption {
	return func(r *TxRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRole switches every transaction to role via SET LOCAL ROLE, so that row
// policies apply even when the pool connects as the table owner.
func WithRole(role string) TxOption {
	return func(r *TxRunner) {
		r.role = role
	}
}

func NewTxRunner(db *sql.DB, opts ...TxOption) *TxRunner {
	r := &TxRunner{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *TxRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := tx.From(ctx); ok {
		return fn(ctx)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var opts *sql.TxOptions
	if tx.Snapshot(ctx) {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	sqlTx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return translate(err, "begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := r.applyScope(ctx, sqlTx); err != nil {
		return translate(err, "apply tenant scope")
	}

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return translate(err, "transaction failed")
	}

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted before commit")
	}
	if err := sqlTx.Commit(); err != nil {
		return translate(err, "commit transaction")
	}
	return nil
}

func (r *TxRunner) applyScope(ctx context.Context, sqlTx *sql.Tx) error {
	if r.role != "" {
		if _, err := sqlTx.ExecContext(ctx, "SET LOCAL ROLE "+pq.QuoteIdentifier(r.role)); err != nil {
			return err
		}
	}

	orgs := orgStrings(ctx)
	public := "off"
	if tx.PublicAccess(ctx) {
		public = "on"
	}

	_, err := sqlTx.ExecContext(ctx,
		`SELECT set_config('app.organization_ids', $1, true), set_config('app.public_access', $2, true)`,
		"{"+strings.Join(orgs, ",")+"}", public,
	)
	return err
}

// translate maps driver and context failures onto domain codes. Coded errors and
// store sentinels raised inside the unit are returned unchanged.
func translate(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) || isSentinel(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
			return dErrors.Wrap(err, dErrors.CodePersistence, "concurrent modification, retry the request")
		case sqlStateCheckViolation, sqlStateForeignKeyViolation:
			return dErrors.Wrap(err, dErrors.CodeIntegrity, "ledger constraint violated")
		case sqlStateInsufficientPrivs:
			return dErrors.Wrap(err, dErrors.CodeForbidden, "row outside caller scope")
		case sqlStateNumericOutOfRange:
			return dErrors.Wrap(err, dErrors.CodeValidation, "amount out of range")
		}
	}
	return dErrors.Wrap(err, dErrors.CodePersistence, msg)
}

func isSentinel(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound) ||
		errors.Is(err, sentinel.ErrConflict) ||
		errors.Is(err, sentinel.ErrInvalidState) ||
		errors.Is(err, sentinel.ErrUnavailable)
}

// OrgScope returns the caller's organizations as a uuid[] query argument for the
// explicit `organization_id = ANY($n)` predicate every store adds.
func OrgScope(ctx context.Context) any {
	return pq.Array(orgStrings(ctx))
}

func orgStrings(ctx context.Context) []string {
	caller := requestcontext.CallerFrom(ctx)
	orgs := make([]string, 0, len(caller.OrganizationIDs))
	for _, orgID := range caller.OrganizationIDs {
		orgs = append(orgs, orgID.String())
	}
	return orgs
}

package tx

import (
	"context"
	"database/sql"
	"sync"

	dErrors "fasela/pkg/domain-errors"
)

type (
	ctxKey      struct{}
	publicKey   struct{}
	lockingKey  struct{}
	snapshotKey struct{}
	journalKey  struct{}
)

var (
	txKey       = ctxKey{}
	publicCtx   = publicKey{}
	heldCtx     = lockingKey{}
	snapshotCtx = snapshotKey{}
	journalCtx  = journalKey{}
)

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// WithPublicAccess marks a unit of work as a donor-facing operation. The Postgres
// runner then opens the public row policies (read published cases, insert pending
// donations) in addition to the caller's organizations.
func WithPublicAccess(ctx context.Context) context.Context {
	return context.WithValue(ctx, publicCtx, true)
}

// PublicAccess reports whether ctx was marked with WithPublicAccess.
func PublicAccess(ctx context.Context) bool {
	v, _ := ctx.Value(publicCtx).(bool)
	return v
}

// WithSnapshot marks a read-only unit whose queries must all observe the same
// committed state. The Postgres runner opens it as REPEATABLE READ READ ONLY.
func WithSnapshot(ctx context.Context) context.Context {
	return context.WithValue(ctx, snapshotCtx, true)
}

// Snapshot reports whether ctx was marked with WithSnapshot.
func Snapshot(ctx context.Context) bool {
	v, _ := ctx.Value(snapshotCtx).(bool)
	return v
}

// Querier is the subset of *sql.DB and *sql.Tx the Postgres stores use.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QuerierFrom returns the transaction carried by ctx, or db when there is none.
func QuerierFrom(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// Runner executes fn inside one atomic unit. Stores called with the context passed
// to fn participate in that unit.
type Runner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Locking is the in-memory Runner: a process-wide mutex serializes every unit, so
// a check performed inside fn cannot be invalidated by a concurrent writer. A
// nested RunInTx on a context that already holds the lock joins the outer unit.
//
// Memory stores take part through OnRollback and OnCommit. When fn fails, or ctx
// ends before the unit completes, the registered undo steps run newest first and
// the commit hooks are dropped, so no write of the unit survives.
type Locking struct {
	mu sync.Mutex
}

func NewLocking() *Locking {
	return &Locking{}
}

type journal struct {
	undo     []func()
	onCommit []func()
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
}

func (j *journal) commit() {
	for _, fn := range j.onCommit {
		fn()
	}
}

func (l *Locking) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if held, _ := ctx.Value(heldCtx).(*Locking); held == l {
		return fn(ctx)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	j := &journal{}
	txCtx := context.WithValue(context.WithValue(ctx, heldCtx, l), journalCtx, j)
	if err := fn(txCtx); err != nil {
		j.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		j.rollback()
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	j.commit()
	return nil
}

// OnRollback registers undo to restore a write if the enclosing Locking unit
// fails. Outside such a unit the write is final and undo is discarded.
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalCtx).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// OnCommit runs fn once the enclosing Locking unit succeeds, or immediately when
// ctx carries no such unit. Writes that other readers must not see early, such
// as outbox events, go through it.
func OnCommit(ctx context.Context, fn func()) {
	if j, ok := ctx.Value(journalCtx).(*journal); ok {
		j.onCommit = append(j.onCommit, fn)
		return
	}
	fn()
}

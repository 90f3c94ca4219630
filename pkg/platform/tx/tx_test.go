package tx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fasela/pkg/domain-errors"
)

func TestLocking_RejectsCancelledContext(t *testing.T) {
	runner := NewLocking()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := runner.RunInTx(ctx, func(context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.False(t, called)
}

func TestLocking_NestedUnitJoinsOuter(t *testing.T) {
	runner := NewLocking()
	var inner bool
	err := runner.RunInTx(context.Background(), func(txCtx context.Context) error {
		return runner.RunInTx(txCtx, func(context.Context) error {
			inner = true
			return nil
		})
	})
	require.NoError(t, err)
	assert.True(t, inner)
}

func TestLocking_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := NewLocking().RunInTx(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestLocking_SerializesUnits(t *testing.T) {
	runner := NewLocking()
	counter := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = runner.RunInTx(context.Background(), func(context.Context) error {
				v := counter
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestPublicAccess(t *testing.T) {
	ctx := context.Background()
	assert.False(t, PublicAccess(ctx))
	assert.True(t, PublicAccess(WithPublicAccess(ctx)))
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	assert.False(t, Snapshot(ctx))
	assert.True(t, Snapshot(WithSnapshot(ctx)))
	assert.False(t, PublicAccess(WithSnapshot(ctx)))
}

func TestLocking_FailedUnitRunsUndoNewestFirst(t *testing.T) {
	var order []string
	committed := false
	err := NewLocking().RunInTx(context.Background(), func(txCtx context.Context) error {
		OnRollback(txCtx, func() { order = append(order, "first") })
		OnRollback(txCtx, func() { order = append(order, "second") })
		OnCommit(txCtx, func() { committed = true })
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, []string{"second", "first"}, order)
	assert.False(t, committed)
}

func TestLocking_CancelledDuringUnitRollsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	undone, committed := false, false
	err := NewLocking().RunInTx(ctx, func(txCtx context.Context) error {
		OnRollback(txCtx, func() { undone = true })
		OnCommit(txCtx, func() { committed = true })
		cancel()
		return nil
	})

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.True(t, undone)
	assert.False(t, committed)
}

func TestLocking_CommitHooksRunAfterSuccess(t *testing.T) {
	runner := NewLocking()
	var seen []string
	err := runner.RunInTx(context.Background(), func(txCtx context.Context) error {
		OnRollback(txCtx, func() { seen = append(seen, "undo") })
		return runner.RunInTx(txCtx, func(inner context.Context) error {
			OnCommit(inner, func() { seen = append(seen, "commit") })
			assert.Empty(t, seen, "hooks wait for the outer unit")
			return nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"commit"}, seen)
}

func TestOnCommitOutsideUnitRunsImmediately(t *testing.T) {
	ran := false
	OnCommit(context.Background(), func() { ran = true })
	OnRollback(context.Background(), func() { t.Fatal("undo outside a unit must be discarded") })
	assert.True(t, ran)
}

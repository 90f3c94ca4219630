package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	dErrors "fasela/pkg/domain-errors"
	"fasela/pkg/platform/sentinel"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want dErrors.Code
	}{
		{"coded error passes through", dErrors.New(dErrors.CodeOverAllocation, "too much"), dErrors.CodeOverAllocation},
		{"deadline", context.DeadlineExceeded, dErrors.CodeTimeout},
		{"serialization failure", &pq.Error{Code: "40001"}, dErrors.CodePersistence},
		{"deadlock", &pq.Error{Code: "40P01"}, dErrors.CodePersistence},
		{"check violation", &pq.Error{Code: "23514"}, dErrors.CodeIntegrity},
		{"policy violation", &pq.Error{Code: "42501"}, dErrors.CodeForbidden},
		{"numeric overflow", &pq.Error{Code: "22003"}, dErrors.CodeValidation},
		{"anything else", errors.New("connection reset"), dErrors.CodePersistence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dErrors.CodeOf(translate(tt.err, "op")))
		})
	}
}

func TestRunInTx_CancelledContextNeverBegins(t *testing.T) {
	// A nil *sql.DB would panic on BeginTx; the cancelled check must come first.
	runner := NewTxRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.RunInTx(ctx, func(context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestTranslate_SentinelPassesThrough(t *testing.T) {
	err := translate(fmt.Errorf("find donation: %w", sentinel.ErrNotFound), "op")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.False(t, dErrors.HasCode(err, dErrors.CodePersistence))
}

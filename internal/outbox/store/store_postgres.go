package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fasela/internal/outbox/models"
	"fasela/pkg/platform/tx"
)

var errNoTransaction = errors.New("outbox store: claim requires a transaction in context")

// PostgresStore implements the transactional outbox. Ledger services append in
// their own transaction; the relay worker claims and marks rows in another.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event *models.Event) error {
	_, err := tx.QuerierFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, organization_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.AggregateType, event.AggregateID, uuid.UUID(event.OrganizationID),
		string(event.EventType), []byte(event.Payload), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ClaimBatch locks up to limit unpublished rows, oldest first. Rows locked by
// another relay are skipped, so several workers can run side by side.
func (s *PostgresStore) ClaimBatch(ctx context.Context, limit int) ([]*models.Event, error) {
	sqlTx, ok := tx.From(ctx)
	if !ok {
		return nil, errNoTransaction
	}
	rows, err := sqlTx.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, organization_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		var (
			e         models.Event
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, (*uuid.UUID)(&e.OrganizationID),
			&eventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.EventType = models.EventType(eventType)
		e.Payload = payload
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, k := range ids {
		keys[i] = k.String()
	}
	_, err := tx.QuerierFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE outbox SET published_at = $2
		WHERE id = ANY($1::uuid[]) AND published_at IS NULL`,
		pq.Array(keys), at,
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}


package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fasela/internal/handover/models"
	"fasela/internal/platform/postgres"
	id "fasela/pkg/domain"
	"fasela/pkg/platform/sentinel"
	"fasela/pkg/platform/tx"
)

// PostgresStore persists handovers in donation_handovers. The composite foreign
// key to donations pins case and organization to the owning donation.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const handoverColumns = `id, organization_id, donation_id, case_id, handover_amount, handover_date,
	notes, created_by, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, h *models.Handover) error {
	var createdBy any
	if h.CreatedBy != nil {
		createdBy = uuid.UUID(*h.CreatedBy)
	}
	_, err := tx.QuerierFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO donation_handovers (`+handoverColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(h.ID), uuid.UUID(h.OrganizationID), uuid.UUID(h.DonationID), uuid.UUID(h.CaseID),
		h.Amount, h.HandoverDate, h.Notes, createdBy, h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("handover %s: %w", h.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert handover: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, h *models.Handover) error {
	res, err := tx.QuerierFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE donation_handovers
		SET handover_amount = $2, notes = $3, updated_at = $4
		WHERE id = $1 AND organization_id = ANY($5::uuid[])`,
		uuid.UUID(h.ID), h.Amount, h.Notes, h.UpdatedAt, postgres.OrgScope(ctx),
	)
	if err != nil {
		return fmt.Errorf("update handover: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update handover: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, handoverID id.HandoverID) (*models.Handover, error) {
	row := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+handoverColumns+`
		FROM donation_handovers
		WHERE id = $1 AND organization_id = ANY($2::uuid[])`,
		uuid.UUID(handoverID), postgres.OrgScope(ctx),
	)
	return scanHandover(row)
}

func (s *PostgresStore) ListByDonation(ctx context.Context, donationID id.DonationID) ([]*models.Handover, error) {
	return s.list(ctx, "donation_id = $1", uuid.UUID(donationID))
}

func (s *PostgresStore) ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*models.Handover, error) {
	return s.list(ctx, "organization_id = $1", uuid.UUID(orgID))
}

func (s *PostgresStore) ListByCase(ctx context.Context, caseID id.CaseID) ([]*models.Handover, error) {
	return s.list(ctx, "case_id = $1", uuid.UUID(caseID))
}

func (s *PostgresStore) list(ctx context.Context, predicate string, arg any) ([]*models.Handover, error) {
	rows, err := tx.QuerierFrom(ctx, s.db).QueryContext(ctx, `
		SELECT `+handoverColumns+`
		FROM donation_handovers
		WHERE `+predicate+` AND organization_id = ANY($2::uuid[])
		ORDER BY handover_date, created_at, id`,
		arg, postgres.OrgScope(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("list handovers: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Handover, 0)
	for rows.Next() {
		h, err := scanHandover(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate handovers: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHandover(row rowScanner) (*models.Handover, error) {
	var (
		h         models.Handover
		createdBy uuid.NullUUID
	)
	err := row.Scan(
		(*uuid.UUID)(&h.ID),
		(*uuid.UUID)(&h.OrganizationID),
		(*uuid.UUID)(&h.DonationID),
		(*uuid.UUID)(&h.CaseID),
		&h.Amount,
		&h.HandoverDate,
		&h.Notes,
		&createdBy,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan handover: %w", err)
	}
	h.HandoverDate = models.DateOnly(h.HandoverDate)
	if createdBy.Valid {
		by := id.UserID(createdBy.UUID)
		h.CreatedBy = &by
	}
	return &h, nil
}

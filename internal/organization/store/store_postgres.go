package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fasela/internal/organization/models"
	"fasela/internal/platform/postgres"
	id "fasela/pkg/domain"
	"fasela/pkg/platform/sentinel"
	"fasela/pkg/platform/tx"
)

// PostgresStore reads organizations and cases. Queries run on the transaction in
// context when present so row policies see the caller's scope.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const caseColumns = `c.id, c.organization_id, c.title, c.monthly_cost, c.months_needed, c.months_covered,
	c.care_type, c.status, c.published, c.payment_code, c.created_at`

func (s *PostgresStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	_, err := tx.QuerierFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, active, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(org.ID), org.Name, org.Slug, org.Active, org.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("organization slug %q: %w", org.Slug, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateCase(ctx context.Context, c *models.Case) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := tx.QuerierFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO cases (id, organization_id, title, monthly_cost, months_needed, months_covered,
			care_type, status, published, payment_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(c.ID), uuid.UUID(c.OrganizationID), c.Title, c.MonthlyCost, c.MonthsNeeded, c.MonthsCovered,
		string(c.CareType), string(c.Status), c.Published, c.PaymentCode, c.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return fmt.Errorf("organization %s: %w", c.OrganizationID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindOrganization(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	var org models.Organization
	err := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, name, slug, active, created_at
		FROM organizations
		WHERE id = $1 AND id = ANY($2::uuid[])`,
		uuid.UUID(orgID), postgres.OrgScope(ctx),
	).Scan((*uuid.UUID)(&org.ID), &org.Name, &org.Slug, &org.Active, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find organization: %w", err)
	}
	return &org, nil
}

func (s *PostgresStore) FindCase(ctx context.Context, caseID id.CaseID) (*models.Case, error) {
	row := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+caseColumns+`
		FROM cases c
		WHERE c.id = $1 AND c.organization_id = ANY($2::uuid[])`,
		uuid.UUID(caseID), postgres.OrgScope(ctx),
	)
	return scanCase(row)
}

func (s *PostgresStore) FindDonatableCase(ctx context.Context, caseID id.CaseID) (*models.Case, error) {
	row := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+caseColumns+`
		FROM cases c
		JOIN organizations o ON o.id = c.organization_id
		WHERE c.id = $1
		  AND o.active
		  AND c.status = 'active'
		  AND c.published
		  AND c.care_type <> 'cancelled'`,
		uuid.UUID(caseID),
	)
	return scanCase(row)
}

func (s *PostgresStore) ListCases(ctx context.Context, orgID id.OrganizationID) ([]*models.Case, error) {
	rows, err := tx.QuerierFrom(ctx, s.db).QueryContext(ctx, `
		SELECT `+caseColumns+`
		FROM cases c
		WHERE c.organization_id = $1 AND c.organization_id = ANY($2::uuid[])
		ORDER BY c.created_at, c.id`,
		uuid.UUID(orgID), postgres.OrgScope(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var out []*models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*models.Case, error) {
	var (
		c        models.Case
		careType string
		status   string
	)
	err := row.Scan(
		(*uuid.UUID)(&c.ID),
		(*uuid.UUID)(&c.OrganizationID),
		&c.Title,
		&c.MonthlyCost,
		&c.MonthsNeeded,
		&c.MonthsCovered,
		&careType,
		&status,
		&c.Published,
		&c.PaymentCode,
		&c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan case: %w", err)
	}
	c.CareType = models.CareType(careType)
	c.Status = models.CaseStatus(status)
	return &c, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"fasela/internal/donation/models"
	"fasela/internal/platform/postgres"
	id "fasela/pkg/domain"
	"fasela/pkg/platform/sentinel"
	"fasela/pkg/platform/tx"
)

// errNoTransaction is returned by row-locking methods called outside RunInTx.
var errNoTransaction = errors.New("donation store: row lock requires a transaction in context")

// PostgresStore persists donations. Every query carries an explicit
// organization predicate in addition to the row policies.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const donationColumns = `id, organization_id, case_id, donor_name, donor_email, amount, donation_type,
	months_pledged, payment_code, status, payment_reference, admin_notes, created_at,
	confirmed_at, confirmed_by, cancelled_at, total_handed_over, version`

func (s *PostgresStore) Create(ctx context.Context, d *models.Donation) error {
	_, err := tx.QuerierFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO donations (id, organization_id, case_id, donor_name, donor_email, amount, donation_type,
			months_pledged, payment_code, status, created_at, total_handed_over, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(d.ID), uuid.UUID(d.OrganizationID), uuid.UUID(d.CaseID),
		nullString(d.DonorName), nullString(d.DonorEmail), d.Amount, string(d.DonationType),
		d.MonthsPledged, d.PaymentCode, string(d.Status), d.CreatedAt, d.TotalHandedOver, d.Version,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("donation %s: %w", d.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, donationID id.DonationID) (*models.Donation, error) {
	row := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		WHERE id = $1 AND organization_id = ANY($2::uuid[])`,
		uuid.UUID(donationID), postgres.OrgScope(ctx),
	)
	return scanDonation(row)
}

// FindForUpdate locks the donation row until the surrounding transaction ends.
// Allocations on one donation are serialized behind this lock.
func (s *PostgresStore) FindForUpdate(ctx context.Context, donationID id.DonationID) (*models.Donation, error) {
	sqlTx, ok := tx.From(ctx)
	if !ok {
		return nil, errNoTransaction
	}
	row := sqlTx.QueryRowContext(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		WHERE id = $1 AND organization_id = ANY($2::uuid[])
		FOR UPDATE`,
		uuid.UUID(donationID), postgres.OrgScope(ctx),
	)
	return scanDonation(row)
}

// Execute locks the row, runs validate and mutate on it and writes the status
// fields back, all inside the transaction carried by ctx.
func (s *PostgresStore) Execute(ctx context.Context, donationID id.DonationID, validate func(*models.Donation) error, mutate func(*models.Donation)) (*models.Donation, error) {
	d, err := s.FindForUpdate(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if err := validate(d); err != nil {
		return nil, err
	}
	mutate(d)

	sqlTx, _ := tx.From(ctx)
	var confirmedBy any
	if d.ConfirmedBy != nil {
		confirmedBy = uuid.UUID(*d.ConfirmedBy)
	}
	res, err := sqlTx.ExecContext(ctx, `
		UPDATE donations
		SET status = $2, payment_reference = $3, admin_notes = $4,
			confirmed_at = $5, confirmed_by = $6, cancelled_at = $7, version = version + 1
		WHERE id = $1 AND version = $8`,
		uuid.UUID(d.ID), string(d.Status), d.PaymentReference, d.AdminNotes,
		d.ConfirmedAt, confirmedBy, d.CancelledAt, d.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("update donation: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("update donation: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("donation %s changed concurrently: %w", d.ID, sentinel.ErrConflict)
	}
	d.Version++
	return d, nil
}

// UpdateHandedOver writes the cached handover total with a compare-and-swap on
// version.
func (s *PostgresStore) UpdateHandedOver(ctx context.Context, donationID id.DonationID, total decimal.Decimal, expectedVersion int64) (*models.Donation, error) {
	row := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx, `
		UPDATE donations
		SET total_handed_over = $2, version = version + 1
		WHERE id = $1 AND version = $3 AND organization_id = ANY($4::uuid[])
		RETURNING `+donationColumns,
		uuid.UUID(donationID), total, expectedVersion, postgres.OrgScope(ctx),
	)
	d, err := scanDonation(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("donation %s not at version %d: %w", donationID, expectedVersion, sentinel.ErrConflict)
	}
	return d, err
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Donation, int, error) {
	where, args := buildListWhere(ctx, filter)
	q := tx.QuerierFrom(ctx, s.db)

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM donations WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count donations: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM donations
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, donationColumns, where, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	items, err := scanDonations(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func buildListWhere(ctx context.Context, filter models.ListFilter) (string, []any) {
	clauses := []string{"organization_id = ANY($1::uuid[])"}
	args := []any{postgres.OrgScope(ctx)}
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.OrganizationID != nil {
		add("organization_id = $%d", uuid.UUID(*filter.OrganizationID))
	}
	if filter.CaseID != nil {
		add("case_id = $%d", uuid.UUID(*filter.CaseID))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		add("status = ANY($%d)", pq.Array(statuses))
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}
	return strings.Join(clauses, " AND "), args
}

func (s *PostgresStore) ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*models.Donation, error) {
	rows, err := tx.QuerierFrom(ctx, s.db).QueryContext(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		WHERE organization_id = $1 AND organization_id = ANY($2::uuid[])
		ORDER BY created_at, id`,
		uuid.UUID(orgID), postgres.OrgScope(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("list organization donations: %w", err)
	}
	defer rows.Close()
	return scanDonations(rows)
}

func (s *PostgresStore) ListByCase(ctx context.Context, caseID id.CaseID) ([]*models.Donation, error) {
	rows, err := tx.QuerierFrom(ctx, s.db).QueryContext(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		WHERE case_id = $1 AND organization_id = ANY($2::uuid[])
		ORDER BY created_at, id`,
		uuid.UUID(caseID), postgres.OrgScope(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("list case donations: %w", err)
	}
	defer rows.Close()
	return scanDonations(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(row rowScanner) (*models.Donation, error) {
	var (
		d            models.Donation
		donorName    sql.NullString
		donorEmail   sql.NullString
		donationType string
		status       string
		confirmedAt  sql.NullTime
		confirmedBy  uuid.NullUUID
		cancelledAt  sql.NullTime
	)
	err := row.Scan(
		(*uuid.UUID)(&d.ID),
		(*uuid.UUID)(&d.OrganizationID),
		(*uuid.UUID)(&d.CaseID),
		&donorName,
		&donorEmail,
		&d.Amount,
		&donationType,
		&d.MonthsPledged,
		&d.PaymentCode,
		&status,
		&d.PaymentReference,
		&d.AdminNotes,
		&d.CreatedAt,
		&confirmedAt,
		&confirmedBy,
		&cancelledAt,
		&d.TotalHandedOver,
		&d.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan donation: %w", err)
	}
	d.DonorName = donorName.String
	d.DonorEmail = donorEmail.String
	d.DonationType = models.DonationType(donationType)
	d.Status = models.Status(status)
	if confirmedAt.Valid {
		t := confirmedAt.Time
		d.ConfirmedAt = &t
	}
	if confirmedBy.Valid {
		by := id.UserID(confirmedBy.UUID)
		d.ConfirmedBy = &by
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		d.CancelledAt = &t
	}
	return &d, nil
}

func scanDonations(rows *sql.Rows) ([]*models.Donation, error) {
	out := make([]*models.Donation, 0)
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donations: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

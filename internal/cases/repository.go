package cases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"assist-platform/pkg/utils"
)

var (
	ErrNotFound        = errors.New("cases: not found")
	ErrInvalidArgument = errors.New("cases: invalid argument")
	ErrBadTransition   = errors.New("cases: illegal status transition")
)

// Repository is the persistence contract for assistance cases.
type Repository interface {
	Create(ctx context.Context, c Case) error
	Get(ctx context.Context, id string) (Case, error)
	SetStatus(ctx context.Context, id string, to CaseStatus) (Case, error)
	SetDiagnosisID(ctx context.Context, id, diagnosisID string) error
}

// PostgresRepo assumes a `cases` table matching the Case db tags.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, c Case) error {
	const q = `
INSERT INTO cases (id, org_id, vehicle_id, plate_number, reporter_name, reporter_phone, diagnosis_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.OrgID, c.VehicleID, c.PlateNumber,
		c.ReporterName, c.ReporterPhone, c.DiagnosisID,
		c.Status, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Case, error) {
	return scanCase(r.db.QueryRowContext(ctx, selectCaseQuery+` WHERE id = $1`, id))
}

// SetStatus locks the row, validates the transition, and updates.
func (r *PostgresRepo) SetStatus(ctx context.Context, id string, to CaseStatus) (Case, error) {
	var out Case
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		c, err := scanCase(tx.QueryRowContext(ctx, selectCaseQuery+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if !canTransition(c.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.Status, to)
		}

		out, err = scanCase(tx.QueryRowContext(ctx, `
UPDATE cases SET status = $2, updated_at = now()
WHERE id = $1
RETURNING id, org_id, vehicle_id, plate_number, reporter_name, reporter_phone, diagnosis_id, status, created_at, updated_at
`, id, to))
		return err
	})
	if err != nil {
		return Case{}, err
	}
	return out, nil
}

func (r *PostgresRepo) SetDiagnosisID(ctx context.Context, id, diagnosisID string) error {
	const q = `UPDATE cases SET diagnosis_id = $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, diagnosisID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectCaseQuery = `
SELECT id, org_id, vehicle_id, plate_number, reporter_name, reporter_phone, diagnosis_id, status, created_at, updated_at
FROM cases`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (Case, error) {
	var c Case
	err := row.Scan(
		&c.ID,
		&c.OrgID,
		&c.VehicleID,
		&c.PlateNumber,
		&c.ReporterName,
		&c.ReporterPhone,
		&c.DiagnosisID,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Case{}, ErrNotFound
	}
	if err != nil {
		return Case{}, err
	}
	return c, nil
}

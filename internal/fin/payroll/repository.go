package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/platform/db"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Repository persists pay runs within the active company scope.
type Repository interface {
	Create(ctx context.Context, p PayRun) error
	Get(ctx context.Context, id uuid.UUID) (PayRun, error)
	List(ctx context.Context) ([]PayRun, error)
	SetExecuted(ctx context.Context, tx pgx.Tx, id, transactionID uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pay run repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const columns = `id, company_id, period_label, gross_minor, withheld_minor, status, pay_date, transaction_id, created_at`

func scanPayRun(row pgx.Row) (PayRun, error) {
	var p PayRun
	var gross, withheld int64
	err := row.Scan(&p.ID, &p.CompanyID, &p.PeriodLabel, &gross, &withheld, &p.Status, &p.PayDate, &p.TransactionID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PayRun{}, shared.ErrNotFound
		}
		return PayRun{}, fmt.Errorf("%w: scan pay run: %v", shared.ErrStorage, err)
	}
	p.GrossMinor = shared.Minor(gross)
	p.WithheldMinor = shared.Minor(withheld)
	return p, nil
}

func (r *repository) Create(ctx context.Context, p PayRun) error {
	if err := scope.AssertCompany(ctx, p.CompanyID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO pay_runs (id, company_id, period_label, gross_minor, withheld_minor, status, pay_date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.CompanyID, p.PeriodLabel, int64(p.GrossMinor), int64(p.WithheldMinor), p.Status, p.PayDate, p.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_pay_runs_company_period") {
			return fmt.Errorf("%w: pay run for %s exists", shared.ErrConflict, p.PeriodLabel)
		}
		return fmt.Errorf("%w: insert pay run: %v", shared.ErrStorage, err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (PayRun, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return PayRun{}, err
	}
	return scanPayRun(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM pay_runs WHERE id=$1 AND company_id=$2`, id, companyID))
}

func (r *repository) List(ctx context.Context) ([]PayRun, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM pay_runs WHERE company_id=$1 ORDER BY pay_date DESC LIMIT 100`, companyID)
	if err != nil {
		return nil, fmt.Errorf("%w: list pay runs: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var out []PayRun
	for rows.Next() {
		p, err := scanPayRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) SetExecuted(ctx context.Context, tx pgx.Tx, id, transactionID uuid.UUID) error {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE pay_runs SET status=$3, transaction_id=$4 WHERE id=$1 AND company_id=$2 AND status=$5`,
		id, companyID, StatusExecuted, transactionID, StatusDraft)
	if err != nil {
		return fmt.Errorf("%w: execute pay run: %v", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: pay run is not a draft", shared.ErrInvalidStatus)
	}
	return nil
}

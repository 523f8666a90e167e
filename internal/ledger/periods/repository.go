package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Repository is the scoped store for accounting periods. Date lookups used
// during posting run inside the posting transaction with a row lock so a
// concurrent close cannot race the insert.
type Repository interface {
	Create(ctx context.Context, p Period) (Period, error)
	Get(ctx context.Context, id uuid.UUID) (Period, error)
	List(ctx context.Context) ([]Period, error)
	SetState(ctx context.Context, tx pgx.Tx, id uuid.UUID, state State, actor uuid.UUID, at time.Time) error

	// FindByDateForUpdate locks the period covering date within the given
	// transaction. Second return is false when no period covers the date.
	FindByDateForUpdate(ctx context.Context, tx pgx.Tx, date time.Time) (Period, bool, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Period, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the scoped repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const periodColumns = `id, company_id, start_date, end_date, type, state, closed_by, closed_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.CompanyID, &p.StartDate, &p.EndDate, &p.Type, &p.State, &p.ClosedBy, &p.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrNotFound
		}
		return Period{}, fmt.Errorf("%w: scan period: %v", shared.ErrStorage, err)
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, p Period) (Period, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Period{}, err
	}
	if p.EndDate.Before(p.StartDate) {
		return Period{}, fmt.Errorf("%w: period end before start", shared.ErrInvalidStatus)
	}
	p.ID = uuid.New()
	p.CompanyID = companyID
	p.State = StateOpen
	row := r.pool.QueryRow(ctx, `INSERT INTO accounting_periods (id, company_id, start_date, end_date, type, state)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+periodColumns,
		p.ID, p.CompanyID, p.StartDate, p.EndDate, p.Type, p.State)
	return scanPeriod(row)
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Period, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Period{}, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1 AND company_id=$2`, id, companyID)
	return scanPeriod(row)
}

func (r *repository) List(ctx context.Context) ([]Period, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE company_id=$1 ORDER BY start_date`, companyID)
	if err != nil {
		return nil, fmt.Errorf("%w: list periods: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) SetState(ctx context.Context, tx pgx.Tx, id uuid.UUID, state State, actor uuid.UUID, at time.Time) error {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return err
	}
	var closedBy any
	var closedAt any
	if state == StateClosed {
		closedBy, closedAt = actor, at
	}
	tag, err := tx.Exec(ctx, `UPDATE accounting_periods SET state=$3, closed_by=$4, closed_at=$5 WHERE id=$1 AND company_id=$2`,
		id, companyID, state, closedBy, closedAt)
	if err != nil {
		return fmt.Errorf("%w: set period state: %v", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) FindByDateForUpdate(ctx context.Context, tx pgx.Tx, date time.Time) (Period, bool, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Period{}, false, err
	}
	row := tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods
		WHERE company_id=$1 AND start_date <= $2 AND end_date >= $2 FOR UPDATE`, companyID, date)
	p, err := scanPeriod(row)
	if errors.Is(err, shared.ErrNotFound) {
		return Period{}, false, nil
	}
	if err != nil {
		return Period{}, false, err
	}
	return p, true, nil
}

func (r *repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Period, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Period{}, err
	}
	row := tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1 AND company_id=$2 FOR UPDATE`, id, companyID)
	return scanPeriod(row)
}

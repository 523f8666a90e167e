package accounts

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

// Repository encapsulates DB operations for the chart of accounts. Every
// query is constrained by the active company scope; a row from another
// company is indistinguishable from an absent row.
type Repository interface {
	Create(ctx context.Context, a Account) (Account, error)
	Get(ctx context.Context, id uuid.UUID) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the scoped repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const accountColumns = `id, company_id, code, name, type, subtype, parent_id, active, allow_negative_balance, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.ParentID, &a.Active, &a.AllowNegativeBalance, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, fmt.Errorf("%w: scan account: %v", shared.ErrStorage, err)
	}
	return a, nil
}

func (r *repository) Create(ctx context.Context, a Account) (Account, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Account{}, err
	}
	if a.CompanyID != uuid.Nil && a.CompanyID != companyID {
		return Account{}, shared.ErrCrossTenant
	}
	a.CompanyID = companyID
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err = db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO accounts (id, company_id, code, name, type, subtype, parent_id, active, allow_negative_balance)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING `+accountColumns,
			a.ID, a.CompanyID, a.Code, a.Name, a.Type, a.Subtype, a.ParentID, a.Active, a.AllowNegativeBalance)
		a, err = scanAccount(row)
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err, "uq_accounts_company_code") {
			return Account{}, fmt.Errorf("%w: account code %q already exists", shared.ErrInvalidStatus, a.Code)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Account{}, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 AND company_id=$2`, id, companyID)
	return scanAccount(row)
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Account{}, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1 AND company_id=$2`, code, companyID)
	return scanAccount(row)
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET active=$3 WHERE id=$1 AND company_id=$2`, id, companyID, active)
	if err != nil {
		return fmt.Errorf("%w: set account active: %v", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

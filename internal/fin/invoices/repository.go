package invoices

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

// Repository persists invoices within the active company scope.
type Repository interface {
	Create(ctx context.Context, inv Invoice) error
	Get(ctx context.Context, id uuid.UUID) (Invoice, error)
	List(ctx context.Context) ([]Invoice, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Invoice, error)
	SetFinalized(ctx context.Context, tx pgx.Tx, id, transactionID uuid.UUID) error
	SetPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	PaidTotal(ctx context.Context, tx pgx.Tx, id uuid.UUID) (shared.Minor, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the invoice repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const columns = `id, company_id, number, customer, issue_date, total_minor, tax_minor, status, transaction_id, created_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var total, tax int64
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.Number, &inv.Customer, &inv.IssueDate,
		&total, &tax, &inv.Status, &inv.TransactionID, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.ErrNotFound
		}
		return Invoice{}, fmt.Errorf("%w: scan invoice: %v", shared.ErrStorage, err)
	}
	inv.TotalMinor = shared.Minor(total)
	inv.TaxMinor = shared.Minor(tax)
	return inv, nil
}

func (r *repository) Create(ctx context.Context, inv Invoice) error {
	if err := scope.AssertCompany(ctx, inv.CompanyID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO invoices (id, company_id, number, customer, issue_date, total_minor, tax_minor, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		inv.ID, inv.CompanyID, inv.Number, inv.Customer, inv.IssueDate,
		int64(inv.TotalMinor), int64(inv.TaxMinor), inv.Status, inv.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_invoices_company_number") {
			return fmt.Errorf("%w: invoice number %s exists", shared.ErrConflict, inv.Number)
		}
		return fmt.Errorf("%w: insert invoice: %v", shared.ErrStorage, err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Invoice{}, err
	}
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM invoices WHERE id=$1 AND company_id=$2`, id, companyID))
}

func (r *repository) List(ctx context.Context) ([]Invoice, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM invoices WHERE company_id=$1 ORDER BY created_at DESC LIMIT 200`, companyID)
	if err != nil {
		return nil, fmt.Errorf("%w: list invoices: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Invoice, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Invoice{}, err
	}
	return scanInvoice(tx.QueryRow(ctx, `SELECT `+columns+` FROM invoices WHERE id=$1 AND company_id=$2 FOR UPDATE`, id, companyID))
}

func (r *repository) SetFinalized(ctx context.Context, tx pgx.Tx, id, transactionID uuid.UUID) error {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE invoices SET status=$3, transaction_id=$4 WHERE id=$1 AND company_id=$2 AND status=$5`,
		id, companyID, StatusFinalized, transactionID, StatusDraft)
	if err != nil {
		return fmt.Errorf("%w: finalize invoice: %v", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice is not a draft", shared.ErrInvalidStatus)
	}
	return nil
}

func (r *repository) SetPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE invoices SET status=$3 WHERE id=$1 AND company_id=$2 AND status=$4`,
		id, companyID, StatusPaid, StatusFinalized)
	if err != nil {
		return fmt.Errorf("%w: mark invoice paid: %v", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice is not finalized", shared.ErrInvalidStatus)
	}
	return nil
}

func (r *repository) PaidTotal(ctx context.Context, tx pgx.Tx, id uuid.UUID) (shared.Minor, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	err = tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount_minor), 0) FROM payments WHERE invoice_id=$1 AND company_id=$2`, id, companyID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("%w: paid total: %v", shared.ErrStorage, err)
	}
	return shared.Minor(total), nil
}

package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Repository persists payments within the active company scope.
type Repository interface {
	Insert(ctx context.Context, tx pgx.Tx, p Payment) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the payment repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// Insert writes the payment row inside the posting transaction.
func (r *repository) Insert(ctx context.Context, tx pgx.Tx, p Payment) error {
	if err := scope.AssertCompany(ctx, p.CompanyID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `INSERT INTO payments (id, company_id, invoice_id, amount_minor, received_on, transaction_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.CompanyID, p.InvoiceID, int64(p.AmountMinor), p.ReceivedOn, p.TransactionID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert payment: %v", shared.ErrStorage, err)
	}
	return nil
}

func (r *repository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, invoice_id, amount_minor, received_on, transaction_id, created_at
		FROM payments WHERE invoice_id=$1 AND company_id=$2 ORDER BY created_at`, invoiceID, companyID)
	if err != nil {
		return nil, fmt.Errorf("%w: list payments: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		var amount int64
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.InvoiceID, &amount, &p.ReceivedOn, &p.TransactionID, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.AmountMinor = shared.Minor(amount)
		out = append(out, p)
	}
	return out, rows.Err()
}

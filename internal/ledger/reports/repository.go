package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Repository reads aggregated posted-line activity per account.
type Repository interface {
	Activity(ctx context.Context, from, to time.Time) ([]AccountActivity, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the scoped reports repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// Activity aggregates debit/credit totals inside [from, to] plus the
// signed opening balance before the window. Lines of transactions in
// status posted or reversed both count: a reversed original and its
// reversal net to zero, which is exactly the report contract.
func (r *repository) Activity(ctx context.Context, from, to time.Time) ([]AccountActivity, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.code, a.name, a.type, a.subtype,
			COALESCE(SUM(CASE WHEN t.date < $2 THEN l.debit_minor - l.credit_minor ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN t.date >= $2 AND t.date <= $3 THEN l.debit_minor ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN t.date >= $2 AND t.date <= $3 THEN l.credit_minor ELSE 0 END), 0)
		FROM accounts a
		LEFT JOIN transaction_lines l ON l.account_id = a.id AND l.company_id = a.company_id
		LEFT JOIN transactions t ON t.id = l.transaction_id AND t.status IN ('posted', 'reversed')
		WHERE a.company_id = $1
		GROUP BY a.id, a.code, a.name, a.type, a.subtype
		ORDER BY a.code`, companyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: report activity: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	var out []AccountActivity
	for rows.Next() {
		var a AccountActivity
		var opening, debit, credit int64
		if err := rows.Scan(&a.AccountID, &a.Code, &a.Name, &a.Type, &a.Subtype, &opening, &debit, &credit); err != nil {
			return nil, err
		}
		a.Opening = shared.Minor(opening)
		a.Debit = shared.Minor(debit)
		a.Credit = shared.Minor(credit)
		out = append(out, a)
	}
	return out, rows.Err()
}

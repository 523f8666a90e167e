package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/ledger/accounts"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/platform/db"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Repository encapsulates DB operations for journal transactions. All reads
// and writes are constrained by the active company scope.
type Repository interface {
	List(ctx context.Context, limit int) ([]Transaction, error)
	GetWithLines(ctx context.Context, id uuid.UUID) (Transaction, error)

	// WithPostingTx runs fn in a serializable transaction with bounded
	// retry on serialization failures.
	WithPostingTx(ctx context.Context, maxRetries int, fn func(context.Context, TxRepository) error) error
	// WithTx runs fn at repeatable read; draft maintenance uses it.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes operations available within a transaction.
type TxRepository interface {
	NextTransactionNumber(ctx context.Context) (string, error)
	InsertTransaction(ctx context.Context, t Transaction) error
	InsertLines(ctx context.Context, t Transaction) error
	GetWithLinesForUpdate(ctx context.Context, id uuid.UUID) (Transaction, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error
	SetReversedBy(ctx context.Context, id uuid.UUID, reversalID uuid.UUID) error
	AccountForPosting(ctx context.Context, id uuid.UUID) (accounts.Account, error)
	DimensionValueInScope(ctx context.Context, id uuid.UUID) (bool, error)
	// AccountBalance returns the posted debit-minus-credit balance.
	AccountBalance(ctx context.Context, accountID uuid.UUID) (shared.Minor, error)
	DeleteDraft(ctx context.Context, id uuid.UUID) error
	ReplaceDraftLines(ctx context.Context, t Transaction) error

	// Tx exposes the raw transaction for the audit recorder and outbox.
	Tx() pgx.Tx
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the scoped repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const txnColumns = `id, company_id, transaction_number, date, description, reference, type, status, reversed_transaction_id, COALESCE(idempotency_key, ''), created_by, created_at, posted_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.CompanyID, &t.TransactionNumber, &t.Date, &t.Description, &t.Reference,
		&t.Type, &t.Status, &t.ReversedTransactionID, &t.IdempotencyKey, &t.CreatedBy, &t.CreatedAt, &t.PostedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.ErrNotFound
		}
		return Transaction{}, fmt.Errorf("%w: scan transaction: %v", shared.ErrStorage, err)
	}
	return t, nil
}

func (r *repository) List(ctx context.Context, limit int) ([]Transaction, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+txnColumns+` FROM transactions WHERE company_id=$1 ORDER BY created_at DESC LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) GetWithLines(ctx context.Context, id uuid.UUID) (Transaction, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Transaction{}, err
	}
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id=$1 AND company_id=$2`, id, companyID))
	if err != nil {
		return Transaction{}, err
	}
	t.Lines, err = loadLines(ctx, r.pool, id, companyID)
	return t, err
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadLines(ctx context.Context, q queryer, txnID, companyID uuid.UUID) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, transaction_id, company_id, account_id, debit_minor, credit_minor, description, dimension_value_id, line_number
		FROM transaction_lines WHERE transaction_id=$1 AND company_id=$2 ORDER BY line_number`, txnID, companyID)
	if err != nil {
		return nil, fmt.Errorf("%w: load lines: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.TransactionID, &l.CompanyID, &l.AccountID, &l.DebitMinor, &l.CreditMinor, &l.Description, &l.DimensionValueID, &l.LineNumber); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) WithPostingTx(ctx context.Context, maxRetries int, fn func(context.Context, TxRepository) error) error {
	return db.WithSerializableRetry(ctx, r.pool, maxRetries, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, pgx.RepeatableRead, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Tx() pgx.Tx {
	return r.tx
}

// NextTransactionNumber allocates the per-company monotonically increasing
// number. The counter row lock serializes concurrent postings.
func (r *txRepository) NextTransactionNumber(ctx context.Context) (string, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return "", err
	}
	var next int64
	err = r.tx.QueryRow(ctx, `INSERT INTO company_counters (company_id, next_transaction) VALUES ($1, 2)
		ON CONFLICT (company_id) DO UPDATE SET next_transaction = company_counters.next_transaction + 1
		RETURNING next_transaction`, companyID).Scan(&next)
	if err != nil {
		return "", fmt.Errorf("%w: allocate transaction number: %v", shared.ErrStorage, err)
	}
	return fmt.Sprintf("T-%04d", next-1), nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) error {
	if err := scope.AssertCompany(ctx, t.CompanyID); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `INSERT INTO transactions
		(id, company_id, transaction_number, date, description, reference, type, status, reversed_transaction_id, idempotency_key, created_by, created_at, posted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		t.ID, t.CompanyID, t.TransactionNumber, t.Date, t.Description, t.Reference, t.Type, t.Status,
		t.ReversedTransactionID, nilString(t.IdempotencyKey), t.CreatedBy, t.CreatedAt, t.PostedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_transactions_company_number") {
			return fmt.Errorf("%w: transaction number collision", shared.ErrConflict)
		}
		return fmt.Errorf("%w: insert transaction: %v", shared.ErrStorage, err)
	}
	return nil
}

func (r *txRepository) InsertLines(ctx context.Context, t Transaction) error {
	if err := scope.AssertCompany(ctx, t.CompanyID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, l := range t.Lines {
		batch.Queue(`INSERT INTO transaction_lines
			(id, transaction_id, company_id, account_id, debit_minor, credit_minor, description, dimension_value_id, line_number)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			l.ID, t.ID, t.CompanyID, l.AccountID, int64(l.DebitMinor), int64(l.CreditMinor), l.Description, l.DimensionValueID, l.LineNumber)
	}
	results := r.tx.SendBatch(ctx, batch)
	defer results.Close()
	for range t.Lines {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("%w: insert lines: %v", shared.ErrStorage, err)
		}
	}
	return nil
}

func (r *txRepository) GetWithLinesForUpdate(ctx context.Context, id uuid.UUID) (Transaction, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Transaction{}, err
	}
	t, err := scanTransaction(r.tx.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id=$1 AND company_id=$2 FOR UPDATE`, id, companyID))
	if err != nil {
		return Transaction{}, err
	}
	t.Lines, err = loadLines(ctx, r.tx, id, companyID)
	return t, err
}

func (r *txRepository) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE transactions SET status=$3 WHERE id=$1 AND company_id=$2`, id, companyID, status)
	if err != nil {
		return fmt.Errorf("%w: set status: %v", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetReversedBy(ctx context.Context, id uuid.UUID, reversalID uuid.UUID) error {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE transactions SET status=$3, reversed_transaction_id=$4 WHERE id=$1 AND company_id=$2 AND status=$5`,
		id, companyID, StatusReversed, reversalID, StatusPosted)
	if err != nil {
		return fmt.Errorf("%w: mark reversed: %v", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) AccountForPosting(ctx context.Context, id uuid.UUID) (accounts.Account, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return accounts.Account{}, err
	}
	var a accounts.Account
	err = r.tx.QueryRow(ctx, `SELECT id, company_id, code, name, type, subtype, parent_id, active, allow_negative_balance, created_at
		FROM accounts WHERE id=$1 AND company_id=$2`, id, companyID).
		Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.ParentID, &a.Active, &a.AllowNegativeBalance, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, shared.ErrUnknownAccount
		}
		return accounts.Account{}, fmt.Errorf("%w: load account: %v", shared.ErrStorage, err)
	}
	return a, nil
}

func (r *txRepository) DimensionValueInScope(ctx context.Context, id uuid.UUID) (bool, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	err = r.tx.QueryRow(ctx, `SELECT TRUE FROM dimension_values WHERE id=$1 AND company_id=$2`, id, companyID).Scan(&ok)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%w: check dimension value: %v", shared.ErrStorage, err)
	}
	return true, nil
}

func (r *txRepository) AccountBalance(ctx context.Context, accountID uuid.UUID) (shared.Minor, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return 0, err
	}
	var balance int64
	err = r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit_minor - l.credit_minor), 0)
		FROM transaction_lines l
		JOIN transactions t ON t.id = l.transaction_id
		WHERE l.account_id=$1 AND l.company_id=$2 AND t.status IN ('posted','reversed')`,
		accountID, companyID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("%w: account balance: %v", shared.ErrStorage, err)
	}
	return shared.Minor(balance), nil
}

func (r *txRepository) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM transaction_lines WHERE transaction_id=$1 AND company_id=$2`, id, companyID); err != nil {
		return fmt.Errorf("%w: delete draft lines: %v", shared.ErrStorage, err)
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM transactions WHERE id=$1 AND company_id=$2 AND status=$3`, id, companyID, StatusDraft)
	if err != nil {
		return fmt.Errorf("%w: delete draft: %v", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) ReplaceDraftLines(ctx context.Context, t Transaction) error {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM transaction_lines WHERE transaction_id=$1 AND company_id=$2`, t.ID, companyID); err != nil {
		return fmt.Errorf("%w: replace draft lines: %v", shared.ErrStorage, err)
	}
	return r.InsertLines(ctx, t)
}

func nilString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package recon

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

// Repository persists bank matches within the active company scope.
type Repository interface {
	Insert(ctx context.Context, tx pgx.Tx, m Match) error
	List(ctx context.Context) ([]Match, error)
	MatchedTransactionPosted(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the reconciliation repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Insert(ctx context.Context, tx pgx.Tx, m Match) error {
	if err := scope.AssertCompany(ctx, m.CompanyID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `INSERT INTO bank_matches (id, company_id, bank_tx_id, matched_tx_id, created_at)
		VALUES ($1,$2,$3,$4,$5)`, m.ID, m.CompanyID, m.BankTxID, m.MatchedTxID, m.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_bank_matches_company_bank_tx") {
			return fmt.Errorf("%w: bank transaction %s already reconciled", shared.ErrConflict, m.BankTxID)
		}
		return fmt.Errorf("%w: insert bank match: %v", shared.ErrStorage, err)
	}
	return nil
}

func (r *repository) List(ctx context.Context) ([]Match, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, bank_tx_id, matched_tx_id, created_at
		FROM bank_matches WHERE company_id=$1 ORDER BY created_at DESC LIMIT 200`, companyID)
	if err != nil {
		return nil, fmt.Errorf("%w: list bank matches: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.BankTxID, &m.MatchedTxID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MatchedTransactionPosted verifies the ledger side of the match exists
// in scope and is posted.
func (r *repository) MatchedTransactionPosted(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return err
	}
	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM transactions WHERE id=$1 AND company_id=$2`, id, companyID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		return fmt.Errorf("%w: load matched transaction: %v", shared.ErrStorage, err)
	}
	if status != "posted" {
		return fmt.Errorf("%w: matched transaction is %s", shared.ErrInvalidStatus, status)
	}
	return nil
}

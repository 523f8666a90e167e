// Package outbox persists post-commit side effects in the same database
// transaction as the state change that caused them. A dispatcher drains
// pending rows after commit, delivering events at-least-once; consumers
// deduplicate on event id.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// Event types drained from the outbox.
const (
	EventTransactionPosted = "transaction.posted"
	EventInvoiceFinalized  = "invoice.finalized"
	EventPaymentApplied    = "payment.applied"
	EventPayrollExecuted   = "payroll.executed"
	EventLedgerReconciled  = "ledger.reconciled"
)

// Record is one pending side effect.
type Record struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	TransactionID uuid.UUID
	EventType     string
	Payload       json.RawMessage
	State         string
	Attempts      int
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

// Enqueuer writes outbox rows bound to the caller's transaction.
type Enqueuer interface {
	Enqueue(ctx context.Context, tx pgx.Tx, companyID, transactionID uuid.UUID, eventType string, payload any) (uuid.UUID, error)
}

// Store implements Enqueuer and the drain queries used by the dispatcher.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs the outbox store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Enqueue inserts a pending record inside tx.
func (s *Store) Enqueue(ctx context.Context, tx pgx.Tx, companyID, transactionID uuid.UUID, eventType string, payload any) (uuid.UUID, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("outbox: marshal payload: %w", err)
	}
	id := uuid.New()
	_, err = tx.Exec(ctx, `INSERT INTO outbox (id, company_id, transaction_id, event_type, payload_json)
		VALUES ($1,$2,$3,$4,$5)`, id, companyID, nilUUID(transactionID), eventType, body)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: outbox enqueue: %v", shared.ErrStorage, err)
	}
	return id, nil
}

// ClaimPending locks and returns up to limit due records. The dispatcher
// marks each dispatched after handing it to the queue.
func (s *Store) ClaimPending(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `SELECT id, company_id, COALESCE(transaction_id, '00000000-0000-0000-0000-000000000000'::uuid), event_type, payload_json, state, attempts, next_attempt_at, created_at
		FROM outbox WHERE state='pending' AND next_attempt_at <= now()
		ORDER BY created_at LIMIT $1 FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: outbox claim: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.CompanyID, &rec.TransactionID, &rec.EventType, &rec.Payload, &rec.State, &rec.Attempts, &rec.NextAttemptAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkDispatched finalizes a record after a successful hand-off.
func (s *Store) MarkDispatched(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE outbox SET state='dispatched', attempts=attempts+1 WHERE id=$1`, id)
	return err
}

// MarkFailed schedules a retry with linear backoff.
func (s *Store) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE outbox SET attempts=attempts+1, next_attempt_at=now() + (attempts+1) * interval '30 seconds' WHERE id=$1`, id)
	return err
}

// PendingCount reports the drain backlog for metrics.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE state='pending'`).Scan(&n)
	return n, err
}

// Pool exposes the underlying pool to the dispatcher's transaction helper.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func nilUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

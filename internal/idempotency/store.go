// Package idempotency guarantees exactly-once externally observable effect
// for named mutating operations. The first request with a key marks it
// in-flight, does its work, then stores the response; retries replay the
// stored bytes verbatim.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/canonical"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// Operation names the closed set of idempotent mutations.
type Operation string

const (
	OpPostJournal     Operation = "postJournal"
	OpVoidTransaction Operation = "voidTransaction"
	OpFinalizeInvoice Operation = "finalizeInvoice"
	OpApplyPayment    Operation = "applyPayment"
	OpExecutePayroll  Operation = "executePayroll"
	OpReconcileLedger Operation = "reconcileLedger"
)

const (
	stateInflight = "inflight"
	stateDone     = "done"
)

// MaxKeyLength bounds client-supplied keys.
const MaxKeyLength = 255

// Record is a completed idempotency row ready for replay.
type Record struct {
	ScopeID        uuid.UUID
	Operation      Operation
	Key            string
	Fingerprint    string
	ResponseStatus int
	ResponseBody   []byte
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// querier is the slice of pgxpool.Pool the store issues queries through.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists idempotency rows.
type Store struct {
	db           querier
	ttl          time.Duration
	waitDeadline time.Duration
	pollEvery    time.Duration
	now          func() time.Time
}

// NewStore constructs the store. ttl bounds row retention; waitDeadline
// bounds how long a concurrent loser waits for the winner's result.
func NewStore(pool *pgxpool.Pool, ttl, waitDeadline time.Duration) *Store {
	return &Store{
		db:           pool,
		ttl:          ttl,
		waitDeadline: waitDeadline,
		pollEvery:    50 * time.Millisecond,
		now:          time.Now,
	}
}

// WithNow overrides the clock for tests.
func (s *Store) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Fingerprint hashes the canonical form of the request body.
func Fingerprint(v any) (string, error) {
	return canonical.Hash(v)
}

// ValidateKey rejects missing or oversized keys before any work happens.
func ValidateKey(key string) error {
	if key == "" {
		return shared.ErrIdempotencyKeyRequired
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: key exceeds %d bytes", shared.ErrIdempotencyKeyRequired, MaxKeyLength)
	}
	return nil
}

// Begin claims the key or returns the stored result of a prior success.
// A nil record with nil error means the caller won the key and must call
// Finish or Abort. A non-nil record is a replay: return it verbatim.
func (s *Store) Begin(ctx context.Context, scopeID uuid.UUID, op Operation, key, fingerprint string) (*Record, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	now := s.now()
	tag, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (scope_id, operation, key, fingerprint, state, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (scope_id, operation, key) DO NOTHING`,
		scopeID, string(op), key, fingerprint, stateInflight, now, now.Add(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("%w: idempotency begin: %v", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}

	// Lost the insert race, or the key already exists from an earlier
	// request. Wait (bounded) for a terminal state.
	deadline := now.Add(s.waitDeadline)
	for {
		rec, state, err := s.load(ctx, scopeID, op, key)
		if err != nil {
			return nil, err
		}
		if rec.Fingerprint != fingerprint {
			return nil, shared.ErrIdempotencyConflict
		}
		if state == stateDone {
			return &rec, nil
		}
		if s.now().After(deadline) {
			return nil, shared.ErrBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollEvery):
		}
	}
}

// Finish stores the winner's response and marks the key done.
func (s *Store) Finish(ctx context.Context, scopeID uuid.UUID, op Operation, key string, status int, body []byte) error {
	tag, err := s.db.Exec(ctx, `UPDATE idempotency_keys SET state=$4, response_status=$5, response_body=$6
		WHERE scope_id=$1 AND operation=$2 AND key=$3`,
		scopeID, string(op), key, stateDone, status, body)
	if err != nil {
		return fmt.Errorf("%w: idempotency finish: %v", shared.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: idempotency row vanished", shared.ErrStorage)
	}
	return nil
}

// Abort releases the key after a failed attempt so the client can retry.
// Deterministic validation failures are not stored; only successes replay.
func (s *Store) Abort(ctx context.Context, scopeID uuid.UUID, op Operation, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE scope_id=$1 AND operation=$2 AND key=$3 AND state=$4`,
		scopeID, string(op), key, stateInflight)
	if err != nil {
		return fmt.Errorf("%w: idempotency abort: %v", shared.ErrStorage, err)
	}
	return nil
}

// Purge removes rows past their retention window. Safe because clients
// cannot reasonably retry after the TTL.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: idempotency purge: %v", shared.ErrStorage, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) load(ctx context.Context, scopeID uuid.UUID, op Operation, key string) (Record, string, error) {
	var rec Record
	var state string
	var status *int
	err := s.db.QueryRow(ctx, `SELECT scope_id, operation, key, fingerprint, state, response_status, response_body, created_at, expires_at
		FROM idempotency_keys WHERE scope_id=$1 AND operation=$2 AND key=$3`,
		scopeID, string(op), key).
		Scan(&rec.ScopeID, &rec.Operation, &rec.Key, &rec.Fingerprint, &state, &status, &rec.ResponseBody, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Winner aborted between our insert attempt and this read.
			return Record{}, "", shared.ErrBusy
		}
		return Record{}, "", fmt.Errorf("%w: idempotency load: %v", shared.ErrStorage, err)
	}
	if status != nil {
		rec.ResponseStatus = *status
	}
	return rec, state, nil
}

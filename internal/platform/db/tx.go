package db

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/scope"
)

// WithTx executes fn inside a transaction at the given isolation level.
// When a company scope is active, app.current_company_id is set for the
// transaction so the row-level security policies see the same boundary the
// application enforces. SET LOCAL scoping clears it at commit/rollback.
func WithTx(ctx context.Context, pool *pgxpool.Pool, iso pgx.TxIsoLevel, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if sc, ok := scope.FromContext(ctx); ok && sc.Kind == scope.KindTenant {
		if _, err := tx.Exec(ctx, `SELECT set_config('app.current_company_id', $1, true)`, sc.CompanyID.String()); err != nil {
			return fmt.Errorf("db: set company scope: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db: commit tx: %w", err)
	}

	return nil
}

// WithSerializableRetry runs fn in a serializable transaction, retrying
// serialization failures up to maxRetries with jittered backoff. Exhaustion
// surfaces as ErrConflict; callers retry with the same idempotency key.
func WithSerializableRetry(ctx context.Context, pool *pgxpool.Pool, maxRetries int, fn func(pgx.Tx) error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		lastErr = WithTx(ctx, pool, pgx.Serializable, fn)
		if lastErr == nil || !IsSerializationFailure(lastErr) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrConflict, lastErr)
}

// IsSerializationFailure reports whether err is a retryable isolation
// conflict (serialization failure or deadlock).
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally restricted to one constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond
	if base > 200*time.Millisecond {
		base = 200 * time.Millisecond
	}
	return base + time.Duration(rand.Int63n(int64(10*time.Millisecond)))
}

package shared

import "errors"

// Validation errors. Deterministic, never retried.
var (
	// ErrUnbalanced indicates debit != credit over a posting.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrTooFewLines indicates fewer than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrTooManyLines indicates the line cardinality bound was exceeded.
	ErrTooManyLines = errors.New("ledger: journal exceeds line count bound")
	// ErrLineSign indicates a line with both or neither of debit/credit set.
	ErrLineSign = errors.New("ledger: line must carry exactly one of debit or credit")
	// ErrNegativeAmount indicates a negative or overflowing amount.
	ErrNegativeAmount = errors.New("ledger: amounts must be non-negative minor units")
	// ErrAmountTooLarge indicates a line above the per-line amount bound.
	ErrAmountTooLarge = errors.New("ledger: line amount exceeds bound")
	// ErrUnknownAccount indicates a line referencing an account outside scope.
	ErrUnknownAccount = errors.New("ledger: account not found in company")
	// ErrDimensionMismatch indicates a dimension value outside scope.
	ErrDimensionMismatch = errors.New("ledger: dimension value not found in company")
)

// Scope errors.
var (
	// ErrScopeMissing indicates a repository call without an active company scope.
	ErrScopeMissing = errors.New("ledger: no company scope active")
	// ErrCrossTenant indicates a request addressing a company outside the active scope.
	ErrCrossTenant = errors.New("ledger: cross-tenant access refused")
	// ErrUnauthorized indicates the actor lacks the required role.
	ErrUnauthorized = errors.New("ledger: actor not authorized")
)

// Integrity errors.
var (
	// ErrPeriodLocked indicates the posting date falls in a closed period.
	ErrPeriodLocked = errors.New("ledger: period locked")
	// ErrNegativeBalance indicates an account would go below zero on its normal side.
	ErrNegativeBalance = errors.New("ledger: account balance would go negative")
	// ErrImmutable indicates an attempted edit of a posted transaction.
	ErrImmutable = errors.New("ledger: posted transactions are immutable")
	// ErrInvalidStatus indicates a transaction status transition that is not allowed.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
	// ErrDateOutOfRange indicates the date falls outside the addressed period.
	ErrDateOutOfRange = errors.New("ledger: date outside period")
	// ErrChainBroken indicates the audit hash chain failed verification.
	ErrChainBroken = errors.New("ledger: audit chain broken")
)

// Idempotency errors.
var (
	// ErrIdempotencyKeyRequired indicates a mutating call without a key.
	ErrIdempotencyKeyRequired = errors.New("ledger: idempotency key required")
	// ErrIdempotencyConflict indicates a key reuse with a different request body.
	ErrIdempotencyConflict = errors.New("ledger: idempotency key reused with different request")
	// ErrBusy indicates the first request with this key is still in flight.
	ErrBusy = errors.New("ledger: request with this key still in flight")
)

// Concurrency and storage errors.
var (
	// ErrConflict surfaces after serialization retries are exhausted;
	// callers should retry with the same idempotency key.
	ErrConflict = errors.New("ledger: concurrent update conflict, retry with the same idempotency key")
	// ErrNotFound indicates the row does not exist within the active scope.
	ErrNotFound = errors.New("ledger: not found")
	// ErrStorage wraps ambiguous storage failures.
	ErrStorage = errors.New("ledger: storage failure")
)

package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// RespondError maps ledger error kinds to HTTP statuses using RFC7807.
// Validation and integrity map to 4xx, scope to 403, idempotency conflicts
// to 409, exhausted concurrency retries to 503 with a retry hint.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrUnbalanced),
		errors.Is(err, shared.ErrTooFewLines),
		errors.Is(err, shared.ErrTooManyLines),
		errors.Is(err, shared.ErrLineSign),
		errors.Is(err, shared.ErrNegativeAmount),
		errors.Is(err, shared.ErrAmountTooLarge),
		errors.Is(err, shared.ErrUnknownAccount),
		errors.Is(err, shared.ErrDimensionMismatch),
		errors.Is(err, shared.ErrDateOutOfRange),
		errors.Is(err, shared.ErrIdempotencyKeyRequired):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrScopeMissing),
		errors.Is(err, shared.ErrCrossTenant),
		errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrPeriodLocked):
		Problem(w, http.StatusLocked, "Period Locked", err.Error())
	case errors.Is(err, shared.ErrNegativeBalance),
		errors.Is(err, shared.ErrImmutable),
		errors.Is(err, shared.ErrInvalidStatus),
		errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrBusy):
		Problem(w, http.StatusConflict, "Busy", err.Error())
	case errors.Is(err, shared.ErrConflict):
		w.Header().Set("Retry-After", "1")
		Problem(w, http.StatusServiceUnavailable, "Concurrent Update", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

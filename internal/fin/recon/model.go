package recon

import (
	"time"

	"github.com/google/uuid"
)

// Match records that one bank statement transaction was reconciled
// against a ledger transaction. Matches are append-only; correcting a
// mismatch means voiding the ledger side, not editing the match.
type Match struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	BankTxID    string
	MatchedTxID uuid.UUID
	CreatedAt   time.Time
}

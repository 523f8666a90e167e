package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// Payment records cash received against an invoice, pinned to the
// transaction that moved it through the ledger.
type Payment struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	InvoiceID     uuid.UUID
	AmountMinor   shared.Minor
	ReceivedOn    time.Time
	TransactionID *uuid.UUID
	CreatedAt     time.Time
}

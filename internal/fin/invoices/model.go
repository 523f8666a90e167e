package invoices

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// Status enumerates the invoice lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusFinalized Status = "finalized"
	StatusPaid      Status = "paid"
	StatusVoided    Status = "voided"
)

// Invoice models a customer invoice. Finalizing posts the AR entry and
// pins the invoice to that transaction.
type Invoice struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	Number        string
	Customer      string
	IssueDate     time.Time
	TotalMinor    shared.Minor
	TaxMinor      shared.Minor
	Status        Status
	TransactionID *uuid.UUID
	CreatedAt     time.Time
}

package journal

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// Status enumerates the transaction lifecycle: draft -> posted -> reversed.
// Posted is terminal except for the single transition to reversed, driven
// only by a successful reversing posting.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPosted   Status = "posted"
	StatusReversed Status = "reversed"
)

// Type tags the origin of a transaction.
type Type string

const (
	TypeJournal  Type = "journal"
	TypeReversal Type = "reversal"
	TypeInvoice  Type = "invoice"
	TypePayment  Type = "payment"
	TypePayroll  Type = "payroll"
	TypeRecon    Type = "reconciliation"
)

// Transaction is one journal entry. Once posted it is immutable;
// corrections happen by posting a reversing twin.
type Transaction struct {
	ID                    uuid.UUID
	CompanyID             uuid.UUID
	TransactionNumber     string
	Date                  time.Time
	Description           string
	Reference             string
	Type                  Type
	Status                Status
	ReversedTransactionID *uuid.UUID
	IdempotencyKey        string
	CreatedBy             uuid.UUID
	CreatedAt             time.Time
	PostedAt              *time.Time
	Lines                 []Line
}

// Line carries exactly one of a debit or a credit in minor units.
type Line struct {
	ID               uuid.UUID
	TransactionID    uuid.UUID
	CompanyID        uuid.UUID
	AccountID        uuid.UUID
	DebitMinor       shared.Minor
	CreditMinor      shared.Minor
	Description      string
	DimensionValueID *uuid.UUID
	LineNumber       int
}

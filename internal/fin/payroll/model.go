package payroll

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// Status enumerates the pay run lifecycle.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusExecuted Status = "executed"
)

// PayRun models one payroll cycle. Executing posts the wage entry:
// gross expense, withheld liability, net cash.
type PayRun struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	PeriodLabel   string
	GrossMinor    shared.Minor
	WithheldMinor shared.Minor
	Status        Status
	PayDate       time.Time
	TransactionID *uuid.UUID
	CreatedAt     time.Time
}

// NetMinor is the cash actually paid out.
func (p PayRun) NetMinor() shared.Minor {
	return p.GrossMinor - p.WithheldMinor
}

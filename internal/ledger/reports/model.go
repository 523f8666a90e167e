package reports

import (
	"strings"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/accounts"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// AccountActivity aggregates one account's posted lines for a reporting
// window. Opening is signed debit-minus-credit as of the window start;
// Debit and Credit are the totals inside the window. All amounts are
// integer minor units, so aggregation is exact.
type AccountActivity struct {
	AccountID uuid.UUID
	Code      string
	Name      string
	Type      accounts.AccountType
	Subtype   string
	Opening   shared.Minor
	Debit     shared.Minor
	Credit    shared.Minor
}

// Closing is the signed debit-minus-credit balance at the window end.
func (a AccountActivity) Closing() shared.Minor {
	return a.Opening + a.Debit - a.Credit
}

// GroupKey buckets accounts by their leading code segment.
func (a AccountActivity) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}

// isCashLike reports whether the account participates in the cash-flow
// net-change line.
func (a AccountActivity) isCashLike() bool {
	switch strings.ToLower(a.Subtype) {
	case "cash", "bank", "cash_equivalent":
		return true
	}
	return false
}

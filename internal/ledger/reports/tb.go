package reports

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/canonical"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// TrialBalanceRow is one account's totals inside the window.
type TrialBalanceRow struct {
	AccountID   uuid.UUID    `json:"account_id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	DebitTotal  shared.Minor `json:"debit_total"`
	CreditTotal shared.Minor `json:"credit_total"`
	Net         shared.Minor `json:"net"`
}

// TrialBalance is the full report. IntegrityHash is deterministic over the
// canonicalized rows, so two ledgers with the same posted line set produce
// the same hash regardless of posting order.
type TrialBalance struct {
	From          time.Time         `json:"-"`
	To            time.Time         `json:"-"`
	Rows          []TrialBalanceRow `json:"rows"`
	TotalDebit    shared.Minor      `json:"total_debit"`
	TotalCredit   shared.Minor      `json:"total_credit"`
	IntegrityHash string            `json:"integrity_hash"`
}

// BuildTrialBalance aggregates account activity into sorted rows with a
// reproducible integrity hash. Accounts with no movement are skipped.
func BuildTrialBalance(activity []AccountActivity) (TrialBalance, error) {
	tb := TrialBalance{}
	for _, acc := range activity {
		if acc.Debit == 0 && acc.Credit == 0 {
			continue
		}
		tb.Rows = append(tb.Rows, TrialBalanceRow{
			AccountID:   acc.AccountID,
			Code:        acc.Code,
			Name:        acc.Name,
			DebitTotal:  acc.Debit,
			CreditTotal: acc.Credit,
			Net:         acc.Debit - acc.Credit,
		})
		tb.TotalDebit += acc.Debit
		tb.TotalCredit += acc.Credit
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Code < tb.Rows[j].Code })

	hash, err := canonical.Hash(tb.Rows)
	if err != nil {
		return TrialBalance{}, err
	}
	tb.IntegrityHash = hash
	return tb, nil
}

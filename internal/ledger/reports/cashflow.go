package reports

import (
	"github.com/meridian-erp/meridian/internal/ledger/accounts"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// CashFlow approximates the indirect-method statement from window
// activity: net income adjusted by movements in non-cash balance sheet
// accounts. NetChange always equals the movement on cash-like accounts.
type CashFlow struct {
	Operating shared.Minor `json:"operating"`
	Investing shared.Minor `json:"investing"`
	Financing shared.Minor `json:"financing"`
	NetChange shared.Minor `json:"net_change"`
}

// BuildCashFlow classifies window movement. Because every posted entry
// balances, the sum of the three sections reproduces the cash movement.
func BuildCashFlow(activity []AccountActivity) CashFlow {
	var cf CashFlow
	for _, acc := range activity {
		movement := acc.Debit - acc.Credit
		switch {
		case acc.isCashLike():
			cf.NetChange += movement
		case acc.Type == accounts.TypeRevenue || acc.Type == accounts.TypeExpense:
			cf.Operating += -movement
		case acc.Type == accounts.TypeAsset:
			// Growth in non-cash assets consumes cash.
			cf.Investing += -movement
		case acc.Type == accounts.TypeLiability || acc.Type == accounts.TypeEquity:
			cf.Financing += -movement
		}
	}
	return cf
}

package reports

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/accounts"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// BalanceSheetAccount summarises one account at the as-of date. Assets
// are debit-positive; liabilities and equity credit-positive.
type BalanceSheetAccount struct {
	AccountID uuid.UUID    `json:"account_id,omitempty"`
	Code      string       `json:"code"`
	Name      string       `json:"name"`
	Balance   shared.Minor `json:"balance"`
}

// BalanceSheetSection contains the accounts and total for a classification.
type BalanceSheetSection struct {
	Label    string                `json:"label"`
	Accounts []BalanceSheetAccount `json:"accounts"`
	Total    shared.Minor          `json:"total"`
}

// BalanceSheet is the structured report. Equity includes a derived
// current-earnings row folding revenue and expense activity into the
// equation, so TotalAssets equals TotalLiabilitiesAndEquity exactly.
type BalanceSheet struct {
	Assets                    BalanceSheetSection `json:"assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	TotalLiabilitiesAndEquity shared.Minor        `json:"total_liabilities_and_equity"`
}

// BuildBalanceSheet aggregates cumulative balances (activity with the
// whole ledger as the window) into the three sections.
func BuildBalanceSheet(activity []AccountActivity) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets"}
	liabilities := BalanceSheetSection{Label: "Liabilities"}
	equity := BalanceSheetSection{Label: "Equity"}
	var earnings shared.Minor

	for _, acc := range activity {
		closing := acc.Closing()
		switch acc.Type {
		case accounts.TypeAsset:
			row := BalanceSheetAccount{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Balance: closing}
			assets.Accounts = append(assets.Accounts, row)
			assets.Total += row.Balance
		case accounts.TypeLiability:
			row := BalanceSheetAccount{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Balance: -closing}
			liabilities.Accounts = append(liabilities.Accounts, row)
			liabilities.Total += row.Balance
		case accounts.TypeEquity:
			row := BalanceSheetAccount{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Balance: -closing}
			equity.Accounts = append(equity.Accounts, row)
			equity.Total += row.Balance
		case accounts.TypeRevenue, accounts.TypeExpense:
			earnings += -closing
		}
	}

	sort.Slice(assets.Accounts, func(i, j int) bool { return assets.Accounts[i].Code < assets.Accounts[j].Code })
	sort.Slice(liabilities.Accounts, func(i, j int) bool { return liabilities.Accounts[i].Code < liabilities.Accounts[j].Code })
	sort.Slice(equity.Accounts, func(i, j int) bool { return equity.Accounts[i].Code < equity.Accounts[j].Code })

	if earnings != 0 {
		equity.Accounts = append(equity.Accounts, BalanceSheetAccount{Code: "", Name: "Current Earnings", Balance: earnings})
		equity.Total += earnings
	}

	return BalanceSheet{
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		TotalLiabilitiesAndEquity: liabilities.Total + equity.Total,
	}
}

// VerifyEquation checks the accounting equation on the built sheet.
// The raw ledger is exact; one minor unit of slack covers derived views
// that round for presentation.
func (bs BalanceSheet) VerifyEquation() error {
	diff := bs.Assets.Total - bs.TotalLiabilitiesAndEquity
	if diff < -1 || diff > 1 {
		return fmt.Errorf("balance sheet out of balance: assets %s vs liabilities+equity %s",
			bs.Assets.Total, bs.TotalLiabilitiesAndEquity)
	}
	return nil
}

package reports

import (
	"sort"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/accounts"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// ProfitAndLossAccount is one revenue or expense account summary, signed
// so that positive means "contributes to the section total".
type ProfitAndLossAccount struct {
	AccountID uuid.UUID    `json:"account_id"`
	Code      string       `json:"code"`
	Name      string       `json:"name"`
	Amount    shared.Minor `json:"amount"`
}

// ProfitAndLossSection groups accounts by nature.
type ProfitAndLossSection struct {
	Label    string                 `json:"label"`
	Accounts []ProfitAndLossAccount `json:"accounts"`
	Total    shared.Minor           `json:"total"`
}

// ProfitAndLoss is the structured report.
type ProfitAndLoss struct {
	Revenue   ProfitAndLossSection `json:"revenue"`
	Expense   ProfitAndLossSection `json:"expense"`
	NetIncome shared.Minor         `json:"net_income"`
}

// BuildProfitAndLoss aggregates window activity into revenue and expense
// sections. Revenue is credit-positive, expense debit-positive.
func BuildProfitAndLoss(activity []AccountActivity) ProfitAndLoss {
	revenue := ProfitAndLossSection{Label: "Revenue"}
	expense := ProfitAndLossSection{Label: "Expense"}

	for _, acc := range activity {
		switch acc.Type {
		case accounts.TypeRevenue:
			row := ProfitAndLossAccount{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Amount: acc.Credit - acc.Debit}
			revenue.Accounts = append(revenue.Accounts, row)
			revenue.Total += row.Amount
		case accounts.TypeExpense:
			row := ProfitAndLossAccount{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Amount: acc.Debit - acc.Credit}
			expense.Accounts = append(expense.Accounts, row)
			expense.Total += row.Amount
		}
	}

	sort.Slice(revenue.Accounts, func(i, j int) bool { return revenue.Accounts[i].Code < revenue.Accounts[j].Code })
	sort.Slice(expense.Accounts, func(i, j int) bool { return expense.Accounts[i].Code < expense.Accounts[j].Code })

	return ProfitAndLoss{
		Revenue:   revenue,
		Expense:   expense,
		NetIncome: revenue.Total - expense.Total,
	}
}

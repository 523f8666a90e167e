package reports

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/ledger/accounts"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
	_ "github.com/meridian-erp/meridian/testing"
)

func activityFixture() []AccountActivity {
	return []AccountActivity{
		{AccountID: uuid.New(), Code: "1000", Name: "Cash", Type: accounts.TypeAsset, Subtype: "cash", Opening: 100000, Debit: 20000, Credit: 15000},
		{AccountID: uuid.New(), Code: "1200", Name: "Receivables", Type: accounts.TypeAsset, Opening: 50000, Debit: 10000, Credit: 5000},
		{AccountID: uuid.New(), Code: "2000", Name: "Payables", Type: accounts.TypeLiability, Opening: -40000, Debit: 1000, Credit: 4000},
		{AccountID: uuid.New(), Code: "3000", Name: "Share Capital", Type: accounts.TypeEquity, Opening: -110000, Debit: 0, Credit: 0},
		{AccountID: uuid.New(), Code: "4000", Name: "Sales", Type: accounts.TypeRevenue, Opening: 0, Debit: 0, Credit: 12000},
		{AccountID: uuid.New(), Code: "5000", Name: "Rent", Type: accounts.TypeExpense, Opening: 0, Debit: 5000, Credit: 0},
	}
}

func TestBuildTrialBalance(t *testing.T) {
	tb, err := BuildTrialBalance(activityFixture())
	require.NoError(t, err)
	require.Len(t, tb.Rows, 5, "share capital has no movement and is excluded")
	require.Equal(t, shared.Minor(36000), tb.TotalDebit)
	require.Equal(t, shared.Minor(36000), tb.TotalCredit)
	require.NotEmpty(t, tb.IntegrityHash)
	require.Equal(t, "1000", tb.Rows[0].Code)
}

func TestTrialBalanceHashStableUnderReordering(t *testing.T) {
	fixture := activityFixture()
	first, err := BuildTrialBalance(fixture)
	require.NoError(t, err)

	reversed := make([]AccountActivity, len(fixture))
	for i, a := range fixture {
		reversed[len(fixture)-1-i] = a
	}
	second, err := BuildTrialBalance(reversed)
	require.NoError(t, err)
	require.Equal(t, first.IntegrityHash, second.IntegrityHash)
}

func TestTrialBalanceHashChangesWithLineSet(t *testing.T) {
	fixture := activityFixture()
	first, err := BuildTrialBalance(fixture)
	require.NoError(t, err)

	fixture[0].Debit += 1
	second, err := BuildTrialBalance(fixture)
	require.NoError(t, err)
	require.NotEqual(t, first.IntegrityHash, second.IntegrityHash)
}

func TestBuildProfitAndLoss(t *testing.T) {
	pl := BuildProfitAndLoss(activityFixture())
	require.Equal(t, shared.Minor(12000), pl.Revenue.Total)
	require.Equal(t, shared.Minor(5000), pl.Expense.Total)
	require.Equal(t, shared.Minor(7000), pl.NetIncome)
	require.Len(t, pl.Revenue.Accounts, 1)
	require.Len(t, pl.Expense.Accounts, 1)
}

func TestBuildBalanceSheetEquation(t *testing.T) {
	bs := BuildBalanceSheet(activityFixture())
	require.Equal(t, shared.Minor(160000), bs.Assets.Total)
	require.Equal(t, shared.Minor(43000), bs.Liabilities.Total)
	// Share capital 110000 plus current earnings 7000.
	require.Equal(t, shared.Minor(117000), bs.Equity.Total)
	require.Equal(t, bs.Assets.Total, bs.TotalLiabilitiesAndEquity)
	require.NoError(t, bs.VerifyEquation())
}

func TestBalanceSheetDetectsImbalance(t *testing.T) {
	fixture := activityFixture()
	fixture[0].Opening += 500
	bs := BuildBalanceSheet(fixture)
	require.Error(t, bs.VerifyEquation())
}

func TestBuildCashFlowReconcilesToCashMovement(t *testing.T) {
	cf := BuildCashFlow(activityFixture())
	// Cash moved +5000 in the window; the sections must explain it.
	require.Equal(t, shared.Minor(5000), cf.NetChange)
	require.Equal(t, cf.NetChange, cf.Operating+cf.Investing+cf.Financing)
	require.Equal(t, shared.Minor(7000), cf.Operating)
	require.Equal(t, shared.Minor(-5000), cf.Investing)
	require.Equal(t, shared.Minor(3000), cf.Financing)
}

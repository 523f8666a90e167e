package reports

import (
	"context"
	"time"
)

// Service derives reports from posted lines. Every report is a pure
// function of the ledger: same line set, same output.
type Service struct {
	repo Repository
}

// NewService constructs the reports service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ledgerStart is earlier than any representable posting date.
var ledgerStart = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// TrialBalance lists each account's debit and credit totals in the window.
func (s *Service) TrialBalance(ctx context.Context, from, to time.Time) (TrialBalance, error) {
	activity, err := s.repo.Activity(ctx, from, to)
	if err != nil {
		return TrialBalance{}, err
	}
	tb, err := BuildTrialBalance(activity)
	if err != nil {
		return TrialBalance{}, err
	}
	tb.From, tb.To = from, to
	return tb, nil
}

// ProfitAndLoss totals revenue and expense activity in the window.
func (s *Service) ProfitAndLoss(ctx context.Context, from, to time.Time) (ProfitAndLoss, error) {
	activity, err := s.repo.Activity(ctx, from, to)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return BuildProfitAndLoss(activity), nil
}

// BalanceSheet reports cumulative balances as of a date and verifies the
// accounting equation before returning.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	activity, err := s.repo.Activity(ctx, ledgerStart, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}
	bs := BuildBalanceSheet(activity)
	if err := bs.VerifyEquation(); err != nil {
		return BalanceSheet{}, err
	}
	return bs, nil
}

// CashFlow approximates the cash-flow statement for the window.
func (s *Service) CashFlow(ctx context.Context, from, to time.Time) (CashFlow, error) {
	activity, err := s.repo.Activity(ctx, from, to)
	if err != nil {
		return CashFlow{}, err
	}
	return BuildCashFlow(activity), nil
}

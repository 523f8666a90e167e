package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/idempotency"
	"github.com/meridian-erp/meridian/internal/ledger/journal"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/outbox"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Service owns the payroll workflow.
type Service struct {
	repo     Repository
	journal  *journal.Service
	enqueuer outbox.Enqueuer
	now      func() time.Time
}

// NewService wires the payroll workflow.
func NewService(repo Repository, journalSvc *journal.Service, enqueuer outbox.Enqueuer) *Service {
	return &Service{repo: repo, journal: journalSvc, enqueuer: enqueuer, now: time.Now}
}

// CreateInput describes a draft pay run.
type CreateInput struct {
	PeriodLabel   string
	GrossMinor    shared.Minor
	WithheldMinor shared.Minor
	PayDate       time.Time
}

// Create stores a draft pay run.
func (s *Service) Create(ctx context.Context, in CreateInput) (PayRun, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return PayRun{}, err
	}
	if in.PeriodLabel == "" {
		return PayRun{}, fmt.Errorf("%w: period label required", shared.ErrInvalidStatus)
	}
	if in.GrossMinor <= 0 || in.WithheldMinor < 0 || in.WithheldMinor > in.GrossMinor {
		return PayRun{}, fmt.Errorf("%w: pay run amounts", shared.ErrNegativeAmount)
	}
	p := PayRun{
		ID:            uuid.New(),
		CompanyID:     companyID,
		PeriodLabel:   in.PeriodLabel,
		GrossMinor:    in.GrossMinor,
		WithheldMinor: in.WithheldMinor,
		Status:        StatusDraft,
		PayDate:       in.PayDate,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return PayRun{}, err
	}
	return p, nil
}

// ExecuteInput names the accounts the wage entry posts against.
type ExecuteInput struct {
	PayRunID           uuid.UUID
	ExpenseAccountID   uuid.UUID
	LiabilityAccountID uuid.UUID
	CashAccountID      uuid.UUID
	IdempotencyKey     string
}

// Execute posts gross wage expense against withheld liability and net
// cash, and marks the run executed in the same transaction.
func (s *Service) Execute(ctx context.Context, in ExecuteInput) (journal.Result, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return journal.Result{}, err
	}
	if in.ExpenseAccountID == uuid.Nil || in.CashAccountID == uuid.Nil {
		return journal.Result{}, fmt.Errorf("%w: expense and cash accounts required", shared.ErrUnknownAccount)
	}
	run, err := s.repo.Get(ctx, in.PayRunID)
	if err != nil {
		return journal.Result{}, err
	}
	if run.Status != StatusDraft {
		return journal.Result{}, fmt.Errorf("%w: pay run already executed", shared.ErrInvalidStatus)
	}
	if run.WithheldMinor > 0 && in.LiabilityAccountID == uuid.Nil {
		return journal.Result{}, fmt.Errorf("%w: liability account required for withholding", shared.ErrUnknownAccount)
	}

	sc, _ := scope.FromContext(ctx)
	lines := []journal.LineInput{
		{AccountID: in.ExpenseAccountID, DebitMinor: run.GrossMinor, Description: "Wages " + run.PeriodLabel},
		{AccountID: in.CashAccountID, CreditMinor: run.NetMinor(), Description: "Net pay " + run.PeriodLabel},
	}
	if run.WithheldMinor > 0 {
		lines = append(lines, journal.LineInput{AccountID: in.LiabilityAccountID, CreditMinor: run.WithheldMinor, Description: "Withholding " + run.PeriodLabel})
	}
	posting := journal.PostingInput{
		CompanyID:      companyID,
		Date:           run.PayDate,
		Description:    "Payroll " + run.PeriodLabel,
		Reference:      run.PeriodLabel,
		Type:           journal.TypePayroll,
		Lines:          lines,
		IdempotencyKey: in.IdempotencyKey,
		CreatedBy:      sc.UserID,
	}

	return s.journal.PostWorkflow(ctx, idempotency.OpExecutePayroll, posting,
		func(ctx context.Context, txr journal.TxRepository, txn journal.Transaction) error {
			if err := s.repo.SetExecuted(ctx, txr.Tx(), run.ID, txn.ID); err != nil {
				return err
			}
			_, err := s.enqueuer.Enqueue(ctx, txr.Tx(), companyID, txn.ID, outbox.EventPayrollExecuted, map[string]any{
				"pay_run_id":     run.ID,
				"period_label":   run.PeriodLabel,
				"transaction_id": txn.ID,
				"gross_minor":    run.GrossMinor,
			})
			return err
		})
}

// Get returns one pay run in scope.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (PayRun, error) {
	return s.repo.Get(ctx, id)
}

// List returns recent pay runs in scope.
func (s *Service) List(ctx context.Context) ([]PayRun, error) {
	return s.repo.List(ctx)
}

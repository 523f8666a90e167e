package invoices

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

// Service owns the invoice workflow. Finalize is the only operation that
// touches the ledger; it runs through the posting engine so every ledger
// invariant applies to invoice entries too.
type Service struct {
	repo     Repository
	journal  *journal.Service
	enqueuer outbox.Enqueuer
	now      func() time.Time
}

// NewService wires the invoice workflow.
func NewService(repo Repository, journalSvc *journal.Service, enqueuer outbox.Enqueuer) *Service {
	return &Service{repo: repo, journal: journalSvc, enqueuer: enqueuer, now: time.Now}
}

// CreateInput describes a draft invoice.
type CreateInput struct {
	Number     string       `json:"number"`
	Customer   string       `json:"customer"`
	IssueDate  time.Time    `json:"issue_date"`
	TotalMinor shared.Minor `json:"total_minor"`
	TaxMinor   shared.Minor `json:"tax_minor"`
}

// Create stores a draft invoice. Drafts have no ledger effect.
func (s *Service) Create(ctx context.Context, in CreateInput) (Invoice, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Invoice{}, err
	}
	if in.Number == "" || in.Customer == "" {
		return Invoice{}, fmt.Errorf("%w: number and customer required", shared.ErrInvalidStatus)
	}
	if in.TotalMinor <= 0 || in.TaxMinor < 0 || in.TaxMinor > in.TotalMinor {
		return Invoice{}, fmt.Errorf("%w: invoice totals", shared.ErrNegativeAmount)
	}
	inv := Invoice{
		ID:         uuid.New(),
		CompanyID:  companyID,
		Number:     in.Number,
		Customer:   in.Customer,
		IssueDate:  in.IssueDate,
		TotalMinor: in.TotalMinor,
		TaxMinor:   in.TaxMinor,
		Status:     StatusDraft,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// FinalizeInput names the accounts the AR entry posts against. Account
// selection is the caller's policy; the ledger only verifies them.
type FinalizeInput struct {
	InvoiceID           uuid.UUID
	ReceivableAccountID uuid.UUID
	RevenueAccountID    uuid.UUID
	TaxAccountID        uuid.UUID
	IdempotencyKey      string
}

// Finalize posts the AR/revenue/tax entry and flips the invoice to
// finalized atomically. Replays return the stored response.
func (s *Service) Finalize(ctx context.Context, in FinalizeInput) (journal.Result, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return journal.Result{}, err
	}
	inv, err := s.repo.Get(ctx, in.InvoiceID)
	if err != nil {
		return journal.Result{}, err
	}
	if inv.Status != StatusDraft {
		return journal.Result{}, fmt.Errorf("%w: invoice is %s", shared.ErrInvalidStatus, inv.Status)
	}
	if in.ReceivableAccountID == uuid.Nil || in.RevenueAccountID == uuid.Nil {
		return journal.Result{}, fmt.Errorf("%w: receivable and revenue accounts required", shared.ErrUnknownAccount)
	}
	if inv.TaxMinor > 0 && in.TaxAccountID == uuid.Nil {
		return journal.Result{}, fmt.Errorf("%w: tax account required for taxed invoice", shared.ErrUnknownAccount)
	}

	sc, _ := scope.FromContext(ctx)
	lines := []journal.LineInput{
		{AccountID: in.ReceivableAccountID, DebitMinor: inv.TotalMinor, Description: "Invoice " + inv.Number},
		{AccountID: in.RevenueAccountID, CreditMinor: inv.TotalMinor - inv.TaxMinor, Description: "Invoice " + inv.Number},
	}
	if inv.TaxMinor > 0 {
		lines = append(lines, journal.LineInput{AccountID: in.TaxAccountID, CreditMinor: inv.TaxMinor, Description: "Tax on " + inv.Number})
	}
	posting := journal.PostingInput{
		CompanyID:      companyID,
		Date:           inv.IssueDate,
		Description:    "Invoice " + inv.Number + " (" + inv.Customer + ")",
		Reference:      inv.Number,
		Type:           journal.TypeInvoice,
		Lines:          lines,
		IdempotencyKey: in.IdempotencyKey,
		CreatedBy:      sc.UserID,
	}

	return s.journal.PostWorkflow(ctx, idempotency.OpFinalizeInvoice, posting,
		func(ctx context.Context, txr journal.TxRepository, txn journal.Transaction) error {
			if err := s.repo.SetFinalized(ctx, txr.Tx(), inv.ID, txn.ID); err != nil {
				return err
			}
			_, err := s.enqueuer.Enqueue(ctx, txr.Tx(), companyID, txn.ID, outbox.EventInvoiceFinalized, map[string]any{
				"invoice_id":     inv.ID,
				"invoice_number": inv.Number,
				"transaction_id": txn.ID,
				"total_minor":    inv.TotalMinor,
			})
			return err
		})
}

// Get returns one invoice in scope.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns recent invoices in scope.
func (s *Service) List(ctx context.Context) ([]Invoice, error) {
	return s.repo.List(ctx)
}

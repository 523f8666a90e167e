package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/fin/invoices"
	"github.com/meridian-erp/meridian/internal/idempotency"
	"github.com/meridian-erp/meridian/internal/ledger/journal"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/outbox"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Service applies payments against finalized invoices. The cash entry,
// the payment row, and the invoice status change commit in one posting
// transaction.
type Service struct {
	repo     Repository
	invoices invoices.Repository
	journal  *journal.Service
	enqueuer outbox.Enqueuer
	now      func() time.Time
}

// NewService wires the payment workflow.
func NewService(repo Repository, invoiceRepo invoices.Repository, journalSvc *journal.Service, enqueuer outbox.Enqueuer) *Service {
	return &Service{repo: repo, invoices: invoiceRepo, journal: journalSvc, enqueuer: enqueuer, now: time.Now}
}

// ApplyInput describes one payment application.
type ApplyInput struct {
	InvoiceID           uuid.UUID
	AmountMinor         shared.Minor
	ReceivedOn          time.Time
	CashAccountID       uuid.UUID
	ReceivableAccountID uuid.UUID
	IdempotencyKey      string
}

// Apply posts debit-cash / credit-receivable for the amount and records
// the payment. Paying the invoice in full flips it to paid.
func (s *Service) Apply(ctx context.Context, in ApplyInput) (journal.Result, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return journal.Result{}, err
	}
	if in.AmountMinor <= 0 {
		return journal.Result{}, fmt.Errorf("%w: payment amount", shared.ErrNegativeAmount)
	}
	if in.CashAccountID == uuid.Nil || in.ReceivableAccountID == uuid.Nil {
		return journal.Result{}, fmt.Errorf("%w: cash and receivable accounts required", shared.ErrUnknownAccount)
	}
	inv, err := s.invoices.Get(ctx, in.InvoiceID)
	if err != nil {
		return journal.Result{}, err
	}
	if inv.Status != invoices.StatusFinalized {
		return journal.Result{}, fmt.Errorf("%w: invoice is %s, expected finalized", shared.ErrInvalidStatus, inv.Status)
	}

	sc, _ := scope.FromContext(ctx)
	posting := journal.PostingInput{
		CompanyID:   companyID,
		Date:        in.ReceivedOn,
		Description: "Payment on invoice " + inv.Number,
		Reference:   inv.Number,
		Type:        journal.TypePayment,
		Lines: []journal.LineInput{
			{AccountID: in.CashAccountID, DebitMinor: in.AmountMinor, Description: "Cash received"},
			{AccountID: in.ReceivableAccountID, CreditMinor: in.AmountMinor, Description: "Settle " + inv.Number},
		},
		IdempotencyKey: in.IdempotencyKey,
		CreatedBy:      sc.UserID,
	}

	return s.journal.PostWorkflow(ctx, idempotency.OpApplyPayment, posting,
		func(ctx context.Context, txr journal.TxRepository, txn journal.Transaction) error {
			// Re-read under lock: the paid total must be consistent with
			// concurrent applications against the same invoice.
			locked, err := s.invoices.GetForUpdate(ctx, txr.Tx(), inv.ID)
			if err != nil {
				return err
			}
			if locked.Status != invoices.StatusFinalized {
				return fmt.Errorf("%w: invoice is %s, expected finalized", shared.ErrInvalidStatus, locked.Status)
			}
			paid, err := s.invoices.PaidTotal(ctx, txr.Tx(), inv.ID)
			if err != nil {
				return err
			}
			remaining := locked.TotalMinor - paid
			if in.AmountMinor > remaining {
				return fmt.Errorf("%w: payment %s exceeds remaining %s", shared.ErrAmountTooLarge, in.AmountMinor, remaining)
			}

			txnID := txn.ID
			if err := s.repo.Insert(ctx, txr.Tx(), Payment{
				ID:            uuid.New(),
				CompanyID:     companyID,
				InvoiceID:     inv.ID,
				AmountMinor:   in.AmountMinor,
				ReceivedOn:    in.ReceivedOn,
				TransactionID: &txnID,
				CreatedAt:     s.now().UTC(),
			}); err != nil {
				return err
			}
			if paid+in.AmountMinor == locked.TotalMinor {
				if err := s.invoices.SetPaid(ctx, txr.Tx(), inv.ID); err != nil {
					return err
				}
			}
			_, err = s.enqueuer.Enqueue(ctx, txr.Tx(), companyID, txn.ID, outbox.EventPaymentApplied, map[string]any{
				"invoice_id":     inv.ID,
				"transaction_id": txn.ID,
				"amount_minor":   in.AmountMinor,
			})
			return err
		})
}

// ListByInvoice returns the payments applied to one invoice.
func (s *Service) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	return s.repo.ListByInvoice(ctx, invoiceID)
}

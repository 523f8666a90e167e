package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/audit"
	"github.com/meridian-erp/meridian/internal/idempotency"
	"github.com/meridian-erp/meridian/internal/ledger/journal"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/outbox"
	"github.com/meridian-erp/meridian/internal/platform/db"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Service reconciles bank statement transactions against the ledger.
// A plain match writes no ledger rows; a match with an adjustment posts
// the adjusting entry through the posting engine.
type Service struct {
	pool     *pgxpool.Pool
	repo     Repository
	journal  *journal.Service
	idem     *idempotency.Store
	recorder *audit.Recorder
	enqueuer outbox.Enqueuer
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the reconciliation workflow.
func NewService(pool *pgxpool.Pool, repo Repository, journalSvc *journal.Service,
	idem *idempotency.Store, recorder *audit.Recorder, enqueuer outbox.Enqueuer, logger *slog.Logger) *Service {
	return &Service{
		pool:     pool,
		repo:     repo,
		journal:  journalSvc,
		idem:     idem,
		recorder: recorder,
		enqueuer: enqueuer,
		logger:   logger,
		now:      time.Now,
	}
}

// Adjustment describes an optional correcting entry posted with the
// match, e.g. a bank fee discovered during reconciliation. Positive
// amounts debit the adjustment account and credit the bank account.
type Adjustment struct {
	AmountMinor         shared.Minor
	Date                time.Time
	BankAccountID       uuid.UUID
	AdjustmentAccountID uuid.UUID
	Description         string
}

// ReconcileInput pairs a bank statement transaction with a ledger one.
type ReconcileInput struct {
	BankTxID       string
	MatchedTxID    uuid.UUID
	Adjustment     *Adjustment
	IdempotencyKey string
}

type fingerprintBody struct {
	BankTxID        string       `json:"bank_tx_id"`
	MatchedTxID     uuid.UUID    `json:"matched_tx_id"`
	AdjustmentMinor shared.Minor `json:"adjustment_minor"`
}

type matchResponse struct {
	ID          uuid.UUID  `json:"id"`
	BankTxID    string     `json:"bank_tx_id"`
	MatchedTxID uuid.UUID  `json:"matched_tx_id"`
	Adjustment  *uuid.UUID `json:"adjustment_transaction_id,omitempty"`
}

// Reconcile records the match idempotently. With an adjustment the whole
// operation rides the posting transaction; without one it commits its
// own transaction carrying the match, the audit event, and the outbox row.
func (s *Service) Reconcile(ctx context.Context, in ReconcileInput) (journal.Result, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return journal.Result{}, err
	}
	if in.BankTxID == "" || in.MatchedTxID == uuid.Nil {
		return journal.Result{}, fmt.Errorf("%w: bank and matched transaction ids required", shared.ErrInvalidStatus)
	}
	if in.Adjustment != nil {
		if in.Adjustment.AmountMinor == 0 {
			in.Adjustment = nil
		} else if in.Adjustment.BankAccountID == uuid.Nil || in.Adjustment.AdjustmentAccountID == uuid.Nil {
			return journal.Result{}, fmt.Errorf("%w: adjustment accounts required", shared.ErrUnknownAccount)
		}
	}

	if in.Adjustment != nil {
		return s.reconcileWithAdjustment(ctx, companyID, in)
	}
	return s.reconcilePlain(ctx, companyID, in)
}

func (s *Service) reconcileWithAdjustment(ctx context.Context, companyID uuid.UUID, in ReconcileInput) (journal.Result, error) {
	adj := in.Adjustment
	sc, _ := scope.FromContext(ctx)

	amount := adj.AmountMinor
	lines := []journal.LineInput{
		{AccountID: adj.AdjustmentAccountID, DebitMinor: amount, Description: adj.Description},
		{AccountID: adj.BankAccountID, CreditMinor: amount, Description: "Reconciliation " + in.BankTxID},
	}
	if amount < 0 {
		lines = []journal.LineInput{
			{AccountID: adj.BankAccountID, DebitMinor: -amount, Description: "Reconciliation " + in.BankTxID},
			{AccountID: adj.AdjustmentAccountID, CreditMinor: -amount, Description: adj.Description},
		}
	}
	posting := journal.PostingInput{
		CompanyID:      companyID,
		Date:           adj.Date,
		Description:    "Reconciliation adjustment for " + in.BankTxID,
		Reference:      in.BankTxID,
		Type:           journal.TypeRecon,
		Lines:          lines,
		IdempotencyKey: in.IdempotencyKey,
		CreatedBy:      sc.UserID,
	}

	return s.journal.PostWorkflow(ctx, idempotency.OpReconcileLedger, posting,
		func(ctx context.Context, txr journal.TxRepository, txn journal.Transaction) error {
			if err := s.repo.MatchedTransactionPosted(ctx, txr.Tx(), in.MatchedTxID); err != nil {
				return err
			}
			if err := s.repo.Insert(ctx, txr.Tx(), Match{
				ID:          uuid.New(),
				CompanyID:   companyID,
				BankTxID:    in.BankTxID,
				MatchedTxID: in.MatchedTxID,
				CreatedAt:   s.now().UTC(),
			}); err != nil {
				return err
			}
			_, err := s.enqueuer.Enqueue(ctx, txr.Tx(), companyID, txn.ID, outbox.EventLedgerReconciled, map[string]any{
				"bank_tx_id":     in.BankTxID,
				"matched_tx_id":  in.MatchedTxID,
				"transaction_id": txn.ID,
			})
			return err
		})
}

func (s *Service) reconcilePlain(ctx context.Context, companyID uuid.UUID, in ReconcileInput) (journal.Result, error) {
	fingerprint, err := idempotency.Fingerprint(fingerprintBody{BankTxID: in.BankTxID, MatchedTxID: in.MatchedTxID})
	if err != nil {
		return journal.Result{}, err
	}
	rec, err := s.idem.Begin(ctx, companyID, idempotency.OpReconcileLedger, in.IdempotencyKey, fingerprint)
	if err != nil {
		return journal.Result{}, err
	}
	if rec != nil {
		return journal.Result{Replayed: true, Status: rec.ResponseStatus, Body: rec.ResponseBody}, nil
	}

	sc, _ := scope.FromContext(ctx)
	match := Match{
		ID:          uuid.New(),
		CompanyID:   companyID,
		BankTxID:    in.BankTxID,
		MatchedTxID: in.MatchedTxID,
		CreatedAt:   s.now().UTC(),
	}
	err = db.WithTx(ctx, s.pool, pgx.RepeatableRead, func(tx pgx.Tx) error {
		if err := s.repo.MatchedTransactionPosted(ctx, tx, in.MatchedTxID); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, match); err != nil {
			return err
		}
		if _, err := s.recorder.Append(ctx, tx, audit.Entry{
			CompanyID:   companyID,
			ActorUserID: sc.UserID,
			Action:      "ledger.reconciled",
			EntityType:  "bank_match",
			EntityID:    match.ID.String(),
			AfterState: map[string]any{
				"bank_tx_id":    in.BankTxID,
				"matched_tx_id": in.MatchedTxID.String(),
			},
			CorrelationID: sc.RequestID,
		}); err != nil {
			return err
		}
		_, err := s.enqueuer.Enqueue(ctx, tx, companyID, in.MatchedTxID, outbox.EventLedgerReconciled, map[string]any{
			"bank_tx_id":    in.BankTxID,
			"matched_tx_id": in.MatchedTxID,
		})
		return err
	})
	if err != nil {
		if abortErr := s.idem.Abort(ctx, companyID, idempotency.OpReconcileLedger, in.IdempotencyKey); abortErr != nil {
			s.logger.Error("idempotency abort failed", slog.Any("error", abortErr))
		}
		return journal.Result{}, err
	}

	body, err := json.Marshal(matchResponse{ID: match.ID, BankTxID: match.BankTxID, MatchedTxID: match.MatchedTxID})
	if err != nil {
		return journal.Result{}, err
	}
	if err := s.idem.Finish(ctx, companyID, idempotency.OpReconcileLedger, in.IdempotencyKey, http.StatusCreated, body); err != nil {
		s.logger.Error("idempotency finish failed", slog.Any("error", err))
	}
	return journal.Result{Status: http.StatusCreated, Body: body}, nil
}

// List returns recent matches in scope.
func (s *Service) List(ctx context.Context) ([]Match, error) {
	return s.repo.List(ctx)
}

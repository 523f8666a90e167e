package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/audit"
	"github.com/meridian-erp/meridian/internal/idempotency"
	"github.com/meridian-erp/meridian/internal/ledger/accounts"
	"github.com/meridian-erp/meridian/internal/ledger/periods"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/observability"
	"github.com/meridian-erp/meridian/internal/outbox"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Service implements the posting engine. Posting is the only path that
// creates accounting facts; every other module funnels through it.
type Service struct {
	repo       Repository
	idem       *idempotency.Store
	periods    *periods.Service
	recorder   *audit.Recorder
	enqueuer   outbox.Enqueuer
	metrics    *observability.Metrics
	logger     *slog.Logger
	limits     Limits
	maxRetries int
	now        func() time.Time
}

// NewService wires the posting engine.
func NewService(repo Repository, idem *idempotency.Store, periodSvc *periods.Service,
	recorder *audit.Recorder, enqueuer outbox.Enqueuer, metrics *observability.Metrics,
	logger *slog.Logger, limits Limits, maxRetries int) *Service {
	return &Service{
		repo:       repo,
		idem:       idem,
		periods:    periodSvc,
		recorder:   recorder,
		enqueuer:   enqueuer,
		metrics:    metrics,
		logger:     logger,
		limits:     limits,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// WithNow overrides the clock for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Result carries the posting outcome plus the exact response to send.
// Replayed results return the bytes stored by the first successful call.
type Result struct {
	Transaction Transaction
	Replayed    bool
	Status      int
	Body        []byte
}

// TransactionResponse is the wire shape for a transaction.
type TransactionResponse struct {
	ID                    uuid.UUID      `json:"id"`
	CompanyID             uuid.UUID      `json:"company_id"`
	TransactionNumber     string         `json:"transaction_number"`
	Date                  string         `json:"date"`
	Description           string         `json:"description"`
	Reference             string         `json:"reference,omitempty"`
	Type                  Type           `json:"type"`
	Status                Status         `json:"status"`
	ReversedTransactionID *uuid.UUID     `json:"reversed_transaction_id,omitempty"`
	PostedAt              *string        `json:"posted_at,omitempty"`
	Lines                 []LineResponse `json:"lines"`
}

// LineResponse is the wire shape for a line.
type LineResponse struct {
	AccountID        uuid.UUID    `json:"account_id"`
	DebitMinor       shared.Minor `json:"debit_minor"`
	CreditMinor      shared.Minor `json:"credit_minor"`
	Description      string       `json:"description,omitempty"`
	DimensionValueID *uuid.UUID   `json:"dimension_value_id,omitempty"`
	LineNumber       int          `json:"line_number"`
}

func toResponse(t Transaction) TransactionResponse {
	out := TransactionResponse{
		ID:                    t.ID,
		CompanyID:             t.CompanyID,
		TransactionNumber:     t.TransactionNumber,
		Date:                  t.Date.Format("2006-01-02"),
		Description:           t.Description,
		Reference:             t.Reference,
		Type:                  t.Type,
		Status:                t.Status,
		ReversedTransactionID: t.ReversedTransactionID,
	}
	if t.PostedAt != nil {
		ts := t.PostedAt.UTC().Format(time.RFC3339Nano)
		out.PostedAt = &ts
	}
	for _, l := range t.Lines {
		out.Lines = append(out.Lines, LineResponse{
			AccountID:        l.AccountID,
			DebitMinor:       l.DebitMinor,
			CreditMinor:      l.CreditMinor,
			Description:      l.Description,
			DimensionValueID: l.DimensionValueID,
			LineNumber:       l.LineNumber,
		})
	}
	return out
}

// Post validates and posts a journal entry atomically. The idempotency key
// is claimed only after deterministic validation passes, so malformed
// requests never consume a key. The first success stores the response;
// retries with the same key and body replay it verbatim.
func (s *Service) Post(ctx context.Context, in PostingInput) (Result, error) {
	if err := scope.AssertCompany(ctx, in.CompanyID); err != nil {
		return Result{}, err
	}
	if err := in.Validate(s.limits); err != nil {
		s.metrics.ObservePosting("rejected")
		return Result{}, err
	}
	return s.postIdempotent(ctx, idempotency.OpPostJournal, in, nil)
}

// WorkflowStep runs inside the posting transaction after the entry is
// written, so workflow state (invoice status, pay run status) commits or
// rolls back atomically with the posting.
type WorkflowStep func(ctx context.Context, txr TxRepository, txn Transaction) error

// PostWorkflow posts an entry under a caller-chosen idempotency operation
// and runs step in the same transaction. Used by the invoice, payment,
// payroll, and reconciliation flows.
func (s *Service) PostWorkflow(ctx context.Context, op idempotency.Operation, in PostingInput, step WorkflowStep) (Result, error) {
	if err := scope.AssertCompany(ctx, in.CompanyID); err != nil {
		return Result{}, err
	}
	if err := in.Validate(s.limits); err != nil {
		s.metrics.ObservePosting("rejected")
		return Result{}, err
	}
	return s.postIdempotent(ctx, op, in, step)
}

func (s *Service) postIdempotent(ctx context.Context, op idempotency.Operation, in PostingInput, step WorkflowStep) (Result, error) {
	fingerprint, err := idempotency.Fingerprint(in)
	if err != nil {
		return Result{}, err
	}
	rec, err := s.idem.Begin(ctx, in.CompanyID, op, in.IdempotencyKey, fingerprint)
	if err != nil {
		return Result{}, err
	}
	if rec != nil {
		s.metrics.ObservePosting("replayed")
		return Result{Replayed: true, Status: rec.ResponseStatus, Body: rec.ResponseBody}, nil
	}

	txn, err := s.postOnce(ctx, in, step)
	if err != nil {
		s.metrics.ObservePosting("failed")
		if abortErr := s.idem.Abort(ctx, in.CompanyID, op, in.IdempotencyKey); abortErr != nil {
			s.logger.Error("idempotency abort failed",
				slog.String("operation", string(op)),
				slog.Any("error", abortErr))
		}
		return Result{}, err
	}

	body, err := json.Marshal(toResponse(txn))
	if err != nil {
		return Result{}, err
	}
	if err := s.idem.Finish(ctx, in.CompanyID, op, in.IdempotencyKey, http.StatusCreated, body); err != nil {
		// The posting is committed; losing the replay row only downgrades
		// a future retry into an in-flight wait.
		s.logger.Error("idempotency finish failed",
			slog.String("transaction_id", txn.ID.String()),
			slog.Any("error", err))
	}
	s.metrics.ObservePosting("posted")
	return Result{Transaction: txn, Status: http.StatusCreated, Body: body}, nil
}

// postOnce runs the posting transaction with serializable retry. Each
// attempt rebuilds identifiers from scratch so a retried attempt cannot
// leak state from a rolled-back one.
func (s *Service) postOnce(ctx context.Context, in PostingInput, step WorkflowStep) (Transaction, error) {
	attempts := 0
	var out Transaction
	err := s.repo.WithPostingTx(ctx, s.maxRetries, func(ctx context.Context, txr TxRepository) error {
		attempts++
		if attempts > 1 {
			s.metrics.ObservePostingRetry()
		}
		t, err := s.postInTx(ctx, txr, in)
		if err != nil {
			return err
		}
		if step != nil {
			if err := step(ctx, txr, t); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

// postInTx performs one posting attempt inside txr's transaction. It is
// shared by Post, Void, and draft posting.
func (s *Service) postInTx(ctx context.Context, txr TxRepository, in PostingInput) (Transaction, error) {
	sc, ok := scope.FromContext(ctx)
	if !ok {
		return Transaction{}, shared.ErrScopeMissing
	}

	isReversal := in.Type == TypeReversal
	override, err := s.periods.EnsurePostable(ctx, txr.Tx(), in.Date, isReversal)
	if err != nil {
		return Transaction{}, err
	}

	// Resolve accounts up front: every line must reference an active
	// account in the posting company.
	accts := make(map[uuid.UUID]accounts.Account, len(in.Lines))
	for idx, line := range in.Lines {
		if _, seen := accts[line.AccountID]; !seen {
			a, err := txr.AccountForPosting(ctx, line.AccountID)
			if err != nil {
				return Transaction{}, err
			}
			if !a.Active {
				return Transaction{}, fmt.Errorf("%w: account %s inactive", shared.ErrUnknownAccount, a.Code)
			}
			accts[line.AccountID] = a
		}
		if line.DimensionValueID != nil {
			ok, err := txr.DimensionValueInScope(ctx, *line.DimensionValueID)
			if err != nil {
				return Transaction{}, err
			}
			if !ok {
				return Transaction{}, fmt.Errorf("%w: line %d", shared.ErrDimensionMismatch, idx+1)
			}
		}
	}

	number, err := txr.NextTransactionNumber(ctx)
	if err != nil {
		return Transaction{}, err
	}

	now := s.now().UTC()
	txn := Transaction{
		ID:                    uuid.New(),
		CompanyID:             in.CompanyID,
		TransactionNumber:     number,
		Date:                  in.Date,
		Description:           in.Description,
		Reference:             in.Reference,
		Type:                  in.Type,
		Status:                StatusPosted,
		ReversedTransactionID: in.reversedTransactionID,
		IdempotencyKey:        in.IdempotencyKey,
		CreatedBy:             in.CreatedBy,
		CreatedAt:             now,
		PostedAt:              &now,
	}
	for idx, line := range in.Lines {
		txn.Lines = append(txn.Lines, Line{
			ID:               uuid.New(),
			TransactionID:    txn.ID,
			CompanyID:        in.CompanyID,
			AccountID:        line.AccountID,
			DebitMinor:       line.DebitMinor,
			CreditMinor:      line.CreditMinor,
			Description:      line.Description,
			DimensionValueID: line.DimensionValueID,
			LineNumber:       idx + 1,
		})
	}

	if err := txr.InsertTransaction(ctx, txn); err != nil {
		return Transaction{}, err
	}
	if err := txr.InsertLines(ctx, txn); err != nil {
		return Transaction{}, err
	}

	if err := s.checkNegativeBalances(ctx, txr, txn, accts); err != nil {
		return Transaction{}, err
	}

	action := "transaction.posted"
	if isReversal {
		action = "transaction.reversal_posted"
	}
	after := map[string]any{
		"transaction_number": txn.TransactionNumber,
		"date":               txn.Date.Format("2006-01-02"),
		"type":               string(txn.Type),
		"status":             string(txn.Status),
		"line_count":         len(txn.Lines),
	}
	if override {
		after["period_lock_override"] = true
	}
	if _, err := s.recorder.Append(ctx, txr.Tx(), audit.Entry{
		CompanyID:     txn.CompanyID,
		ActorUserID:   sc.UserID,
		Action:        action,
		EntityType:    "transaction",
		EntityID:      txn.ID.String(),
		AfterState:    after,
		CorrelationID: sc.RequestID,
	}); err != nil {
		return Transaction{}, err
	}

	if _, err := s.enqueuer.Enqueue(ctx, txr.Tx(), txn.CompanyID, txn.ID, outbox.EventTransactionPosted, map[string]any{
		"transaction_id":     txn.ID,
		"company_id":         txn.CompanyID,
		"transaction_number": txn.TransactionNumber,
		"date":               txn.Date.Format("2006-01-02"),
		"type":               string(txn.Type),
	}); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// checkNegativeBalances rejects postings that would push a debit-normal
// account below zero, unless the account opts out of the guard.
func (s *Service) checkNegativeBalances(ctx context.Context, txr TxRepository, txn Transaction, accts map[uuid.UUID]accounts.Account) error {
	checked := make(map[uuid.UUID]bool, len(accts))
	for _, line := range txn.Lines {
		a := accts[line.AccountID]
		if a.AllowNegativeBalance || a.Type.Normal() != accounts.SideDebit || checked[a.ID] {
			continue
		}
		// Only a credit can push a debit-normal account downward.
		if line.CreditMinor == 0 {
			continue
		}
		checked[a.ID] = true
		balance, err := txr.AccountBalance(ctx, a.ID)
		if err != nil {
			return err
		}
		if balance < 0 {
			return fmt.Errorf("%w: account %s would reach %s", shared.ErrNegativeBalance, a.Code, balance)
		}
	}
	return nil
}

// voidFingerprintBody is the canonical shape hashed for void requests.
type voidFingerprintBody struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Reason        string    `json:"reason"`
}

// Void reverses a posted transaction: a reversing twin is posted and the
// original flips to reversed, atomically. The original's lines never change.
func (s *Service) Void(ctx context.Context, in VoidInput, idempotencyKey string) (Result, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return Result{}, err
	}
	if in.TransactionID == uuid.Nil {
		return Result{}, fmt.Errorf("%w: transaction id required", shared.ErrInvalidStatus)
	}

	fingerprint, err := idempotency.Fingerprint(voidFingerprintBody{TransactionID: in.TransactionID, Reason: in.Reason})
	if err != nil {
		return Result{}, err
	}
	rec, err := s.idem.Begin(ctx, companyID, idempotency.OpVoidTransaction, idempotencyKey, fingerprint)
	if err != nil {
		return Result{}, err
	}
	if rec != nil {
		s.metrics.ObservePosting("replayed")
		return Result{Replayed: true, Status: rec.ResponseStatus, Body: rec.ResponseBody}, nil
	}

	reversal, err := s.voidOnce(ctx, in)
	if err != nil {
		s.metrics.ObservePosting("failed")
		if abortErr := s.idem.Abort(ctx, companyID, idempotency.OpVoidTransaction, idempotencyKey); abortErr != nil {
			s.logger.Error("idempotency abort failed", slog.Any("error", abortErr))
		}
		return Result{}, err
	}

	body, err := json.Marshal(toResponse(reversal))
	if err != nil {
		return Result{}, err
	}
	if err := s.idem.Finish(ctx, companyID, idempotency.OpVoidTransaction, idempotencyKey, http.StatusCreated, body); err != nil {
		s.logger.Error("idempotency finish failed",
			slog.String("transaction_id", reversal.ID.String()),
			slog.Any("error", err))
	}
	s.metrics.ObservePosting("posted")
	return Result{Transaction: reversal, Status: http.StatusCreated, Body: body}, nil
}

func (s *Service) voidOnce(ctx context.Context, in VoidInput) (Transaction, error) {
	attempts := 0
	var reversal Transaction
	err := s.repo.WithPostingTx(ctx, s.maxRetries, func(ctx context.Context, txr TxRepository) error {
		attempts++
		if attempts > 1 {
			s.metrics.ObservePostingRetry()
		}

		original, err := txr.GetWithLinesForUpdate(ctx, in.TransactionID)
		if err != nil {
			return err
		}
		switch original.Status {
		case StatusPosted:
		case StatusReversed:
			return fmt.Errorf("%w: transaction already reversed", shared.ErrImmutable)
		default:
			return fmt.Errorf("%w: only posted transactions can be voided", shared.ErrInvalidStatus)
		}

		desc := "Reversal of " + original.TransactionNumber
		if in.Reason != "" {
			desc += ": " + in.Reason
		}
		originalID := original.ID
		rin := PostingInput{
			CompanyID:             original.CompanyID,
			Date:                  original.Date,
			Description:           desc,
			Reference:             original.Reference,
			Type:                  TypeReversal,
			Lines:                 reverseLines(original.Lines),
			CreatedBy:             in.ActorID,
			reversedTransactionID: &originalID,
		}
		if err := rin.Validate(s.limits); err != nil {
			return err
		}

		t, err := s.postInTx(ctx, txr, rin)
		if err != nil {
			return err
		}
		if err := txr.SetReversedBy(ctx, original.ID, t.ID); err != nil {
			return err
		}

		sc, _ := scope.FromContext(ctx)
		if _, err := s.recorder.Append(ctx, txr.Tx(), audit.Entry{
			CompanyID:   original.CompanyID,
			ActorUserID: sc.UserID,
			Action:      "transaction.voided",
			EntityType:  "transaction",
			EntityID:    original.ID.String(),
			BeforeState: map[string]any{"status": string(StatusPosted)},
			AfterState: map[string]any{
				"status":      string(StatusReversed),
				"reversal_id": t.ID.String(),
				"reason":      in.Reason,
			},
			CorrelationID: sc.RequestID,
		}); err != nil {
			return err
		}
		reversal = t
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return reversal, nil
}

// CreateDraft saves a transaction without posting it. Drafts may be
// unbalanced; the full invariants apply when the draft is posted.
func (s *Service) CreateDraft(ctx context.Context, in PostingInput) (Transaction, error) {
	if err := scope.AssertCompany(ctx, in.CompanyID); err != nil {
		return Transaction{}, err
	}
	if err := in.validateDraft(s.limits); err != nil {
		return Transaction{}, err
	}
	now := s.now().UTC()
	txn := Transaction{
		ID:          uuid.New(),
		CompanyID:   in.CompanyID,
		Date:        in.Date,
		Description: in.Description,
		Reference:   in.Reference,
		Type:        in.Type,
		Status:      StatusDraft,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
	}
	if txn.Type == "" {
		txn.Type = TypeJournal
	}
	txn.TransactionNumber = "D-" + txn.ID.String()[:8]
	for idx, line := range in.Lines {
		txn.Lines = append(txn.Lines, Line{
			ID:               uuid.New(),
			TransactionID:    txn.ID,
			CompanyID:        in.CompanyID,
			AccountID:        line.AccountID,
			DebitMinor:       line.DebitMinor,
			CreditMinor:      line.CreditMinor,
			Description:      line.Description,
			DimensionValueID: line.DimensionValueID,
			LineNumber:       idx + 1,
		})
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		if err := txr.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		return txr.InsertLines(ctx, txn)
	})
	if err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// UpdateDraft replaces a draft's header fields and lines.
func (s *Service) UpdateDraft(ctx context.Context, id uuid.UUID, in PostingInput) (Transaction, error) {
	if err := scope.AssertCompany(ctx, in.CompanyID); err != nil {
		return Transaction{}, err
	}
	if err := in.validateDraft(s.limits); err != nil {
		return Transaction{}, err
	}
	var out Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		existing, err := txr.GetWithLinesForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if existing.Status != StatusDraft {
			return fmt.Errorf("%w: only drafts can be edited", shared.ErrImmutable)
		}
		existing.Date = in.Date
		existing.Description = in.Description
		existing.Reference = in.Reference
		existing.Lines = nil
		for idx, line := range in.Lines {
			existing.Lines = append(existing.Lines, Line{
				ID:               uuid.New(),
				TransactionID:    existing.ID,
				CompanyID:        existing.CompanyID,
				AccountID:        line.AccountID,
				DebitMinor:       line.DebitMinor,
				CreditMinor:      line.CreditMinor,
				Description:      line.Description,
				DimensionValueID: line.DimensionValueID,
				LineNumber:       idx + 1,
			})
		}
		if _, err := txr.Tx().Exec(ctx, `UPDATE transactions SET date=$3, description=$4, reference=$5
			WHERE id=$1 AND company_id=$2 AND status='draft'`,
			existing.ID, existing.CompanyID, existing.Date, existing.Description, existing.Reference); err != nil {
			return fmt.Errorf("%w: update draft: %v", shared.ErrStorage, err)
		}
		if err := txr.ReplaceDraftLines(ctx, existing); err != nil {
			return err
		}
		out = existing
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

// PostDraft promotes a draft through the full posting pipeline, then
// removes the draft row. The posted transaction gets a fresh number.
func (s *Service) PostDraft(ctx context.Context, id uuid.UUID, idempotencyKey string) (Result, error) {
	draft, err := s.repo.GetWithLines(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if draft.Status != StatusDraft {
		return Result{}, fmt.Errorf("%w: transaction is not a draft", shared.ErrInvalidStatus)
	}
	in := PostingInput{
		CompanyID:      draft.CompanyID,
		Date:           draft.Date,
		Description:    draft.Description,
		Reference:      draft.Reference,
		Type:           draft.Type,
		IdempotencyKey: idempotencyKey,
		CreatedBy:      draft.CreatedBy,
	}
	for _, l := range draft.Lines {
		in.Lines = append(in.Lines, LineInput{
			AccountID:        l.AccountID,
			DebitMinor:       l.DebitMinor,
			CreditMinor:      l.CreditMinor,
			Description:      l.Description,
			DimensionValueID: l.DimensionValueID,
		})
	}
	if err := in.Validate(s.limits); err != nil {
		return Result{}, err
	}
	res, err := s.postIdempotent(ctx, idempotency.OpPostJournal, in, nil)
	if err != nil {
		return Result{}, err
	}
	if !res.Replayed {
		if err := s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
			return txr.DeleteDraft(ctx, id)
		}); err != nil && !errors.Is(err, shared.ErrInvalidStatus) {
			s.logger.Warn("draft cleanup after posting failed",
				slog.String("draft_id", id.String()), slog.Any("error", err))
		}
	}
	return res, nil
}

// DiscardDraft deletes a draft and its lines.
func (s *Service) DiscardDraft(ctx context.Context, id uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		return txr.DeleteDraft(ctx, id)
	})
}

// Get returns a transaction with lines, scoped to the active company.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return s.repo.GetWithLines(ctx, id)
}

// List returns recent transactions for the active company.
func (s *Service) List(ctx context.Context, limit int) ([]Transaction, error) {
	return s.repo.List(ctx, limit)
}

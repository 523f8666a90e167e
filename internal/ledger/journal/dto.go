package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// Limits bounds a posting request; values come from configuration.
type Limits struct {
	LineAmountMaxMinor shared.Minor
	LineCountMax       int
}

// LineInput describes one journal line in a posting request.
type LineInput struct {
	AccountID        uuid.UUID    `json:"account_id"`
	DebitMinor       shared.Minor `json:"debit_minor"`
	CreditMinor      shared.Minor `json:"credit_minor"`
	Description      string       `json:"description,omitempty"`
	DimensionValueID *uuid.UUID   `json:"dimension_value_id,omitempty"`
}

// PostingInput groups the fields required to post a journal entry. The
// json tags define the canonical shape hashed into the idempotency
// fingerprint, so field additions change fingerprints deliberately.
type PostingInput struct {
	CompanyID      uuid.UUID   `json:"company_id"`
	Date           time.Time   `json:"date"`
	Description    string      `json:"description"`
	Reference      string      `json:"reference,omitempty"`
	Type           Type        `json:"type"`
	Lines          []LineInput `json:"lines"`
	IdempotencyKey string      `json:"-"`
	CreatedBy      uuid.UUID   `json:"-"`

	// set internally by void; never caller-supplied
	reversedTransactionID *uuid.UUID
}

// Validate enforces the line-level invariants: sign discipline, cardinality
// bounds, per-line amount bounds, and exact double-entry balance.
func (in PostingInput) Validate(limits Limits) error {
	if in.CompanyID == uuid.Nil {
		return fmt.Errorf("%w: company required", shared.ErrInvalidStatus)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", shared.ErrInvalidStatus)
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	if limits.LineCountMax > 0 && len(in.Lines) > limits.LineCountMax {
		return shared.ErrTooManyLines
	}

	var debit, credit shared.Minor
	var err error
	for idx, line := range in.Lines {
		if line.AccountID == uuid.Nil {
			return fmt.Errorf("%w: line %d missing account", shared.ErrUnknownAccount, idx+1)
		}
		if line.DebitMinor < 0 || line.CreditMinor < 0 {
			return fmt.Errorf("%w: line %d", shared.ErrNegativeAmount, idx+1)
		}
		if (line.DebitMinor > 0) == (line.CreditMinor > 0) {
			return fmt.Errorf("%w: line %d", shared.ErrLineSign, idx+1)
		}
		if limits.LineAmountMaxMinor > 0 && (line.DebitMinor > limits.LineAmountMaxMinor || line.CreditMinor > limits.LineAmountMaxMinor) {
			return fmt.Errorf("%w: line %d", shared.ErrAmountTooLarge, idx+1)
		}
		if debit, err = shared.AddMinor(debit, line.DebitMinor); err != nil {
			return fmt.Errorf("%w: line %d", shared.ErrNegativeAmount, idx+1)
		}
		if credit, err = shared.AddMinor(credit, line.CreditMinor); err != nil {
			return fmt.Errorf("%w: line %d", shared.ErrNegativeAmount, idx+1)
		}
	}
	if debit != credit {
		return fmt.Errorf("%w: debits %d, credits %d", shared.ErrUnbalanced, debit, credit)
	}
	return nil
}

// validateDraft applies the subset of checks that make sense before a
// draft is posted: drafts may be unbalanced but never malformed.
func (in PostingInput) validateDraft(limits Limits) error {
	if in.CompanyID == uuid.Nil {
		return fmt.Errorf("%w: company required", shared.ErrInvalidStatus)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", shared.ErrInvalidStatus)
	}
	if limits.LineCountMax > 0 && len(in.Lines) > limits.LineCountMax {
		return shared.ErrTooManyLines
	}
	for idx, line := range in.Lines {
		if line.AccountID == uuid.Nil {
			return fmt.Errorf("%w: line %d missing account", shared.ErrUnknownAccount, idx+1)
		}
		if line.DebitMinor < 0 || line.CreditMinor < 0 {
			return fmt.Errorf("%w: line %d", shared.ErrNegativeAmount, idx+1)
		}
		if line.DebitMinor > 0 && line.CreditMinor > 0 {
			return fmt.Errorf("%w: line %d", shared.ErrLineSign, idx+1)
		}
	}
	return nil
}

// VoidInput wraps the parameters for voiding by reversal.
type VoidInput struct {
	TransactionID uuid.UUID
	Reason        string
	ActorID       uuid.UUID
}

// reverseLines swaps debit and credit line for line.
func reverseLines(lines []Line) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:        line.AccountID,
			DebitMinor:       line.CreditMinor,
			CreditMinor:      line.DebitMinor,
			Description:      line.Description,
			DimensionValueID: line.DimensionValueID,
		})
	}
	return out
}

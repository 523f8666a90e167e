package journal

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

func validInput() PostingInput {
	return PostingInput{
		CompanyID:   uuid.New(),
		Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Description: "Office rent",
		Type:        TypeJournal,
		Lines: []LineInput{
			{AccountID: uuid.New(), DebitMinor: 125000},
			{AccountID: uuid.New(), CreditMinor: 125000},
		},
	}
}

func TestValidateAcceptsBalancedEntry(t *testing.T) {
	require.NoError(t, validInput().Validate(Limits{}))
}

func TestValidateRejectsUnbalanced(t *testing.T) {
	in := validInput()
	in.Lines[1].CreditMinor = 124999
	err := in.Validate(Limits{})
	require.ErrorIs(t, err, shared.ErrUnbalanced)
}

func TestValidateRejectsSingleLine(t *testing.T) {
	in := validInput()
	in.Lines = in.Lines[:1]
	require.ErrorIs(t, in.Validate(Limits{}), shared.ErrTooFewLines)
}

func TestValidateRejectsTooManyLines(t *testing.T) {
	in := validInput()
	acct := uuid.New()
	in.Lines = nil
	for i := 0; i < 6; i++ {
		in.Lines = append(in.Lines,
			LineInput{AccountID: acct, DebitMinor: 100},
			LineInput{AccountID: acct, CreditMinor: 100})
	}
	require.ErrorIs(t, in.Validate(Limits{LineCountMax: 10}), shared.ErrTooManyLines)
}

func TestValidateRejectsBothSidesSet(t *testing.T) {
	in := validInput()
	in.Lines[0].CreditMinor = 1
	require.ErrorIs(t, in.Validate(Limits{}), shared.ErrLineSign)
}

func TestValidateRejectsZeroLine(t *testing.T) {
	in := validInput()
	in.Lines[0].DebitMinor = 0
	require.ErrorIs(t, in.Validate(Limits{}), shared.ErrLineSign)
}

func TestValidateRejectsNegativeAmount(t *testing.T) {
	in := validInput()
	in.Lines[0].DebitMinor = -5
	require.ErrorIs(t, in.Validate(Limits{}), shared.ErrNegativeAmount)
}

func TestValidateRejectsOversizedLine(t *testing.T) {
	in := validInput()
	in.Lines[0].DebitMinor = 10_000_01
	in.Lines[1].CreditMinor = 10_000_01
	err := in.Validate(Limits{LineAmountMaxMinor: 10_000_00})
	require.ErrorIs(t, err, shared.ErrAmountTooLarge)
}

func TestValidateRejectsSumOverflow(t *testing.T) {
	acct := uuid.New()
	in := validInput()
	in.Lines = []LineInput{
		{AccountID: acct, DebitMinor: shared.Minor(1<<62 + 1<<61)},
		{AccountID: acct, DebitMinor: shared.Minor(1<<62 + 1<<61)},
		{AccountID: acct, CreditMinor: 1},
	}
	err := in.Validate(Limits{})
	require.Error(t, err)
	require.False(t, errors.Is(err, shared.ErrUnbalanced), "overflow must not be reported as imbalance")
}

func TestValidateRejectsMissingAccount(t *testing.T) {
	in := validInput()
	in.Lines[0].AccountID = uuid.Nil
	require.ErrorIs(t, in.Validate(Limits{}), shared.ErrUnknownAccount)
}

func TestValidateRejectsMissingDate(t *testing.T) {
	in := validInput()
	in.Date = time.Time{}
	require.ErrorIs(t, in.Validate(Limits{}), shared.ErrInvalidStatus)
}

func TestValidateDraftAllowsUnbalanced(t *testing.T) {
	in := validInput()
	in.Lines[1].CreditMinor = 1
	require.NoError(t, in.validateDraft(Limits{}))
}

func TestValidateDraftStillRejectsBothSides(t *testing.T) {
	in := validInput()
	in.Lines[0].CreditMinor = 7
	require.ErrorIs(t, in.validateDraft(Limits{}), shared.ErrLineSign)
}

func TestReverseLinesSwapsSides(t *testing.T) {
	dim := uuid.New()
	lines := []Line{
		{AccountID: uuid.New(), DebitMinor: 500, Description: "cash", DimensionValueID: &dim},
		{AccountID: uuid.New(), CreditMinor: 500, Description: "revenue"},
	}
	out := reverseLines(lines)
	require.Len(t, out, 2)
	require.Equal(t, shared.Minor(0), out[0].DebitMinor)
	require.Equal(t, shared.Minor(500), out[0].CreditMinor)
	require.Equal(t, shared.Minor(500), out[1].DebitMinor)
	require.Equal(t, shared.Minor(0), out[1].CreditMinor)
	require.Equal(t, &dim, out[0].DimensionValueID)
	require.Equal(t, lines[0].AccountID, out[0].AccountID)

	// Reversal of the reversal restores the original amounts.
	again := reverseLines([]Line{
		{AccountID: out[0].AccountID, DebitMinor: out[0].DebitMinor, CreditMinor: out[0].CreditMinor},
	})
	require.Equal(t, lines[0].DebitMinor, again[0].DebitMinor)
}

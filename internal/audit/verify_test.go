package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/canonical"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

func buildChain(t *testing.T, company uuid.UUID, actions ...string) []Event {
	t.Helper()
	var events []Event
	prev := ""
	for i, action := range actions {
		e := Event{
			ID:          uuid.New(),
			CompanyID:   company,
			Seq:         int64(i + 1),
			ActorUserID: uuid.New(),
			Action:      action,
			EntityType:  "transaction",
			EntityID:    uuid.New().String(),
			OccurredAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
		}
		e.PreviousHash = prev
		hash, err := canonical.ChainHash(prev, e.toHashable())
		require.NoError(t, err)
		e.EventHash = hash
		prev = hash
		events = append(events, e)
	}
	return events
}

func TestVerifyChainAcceptsValidChain(t *testing.T) {
	events := buildChain(t, uuid.New(), "transaction.posted", "transaction.posted", "period.locked")
	require.NoError(t, VerifyChain(events))
}

func TestVerifyChainEmptyIsValid(t *testing.T) {
	require.NoError(t, VerifyChain(nil))
}

func TestVerifyChainDetectsTamperedPayload(t *testing.T) {
	events := buildChain(t, uuid.New(), "transaction.posted", "transaction.posted")
	events[0].Action = "transaction.voided"
	err := VerifyChain(events)
	require.ErrorIs(t, err, shared.ErrChainBroken)
}

func TestVerifyChainDetectsBrokenLink(t *testing.T) {
	events := buildChain(t, uuid.New(), "a", "b", "c")
	events[2].PreviousHash = "deadbeef"
	err := VerifyChain(events)
	require.ErrorIs(t, err, shared.ErrChainBroken)
}

func TestVerifyChainDetectsRemovedEvent(t *testing.T) {
	events := buildChain(t, uuid.New(), "a", "b", "c")
	err := VerifyChain(append(events[:1], events[2]))
	require.ErrorIs(t, err, shared.ErrChainBroken)
}

package jobs

import (
	"context"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	_ "github.com/meridian-erp/meridian/testing"
)

func TestEventConsumerSkipsMalformedPayload(t *testing.T) {
	c := NewEventConsumer(nil, nil, slog.Default())
	task := asynq.NewTask(TaskLedgerEvent, []byte("not json"))
	err := c.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestEventConsumerIgnoresUnknownEventType(t *testing.T) {
	c := NewEventConsumer(nil, nil, slog.Default())
	task, err := NewLedgerEventTask(LedgerEventPayload{
		EventID:   "e1",
		EventType: "something.else",
		Body:      []byte(`{}`),
	})
	require.NoError(t, err)
	require.NoError(t, c.Handle(context.Background(), task))
}

func TestEventConsumerSkipsPostedEventWithoutCompany(t *testing.T) {
	c := NewEventConsumer(nil, nil, slog.Default())
	task, err := NewLedgerEventTask(LedgerEventPayload{
		EventID:   "e2",
		EventType: "transaction.posted",
		Body:      []byte(`{"transaction_number":"T-0001"}`),
	})
	require.NoError(t, err)
	require.ErrorIs(t, c.Handle(context.Background(), task), asynq.SkipRetry)
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

// Publisher hands drained outbox records to the Asynq queue. The task id
// is derived from the event id, so a record drained twice enqueues once.
type Publisher struct {
	client *asynq.Client
}

// NewPublisher constructs a Publisher around an Asynq client.
func NewPublisher(client *asynq.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish implements outbox.QueuePublisher.
func (p *Publisher) Publish(ctx context.Context, eventType, eventID string, payload json.RawMessage) error {
	task, err := NewLedgerEventTask(LedgerEventPayload{
		EventID:   eventID,
		EventType: eventType,
		Body:      payload,
	})
	if err != nil {
		return err
	}
	_, err = p.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueEvents),
		asynq.TaskID("event:"+eventID),
		asynq.MaxRetry(10))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// Close releases the underlying client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

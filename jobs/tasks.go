// Package jobs runs the background side of the ledger: draining the
// outbox into the queue, fanning events out to consumers, and the
// periodic maintenance sweeps.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault carries maintenance sweeps.
	QueueDefault = "default"
	// QueueEvents carries drained ledger events.
	QueueEvents = "events"

	// TaskOutboxDrain moves pending outbox rows onto the queue.
	TaskOutboxDrain = "outbox:drain"
	// TaskLedgerEvent is one drained ledger event awaiting consumers.
	TaskLedgerEvent = "ledger:event"
	// TaskIdempotencyPurge removes idempotency rows past retention.
	TaskIdempotencyPurge = "idempotency:purge"
	// TaskAuditVerify re-walks every company's audit hash chain.
	TaskAuditVerify = "audit:verify"
)

// LedgerEventPayload is the envelope for TaskLedgerEvent tasks. Body is
// the outbox payload verbatim; consumers deduplicate on EventID.
type LedgerEventPayload struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Body      json.RawMessage `json:"body"`
}

// NewOutboxDrainTask constructs a drain tick.
func NewOutboxDrainTask() *asynq.Task {
	return asynq.NewTask(TaskOutboxDrain, nil)
}

// NewIdempotencyPurgeTask constructs a purge tick.
func NewIdempotencyPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyPurge, nil)
}

// NewAuditVerifyTask constructs a chain verification tick.
func NewAuditVerifyTask() *asynq.Task {
	return asynq.NewTask(TaskAuditVerify, nil)
}

// NewLedgerEventTask wraps a drained outbox record.
func NewLedgerEventTask(payload LedgerEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerEvent, data), nil
}

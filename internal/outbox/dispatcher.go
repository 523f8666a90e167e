package outbox

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-erp/meridian/internal/platform/db"
)

// QueuePublisher hands a drained event to the delivery queue.
type QueuePublisher interface {
	Publish(ctx context.Context, eventType string, eventID string, payload json.RawMessage) error
}

// Dispatcher drains pending outbox rows into the queue. Rows are claimed
// with SKIP LOCKED so concurrent drains do not double-deliver within one
// run; delivery remains at-least-once across crashes.
type Dispatcher struct {
	store     *Store
	publisher QueuePublisher
	logger    *slog.Logger
	batchSize int
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store *Store, publisher QueuePublisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, publisher: publisher, logger: logger, batchSize: 100}
}

// DrainOnce claims one batch and publishes it. Returns the number of
// records dispatched.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	dispatched := 0
	err := db.WithTx(ctx, d.store.Pool(), pgx.ReadCommitted, func(tx pgx.Tx) error {
		records, err := d.store.ClaimPending(ctx, tx, d.batchSize)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := d.publisher.Publish(ctx, rec.EventType, rec.ID.String(), rec.Payload); err != nil {
				d.logger.Warn("outbox publish failed",
					slog.String("event_id", rec.ID.String()),
					slog.String("event_type", rec.EventType),
					slog.Any("error", err))
				if err := d.store.MarkFailed(ctx, tx, rec.ID); err != nil {
					return err
				}
				continue
			}
			if err := d.store.MarkDispatched(ctx, tx, rec.ID); err != nil {
				return err
			}
			dispatched++
		}
		return nil
	})
	if err != nil {
		return dispatched, err
	}
	return dispatched, nil
}

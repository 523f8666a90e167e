package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian/internal/entitlements"
	"github.com/meridian-erp/meridian/internal/masterdata"
	"github.com/meridian-erp/meridian/internal/outbox"
)

// EventConsumer reacts to drained ledger events. Delivery is
// at-least-once; every reaction here is safe to repeat.
type EventConsumer struct {
	masterdata   *masterdata.Repository
	entitlements *entitlements.Service
	logger       *slog.Logger
}

// NewEventConsumer constructs the consumer.
func NewEventConsumer(md *masterdata.Repository, ent *entitlements.Service, logger *slog.Logger) *EventConsumer {
	return &EventConsumer{masterdata: md, entitlements: ent, logger: logger}
}

// Handle processes TaskLedgerEvent.
func (c *EventConsumer) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	c.logger.Info("ledger event",
		slog.String("event_id", payload.EventID),
		slog.String("event_type", payload.EventType))

	switch payload.EventType {
	case outbox.EventTransactionPosted:
		return c.onTransactionPosted(ctx, payload)
	default:
		return nil
	}
}

// onTransactionPosted drops the tenant's cached usage counters so the
// next allowance check sees the new posting.
func (c *EventConsumer) onTransactionPosted(ctx context.Context, payload LedgerEventPayload) error {
	var body struct {
		CompanyID uuid.UUID `json:"company_id"`
	}
	if err := json.Unmarshal(payload.Body, &body); err != nil || body.CompanyID == uuid.Nil {
		return asynq.SkipRetry
	}
	tenantID, err := c.masterdata.TenantOf(ctx, body.CompanyID)
	if err != nil {
		return err
	}
	c.entitlements.Invalidate(ctx, tenantID)
	return nil
}

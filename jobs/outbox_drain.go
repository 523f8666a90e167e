package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-erp/meridian/internal/jobs"
	"github.com/meridian-erp/meridian/internal/observability"
	"github.com/meridian-erp/meridian/internal/outbox"
)

// Drainer runs the outbox drain tick: claim pending rows, publish them,
// report the remaining backlog.
type Drainer struct {
	dispatcher *outbox.Dispatcher
	store      *outbox.Store
	metrics    *observability.Metrics
	tracker    *jobmetrics.Metrics
	logger     *slog.Logger
}

// NewDrainer constructs a Drainer.
func NewDrainer(dispatcher *outbox.Dispatcher, store *outbox.Store, metrics *observability.Metrics, tracker *jobmetrics.Metrics, logger *slog.Logger) *Drainer {
	return &Drainer{dispatcher: dispatcher, store: store, metrics: metrics, tracker: tracker, logger: logger}
}

// Handle processes TaskOutboxDrain. Batches are drained until the outbox
// is empty so a single tick clears any backlog.
func (d *Drainer) Handle(ctx context.Context, _ *asynq.Task) error {
	t := d.tracker.Track("outbox_drain")
	total := 0
	for {
		n, err := d.dispatcher.DrainOnce(ctx)
		total += n
		if err != nil {
			d.metrics.ObserveOutboxDispatched(total)
			return t.End(err)
		}
		if n == 0 {
			break
		}
	}
	d.metrics.ObserveOutboxDispatched(total)
	if pending, err := d.store.PendingCount(ctx); err == nil {
		d.metrics.SetOutboxPending(pending)
	}
	if total > 0 {
		d.logger.Info("outbox drained", slog.Int("dispatched", total))
	}
	return t.End(nil)
}

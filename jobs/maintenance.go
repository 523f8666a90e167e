package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian/internal/audit"
	"github.com/meridian-erp/meridian/internal/idempotency"
	jobmetrics "github.com/meridian-erp/meridian/internal/jobs"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/masterdata"
)

// Maintenance hosts the periodic sweeps: idempotency retention and audit
// chain verification.
type Maintenance struct {
	idem       *idempotency.Store
	verifier   *audit.Verifier
	masterdata *masterdata.Repository
	tracker    *jobmetrics.Metrics
	logger     *slog.Logger
}

// NewMaintenance constructs the maintenance handlers.
func NewMaintenance(idem *idempotency.Store, verifier *audit.Verifier, md *masterdata.Repository, tracker *jobmetrics.Metrics, logger *slog.Logger) *Maintenance {
	return &Maintenance{idem: idem, verifier: verifier, masterdata: md, tracker: tracker, logger: logger}
}

// HandleIdempotencyPurge processes TaskIdempotencyPurge.
func (m *Maintenance) HandleIdempotencyPurge(ctx context.Context, _ *asynq.Task) error {
	t := m.tracker.Track("idempotency_purge")
	removed, err := m.idem.Purge(ctx)
	if err != nil {
		return t.End(err)
	}
	if removed > 0 {
		m.logger.Info("idempotency keys purged", slog.Int64("removed", removed))
	}
	return t.End(nil)
}

// HandleAuditVerify processes TaskAuditVerify. Every company's chain is
// checked even when an earlier one is broken; a broken chain fails the
// task so it surfaces in queue monitoring.
func (m *Maintenance) HandleAuditVerify(ctx context.Context, _ *asynq.Task) error {
	t := m.tracker.Track("audit_verify")
	ids, err := m.masterdata.ListCompanyIDs(ctx)
	if err != nil {
		return t.End(err)
	}
	broken := 0
	for _, id := range ids {
		verified, err := m.verifier.VerifyCompany(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrChainBroken) {
				broken++
				m.logger.Error("audit chain broken",
					slog.String("company_id", id.String()),
					slog.Any("error", err))
				continue
			}
			return t.End(err)
		}
		m.logger.Debug("audit chain verified",
			slog.String("company_id", id.String()),
			slog.Int("events", verified))
	}
	if broken > 0 {
		return t.End(fmt.Errorf("%w: %d of %d companies", shared.ErrChainBroken, broken, len(ids)))
	}
	return t.End(nil)
}

package periods

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/audit"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/platform/db"
	"github.com/meridian-erp/meridian/internal/scope"
)

// RoleController may lock and unlock periods.
const RoleController = "controller"

// Service is the period lock manager: the authoritative predicate for
// "may I post on date D" plus the lock/unlock transitions.
type Service struct {
	pool     *pgxpool.Pool
	repo     Repository
	recorder *audit.Recorder
	policy   OverridePolicy
	now      func() time.Time
}

// NewService constructs the lock manager.
func NewService(pool *pgxpool.Pool, repo Repository, recorder *audit.Recorder, policy OverridePolicy) *Service {
	return &Service{pool: pool, repo: repo, recorder: recorder, policy: policy, now: time.Now}
}

// WithNow overrides the clock for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create adds an open period.
func (s *Service) Create(ctx context.Context, start, end time.Time, periodType string) (Period, error) {
	return s.repo.Create(ctx, Period{StartDate: start, EndDate: end, Type: periodType})
}

// List returns all periods for the active company.
func (s *Service) List(ctx context.Context) ([]Period, error) {
	return s.repo.List(ctx)
}

// IsLocked reports whether date falls in a closed period. Runs inside the
// caller's posting transaction so there is no TOCTOU against a concurrent
// close; the covering period row is locked until commit.
func (s *Service) IsLocked(ctx context.Context, tx pgx.Tx, date time.Time) (bool, error) {
	p, found, err := s.repo.FindByDateForUpdate(ctx, tx, date)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return p.State == StateClosed, nil
}

// EnsurePostable fails with ErrPeriodLocked unless the posting is allowed
// under the configured override policy. Overrides that pass are audit-logged
// by the caller alongside the posting itself.
func (s *Service) EnsurePostable(ctx context.Context, tx pgx.Tx, date time.Time, isReversal bool) (override bool, err error) {
	locked, err := s.IsLocked(ctx, tx, date)
	if err != nil {
		return false, err
	}
	if !locked {
		return false, nil
	}
	if s.policy.Allows(isReversal) {
		return true, nil
	}
	return false, shared.ErrPeriodLocked
}

// Lock closes a period. The transition and its reason land in the audit
// chain within the same transaction.
func (s *Service) Lock(ctx context.Context, periodID uuid.UUID, reason string) (Period, error) {
	return s.transition(ctx, periodID, StateClosed, "period.locked", reason)
}

// Unlock reopens a closed period. Rare, privileged, and audit-logged.
func (s *Service) Unlock(ctx context.Context, periodID uuid.UUID, reason string) (Period, error) {
	return s.transition(ctx, periodID, StateOpen, "period.unlocked", reason)
}

func (s *Service) transition(ctx context.Context, periodID uuid.UUID, target State, action, reason string) (Period, error) {
	sc, ok := scope.FromContext(ctx)
	if !ok {
		return Period{}, shared.ErrScopeMissing
	}
	if !sc.HasRole(RoleController) && !sc.HasRole("admin") {
		return Period{}, shared.ErrUnauthorized
	}

	var out Period
	err := db.WithTx(ctx, s.pool, pgx.RepeatableRead, func(tx pgx.Tx) error {
		p, err := s.repo.GetForUpdate(ctx, tx, periodID)
		if err != nil {
			return err
		}
		if p.State == target {
			return fmt.Errorf("%w: period already %s", shared.ErrInvalidStatus, target)
		}
		if err := s.repo.SetState(ctx, tx, periodID, target, sc.UserID, s.now()); err != nil {
			return err
		}
		before := map[string]any{"state": string(p.State)}
		after := map[string]any{"state": string(target), "reason": reason}
		if _, err := s.recorder.Append(ctx, tx, audit.Entry{
			CompanyID:     p.CompanyID,
			ActorUserID:   sc.UserID,
			Action:        action,
			EntityType:    "accounting_period",
			EntityID:      periodID.String(),
			BeforeState:   before,
			AfterState:    after,
			CorrelationID: sc.RequestID,
		}); err != nil {
			return err
		}
		out = p
		out.State = target
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	return out, nil
}

// Package entitlements answers the per-tenant allowance query consumed
// by external plan enforcement. The database is authoritative; redis is
// a read-through projection invalidated whenever a posting lands.
package entitlements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// Usage is the current consumption snapshot for one tenant.
type Usage struct {
	TenantID           uuid.UUID `json:"tenant_id"`
	Month              string    `json:"month"`
	PostedTransactions int64     `json:"posted_transactions"`
	Companies          int64     `json:"companies"`
	ComputedAt         time.Time `json:"computed_at"`
}

// Service computes and caches usage. Concurrent misses for the same
// tenant-month collapse into one usage query.
type Service struct {
	pool   *pgxpool.Pool
	cache  *redis.Client
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group
}

// NewService constructs the entitlements service.
func NewService(pool *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{pool: pool, cache: cache, logger: logger, ttl: 5 * time.Minute, now: time.Now}
}

// WithNow overrides the clock for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) key(tenantID uuid.UUID, month string) string {
	return fmt.Sprintf("entitlements:usage:%s:%s", tenantID, month)
}

// Allowance returns the tenant's usage for the current month, serving
// from cache when warm. Cache failures degrade to the database.
func (s *Service) Allowance(ctx context.Context, tenantID uuid.UUID) (Usage, error) {
	if tenantID == uuid.Nil {
		return Usage{}, shared.ErrScopeMissing
	}
	month := s.now().UTC().Format("2006-01")
	key := s.key(tenantID, month)

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var u Usage
			if err := json.Unmarshal(raw, &u); err == nil {
				return u, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("entitlements cache read failed", slog.Any("error", err))
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		u, err := s.compute(ctx, tenantID, month)
		if err != nil {
			return Usage{}, err
		}
		if s.cache != nil {
			raw, err := json.Marshal(u)
			if err == nil {
				if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
					s.logger.Warn("entitlements cache write failed", slog.Any("error", err))
				}
			}
		}
		return u, nil
	})
	if err != nil {
		return Usage{}, err
	}
	return v.(Usage), nil
}

// Invalidate drops the cached snapshot so the next query recomputes.
// Called after postings commit; never required for correctness.
func (s *Service) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil || tenantID == uuid.Nil {
		return
	}
	month := s.now().UTC().Format("2006-01")
	if err := s.cache.Del(ctx, s.key(tenantID, month)).Err(); err != nil {
		s.logger.Warn("entitlements cache invalidate failed", slog.Any("error", err))
	}
}

func (s *Service) compute(ctx context.Context, tenantID uuid.UUID, month string) (Usage, error) {
	u := Usage{TenantID: tenantID, Month: month, ComputedAt: s.now().UTC()}
	err := s.pool.QueryRow(ctx, `SELECT
			(SELECT COUNT(*) FROM transactions t
				JOIN companies c ON c.id = t.company_id
				WHERE c.tenant_id = $1
				  AND t.status IN ('posted','reversed')
				  AND to_char(t.posted_at AT TIME ZONE 'UTC', 'YYYY-MM') = $2),
			(SELECT COUNT(*) FROM companies WHERE tenant_id = $1)`,
		tenantID, month).Scan(&u.PostedTransactions, &u.Companies)
	if err != nil {
		return Usage{}, fmt.Errorf("%w: usage query: %v", shared.ErrStorage, err)
	}
	return u, nil
}

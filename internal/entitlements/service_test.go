package entitlements

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

func newCacheService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(nil, client, slog.Default())
	svc.WithNow(func() time.Time { return time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC) })
	return svc, mr
}

func TestAllowanceServesFromCache(t *testing.T) {
	svc, mr := newCacheService(t)
	tenantID := uuid.New()

	cached := Usage{TenantID: tenantID, Month: "2026-07", PostedTransactions: 42, Companies: 3}
	raw, err := json.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, mr.Set("entitlements:usage:"+tenantID.String()+":2026-07", string(raw)))

	// No database behind the service: a hit proves the cache served it.
	u, err := svc.Allowance(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, int64(42), u.PostedTransactions)
	require.Equal(t, int64(3), u.Companies)
}

func TestInvalidateDropsSnapshot(t *testing.T) {
	svc, mr := newCacheService(t)
	tenantID := uuid.New()
	key := "entitlements:usage:" + tenantID.String() + ":2026-07"

	require.NoError(t, mr.Set(key, `{"posted_transactions":1}`))
	svc.Invalidate(context.Background(), tenantID)
	require.False(t, mr.Exists(key))
}

func TestAllowanceRequiresTenant(t *testing.T) {
	svc, _ := newCacheService(t)
	_, err := svc.Allowance(context.Background(), uuid.Nil)
	require.ErrorIs(t, err, shared.ErrScopeMissing)
}

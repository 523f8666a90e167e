package periods

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	_ "github.com/meridian-erp/meridian/testing"
)

type stubRepo struct {
	Repository
	period Period
	found  bool
}

func (s stubRepo) FindByDateForUpdate(context.Context, pgx.Tx, time.Time) (Period, bool, error) {
	return s.period, s.found, nil
}

func serviceWith(policy OverridePolicy, state State, found bool) *Service {
	return NewService(nil, stubRepo{period: Period{State: state}, found: found}, nil, policy)
}

var postingDate = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func TestEnsurePostableOpenPeriodAlwaysPostable(t *testing.T) {
	for _, policy := range []OverridePolicy{PolicyDeny, PolicyAllowReversalsOnly, PolicyAllowWithAudit} {
		svc := serviceWith(policy, StateOpen, true)
		override, err := svc.EnsurePostable(context.Background(), nil, postingDate, false)
		require.NoError(t, err)
		require.False(t, override)
	}
}

func TestEnsurePostableUncoveredDatePostable(t *testing.T) {
	svc := serviceWith(PolicyDeny, StateClosed, false)
	override, err := svc.EnsurePostable(context.Background(), nil, postingDate, false)
	require.NoError(t, err)
	require.False(t, override)
}

func TestEnsurePostableDenyRefusesEverything(t *testing.T) {
	svc := serviceWith(PolicyDeny, StateClosed, true)
	for _, isReversal := range []bool{false, true} {
		_, err := svc.EnsurePostable(context.Background(), nil, postingDate, isReversal)
		require.ErrorIs(t, err, shared.ErrPeriodLocked)
	}
}

func TestEnsurePostableReversalsOnlyAdmitsReversals(t *testing.T) {
	svc := serviceWith(PolicyAllowReversalsOnly, StateClosed, true)

	_, err := svc.EnsurePostable(context.Background(), nil, postingDate, false)
	require.ErrorIs(t, err, shared.ErrPeriodLocked)

	override, err := svc.EnsurePostable(context.Background(), nil, postingDate, true)
	require.NoError(t, err)
	require.True(t, override)
}

func TestEnsurePostableAllowWithAuditAdmitsAnythingAsOverride(t *testing.T) {
	svc := serviceWith(PolicyAllowWithAudit, StateClosed, true)
	for _, isReversal := range []bool{false, true} {
		override, err := svc.EnsurePostable(context.Background(), nil, postingDate, isReversal)
		require.NoError(t, err)
		require.True(t, override)
	}
}

func TestOverridePolicyValid(t *testing.T) {
	require.True(t, PolicyDeny.Valid())
	require.True(t, PolicyAllowReversalsOnly.Valid())
	require.True(t, PolicyAllowWithAudit.Valid())
	require.False(t, OverridePolicy("whatever").Valid())
	require.False(t, OverridePolicy("").Valid())
}

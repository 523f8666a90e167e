package scope

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

func TestRequireCompanyIDWithoutScope(t *testing.T) {
	_, err := RequireCompanyID(context.Background())
	require.ErrorIs(t, err, shared.ErrScopeMissing)
}

func TestEnterMakesScopeObservable(t *testing.T) {
	company := uuid.New()
	sc := RequestScope{CompanyID: company, TenantID: uuid.New(), Kind: KindTenant}
	err := Enter(context.Background(), sc, func(ctx context.Context) error {
		got, err := RequireCompanyID(ctx)
		require.NoError(t, err)
		require.Equal(t, company, got)
		return nil
	})
	require.NoError(t, err)
}

func TestAssertCompanyRefusesForeignCompany(t *testing.T) {
	ctx := WithScope(context.Background(), RequestScope{CompanyID: uuid.New(), Kind: KindTenant})
	require.ErrorIs(t, AssertCompany(ctx, uuid.New()), shared.ErrCrossTenant)
}

func TestAssertCompanyAcceptsOwnCompany(t *testing.T) {
	company := uuid.New()
	ctx := WithScope(context.Background(), RequestScope{CompanyID: company, Kind: KindTenant})
	require.NoError(t, AssertCompany(ctx, company))
}

func TestSystemScopeBypassesCompanyAssertion(t *testing.T) {
	ctx := WithScope(context.Background(), System("req-1"))
	require.NoError(t, AssertCompany(ctx, uuid.New()))
}

func TestHasRole(t *testing.T) {
	sc := RequestScope{Roles: []string{"accountant", "admin"}}
	require.True(t, sc.HasRole("admin"))
	require.False(t, sc.HasRole("viewer"))
}

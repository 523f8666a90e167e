package recon

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/scope"
)

func tenantCtx(companyID uuid.UUID) context.Context {
	return scope.WithScope(context.Background(), scope.RequestScope{
		UserID:    uuid.New(),
		TenantID:  uuid.New(),
		CompanyID: companyID,
		Kind:      scope.KindTenant,
	})
}

func TestReconcileRejectsMissingIdentifiers(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil, nil, nil)
	ctx := tenantCtx(uuid.New())

	_, err := svc.Reconcile(ctx, ReconcileInput{MatchedTxID: uuid.New(), IdempotencyKey: "r-1"})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	_, err = svc.Reconcile(ctx, ReconcileInput{BankTxID: "stmt-9", IdempotencyKey: "r-1"})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestReconcileRejectsIncompleteAdjustment(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil, nil, nil)
	ctx := tenantCtx(uuid.New())

	_, err := svc.Reconcile(ctx, ReconcileInput{
		BankTxID:       "stmt-9",
		MatchedTxID:    uuid.New(),
		Adjustment:     &Adjustment{AmountMinor: 250, BankAccountID: uuid.New()},
		IdempotencyKey: "r-1",
	})
	require.ErrorIs(t, err, shared.ErrUnknownAccount)
}

func TestReconcileFailsWithoutScope(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil, nil, nil)
	_, err := svc.Reconcile(context.Background(), ReconcileInput{BankTxID: "stmt-9", MatchedTxID: uuid.New()})
	require.ErrorIs(t, err, shared.ErrScopeMissing)
}

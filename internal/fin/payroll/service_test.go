package payroll

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/scope"
)

type stubRepo struct {
	Repository
	created []PayRun
	byID    map[uuid.UUID]PayRun
}

func (s *stubRepo) Create(_ context.Context, p PayRun) error {
	s.created = append(s.created, p)
	return nil
}

func (s *stubRepo) Get(_ context.Context, id uuid.UUID) (PayRun, error) {
	p, ok := s.byID[id]
	if !ok {
		return PayRun{}, shared.ErrNotFound
	}
	return p, nil
}

func tenantCtx(companyID uuid.UUID) context.Context {
	return scope.WithScope(context.Background(), scope.RequestScope{
		UserID:    uuid.New(),
		TenantID:  uuid.New(),
		CompanyID: companyID,
		Kind:      scope.KindTenant,
	})
}

func TestNetMinor(t *testing.T) {
	p := PayRun{GrossMinor: 500000, WithheldMinor: 120000}
	require.Equal(t, shared.Minor(380000), p.NetMinor())
}

func TestCreateValidatesAmounts(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil)
	ctx := tenantCtx(uuid.New())
	payDate := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, CreateInput{PeriodLabel: "2026-06", GrossMinor: 0, PayDate: payDate})
	require.ErrorIs(t, err, shared.ErrNegativeAmount)

	_, err = svc.Create(ctx, CreateInput{PeriodLabel: "2026-06", GrossMinor: 100, WithheldMinor: 200, PayDate: payDate})
	require.ErrorIs(t, err, shared.ErrNegativeAmount)

	_, err = svc.Create(ctx, CreateInput{GrossMinor: 100, PayDate: payDate})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestCreateStoresDraft(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil)
	companyID := uuid.New()

	p, err := svc.Create(tenantCtx(companyID), CreateInput{
		PeriodLabel:   "2026-06",
		GrossMinor:    500000,
		WithheldMinor: 120000,
		PayDate:       time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, p.Status)
	require.Equal(t, companyID, p.CompanyID)
	require.Len(t, repo.created, 1)
}

func TestExecuteRejectsExecutedRun(t *testing.T) {
	companyID := uuid.New()
	id := uuid.New()
	repo := &stubRepo{byID: map[uuid.UUID]PayRun{
		id: {ID: id, CompanyID: companyID, PeriodLabel: "2026-06", GrossMinor: 100, Status: StatusExecuted},
	}}
	svc := NewService(repo, nil, nil)

	_, err := svc.Execute(tenantCtx(companyID), ExecuteInput{
		PayRunID:         id,
		ExpenseAccountID: uuid.New(),
		CashAccountID:    uuid.New(),
		IdempotencyKey:   "pr-1",
	})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestExecuteRequiresLiabilityAccountWhenWithholding(t *testing.T) {
	companyID := uuid.New()
	id := uuid.New()
	repo := &stubRepo{byID: map[uuid.UUID]PayRun{
		id: {ID: id, CompanyID: companyID, PeriodLabel: "2026-06", GrossMinor: 100, WithheldMinor: 20, Status: StatusDraft},
	}}
	svc := NewService(repo, nil, nil)

	_, err := svc.Execute(tenantCtx(companyID), ExecuteInput{
		PayRunID:         id,
		ExpenseAccountID: uuid.New(),
		CashAccountID:    uuid.New(),
		IdempotencyKey:   "pr-1",
	})
	require.ErrorIs(t, err, shared.ErrUnknownAccount)
}

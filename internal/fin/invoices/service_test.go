package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/scope"
)

type stubRepo struct {
	Repository
	created  []Invoice
	existing map[uuid.UUID]Invoice
}

func (s *stubRepo) Create(_ context.Context, inv Invoice) error {
	s.created = append(s.created, inv)
	return nil
}

func (s *stubRepo) Get(_ context.Context, id uuid.UUID) (Invoice, error) {
	inv, ok := s.existing[id]
	if !ok {
		return Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (s *stubRepo) GetForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (Invoice, error) {
	return s.Get(nil, id)
}

func tenantCtx(companyID uuid.UUID) context.Context {
	return scope.WithScope(context.Background(), scope.RequestScope{
		UserID:    uuid.New(),
		TenantID:  uuid.New(),
		CompanyID: companyID,
		Kind:      scope.KindTenant,
	})
}

func TestCreateRejectsBadTotals(t *testing.T) {
	companyID := uuid.New()
	svc := NewService(&stubRepo{}, nil, nil)
	ctx := tenantCtx(companyID)

	_, err := svc.Create(ctx, CreateInput{Number: "INV-1", Customer: "Acme", IssueDate: time.Now(), TotalMinor: 0})
	require.ErrorIs(t, err, shared.ErrNegativeAmount)

	_, err = svc.Create(ctx, CreateInput{Number: "INV-1", Customer: "Acme", IssueDate: time.Now(), TotalMinor: 100, TaxMinor: 200})
	require.ErrorIs(t, err, shared.ErrNegativeAmount)

	_, err = svc.Create(ctx, CreateInput{Customer: "Acme", IssueDate: time.Now(), TotalMinor: 100})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestCreateScopesInvoiceToCompany(t *testing.T) {
	companyID := uuid.New()
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil)

	inv, err := svc.Create(tenantCtx(companyID), CreateInput{
		Number:     "INV-7",
		Customer:   "Acme",
		IssueDate:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		TotalMinor: 121000,
		TaxMinor:   21000,
	})
	require.NoError(t, err)
	require.Equal(t, companyID, inv.CompanyID)
	require.Equal(t, StatusDraft, inv.Status)
	require.Len(t, repo.created, 1)
}

func TestCreateFailsWithoutScope(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil)
	_, err := svc.Create(context.Background(), CreateInput{Number: "INV-1", Customer: "Acme", IssueDate: time.Now(), TotalMinor: 100})
	require.ErrorIs(t, err, shared.ErrScopeMissing)
}

func TestFinalizeRejectsNonDraft(t *testing.T) {
	companyID := uuid.New()
	id := uuid.New()
	repo := &stubRepo{existing: map[uuid.UUID]Invoice{
		id: {ID: id, CompanyID: companyID, Number: "INV-9", Status: StatusFinalized, TotalMinor: 100},
	}}
	svc := NewService(repo, nil, nil)

	_, err := svc.Finalize(tenantCtx(companyID), FinalizeInput{
		InvoiceID:           id,
		ReceivableAccountID: uuid.New(),
		RevenueAccountID:    uuid.New(),
		IdempotencyKey:      "k-1",
	})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestFinalizeRequiresAccounts(t *testing.T) {
	companyID := uuid.New()
	id := uuid.New()
	repo := &stubRepo{existing: map[uuid.UUID]Invoice{
		id: {ID: id, CompanyID: companyID, Number: "INV-9", Status: StatusDraft, TotalMinor: 100, TaxMinor: 10},
	}}
	svc := NewService(repo, nil, nil)
	ctx := tenantCtx(companyID)

	_, err := svc.Finalize(ctx, FinalizeInput{InvoiceID: id, IdempotencyKey: "k-1"})
	require.ErrorIs(t, err, shared.ErrUnknownAccount)

	_, err = svc.Finalize(ctx, FinalizeInput{
		InvoiceID:           id,
		ReceivableAccountID: uuid.New(),
		RevenueAccountID:    uuid.New(),
		IdempotencyKey:      "k-1",
	})
	require.ErrorIs(t, err, shared.ErrUnknownAccount, "taxed invoice needs a tax account")
}

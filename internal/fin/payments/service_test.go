package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/fin/invoices"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/scope"
)

type stubInvoiceRepo struct {
	invoices.Repository
	byID map[uuid.UUID]invoices.Invoice
}

func (s *stubInvoiceRepo) Get(_ context.Context, id uuid.UUID) (invoices.Invoice, error) {
	inv, ok := s.byID[id]
	if !ok {
		return invoices.Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func tenantCtx(companyID uuid.UUID) context.Context {
	return scope.WithScope(context.Background(), scope.RequestScope{
		UserID:    uuid.New(),
		TenantID:  uuid.New(),
		CompanyID: companyID,
		Kind:      scope.KindTenant,
	})
}

func validApply(invoiceID uuid.UUID) ApplyInput {
	return ApplyInput{
		InvoiceID:           invoiceID,
		AmountMinor:         5000,
		ReceivedOn:          time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		CashAccountID:       uuid.New(),
		ReceivableAccountID: uuid.New(),
		IdempotencyKey:      "pay-1",
	}
}

func TestApplyRejectsNonPositiveAmount(t *testing.T) {
	companyID := uuid.New()
	svc := NewService(nil, &stubInvoiceRepo{}, nil, nil)
	in := validApply(uuid.New())
	in.AmountMinor = 0
	_, err := svc.Apply(tenantCtx(companyID), in)
	require.ErrorIs(t, err, shared.ErrNegativeAmount)
}

func TestApplyRequiresAccounts(t *testing.T) {
	companyID := uuid.New()
	svc := NewService(nil, &stubInvoiceRepo{}, nil, nil)
	in := validApply(uuid.New())
	in.CashAccountID = uuid.Nil
	_, err := svc.Apply(tenantCtx(companyID), in)
	require.ErrorIs(t, err, shared.ErrUnknownAccount)
}

func TestApplyRejectsUnknownInvoice(t *testing.T) {
	companyID := uuid.New()
	svc := NewService(nil, &stubInvoiceRepo{byID: map[uuid.UUID]invoices.Invoice{}}, nil, nil)
	_, err := svc.Apply(tenantCtx(companyID), validApply(uuid.New()))
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyRejectsDraftInvoice(t *testing.T) {
	companyID := uuid.New()
	id := uuid.New()
	repo := &stubInvoiceRepo{byID: map[uuid.UUID]invoices.Invoice{
		id: {ID: id, CompanyID: companyID, Number: "INV-3", Status: invoices.StatusDraft, TotalMinor: 10000},
	}}
	svc := NewService(nil, repo, nil, nil)
	_, err := svc.Apply(tenantCtx(companyID), validApply(id))
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestApplyFailsWithoutScope(t *testing.T) {
	svc := NewService(nil, &stubInvoiceRepo{}, nil, nil)
	_, err := svc.Apply(context.Background(), validApply(uuid.New()))
	require.ErrorIs(t, err, shared.ErrScopeMissing)
}

package accounts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// Service owns chart of accounts rules. Accounts are never hard-deleted;
// corrections happen by deactivation.
type Service struct {
	repo Repository
}

// NewService constructs the accounts service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput describes a new account.
type CreateInput struct {
	Code                 string `validate:"required,max=32"`
	Name                 string `validate:"required,max=255"`
	Type                 AccountType
	Subtype              string
	ParentID             *uuid.UUID
	AllowNegativeBalance bool
}

// Create validates and stores an account.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if in.Code == "" || in.Name == "" {
		return Account{}, fmt.Errorf("%w: account code and name required", shared.ErrInvalidStatus)
	}
	if !in.Type.Valid() {
		return Account{}, fmt.Errorf("%w: unknown account type %q", shared.ErrInvalidStatus, in.Type)
	}
	if in.ParentID != nil {
		parent, err := s.repo.Get(ctx, *in.ParentID)
		if err != nil {
			return Account{}, err
		}
		if parent.Type != in.Type {
			return Account{}, fmt.Errorf("%w: parent account type mismatch", shared.ErrInvalidStatus)
		}
	}
	return s.repo.Create(ctx, Account{
		Code:                 in.Code,
		Name:                 in.Name,
		Type:                 in.Type,
		Subtype:              in.Subtype,
		ParentID:             in.ParentID,
		Active:               true,
		AllowNegativeBalance: in.AllowNegativeBalance,
	})
}

// Get returns one account in scope.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	return s.repo.Get(ctx, id)
}

// List returns all accounts for the active company.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// Deactivate soft-disables an account for future postings.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, false)
}

// Activate re-enables an account.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, true)
}

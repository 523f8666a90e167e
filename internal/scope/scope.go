// Package scope carries the per-request tenant/company scope through the call
// tree. The repositories refuse to run without an active scope, which turns a
// silent cross-tenant leak into a loud fail-closed error.
package scope

import (
	"context"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// Kind distinguishes ordinary tenant-scoped requests from the named system
// bypass used by migrations and maintenance jobs.
type Kind string

const (
	KindTenant Kind = "tenant"
	KindSystem Kind = "system"
)

// RequestScope is the immutable identity and isolation boundary of a request.
type RequestScope struct {
	RequestID string
	UserID    uuid.UUID
	TenantID  uuid.UUID
	CompanyID uuid.UUID
	Roles     []string
	Kind      Kind
}

// HasRole reports whether the scope carries the named role.
func (s RequestScope) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type scopeContextKey struct{}

// WithScope returns a context carrying the scope.
func WithScope(ctx context.Context, s RequestScope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, s)
}

// FromContext extracts the innermost active scope.
func FromContext(ctx context.Context) (RequestScope, bool) {
	s, ok := ctx.Value(scopeContextKey{}).(RequestScope)
	return s, ok
}

// Enter runs fn with the scope active.
func Enter(ctx context.Context, s RequestScope, fn func(context.Context) error) error {
	return fn(WithScope(ctx, s))
}

// RequireCompanyID returns the active company or ErrScopeMissing.
func RequireCompanyID(ctx context.Context) (uuid.UUID, error) {
	s, ok := FromContext(ctx)
	if !ok || s.CompanyID == uuid.Nil {
		return uuid.Nil, shared.ErrScopeMissing
	}
	return s.CompanyID, nil
}

// AssertCompany fails with ErrCrossTenant when id disagrees with the active
// scope. System scope passes; everything it writes is audit-logged separately.
func AssertCompany(ctx context.Context, id uuid.UUID) error {
	s, ok := FromContext(ctx)
	if !ok {
		return shared.ErrScopeMissing
	}
	if s.Kind == KindSystem {
		return nil
	}
	if s.CompanyID == uuid.Nil {
		return shared.ErrScopeMissing
	}
	if id != s.CompanyID {
		return shared.ErrCrossTenant
	}
	return nil
}

// System returns a scope for internal maintenance callers. Handlers never
// construct this; only jobs and migrations do.
func System(requestID string) RequestScope {
	return RequestScope{RequestID: requestID, Kind: KindSystem}
}

package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

// Repository persists tenants, companies, and memberships. Creation is a
// system-scope operation, so these queries do not filter by request scope.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the masterdata repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTenant inserts a tenant.
func (r *Repository) CreateTenant(ctx context.Context, t Tenant) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO tenants (id, name, active, created_at) VALUES ($1,$2,$3,$4)`,
		t.ID, t.Name, t.Active, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert tenant: %v", shared.ErrStorage, err)
	}
	return nil
}

// CreateCompany inserts a company under a tenant.
func (r *Repository) CreateCompany(ctx context.Context, c Company) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO companies (id, tenant_id, name, timezone, created_at) VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.TenantID, c.Name, c.Timezone, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert company: %v", shared.ErrStorage, err)
	}
	return nil
}

// GetCompany loads one company.
func (r *Repository) GetCompany(ctx context.Context, id uuid.UUID) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, name, timezone, created_at FROM companies WHERE id=$1`, id).
		Scan(&c.ID, &c.TenantID, &c.Name, &c.Timezone, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, shared.ErrNotFound
		}
		return Company{}, fmt.Errorf("%w: load company: %v", shared.ErrStorage, err)
	}
	return c, nil
}

// AddMember grants a role, replacing any prior role for the pair.
func (r *Repository) AddMember(ctx context.Context, m Member) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO company_members (user_id, company_id, role, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id, company_id) DO UPDATE SET role = EXCLUDED.role`,
		m.UserID, m.CompanyID, m.Role, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: add member: %v", shared.ErrStorage, err)
	}
	return nil
}

// RemoveMember revokes membership.
func (r *Repository) RemoveMember(ctx context.Context, userID, companyID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM company_members WHERE user_id=$1 AND company_id=$2`, userID, companyID)
	if err != nil {
		return fmt.Errorf("%w: remove member: %v", shared.ErrStorage, err)
	}
	return nil
}

// IsMember implements scope.MembershipChecker: membership gates every
// tenant-scoped request before any handler runs.
func (r *Repository) IsMember(ctx context.Context, userID, companyID uuid.UUID) (string, bool, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM company_members WHERE user_id=$1 AND company_id=$2`, userID, companyID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: membership lookup: %v", shared.ErrStorage, err)
	}
	return role, true, nil
}

// ListCompanyIDs returns every company id. Used by background sweeps that
// walk all companies regardless of request scope.
func (r *Repository) ListCompanyIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM companies ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: list companies: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TenantOf resolves the owning tenant for a company.
func (r *Repository) TenantOf(ctx context.Context, companyID uuid.UUID) (uuid.UUID, error) {
	var tenantID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT tenant_id FROM companies WHERE id=$1`, companyID).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, shared.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("%w: tenant lookup: %v", shared.ErrStorage, err)
	}
	return tenantID, nil
}

// Package masterdata owns tenants, companies, and company membership.
// Membership is what turns an authenticated user into a scoped request.
package masterdata

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the top-level isolation unit. Companies belong to tenants;
// all financial rows belong to companies.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Company is one set of books.
type Company struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Timezone  string
	CreatedAt time.Time
}

// Member grants a user a role inside a company.
type Member struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Role      string
	CreatedAt time.Time
}

package scope

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/platform/httpx"
)

// Identity headers are filled by the upstream auth gateway after JWT
// verification; this core does not mint or validate tokens.
const (
	HeaderUserID    = "X-User-Id"
	HeaderTenantID  = "X-Tenant-Id"
	HeaderCompanyID = "X-Company-Id"
	HeaderRoles     = "X-Roles"
)

// MembershipChecker confirms the user may act inside the company.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID, companyID uuid.UUID) (role string, ok bool, err error)
}

// Middleware resolves identity headers into a RequestScope and verifies
// company membership before any handler runs.
func Middleware(logger *slog.Logger, members MembershipChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := uuid.Parse(r.Header.Get(HeaderUserID))
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid user identity")
				return
			}
			tenantID, err := uuid.Parse(r.Header.Get(HeaderTenantID))
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid tenant identity")
				return
			}
			companyID, err := uuid.Parse(r.Header.Get(HeaderCompanyID))
			if err != nil {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "company scope required")
				return
			}

			ctx := r.Context()
			role, ok, err := members.IsMember(ctx, userID, companyID)
			if err != nil {
				logger.Error("membership lookup", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !ok {
				logger.Warn("membership refused",
					slog.String("user_id", userID.String()),
					slog.String("company_id", companyID.String()))
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "not a member of this company")
				return
			}

			roles := splitRoles(r.Header.Get(HeaderRoles))
			roles = append(roles, role)

			sc := RequestScope{
				RequestID: chimw.GetReqID(ctx),
				UserID:    userID,
				TenantID:  tenantID,
				CompanyID: companyID,
				Roles:     roles,
				Kind:      KindTenant,
			}
			next.ServeHTTP(w, r.WithContext(WithScope(ctx, sc)))
		})
	}
}

func splitRoles(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

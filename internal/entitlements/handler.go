package entitlements

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/platform/httpx"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Handler serves the allowance query.
type Handler struct {
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers entitlement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entitlements/allowance", h.allowance)
}

func (h *Handler) allowance(w http.ResponseWriter, r *http.Request) {
	sc, ok := scope.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrScopeMissing)
		return
	}
	u, err := h.service.Allowance(r.Context(), sc.TenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

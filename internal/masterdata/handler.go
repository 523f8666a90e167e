package masterdata

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/platform/httpx"
)

// Handler manages tenant and company administration. These routes mount
// outside the tenant scope middleware; the gateway restricts them to
// platform operators.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
	now    func() time.Time
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo, now: time.Now}
}

// MountRoutes registers administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/tenants", h.createTenant)
	r.Post("/companies", h.createCompany)
	r.Get("/companies/{id}", h.getCompany)
	r.Post("/companies/{id}/members", h.addMember)
	r.Delete("/companies/{id}/members/{userID}", h.removeMember)
}

type tenantRequest struct {
	Name string `json:"name"`
}

type tenantResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt string    `json:"created_at"`
}

func (h *Handler) createTenant(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name is required")
		return
	}
	t := Tenant{ID: uuid.New(), Name: req.Name, Active: true, CreatedAt: h.now().UTC()}
	if err := h.repo.CreateTenant(r.Context(), t); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Active:    t.Active,
		CreatedAt: t.CreatedAt.Format(time.RFC3339Nano),
	})
}

type companyRequest struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Name     string    `json:"name"`
	Timezone string    `json:"timezone"`
}

type companyResponse struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"`
	CreatedAt string    `json:"created_at"`
}

func toCompanyResponse(c Company) companyResponse {
	return companyResponse{
		ID:        c.ID,
		TenantID:  c.TenantID,
		Name:      c.Name,
		Timezone:  c.Timezone,
		CreatedAt: c.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (h *Handler) createCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.TenantID == uuid.Nil || req.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tenant_id and name are required")
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	c := Company{ID: uuid.New(), TenantID: req.TenantID, Name: req.Name, Timezone: req.Timezone, CreatedAt: h.now().UTC()}
	if err := h.repo.CreateCompany(r.Context(), c); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCompanyResponse(c))
}

func (h *Handler) getCompany(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	c, err := h.repo.GetCompany(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCompanyResponse(c))
}

type memberRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	var req memberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.UserID == uuid.Nil || req.Role == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id and role are required")
		return
	}
	m := Member{UserID: req.UserID, CompanyID: companyID, Role: req.Role, CreatedAt: h.now().UTC()}
	if err := h.repo.AddMember(r.Context(), m); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"user_id":    m.UserID,
		"company_id": m.CompanyID,
		"role":       m.Role,
	})
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	if err := h.repo.RemoveMember(r.Context(), userID, companyID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

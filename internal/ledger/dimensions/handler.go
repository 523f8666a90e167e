package dimensions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/platform/httpx"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Handler manages dimension endpoints.
type Handler struct {
	logger *slog.Logger
	repo   Repository
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers dimension routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dimensions", h.list)
	r.Post("/dimensions", h.create)
	r.Get("/dimensions/{id}/values", h.listValues)
	r.Post("/dimensions/{id}/values", h.createValue)
}

type dimensionResponse struct {
	ID   uuid.UUID     `json:"id"`
	Type DimensionType `json:"type"`
	Code string        `json:"code"`
	Name string        `json:"name"`
}

type valueResponse struct {
	ID          uuid.UUID `json:"id"`
	DimensionID uuid.UUID `json:"dimension_id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
}

func toDimensionResponse(d Dimension) dimensionResponse {
	return dimensionResponse{ID: d.ID, Type: d.Type, Code: d.Code, Name: d.Name}
}

func toValueResponse(v Value) valueResponse {
	return valueResponse{ID: v.ID, DimensionID: v.DimensionID, Code: v.Code, Name: v.Name}
}

type dimensionRequest struct {
	Type string `json:"type"`
	Code string `json:"code"`
	Name string `json:"name"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req dimensionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	typ := DimensionType(req.Type)
	if !typ.Valid() || req.Code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "type must be location/department/project/class and code is required")
		return
	}
	companyID, err := scope.RequireCompanyID(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.repo.CreateDimension(r.Context(), Dimension{
		CompanyID: companyID,
		Type:      typ,
		Code:      req.Code,
		Name:      req.Name,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDimensionResponse(d))
}

type valueRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (h *Handler) createValue(w http.ResponseWriter, r *http.Request) {
	dimensionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid dimension id")
		return
	}
	var req valueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "code is required")
		return
	}
	companyID, err := scope.RequireCompanyID(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.repo.CreateValue(r.Context(), Value{
		CompanyID:   companyID,
		DimensionID: dimensionID,
		Code:        req.Code,
		Name:        req.Name,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toValueResponse(v))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	dims, err := h.repo.ListDimensions(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]dimensionResponse, 0, len(dims))
	for _, d := range dims {
		out = append(out, toDimensionResponse(d))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"dimensions": out})
}

func (h *Handler) listValues(w http.ResponseWriter, r *http.Request) {
	dimensionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid dimension id")
		return
	}
	values, err := h.repo.ListValues(r.Context(), dimensionID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]valueResponse, 0, len(values))
	for _, v := range values {
		out = append(out, toValueResponse(v))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"values": out})
}

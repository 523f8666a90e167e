package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/platform/httpx"
)

// Handler manages chart of accounts endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.list)
	r.Get("/accounts/{id}", h.show)
	r.Post("/accounts", h.create)
	r.Post("/accounts/{id}/deactivate", h.deactivate)
	r.Post("/accounts/{id}/activate", h.activate)
}

type accountResponse struct {
	ID                   uuid.UUID   `json:"id"`
	Code                 string      `json:"code"`
	Name                 string      `json:"name"`
	Type                 AccountType `json:"type"`
	Subtype              string      `json:"subtype,omitempty"`
	ParentID             *uuid.UUID  `json:"parent_id,omitempty"`
	Active               bool        `json:"active"`
	AllowNegativeBalance bool        `json:"allow_negative_balance"`
}

func toResponse(a Account) accountResponse {
	return accountResponse{
		ID:                   a.ID,
		Code:                 a.Code,
		Name:                 a.Name,
		Type:                 a.Type,
		Subtype:              a.Subtype,
		ParentID:             a.ParentID,
		Active:               a.Active,
		AllowNegativeBalance: a.AllowNegativeBalance,
	}
}

type createRequest struct {
	Code                 string     `json:"code"`
	Name                 string     `json:"name"`
	Type                 string     `json:"type"`
	Subtype              string     `json:"subtype"`
	ParentID             *uuid.UUID `json:"parent_id"`
	AllowNegativeBalance bool       `json:"allow_negative_balance"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	a, err := h.service.Create(r.Context(), CreateInput{
		Code:                 req.Code,
		Name:                 req.Name,
		Type:                 AccountType(req.Type),
		Subtype:              req.Subtype,
		ParentID:             req.ParentID,
		AllowNegativeBalance: req.AllowNegativeBalance,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(a))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accts, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accts))
	for _, a := range accts {
		out = append(out, toResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(a))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	if active {
		err = h.service.Activate(r.Context(), id)
	} else {
		err = h.service.Deactivate(r.Context(), id)
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

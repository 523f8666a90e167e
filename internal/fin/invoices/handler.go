package invoices

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/platform/httpx"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices", h.list)
	r.Get("/invoices/{id}", h.show)
	r.Post("/invoices", h.create)
	r.Post("/invoices/{id}/finalize", h.finalize)
}

type invoiceResponse struct {
	ID            uuid.UUID  `json:"id"`
	Number        string     `json:"number"`
	Customer      string     `json:"customer"`
	IssueDate     string     `json:"issue_date"`
	TotalMinor    int64      `json:"total_minor"`
	TaxMinor      int64      `json:"tax_minor"`
	Status        Status     `json:"status"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
}

func toResponse(inv Invoice) invoiceResponse {
	return invoiceResponse{
		ID:            inv.ID,
		Number:        inv.Number,
		Customer:      inv.Customer,
		IssueDate:     inv.IssueDate.Format("2006-01-02"),
		TotalMinor:    int64(inv.TotalMinor),
		TaxMinor:      int64(inv.TaxMinor),
		Status:        inv.Status,
		TransactionID: inv.TransactionID,
	}
}

type createRequest struct {
	Number     string `json:"number" validate:"required,max=64"`
	Customer   string `json:"customer" validate:"required,max=255"`
	IssueDate  string `json:"issue_date" validate:"required,datetime=2006-01-02"`
	TotalMinor int64  `json:"total_minor" validate:"gt=0"`
	TaxMinor   int64  `json:"tax_minor" validate:"gte=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	issueDate, err := time.Parse("2006-01-02", req.IssueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "issue_date must be YYYY-MM-DD")
		return
	}
	inv, err := h.service.Create(r.Context(), CreateInput{
		Number:     req.Number,
		Customer:   req.Customer,
		IssueDate:  issueDate,
		TotalMinor: shared.Minor(req.TotalMinor),
		TaxMinor:   shared.Minor(req.TaxMinor),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(inv))
}

type finalizeRequest struct {
	ReceivableAccountID uuid.UUID `json:"receivable_account_id"`
	RevenueAccountID    uuid.UUID `json:"revenue_account_id"`
	TaxAccountID        uuid.UUID `json:"tax_account_id"`
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	var req finalizeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	res, err := h.service.Finalize(r.Context(), FinalizeInput{
		InvoiceID:           id,
		ReceivableAccountID: req.ReceivableAccountID,
		RevenueAccountID:    req.RevenueAccountID,
		TaxAccountID:        req.TaxAccountID,
		IdempotencyKey:      r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.logger.Warn("invoice finalize rejected", slog.String("invoice_id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := res.Status
	if res.Replayed {
		status = http.StatusOK
	}
	httpx.Raw(w, status, res.Body)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	invs, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": out})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inv))
}

package payroll

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/platform/httpx"
)

// Handler manages payroll endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers payroll routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pay-runs", h.list)
	r.Get("/pay-runs/{id}", h.show)
	r.Post("/pay-runs", h.create)
	r.Post("/pay-runs/{id}/execute", h.execute)
}

type payRunResponse struct {
	ID            uuid.UUID  `json:"id"`
	PeriodLabel   string     `json:"period_label"`
	GrossMinor    int64      `json:"gross_minor"`
	WithheldMinor int64      `json:"withheld_minor"`
	NetMinor      int64      `json:"net_minor"`
	Status        Status     `json:"status"`
	PayDate       string     `json:"pay_date"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
}

func toResponse(p PayRun) payRunResponse {
	return payRunResponse{
		ID:            p.ID,
		PeriodLabel:   p.PeriodLabel,
		GrossMinor:    int64(p.GrossMinor),
		WithheldMinor: int64(p.WithheldMinor),
		NetMinor:      int64(p.NetMinor()),
		Status:        p.Status,
		PayDate:       p.PayDate.Format("2006-01-02"),
		TransactionID: p.TransactionID,
	}
}

type createRequest struct {
	PeriodLabel   string `json:"period_label"`
	GrossMinor    int64  `json:"gross_minor"`
	WithheldMinor int64  `json:"withheld_minor"`
	PayDate       string `json:"pay_date"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	payDate, err := time.Parse("2006-01-02", req.PayDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "pay_date must be YYYY-MM-DD")
		return
	}
	p, err := h.service.Create(r.Context(), CreateInput{
		PeriodLabel:   req.PeriodLabel,
		GrossMinor:    shared.Minor(req.GrossMinor),
		WithheldMinor: shared.Minor(req.WithheldMinor),
		PayDate:       payDate,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(p))
}

type executeRequest struct {
	ExpenseAccountID   uuid.UUID `json:"expense_account_id"`
	LiabilityAccountID uuid.UUID `json:"liability_account_id"`
	CashAccountID      uuid.UUID `json:"cash_account_id"`
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid pay run id")
		return
	}
	var req executeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	res, err := h.service.Execute(r.Context(), ExecuteInput{
		PayRunID:           id,
		ExpenseAccountID:   req.ExpenseAccountID,
		LiabilityAccountID: req.LiabilityAccountID,
		CashAccountID:      req.CashAccountID,
		IdempotencyKey:     r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.logger.Warn("payroll execute rejected", slog.String("pay_run_id", id.String()), slog.Any("error", err))
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
	runs, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]payRunResponse, 0, len(runs))
	for _, p := range runs {
		out = append(out, toResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pay_runs": out})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid pay run id")
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

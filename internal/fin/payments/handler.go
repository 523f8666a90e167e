package payments

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/platform/httpx"
)

// Handler manages payment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payments", h.apply)
	r.Get("/invoices/{id}/payments", h.listByInvoice)
}

type applyRequest struct {
	InvoiceID           uuid.UUID `json:"invoice_id"`
	AmountMinor         int64     `json:"amount_minor"`
	ReceivedOn          string    `json:"received_on"`
	CashAccountID       uuid.UUID `json:"cash_account_id"`
	ReceivableAccountID uuid.UUID `json:"receivable_account_id"`
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	receivedOn, err := time.Parse("2006-01-02", req.ReceivedOn)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "received_on must be YYYY-MM-DD")
		return
	}
	res, err := h.service.Apply(r.Context(), ApplyInput{
		InvoiceID:           req.InvoiceID,
		AmountMinor:         shared.Minor(req.AmountMinor),
		ReceivedOn:          receivedOn,
		CashAccountID:       req.CashAccountID,
		ReceivableAccountID: req.ReceivableAccountID,
		IdempotencyKey:      r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.logger.Warn("payment rejected", slog.String("invoice_id", req.InvoiceID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := res.Status
	if res.Replayed {
		status = http.StatusOK
	}
	httpx.Raw(w, status, res.Body)
}

type paymentResponse struct {
	ID            uuid.UUID  `json:"id"`
	InvoiceID     uuid.UUID  `json:"invoice_id"`
	AmountMinor   int64      `json:"amount_minor"`
	ReceivedOn    string     `json:"received_on"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
}

func (h *Handler) listByInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	pays, err := h.service.ListByInvoice(r.Context(), invoiceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]paymentResponse, 0, len(pays))
	for _, p := range pays {
		out = append(out, paymentResponse{
			ID:            p.ID,
			InvoiceID:     p.InvoiceID,
			AmountMinor:   int64(p.AmountMinor),
			ReceivedOn:    p.ReceivedOn.Format("2006-01-02"),
			TransactionID: p.TransactionID,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": out})
}

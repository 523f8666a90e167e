package recon

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/platform/httpx"
)

// Handler manages reconciliation endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers reconciliation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/reconciliations", h.reconcile)
	r.Get("/reconciliations", h.list)
}

type adjustmentRequest struct {
	AmountMinor         int64     `json:"amount_minor"`
	Date                string    `json:"date"`
	BankAccountID       uuid.UUID `json:"bank_account_id"`
	AdjustmentAccountID uuid.UUID `json:"adjustment_account_id"`
	Description         string    `json:"description"`
}

type reconcileRequest struct {
	BankTxID    string             `json:"bank_tx_id"`
	MatchedTxID uuid.UUID          `json:"matched_tx_id"`
	Adjustment  *adjustmentRequest `json:"adjustment,omitempty"`
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	in := ReconcileInput{
		BankTxID:       req.BankTxID,
		MatchedTxID:    req.MatchedTxID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	if req.Adjustment != nil {
		date, err := time.Parse("2006-01-02", req.Adjustment.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "adjustment date must be YYYY-MM-DD")
			return
		}
		in.Adjustment = &Adjustment{
			AmountMinor:         shared.Minor(req.Adjustment.AmountMinor),
			Date:                date,
			BankAccountID:       req.Adjustment.BankAccountID,
			AdjustmentAccountID: req.Adjustment.AdjustmentAccountID,
			Description:         req.Adjustment.Description,
		}
	}
	res, err := h.service.Reconcile(r.Context(), in)
	if err != nil {
		h.logger.Warn("reconciliation rejected", slog.String("bank_tx_id", req.BankTxID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := res.Status
	if res.Replayed {
		status = http.StatusOK
	}
	httpx.Raw(w, status, res.Body)
}

type matchListItem struct {
	ID          uuid.UUID `json:"id"`
	BankTxID    string    `json:"bank_tx_id"`
	MatchedTxID uuid.UUID `json:"matched_tx_id"`
	CreatedAt   string    `json:"created_at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	matches, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]matchListItem, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchListItem{
			ID:          m.ID,
			BankTxID:    m.BankTxID,
			MatchedTxID: m.MatchedTxID,
			CreatedAt:   m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"matches": out})
}

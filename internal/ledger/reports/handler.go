package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian/internal/platform/httpx"
)

// Handler serves the report endpoints. All routes are read-only.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/trial-balance", h.trialBalance)
	r.Get("/reports/profit-and-loss", h.profitAndLoss)
	r.Get("/reports/balance-sheet", h.balanceSheet)
	r.Get("/reports/cash-flow", h.cashFlow)
}

func parseWindow(r *http.Request) (from, to time.Time, ok bool) {
	var err error
	from, err = time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	to, err = time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil || to.Before(from) {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseWindow(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from and to must be YYYY-MM-DD with from <= to")
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseWindow(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from and to must be YYYY-MM-DD with from <= to")
		return
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := time.Parse("2006-01-02", r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), asOf)
	if err != nil {
		h.logger.Error("balance sheet failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseWindow(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from and to must be YYYY-MM-DD with from <= to")
		return
	}
	cf, err := h.service.CashFlow(r.Context(), from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cf)
}

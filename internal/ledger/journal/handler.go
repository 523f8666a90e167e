package journal

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/platform/httpx"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Handler manages journal endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/transactions", h.list)
	r.Get("/transactions/{id}", h.show)
	r.Post("/transactions", h.post)
	r.Post("/transactions/{id}/void", h.void)

	r.Post("/drafts", h.createDraft)
	r.Put("/drafts/{id}", h.updateDraft)
	r.Post("/drafts/{id}/post", h.postDraft)
	r.Delete("/drafts/{id}", h.discardDraft)
}

type postRequest struct {
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Reference   string      `json:"reference"`
	Type        string      `json:"type"`
	Lines       []LineInput `json:"lines"`
}

func (h *Handler) decodePosting(r *http.Request) (PostingInput, error) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return PostingInput{}, shared.ErrInvalidStatus
	}
	sc, ok := scope.FromContext(r.Context())
	if !ok {
		return PostingInput{}, shared.ErrScopeMissing
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return PostingInput{}, shared.ErrDateOutOfRange
	}
	typ := Type(req.Type)
	if typ == "" {
		typ = TypeJournal
	}
	return PostingInput{
		CompanyID:      sc.CompanyID,
		Date:           date,
		Description:    req.Description,
		Reference:      req.Reference,
		Type:           typ,
		Lines:          req.Lines,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		CreatedBy:      sc.UserID,
	}, nil
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodePosting(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if in.Type == TypeReversal {
		// Reversals only come from the void endpoint.
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "type reversal is not directly postable")
		return
	}
	res, err := h.service.Post(r.Context(), in)
	if err != nil {
		h.logger.Warn("posting rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := res.Status
	if res.Replayed {
		status = http.StatusOK
	}
	httpx.Raw(w, status, res.Body)
}

type voidRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	sc, ok := scope.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrScopeMissing)
		return
	}
	res, err := h.service.Void(r.Context(), VoidInput{
		TransactionID: id,
		Reason:        req.Reason,
		ActorID:       sc.UserID,
	}, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.logger.Warn("void rejected", slog.String("transaction_id", id.String()), slog.Any("error", err))
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
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	txns, err := h.service.List(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]TransactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toResponse(t))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodePosting(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.CreateDraft(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(t))
}

func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid draft id")
		return
	}
	in, err := h.decodePosting(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.UpdateDraft(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) postDraft(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid draft id")
		return
	}
	res, err := h.service.PostDraft(r.Context(), id, r.Header.Get("Idempotency-Key"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status := res.Status
	if res.Replayed {
		status = http.StatusOK
	}
	httpx.Raw(w, status, res.Body)
}

func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid draft id")
		return
	}
	if err := h.service.DiscardDraft(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

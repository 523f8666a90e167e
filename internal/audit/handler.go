package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/platform/httpx"
	"github.com/meridian-erp/meridian/internal/scope"
)

// Handler manages audit endpoints.
type Handler struct {
	logger   *slog.Logger
	timeline *Timeline
	verifier *Verifier
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, timeline *Timeline, verifier *Verifier) *Handler {
	return &Handler{logger: logger, timeline: timeline, verifier: verifier}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/audit/events", h.list)
	r.Get("/audit/export", h.export)
	r.Post("/audit/verify", h.verify)
}

type eventResponse struct {
	ID            uuid.UUID       `json:"id"`
	Seq           int64           `json:"seq"`
	ActorUserID   uuid.UUID       `json:"actor_user_id"`
	Action        string          `json:"action"`
	EntityType    string          `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	BeforeState   json.RawMessage `json:"before_state,omitempty"`
	AfterState    json.RawMessage `json:"after_state,omitempty"`
	EventHash     string          `json:"event_hash"`
	OccurredAt    string          `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

func filtersFrom(r *http.Request) TimelineFilters {
	q := r.URL.Query()
	f := TimelineFilters{
		Action: q.Get("action"),
		Entity: q.Get("entity"),
	}
	if from, err := time.Parse("2006-01-02", q.Get("from")); err == nil {
		f.From = from
	}
	if to, err := time.Parse("2006-01-02", q.Get("to")); err == nil {
		f.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	return f
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	events, paging, err := h.timeline.List(r.Context(), filtersFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			ID:            e.ID,
			Seq:           e.Seq,
			ActorUserID:   e.ActorUserID,
			Action:        e.Action,
			EntityType:    e.EntityType,
			EntityID:      e.EntityID,
			BeforeState:   e.BeforeState,
			AfterState:    e.AfterState,
			EventHash:     e.EventHash,
			OccurredAt:    e.OccurredAt.UTC().Format(time.RFC3339Nano),
			CorrelationID: e.CorrelationID,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"events":   out,
		"page":     paging.Page,
		"has_next": paging.HasNext,
	})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	f := filtersFrom(r)
	f.PageSize = 200
	events, _, err := h.timeline.List(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	body, err := ExportCSV(events)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-events.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	companyID, err := scope.RequireCompanyID(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	verified, err := h.verifier.VerifyCompany(r.Context(), companyID)
	if err != nil {
		h.logger.Error("audit chain verification failed",
			slog.String("company_id", companyID.String()),
			slog.Any("error", err))
		httpx.Problem(w, http.StatusConflict, "Chain Broken", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"verified_events": verified, "intact": true})
}

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/scope"
)

// TimelineFilters narrows the audit timeline query.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Action   string
	Entity   string
	Page     int
	PageSize int
}

// PagingInfo carries pagination metadata.
type PagingInfo struct {
	Page    int
	HasNext bool
}

// Normalize clamps paging to sane bounds.
func (f TimelineFilters) Normalize() TimelineFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 200 {
		f.PageSize = 50
	}
	return f
}

// Timeline reads a company's audit events, newest first.
type Timeline struct {
	pool *pgxpool.Pool
}

// NewTimeline constructs the timeline reader.
func NewTimeline(pool *pgxpool.Pool) *Timeline {
	return &Timeline{pool: pool}
}

// List returns one page of events matching the filters. One extra row is
// fetched to decide HasNext without a count query.
func (t *Timeline) List(ctx context.Context, filters TimelineFilters) ([]Event, PagingInfo, error) {
	companyID, err := scope.RequireCompanyID(ctx)
	if err != nil {
		return nil, PagingInfo{}, err
	}
	f := filters.Normalize()
	offset := (f.Page - 1) * f.PageSize

	query := `SELECT id, company_id, seq, COALESCE(actor_user_id, '00000000-0000-0000-0000-000000000000'::uuid), action, entity_type, entity_id, before_state, after_state, previous_hash, event_hash, occurred_at, correlation_id
		FROM audit_events WHERE company_id=$1`
	args := []any{companyID}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(" AND occurred_at <= $%d", len(args))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if f.Entity != "" {
		args = append(args, f.Entity)
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	args = append(args, f.PageSize+1, offset)
	query += fmt.Sprintf(" ORDER BY seq DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := t.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, PagingInfo{}, fmt.Errorf("%w: audit timeline: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Seq, &e.ActorUserID, &e.Action, &e.EntityType, &e.EntityID,
			&e.BeforeState, &e.AfterState, &e.PreviousHash, &e.EventHash, &e.OccurredAt, &e.CorrelationID); err != nil {
			return nil, PagingInfo{}, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, PagingInfo{}, err
	}

	paging := PagingInfo{Page: f.Page}
	if len(events) > f.PageSize {
		paging.HasNext = true
		events = events[:f.PageSize]
	}
	return events, paging, nil
}

package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meridian-erp/meridian/internal/canonical"
)

// Entry is what callers provide; the recorder assigns the chain fields.
type Entry struct {
	CompanyID     uuid.UUID
	ActorUserID   uuid.UUID
	Action        string
	EntityType    string
	EntityID      string
	BeforeState   any
	AfterState    any
	CorrelationID string
}

// Recorder appends events inside the caller's database transaction so the
// chain extends atomically with the change it describes.
type Recorder struct {
	now func() time.Time
}

// NewRecorder constructs a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// WithNow overrides the clock for tests.
func (r *Recorder) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Append writes one event, linking it to the company's chain tail. The tail
// row is locked so concurrent appends within a company serialize.
func (r *Recorder) Append(ctx context.Context, tx pgx.Tx, in Entry) (Event, error) {
	if in.Action == "" || in.EntityType == "" || in.EntityID == "" {
		return Event{}, errors.New("audit: entry requires action/entity_type/entity_id")
	}
	if in.CompanyID == uuid.Nil {
		return Event{}, errors.New("audit: entry requires company")
	}

	var prevHash string
	var prevSeq int64
	err := tx.QueryRow(ctx, `SELECT event_hash, seq FROM audit_events WHERE company_id=$1 ORDER BY seq DESC LIMIT 1 FOR UPDATE`, in.CompanyID).
		Scan(&prevHash, &prevSeq)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Event{}, fmt.Errorf("audit: read chain tail: %w", err)
	}

	ev := Event{
		ID:            uuid.New(),
		CompanyID:     in.CompanyID,
		Seq:           prevSeq + 1,
		ActorUserID:   in.ActorUserID,
		Action:        in.Action,
		EntityType:    in.EntityType,
		EntityID:      in.EntityID,
		PreviousHash:  prevHash,
		OccurredAt:    r.now(),
		CorrelationID: in.CorrelationID,
	}

	if in.BeforeState != nil {
		b, err := canonical.Marshal(in.BeforeState)
		if err != nil {
			return Event{}, err
		}
		ev.BeforeState = b
	}
	if in.AfterState != nil {
		b, err := canonical.Marshal(in.AfterState)
		if err != nil {
			return Event{}, err
		}
		ev.AfterState = b
	}

	hash, err := canonical.ChainHash(ev.PreviousHash, ev.toHashable())
	if err != nil {
		return Event{}, err
	}
	ev.EventHash = hash

	_, err = tx.Exec(ctx, `INSERT INTO audit_events
		(id, company_id, seq, actor_user_id, action, entity_type, entity_id, before_state, after_state, previous_hash, event_hash, occurred_at, correlation_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		ev.ID, ev.CompanyID, ev.Seq, nilUUID(ev.ActorUserID), ev.Action, ev.EntityType, ev.EntityID,
		ev.BeforeState, ev.AfterState, ev.PreviousHash, ev.EventHash, ev.OccurredAt, ev.CorrelationID)
	if err != nil {
		return Event{}, fmt.Errorf("audit: append: %w", err)
	}
	return ev, nil
}

func nilUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

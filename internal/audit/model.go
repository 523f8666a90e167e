// Package audit maintains the append-only, hash-chained event record. Every
// write to ledger entities appends one event; each event links to its
// predecessor within the same company by sha-256, so any tampering with
// history breaks the chain.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one link in a company's audit chain.
type Event struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	Seq           int64
	ActorUserID   uuid.UUID
	Action        string
	EntityType    string
	EntityID      string
	BeforeState   json.RawMessage
	AfterState    json.RawMessage
	PreviousHash  string
	EventHash     string
	OccurredAt    time.Time
	CorrelationID string
}

// hashable is the canonical payload the chain hash covers. Hash fields are
// excluded; timestamps are UTC.
type hashable struct {
	ID            string          `json:"id"`
	CompanyID     string          `json:"company_id"`
	Seq           int64           `json:"seq"`
	ActorUserID   string          `json:"actor_user_id"`
	Action        string          `json:"action"`
	EntityType    string          `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	BeforeState   json.RawMessage `json:"before_state"`
	AfterState    json.RawMessage `json:"after_state"`
	OccurredAt    string          `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id"`
}

func (e Event) toHashable() hashable {
	before := e.BeforeState
	if len(before) == 0 {
		before = json.RawMessage("null")
	}
	after := e.AfterState
	if len(after) == 0 {
		after = json.RawMessage("null")
	}
	return hashable{
		ID:            e.ID.String(),
		CompanyID:     e.CompanyID.String(),
		Seq:           e.Seq,
		ActorUserID:   e.ActorUserID.String(),
		Action:        e.Action,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		BeforeState:   before,
		AfterState:    after,
		OccurredAt:    e.OccurredAt.UTC().Format(time.RFC3339Nano),
		CorrelationID: e.CorrelationID,
	}
}

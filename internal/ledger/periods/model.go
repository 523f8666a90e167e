package periods

import (
	"time"

	"github.com/google/uuid"
)

// State enumerates period lifecycle values.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Period is an administrative date range; closed periods refuse postings.
type Period struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	StartDate time.Time
	EndDate   time.Time
	Type      string
	State     State
	ClosedBy  *uuid.UUID
	ClosedAt  *time.Time
}

// Contains reports whether date falls inside the period (inclusive).
func (p Period) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

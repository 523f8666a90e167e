package dimensions

import (
	"time"

	"github.com/google/uuid"
)

// DimensionType enumerates the tag axes available on journal lines.
type DimensionType string

const (
	TypeLocation   DimensionType = "location"
	TypeDepartment DimensionType = "department"
	TypeProject    DimensionType = "project"
	TypeClass      DimensionType = "class"
)

// Valid reports whether t is a known dimension type.
func (t DimensionType) Valid() bool {
	switch t {
	case TypeLocation, TypeDepartment, TypeProject, TypeClass:
		return true
	}
	return false
}

// Dimension is an axis (e.g. "department") configured for a company.
type Dimension struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Type      DimensionType
	Code      string
	Name      string
	CreatedAt time.Time
}

// Value is a concrete dimension value (e.g. "Engineering").
type Value struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	DimensionID uuid.UUID
	Code        string
	Name        string
	CreatedAt   time.Time
}

package accounts

import (
	"time"

	"github.com/google/uuid"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	TypeAsset     AccountType = "asset"
	TypeLiability AccountType = "liability"
	TypeEquity    AccountType = "equity"
	TypeRevenue   AccountType = "revenue"
	TypeExpense   AccountType = "expense"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense:
		return true
	}
	return false
}

// NormalSide is the side on which an account's balance normally grows.
type NormalSide string

const (
	SideDebit  NormalSide = "debit"
	SideCredit NormalSide = "credit"
)

// Normal returns the account type's normal side.
func (t AccountType) Normal() NormalSide {
	switch t {
	case TypeAsset, TypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Account models a chart of accounts node.
type Account struct {
	ID                   uuid.UUID
	CompanyID            uuid.UUID
	Code                 string
	Name                 string
	Type                 AccountType
	Subtype              string
	ParentID             *uuid.UUID
	Active               bool
	AllowNegativeBalance bool
	CreatedAt            time.Time
}

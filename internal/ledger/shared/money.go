package shared

import (
	"fmt"
	"math"
)

// Minor is a monetary amount in integer minor units (cents). Ledger math is
// exact; floating point never touches stored amounts.
type Minor int64

// MaxMinor is the largest representable amount.
const MaxMinor = Minor(math.MaxInt64)

// AddMinor sums two amounts and reports overflow instead of wrapping.
func AddMinor(a, b Minor) (Minor, error) {
	if b > 0 && a > MaxMinor-b {
		return 0, fmt.Errorf("ledger: amount overflow adding %d and %d", a, b)
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, fmt.Errorf("ledger: amount underflow adding %d and %d", a, b)
	}
	return a + b, nil
}

// String renders the amount as a decimal string with two fraction digits.
// Used for display only; persistence stays in minor units.
func (m Minor) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

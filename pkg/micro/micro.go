package micro

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is an unsigned fixed-point currency amount in micro-units:
// 1 currency unit = 1_000_000 micro-units. All ledger arithmetic happens in
// micro-units; decimal strings exist only at provider and display boundaries.
type Amount uint64

// PerUnit is the number of micro-units in one currency unit.
const PerUnit = 1_000_000

// FromUnits converts whole currency units to an Amount.
func FromUnits(units uint64) Amount {
	return Amount(units * PerUnit)
}

// Units returns the whole-unit part of the amount.
func (a Amount) Units() uint64 {
	return uint64(a) / PerUnit
}

// Decimal renders the amount as a decimal currency string, e.g. "50.000000".
// Provider APIs take decimal units; the ledger never sees this form.
func (a Amount) Decimal() string {
	return fmt.Sprintf("%d.%06d", uint64(a)/PerUnit, uint64(a)%PerUnit)
}

func (a Amount) String() string { return a.Decimal() }

// ParseDecimal parses a decimal currency string ("50", "50.5", "50.000001")
// into micro-units. Fractions beyond six digits are rejected rather than
// silently truncated.
func ParseDecimal(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	whole, frac, _ := strings.Cut(s, ".")
	units, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if len(frac) > 6 {
		return 0, fmt.Errorf("amount %q has sub-micro precision", s)
	}
	var micros uint64
	if frac != "" {
		padded := frac + strings.Repeat("0", 6-len(frac))
		micros, err = strconv.ParseUint(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", s, err)
		}
	}
	if units > math.MaxUint64/PerUnit {
		return 0, fmt.Errorf("amount %q overflows micro-units", s)
	}
	total := units * PerUnit
	if micros > math.MaxUint64-total {
		return 0, fmt.Errorf("amount %q overflows micro-units", s)
	}
	return Amount(total + micros), nil
}

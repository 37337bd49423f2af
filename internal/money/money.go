// Package money implements a fixed-point decimal amount with exactly two
// fractional digits, as required for reconciliation, dedup hashing, and
// risk scoring where floating point is forbidden.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is a signed amount stored as an integer number of cents (1/100 of
// the currency's major unit). Negative values are debits.
type Money int64

// Zero is the additive identity.
const Zero Money = 0

// FromFloat quantizes a float64 (as produced by loose text parsing) to the
// nearest cent. Used only at parser boundaries, never in reconciliation math.
func FromFloat(f float64) Money {
	return Money(math.Round(f * 100))
}

// FromCents builds a Money directly from an integer cent count.
func FromCents(cents int64) Money {
	return Money(cents)
}

// Float64 returns the amount as a float64, for display or external JSON
// payloads only — never for comparisons.
func (m Money) Float64() float64 {
	return float64(m) / 100
}

// Cents returns the underlying integer cent count.
func (m Money) Cents() int64 {
	return int64(m)
}

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return m + other
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return m - other
}

// Neg returns -m.
func (m Money) Neg() Money {
	return -m
}

// IsCredit reports whether m is a credit (>= 0), per the spec's
// `direction = CREDIT iff amount >= 0` invariant.
func (m Money) IsCredit() bool {
	return m >= 0
}

// WithinTolerance reports whether |m - other| <= tolerance.
func (m Money) WithinTolerance(other Money, tolerance Money) bool {
	diff := m - other
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// Tolerance02 is the standard ±0.02 reconciliation tolerance used
// throughout spec.md §3 invariants.
const Tolerance02 Money = 2

// Tolerance01 is the ±0.01 match tolerance used by MT940/PDF
// cross-validation (§4.2), one cent tighter than the reconciliation
// tolerance since it's comparing two parses of the same transaction
// rather than tolerating rounding drift across a whole statement.
const Tolerance01 Money = 1

// String renders the amount with exactly two fractional digits, e.g. "-150.00".
func (m Money) String() string {
	neg := m < 0
	v := int64(m)
	if neg {
		v = -v
	}
	whole := v / 100
	frac := v % 100
	s := fmt.Sprintf("%d.%02d", whole, frac)
	if neg {
		s = "-" + s
	}
	return s
}

// Parse converts a decimal string like "1,234.56", "-150.00", "1234,56" or
// "1 234,56" (Polish thousands separator) into Money. It tolerates currency
// symbols and non-breaking spaces. Once the separators are normalized, the
// value is read with strconv.ParseFloat and rounded to the nearest cent.
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("money: empty string")
	}
	s = strings.NewReplacer(
		"PLN", "", "zł", "", " ", " ", "£", "", "£", "",
		"$", "", "€", "",
	).Replace(s)
	s = strings.TrimSpace(s)

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	s = strings.TrimSpace(s)

	// Remove grouping spaces: "1 234,56" -> "1234,56"
	s = strings.ReplaceAll(s, " ", "")

	// Normalize decimal separator. A Polish-formatted amount uses ',' as the
	// decimal point and '.' (if present) as a thousands separator; a plain
	// English amount is the reverse. Disambiguate by the position of the
	// last separator.
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	cents := int64(math.Round(f * 100))
	if neg {
		cents = -cents
	}
	return Money(cents), nil
}

// MustParse is Parse but panics on error; useful for table-driven test
// fixtures where the literal is known-good.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Sum totals a slice of Money values.
func Sum(vals []Money) Money {
	var total Money
	for _, v := range vals {
		total += v
	}
	return total
}

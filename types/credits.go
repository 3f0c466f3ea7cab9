// Package types provides common types used across Metered.
package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Scale is the number of implied decimal places in a Credits value.
// All balances, prices and chat costs are quantized to this precision.
const Scale = 4

// unit is 10^Scale, the number of integer units in one credit.
const unit int64 = 10000

// Credits is a credit amount with four implied decimal places.
// All arithmetic is integer-only — no floating point.
//
// Examples:
//   - FromUnits(10000) = 1.0000 credits
//   - FromUnits(300)   = 0.0300 credits
//   - FromUnits(-50)   = -0.0050 credits
type Credits int64

// FromUnits creates a Credits value from raw ten-thousandths.
func FromUnits(units int64) Credits { return Credits(units) }

// FromInt creates a Credits value from a whole number of credits.
func FromInt(n int64) Credits { return Credits(n * unit) }

// ZeroCredits is the zero amount.
const ZeroCredits Credits = 0

// ParseCredits parses a decimal string such as "12.5" or "0.0015" into
// Credits. Digits beyond the fourth decimal place are rejected rather than
// silently truncated.
func ParseCredits(s string) (Credits, error) {
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("credits: parse %q: empty", s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return 0, fmt.Errorf("credits: parse %q: invalid syntax", s)
	}
	if len(frac) > Scale {
		return 0, fmt.Errorf("credits: parse %q: more than %d decimal places", s, Scale)
	}
	frac += strings.Repeat("0", Scale-len(frac))

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("credits: parse %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("credits: parse %q: %w", s, err)
	}

	units := w*unit + f
	if neg {
		units = -units
	}
	return Credits(units), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MustParseCredits is like ParseCredits but panics on error.
// Use for hardcoded amounts such as price tables.
func MustParseCredits(s string) Credits {
	c, err := ParseCredits(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Units returns the raw integer value in ten-thousandths of a credit.
func (c Credits) Units() int64 { return int64(c) }

// Arithmetic

// Add returns c + other.
func (c Credits) Add(other Credits) Credits { return c + other }

// Sub returns c - other.
func (c Credits) Sub(other Credits) Credits { return c - other }

// Neg returns the negated amount.
func (c Credits) Neg() Credits { return -c }

// Comparisons

// IsZero reports whether the amount is zero.
func (c Credits) IsZero() bool { return c == 0 }

// IsPositive reports whether the amount is greater than zero.
func (c Credits) IsPositive() bool { return c > 0 }

// IsNegative reports whether the amount is less than zero.
func (c Credits) IsNegative() bool { return c < 0 }

// LessThan reports whether c < other.
func (c Credits) LessThan(other Credits) bool { return c < other }

// Formatting

// String returns the decimal representation with four decimal places,
// e.g. "0.0300" or "-12.5000".
func (c Credits) String() string {
	units := int64(c)
	sign := ""
	if units < 0 {
		sign = "-"
		units = -units
	}
	return fmt.Sprintf("%s%d.%04d", sign, units/unit, units%unit)
}

// Float64 returns the amount as a float64. Display use only; never feed the
// result back into arithmetic.
func (c Credits) Float64() float64 { return float64(c) / float64(unit) }

// MarshalJSON encodes the amount as a JSON number string to preserve
// precision across decoders that default to float64.
func (c Credits) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts either a quoted decimal string or a bare number.
func (c *Credits) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseCredits(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value implements driver.Valuer; Credits are stored as integer units.
func (c Credits) Value() (driver.Value, error) {
	return int64(c), nil
}

// Scan implements sql.Scanner.
func (c *Credits) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*c = Credits(v)
		return nil
	case nil:
		*c = 0
		return nil
	default:
		return fmt.Errorf("credits: cannot scan %T into Credits", src)
	}
}

// SumCredits returns the sum of the given amounts.
func SumCredits(values ...Credits) Credits {
	var total Credits
	for _, v := range values {
		total += v
	}
	return total
}

// Package money parses and canonicalizes expense amounts.
//
// Amounts are exact decimals (never binary floating point) and are always
// kept at exactly two fractional digits. Rounding to two places is half away
// from zero: 12.345 becomes 12.35 and -1.005 becomes -1.01.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits of a canonical amount.
const Places = 2

// ErrInvalidAmount is returned for text that is not a plain decimal number.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a decimal value normalized to two fractional digits.
// The zero value is 0.00.
type Amount struct {
	d decimal.Decimal
}

// Parse converts user input into a decimal.
//
// Surrounding whitespace is ignored and a comma is accepted as the decimal
// separator. Exponents, thousands separators, NaN and infinities are rejected.
//
// Examples:
//
//	Parse("12.3")   -> 12.3
//	Parse(" 4,50 ") -> 4.50
//	Parse("1e3")    -> ErrInvalidAmount
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	if !isPlainDecimal(s) {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return d, nil
}

// Normalize rounds d to two fractional digits, half away from zero.
func Normalize(d decimal.Decimal) Amount {
	return Amount{d: d.Round(Places)}
}

// ParseAmount parses s and normalizes the result.
func ParseAmount(s string) (Amount, error) {
	d, err := Parse(s)
	if err != nil {
		return Amount{}, err
	}
	return Normalize(d), nil
}

// isPlainDecimal accepts an optional sign, digits and at most one dot, with
// at least one digit overall.
func isPlainDecimal(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// String returns the canonical text form, always with two fractional digits.
func (a Amount) String() string {
	return a.d.StringFixed(Places)
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

// Equal reports whether a and b are the same amount.
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

// Add returns a+b.
func (a Amount) Add(b Amount) Amount {
	return Normalize(a.d.Add(b.d))
}

// IsZero reports whether the amount is 0.00.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// Value stores the amount as its canonical text.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan reads an amount stored as text.
func (a *Amount) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		return fmt.Errorf("scan amount: %w", ErrInvalidAmount)
	default:
		return fmt.Errorf("scan amount: unsupported type %T", src)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return fmt.Errorf("scan amount %q: %w", s, err)
	}
	*a = parsed
	return nil
}

// Package core provides money parsing and handling utilities.
//
// This file contains the cents-based helpers used by the filtering pipeline:
// converting decimal price strings into integer cents and formatting cents
// back into grouped, signed decimal strings.
package core

import (
	"errors"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPrice is returned when a price string contains non-digit characters.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrAmountOverflow is returned when an amount does not fit in int64 cents.
	ErrAmountOverflow = errors.New("amount out of range")
)

// Money is an amount expressed in integer cents.
type Money struct {
	Cents int64
}

// ToCents converts a decimal price string into integer cents.
//
// The fractional part is padded or truncated to exactly two digits:
//
//	ToCents("20")     -> 2000
//	ToCents("20.4")   -> 2040
//	ToCents("20.45")  -> 2045
//	ToCents("20.456") -> 2045
//
// Only well-formed decimals with an optional leading sign are accepted.
// Malformed input returns ErrInvalidPrice and 0.
func ToCents(price string) (int64, error) {
	price = strings.TrimSpace(price)
	if price == "" {
		return 0, ErrInvalidPrice
	}
	whole, frac, _ := strings.Cut(price, ".")
	switch len(frac) {
	case 0:
		frac = "00"
	case 1:
		frac += "0"
	default:
		frac = frac[:2]
	}
	if !isDigits(strings.TrimLeft(whole, "+-")) || !isDigits(frac) || strings.Count(whole, "-")+strings.Count(whole, "+") > 1 {
		return 0, ErrInvalidPrice
	}
	if whole == "" || whole == "-" || whole == "+" {
		whole += "0"
	}
	cents, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidPrice
	}
	return cents, nil
}

// CentsToDecimalString renders cents as a plain decimal string with two
// fractional digits, e.g. 2045 -> "20.45", -5 -> "-0.05".
func CentsToDecimalString(cents int64) string {
	digits := strconv.FormatInt(cents, 10)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if len(digits) < 3 {
		return sign + "0." + strings.Repeat("0", 2-len(digits)) + digits
	}
	return sign + digits[:len(digits)-2] + "." + digits[len(digits)-2:]
}

// GroupThousands inserts a comma every three digits from the right.
// The leftmost group may be shorter: "1234567" -> "1,234,567".
func GroupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatCents renders cents as a grouped decimal string with the sign placed
// before the digits, e.g. -123456789 -> "-1,234,567.89".
func FormatCents(cents int64) string {
	dec := CentsToDecimalString(cents)
	sign := ""
	if strings.HasPrefix(dec, "-") {
		sign, dec = "-", dec[1:]
	}
	whole, frac, _ := strings.Cut(dec, ".")
	return sign + GroupThousands(whole) + "." + frac
}

// Decimal returns the amount as a plain two-decimal string.
func (m Money) Decimal() string {
	return CentsToDecimalString(m.Cents)
}

// String returns the amount grouped and signed for display.
func (m Money) String() string {
	return FormatCents(m.Cents)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MulCents multiplies a cent amount by a quantity without wrapping.
func MulCents(cents, qty int64) (int64, error) {
	hi, lo := bits.Mul64(magnitude(cents), magnitude(qty))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, ErrAmountOverflow
	}
	if (cents < 0) != (qty < 0) {
		return -int64(lo), nil
	}
	return int64(lo), nil
}

// AddCents adds two cent amounts without wrapping.
func AddCents(a, b int64) (int64, error) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, ErrAmountOverflow
	}
	return s, nil
}

func magnitude(x int64) uint64 {
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}

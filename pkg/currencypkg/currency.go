// Package currencypkg converts between decimal currency strings and minor units.
package currencypkg

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// MinorDigits is the number of minor unit digits of the ledger currency.
const MinorDigits = 2

// ErrInvalidAmount indicates that the text is not a representable amount.
var ErrInvalidAmount = errors.New("invalid amount format")

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ParseMinor parses a decimal amount such as "12.34" into minor units (1234).
// Amounts with more than MinorDigits fractional digits are rejected.
func ParseMinor(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	minor := d.Shift(MinorDigits)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrInvalidAmount
	}

	if minor.Abs().GreaterThan(maxMinor) {
		return 0, ErrInvalidAmount
	}

	return minor.IntPart(), nil
}

// FormatMinor formats minor units as a decimal amount with MinorDigits digits.
func FormatMinor(minor int64) string {
	return decimal.New(minor, -MinorDigits).StringFixed(MinorDigits)
}

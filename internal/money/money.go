// Package money converts between decimal major-unit amounts and the int64
// minor units the ledger stores. No floating point is used anywhere.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("money: invalid amount")
	ErrPrecision     = errors.New("money: more decimal places than the currency allows")
	ErrOutOfRange    = errors.New("money: amount out of range")
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// zeroDecimal lists currencies without a minor unit.
var zeroDecimal = map[string]bool{
	"jpy": true,
	"krw": true,
	"vnd": true,
	"clp": true,
	"pyg": true,
	"idr": true,
}

var symbols = map[string]string{
	"zar": "R",
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"jpy": "¥",
}

// NormalizeCurrency returns the lowercase ISO 4217 code.
func NormalizeCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}

// Decimals returns the number of minor-unit digits for currency.
func Decimals(currency string) int {
	if zeroDecimal[NormalizeCurrency(currency)] {
		return 0
	}
	return 2
}

// ToMinor converts a major-unit decimal to minor units. It rejects amounts
// that would need rounding.
func ToMinor(amount decimal.Decimal, currency string) (int64, error) {
	shifted := amount.Shift(int32(Decimals(currency)))
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s %s", ErrPrecision, amount.String(), NormalizeCurrency(currency))
	}
	if shifted.Abs().GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, amount.String())
	}
	return shifted.IntPart(), nil
}

// ParseMajor parses a major-unit string such as "249.70" into minor units.
func ParseMajor(s, currency string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return ToMinor(d, currency)
}

// ToMajor converts minor units to a major-unit decimal.
func ToMajor(minor int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-int32(Decimals(currency)))
}

// FormatMajor renders minor units as a fixed-point string without symbol,
// e.g. "249.70" for 24970 zar.
func FormatMajor(minor int64, currency string) string {
	return ToMajor(minor, currency).StringFixed(int32(Decimals(currency)))
}

// Format renders minor units with the currency symbol, e.g. "R249.70".
func Format(minor int64, currency string) string {
	code := NormalizeCurrency(currency)
	symbol, ok := symbols[code]
	if !ok {
		symbol = strings.ToUpper(code) + " "
	}
	s := FormatMajor(minor, code)
	if strings.HasPrefix(s, "-") {
		return "-" + symbol + s[1:]
	}
	return symbol + s
}

// Add sums minor-unit amounts, failing with ErrOutOfRange instead of
// wrapping around.
func Add(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, fmt.Errorf("%w: %d + %d", ErrOutOfRange, a, b)
	}
	return sum, nil
}

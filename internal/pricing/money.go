package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RoundHalfEven divides num by den and rounds half to even. Only the final quotient is rounded.
func RoundHalfEven(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	return decimal.NewFromInt(num).Div(decimal.NewFromInt(den)).RoundBank(0).IntPart()
}

// FormatMoney renders minor units as "EUR 120.00"
func FormatMoney(amount int64, currency string) string {
	value := decimal.New(amount, -2).StringFixed(2)
	if currency == "" {
		return value
	}
	return strings.ToUpper(currency) + " " + value
}

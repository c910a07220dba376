package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies are charged at face value; every other currency is
// charged in hundredths.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {},
	"KMF": {}, "KRW": {}, "MGA": {}, "PYG": {}, "RWF": {},
	"VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// IsZeroDecimalCurrency reports whether currency has no minor unit.
func IsZeroDecimalCurrency(currency string) bool {
	_, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]
	return ok
}

// CurrencyScale is the number of decimal places of currency's minor unit.
func CurrencyScale(currency string) int32 {
	if IsZeroDecimalCurrency(currency) {
		return 0
	}
	return 2
}

// ToMinorUnits converts a major-unit amount to the processor's minor unit,
// rounding half away from zero.
func ToMinorUnits(amount float64, currency string) int64 {
	return decimal.NewFromFloat(amount).
		Shift(CurrencyScale(currency)).
		Round(0).
		IntPart()
}

// FromMinorUnits converts a minor-unit amount back to a decimal amount in
// major units.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -CurrencyScale(currency))
}

// MinorUnitsFromDecimal converts a processor decimal amount to minor units.
func MinorUnitsFromDecimal(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(CurrencyScale(currency)).Round(0).IntPart()
}

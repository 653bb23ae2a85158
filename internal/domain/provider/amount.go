package provider

import (
	"strings"

	"github.com/shopspring/decimal"
)

// currencyExponents lists currencies whose minor unit is not 1/100
var currencyExponents = map[string]int32{
	"JPY": 0,
	"KRW": 0,
}

// CurrencyExponent returns the number of minor-unit digits for a currency (default 2).
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// ToMinorUnits converts a major-unit amount into provider minor units (haléře, cents, grosze).
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(CurrencyExponent(currency)).Round(0).IntPart()
}

// FromMinorUnits converts provider minor units back into major units.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -CurrencyExponent(currency))
}

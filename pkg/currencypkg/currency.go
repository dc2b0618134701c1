// Package currencypkg provides common currency related functionality for apps.
package currencypkg

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Constants for all supported currencies.
const (
	CAD = "CAD"
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
)

// Fallback is the currency unsupported expense currencies are coerced to.
const Fallback = USD

// SupportedCurrencies holds all the supported currencies.
var SupportedCurrencies = []string{
	CAD,
	USD,
	EUR,
	GBP,
}

// Normalize trims and upper-cases a currency code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsSupportedCurrency returns true if the currncy is supported.
func IsSupportedCurrency(currency string) bool {
	for _, c := range SupportedCurrencies {
		if c == currency {
			return true
		}
	}

	return false
}

// IsCode reports whether code looks like an ISO 4217 alphabetic code.
// It doesn't check that the code is supported.
func IsCode(code string) bool {
	if len(code) != 3 {
		return false
	}

	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}

	return true
}

// ValidCurrency validates whether the currency is supported.
var ValidCurrency validator.Func = func(fl validator.FieldLevel) bool {
	if c, ok := fl.Field().Interface().(string); ok {
		return IsSupportedCurrency(Normalize(c))
	}
	return false
}

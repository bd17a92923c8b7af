package account

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var zero = decimal.Zero

// NormalizeCurrency validates an ISO 4217 currency code and returns it in
// upper case.
func NormalizeCurrency(value string) (string, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return "", fmt.Errorf("currency is required")
	}
	unit, err := currency.ParseISO(value)
	if err != nil {
		return "", fmt.Errorf("currency %q is not a valid ISO 4217 code", value)
	}
	return unit.String(), nil
}

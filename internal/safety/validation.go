package safety

import (
	"fmt"
	"math"
	"strings"

	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	Valid   bool
	Message string
	Code    string
}

// ValidatePrice rejects non-positive and non-finite prices
func ValidatePrice(price float64, symbol string) ValidationResult {
	switch {
	case math.IsNaN(price):
		return ValidationResult{Message: fmt.Sprintf("invalid price for %s: price is NaN", symbol), Code: "INVALID_PRICE_NAN"}
	case math.IsInf(price, 0):
		return ValidationResult{Message: fmt.Sprintf("invalid price for %s: price is infinite", symbol), Code: "INVALID_PRICE_INF"}
	case price <= 0:
		return ValidationResult{Message: fmt.Sprintf("invalid price %.4f for %s: price must be positive", price, symbol), Code: "INVALID_PRICE_NEGATIVE"}
	}
	return ValidationResult{Valid: true}
}

// ValidateSymbol accepts tickers such as AAPL, BRK.B or BTCUSDT
func ValidateSymbol(symbol string) ValidationResult {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return ValidationResult{Message: "symbol cannot be empty", Code: "SYMBOL_EMPTY"}
	}
	if len(symbol) > 20 {
		return ValidationResult{
			Message: fmt.Sprintf("symbol '%s' too long: maximum 20 characters allowed", symbol),
			Code:    "SYMBOL_TOO_LONG",
		}
	}
	for _, c := range symbol {
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '.' || c == '-') {
			return ValidationResult{
				Message: fmt.Sprintf("symbol '%s' contains invalid characters", symbol),
				Code:    "SYMBOL_INVALID_CHARS",
			}
		}
	}
	return ValidationResult{Valid: true}
}

// ValidateIntent checks an order intent before it reaches the venue
func ValidateIntent(intent types.OrderIntent) ValidationResult {
	if r := ValidateSymbol(intent.Symbol); !r.Valid {
		return r
	}
	if intent.Action != types.ActionBuy && intent.Action != types.ActionSell {
		return ValidationResult{Message: fmt.Sprintf("unknown order action %q", intent.Action), Code: "INVALID_ACTION"}
	}
	if intent.Quantity <= 0 {
		return ValidationResult{
			Message: fmt.Sprintf("invalid quantity %d for %s: quantity must be positive", intent.Quantity, intent.Symbol),
			Code:    "INVALID_QUANTITY",
		}
	}
	return ValidatePrice(intent.Price, intent.Symbol)
}

package bybit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/ducminhle1904/intraday-risk-bot/internal/errors"
)

// APIError is a non-zero retCode returned by Bybit
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Bybit API error %d: %s", e.Code, e.Message)
}

// Common Bybit error codes
const (
	ErrCodeInvalidAPIKey       = 10003
	ErrCodeInvalidSignature    = 10004
	ErrCodeInvalidTimestamp    = 10005
	ErrCodeRateLimitExceeded   = 10006
	ErrCodeOrderNotFound       = 110001
	ErrCodeInvalidOrderType    = 110004
	ErrCodeInsufficientBalance = 110007
	ErrCodeSymbolNotFound      = 110009
	ErrCodeInvalidQuantity     = 110020
	ErrCodeInvalidPrice        = 110021
	ErrCodeMarketClosed        = 110043
	ErrCodeSpotInsufficient    = 170131
)

// classify maps a Bybit retCode onto the trading error taxonomy. Rate limits,
// server errors and timestamp drift are transient; everything else is a
// rejection that retrying would only repeat.
func classify(operation string, code int, msg string) error {
	apiErr := &APIError{Code: code, Message: msg}
	switch code {
	case ErrCodeRateLimitExceeded, ErrCodeInvalidTimestamp,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return errors.NewVenueUnavailable("bybit", operation, apiErr).WithContext("ret_code", code)
	case ErrCodeInvalidAPIKey, ErrCodeInvalidSignature:
		return errors.WrapError(apiErr, errors.ErrorCategoryConfiguration, "bybit", operation)
	case ErrCodeInsufficientBalance, ErrCodeSpotInsufficient:
		return errors.WrapError(apiErr, errors.ErrorCategoryInsufficientBalance, "bybit", operation)
	default:
		return errors.NewOrderRejected("bybit", operation, apiErr).WithContext("ret_code", code)
	}
}

// decodeResult checks the SDK response envelope and unmarshals its result
func decodeResult(operation string, response interface{}, out interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return errors.NewVenueUnavailable("bybit", operation, fmt.Errorf("invalid response type %T", response))
	}
	if serverResp.RetCode != 0 {
		return classify(operation, serverResp.RetCode, serverResp.RetMsg)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(resultBytes, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s result: %w", operation, err)
	}
	return nil
}

func parseFloat64(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	i, _ := strconv.ParseInt(s, 10, 64)
	return i
}

func parseTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	return time.UnixMilli(parseInt64(ts))
}

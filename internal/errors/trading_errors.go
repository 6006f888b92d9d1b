package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies failures raised while sizing and executing trades
type ErrorCategory string

const (
	// Resolved locally by clamping, never surfaced as hard failures
	ErrorCategoryInsufficientBalance  ErrorCategory = "INSUFFICIENT_BALANCE"
	ErrorCategoryInsufficientPosition ErrorCategory = "INSUFFICIENT_POSITION"

	// Transient venue failures, retried with backoff
	ErrorCategoryVenueUnavailable ErrorCategory = "VENUE_UNAVAILABLE"

	// Terminal for the attempt
	ErrorCategoryOrderRejected ErrorCategory = "ORDER_REJECTED"

	// Missing market data; sizing falls back, never fatal
	ErrorCategoryDataUnavailable ErrorCategory = "DATA_UNAVAILABLE"

	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	ErrorCategoryState         ErrorCategory = "STATE"
)

// TradingError represents a categorized error with context
type TradingError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
	Retryable  bool
}

// Error implements the error interface
func (e *TradingError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *TradingError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error can be retried
func (e *TradingError) IsRetryable() bool {
	return e.Retryable
}

// NewTradingError creates a new categorized error
func NewTradingError(category ErrorCategory, component, operation, message string) *TradingError {
	return &TradingError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Retryable: isRetryableCategory(category),
	}
}

// WrapError wraps an existing error with category context
func WrapError(err error, category ErrorCategory, component, operation string) *TradingError {
	if err == nil {
		return nil
	}

	return &TradingError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
		Retryable:  isRetryableCategory(category),
	}
}

// WithContext adds context information to the error
func (e *TradingError) WithContext(key string, value interface{}) *TradingError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRetryable sets the retryable flag
func (e *TradingError) WithRetryable(retryable bool) *TradingError {
	e.Retryable = retryable
	return e
}

func isRetryableCategory(category ErrorCategory) bool {
	return category == ErrorCategoryVenueUnavailable
}

// NewVenueUnavailable marks a transport or availability failure
func NewVenueUnavailable(component, operation string, err error) *TradingError {
	return WrapError(err, ErrorCategoryVenueUnavailable, component, operation)
}

// NewOrderRejected marks a venue rejection that must not be retried
func NewOrderRejected(component, operation string, err error) *TradingError {
	return WrapError(err, ErrorCategoryOrderRejected, component, operation)
}

// NewDataUnavailable marks missing market data
func NewDataUnavailable(component, operation, message string) *TradingError {
	return NewTradingError(ErrorCategoryDataUnavailable, component, operation, message)
}

// NewConfigurationError marks an invalid configuration value
func NewConfigurationError(component, operation, message string) *TradingError {
	return NewTradingError(ErrorCategoryConfiguration, component, operation, message)
}

// NewStateError marks a rejected ledger transition
func NewStateError(component, operation, message string) *TradingError {
	return NewTradingError(ErrorCategoryState, component, operation, message)
}

// CategoryOf returns the category of the first TradingError in the chain, or "" when none
func CategoryOf(err error) ErrorCategory {
	var te *TradingError
	if stderrors.As(err, &te) {
		return te.Category
	}
	return ""
}

// IsRetryable reports whether any TradingError in the chain is retryable
func IsRetryable(err error) bool {
	var te *TradingError
	if stderrors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// Categorize attempts to categorize a generic venue error by its message.
// Unknown failures are treated as venue unavailability.
func Categorize(err error, component, operation string) *TradingError {
	if err == nil {
		return nil
	}

	var te *TradingError
	if stderrors.As(err, &te) {
		return te
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "insufficient") || strings.Contains(errMsg, "rejected") ||
		strings.Contains(errMsg, "invalid") || strings.Contains(errMsg, "not allowed") ||
		strings.Contains(errMsg, "market is closed") {
		return NewOrderRejected(component, operation, err)
	}

	return NewVenueUnavailable(component, operation, err)
}

package exchange

import "fmt"

// Error codes shared by every exchange implementation.
const (
	CodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	CodeInvalidOrder        = "INVALID_ORDER"
	CodeOrderNotFound       = "ORDER_NOT_FOUND"
	CodeInvalidSymbol       = "INVALID_SYMBOL"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeConnectionFailed    = "CONNECTION_FAILED"
	CodeAuthenticationError = "AUTHENTICATION_FAILED"
	CodeUnsupportedExchange = "UNSUPPORTED_EXCHANGE"
	CodeInvalidConfig       = "INVALID_CONFIG"
	CodeUnknown             = "UNKNOWN_ERROR"
)

// ExchangeError represents standardized errors from exchanges
type ExchangeError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Details     string `json:"details,omitempty"`
	IsRetryable bool   `json:"is_retryable"`
}

func (e *ExchangeError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Is matches any ExchangeError carrying the same code, so errors.Is works
// against the sentinels below.
func (e *ExchangeError) Is(target error) bool {
	t, ok := target.(*ExchangeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError builds an error for code with retryability derived from the code.
func NewError(code, message string, details ...interface{}) *ExchangeError {
	err := &ExchangeError{
		Code:        code,
		Message:     message,
		IsRetryable: code == CodeConnectionFailed || code == CodeRateLimitExceeded,
	}
	if len(details) > 0 {
		if format, ok := details[0].(string); ok && len(details) > 1 {
			err.Details = fmt.Sprintf(format, details[1:]...)
		} else {
			err.Details = fmt.Sprint(details...)
		}
	}
	return err
}

// Common error types
var (
	ErrInsufficientFunds = &ExchangeError{
		Code:        CodeInsufficientFunds,
		Message:     "Insufficient balance for trade",
		IsRetryable: false,
	}

	ErrInvalidOrder = &ExchangeError{
		Code:        CodeInvalidOrder,
		Message:     "Order rejected by exchange",
		IsRetryable: false,
	}

	ErrOrderNotFound = &ExchangeError{
		Code:        CodeOrderNotFound,
		Message:     "Order not found",
		IsRetryable: false,
	}

	ErrInvalidSymbol = &ExchangeError{
		Code:        CodeInvalidSymbol,
		Message:     "Invalid trading symbol",
		IsRetryable: false,
	}

	ErrRateLimitExceeded = &ExchangeError{
		Code:        CodeRateLimitExceeded,
		Message:     "API rate limit exceeded",
		IsRetryable: true,
	}

	ErrConnectionFailed = &ExchangeError{
		Code:        CodeConnectionFailed,
		Message:     "Failed to connect to exchange",
		IsRetryable: true,
	}

	ErrAuthenticationFailed = &ExchangeError{
		Code:        CodeAuthenticationError,
		Message:     "API authentication failed",
		IsRetryable: false,
	}
)

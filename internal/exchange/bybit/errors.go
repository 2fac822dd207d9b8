package bybit

import (
	"encoding/json"
	"fmt"
	"net/http"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// BybitError represents a Bybit API error with additional context
type BybitError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *BybitError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("Bybit API error %d: %s (%s)", e.Code, e.Message, e.Details)
	}
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
	ErrCodeParamsError         = 10001
)

func codeOf(err error) (int, bool) {
	if bybitErr, ok := err.(*BybitError); ok {
		return bybitErr.Code, true
	}
	return 0, false
}

// IsRetryableError determines if an error should be retried
func IsRetryableError(err error) bool {
	code, ok := codeOf(err)
	if !ok {
		return false
	}
	switch code {
	case ErrCodeRateLimitExceeded, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsAuthenticationError checks if the error is related to authentication
func IsAuthenticationError(err error) bool {
	code, _ := codeOf(err)
	return code == ErrCodeInvalidAPIKey || code == ErrCodeInvalidSignature || code == ErrCodeInvalidTimestamp
}

// IsInsufficientBalanceError checks if the error is due to insufficient balance
func IsInsufficientBalanceError(err error) bool {
	code, _ := codeOf(err)
	return code == ErrCodeInsufficientBalance
}

// IsOrderNotFoundError checks if the error is due to order not found
func IsOrderNotFoundError(err error) bool {
	code, _ := codeOf(err)
	return code == ErrCodeOrderNotFound
}

// IsInvalidOrderError checks if the exchange refused the order parameters
func IsInvalidOrderError(err error) bool {
	code, _ := codeOf(err)
	switch code {
	case ErrCodeInvalidOrderType, ErrCodeInvalidQuantity, ErrCodeInvalidPrice, ErrCodeMarketClosed, ErrCodeParamsError:
		return true
	}
	return false
}

// IsSymbolNotFoundError checks if the symbol is unknown to the exchange
func IsSymbolNotFoundError(err error) bool {
	code, _ := codeOf(err)
	return code == ErrCodeSymbolNotFound
}

// NewBybitError creates a new BybitError
func NewBybitError(code int, message string, details ...string) *BybitError {
	err := &BybitError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// ParseAPIError extracts error information from the API response
func ParseAPIError(retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}
	return NewBybitError(retCode, retMsg)
}

// decodeResult unwraps a ServerResponse and decodes its result into out
func decodeResult(response interface{}, out interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok || serverResp == nil {
		return fmt.Errorf("invalid response type %T", response)
	}
	if err := ParseAPIError(serverResp.RetCode, serverResp.RetMsg); err != nil {
		return err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(resultBytes, out); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}

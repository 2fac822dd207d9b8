package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-trade-engine/internal/market"
	"github.com/ducminhle1904/crypto-trade-engine/internal/order"
)

// ErrorCategory represents the kind of failure an operation hit
type ErrorCategory string

const (
	// Caller must change the inputs
	ErrorCategoryValidation        ErrorCategory = "VALIDATION"
	ErrorCategoryRiskPolicy        ErrorCategory = "RISK_POLICY"
	ErrorCategoryMarketNotFound    ErrorCategory = "MARKET_NOT_FOUND"
	ErrorCategoryInsufficientFunds ErrorCategory = "INSUFFICIENT_FUNDS"
	ErrorCategoryInvalidOrder      ErrorCategory = "INVALID_ORDER"
	ErrorCategoryOrderNotFound     ErrorCategory = "ORDER_NOT_FOUND"

	// Transient, may be retried with backoff
	ErrorCategoryConnectivity ErrorCategory = "CONNECTIVITY"

	// Stop and investigate
	ErrorCategoryCredentials ErrorCategory = "CREDENTIALS"
	ErrorCategoryUnexpected  ErrorCategory = "UNEXPECTED"
)

// TradeError represents a categorized error with context
type TradeError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
	Retryable  bool
}

// Error implements the error interface
func (e *TradeError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *TradeError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error can be retried
func (e *TradeError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error should stop the trading session
func (e *TradeError) IsFatal() bool {
	return e.Category == ErrorCategoryCredentials
}

// NewTradeError creates a new categorized error
func NewTradeError(category ErrorCategory, component, operation, message string) *TradeError {
	return &TradeError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Retryable: isRetryableCategory(category),
	}
}

// WrapError wraps an existing error with category and location
func WrapError(err error, category ErrorCategory, component, operation string) *TradeError {
	if err == nil {
		return nil
	}

	return &TradeError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    messageFor(category),
		Underlying: err,
		Context:    make(map[string]interface{}),
		Retryable:  isRetryableCategory(category),
	}
}

// WithContext adds context information to the error
func (e *TradeError) WithContext(key string, value interface{}) *TradeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func isRetryableCategory(category ErrorCategory) bool {
	return category == ErrorCategoryConnectivity
}

func messageFor(category ErrorCategory) string {
	switch category {
	case ErrorCategoryValidation:
		return "order failed validation"
	case ErrorCategoryRiskPolicy:
		return "risk policy violated"
	case ErrorCategoryMarketNotFound:
		return "market not found"
	case ErrorCategoryInsufficientFunds:
		return "insufficient funds"
	case ErrorCategoryInvalidOrder:
		return "order rejected by exchange"
	case ErrorCategoryOrderNotFound:
		return "order not found"
	case ErrorCategoryConnectivity:
		return "exchange unreachable"
	case ErrorCategoryCredentials:
		return "exchange credentials rejected"
	default:
		return "unexpected error"
	}
}

// Classify maps any error raised below the execution boundary into the
// taxonomy. Typed errors are matched first; message heuristics are the
// fallback for plain errors from third-party code.
func Classify(err error, component, operation string) *TradeError {
	if err == nil {
		return nil
	}

	var tradeErr *TradeError
	if stderrors.As(err, &tradeErr) {
		return tradeErr
	}

	var rejection *order.Rejection
	if stderrors.As(err, &rejection) {
		return WrapError(err, ErrorCategoryValidation, component, operation).
			WithContext("reason", rejection.Reason)
	}

	if stderrors.Is(err, market.ErrSymbolNotFound) {
		return WrapError(err, ErrorCategoryMarketNotFound, component, operation)
	}

	// A cancelled caller must not be retried; a timeout may be.
	if stderrors.Is(err, context.Canceled) {
		return WrapError(err, ErrorCategoryUnexpected, component, operation)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return WrapError(err, ErrorCategoryConnectivity, component, operation)
	}

	var exchangeErr *exchange.ExchangeError
	if stderrors.As(err, &exchangeErr) {
		return WrapError(err, categoryForCode(exchangeErr.Code), component, operation).
			WithContext("code", exchangeErr.Code)
	}

	return WrapError(err, categorizeMessage(err.Error()), component, operation)
}

func categoryForCode(code string) ErrorCategory {
	switch code {
	case exchange.CodeInsufficientFunds:
		return ErrorCategoryInsufficientFunds
	case exchange.CodeInvalidOrder:
		return ErrorCategoryInvalidOrder
	case exchange.CodeOrderNotFound:
		return ErrorCategoryOrderNotFound
	case exchange.CodeInvalidSymbol:
		return ErrorCategoryMarketNotFound
	case exchange.CodeConnectionFailed, exchange.CodeRateLimitExceeded:
		return ErrorCategoryConnectivity
	case exchange.CodeAuthenticationError:
		return ErrorCategoryCredentials
	default:
		return ErrorCategoryUnexpected
	}
}

func categorizeMessage(msg string) ErrorCategory {
	msg = strings.ToLower(msg)

	switch {
	case containsAny(msg, "timeout", "deadline exceeded", "connection", "network", "dial", "eof",
		"rate limit", "too many requests"):
		return ErrorCategoryConnectivity
	case containsAny(msg, "api key", "api secret", "authentication", "unauthorized"):
		return ErrorCategoryCredentials
	case containsAny(msg, "insufficient"):
		return ErrorCategoryInsufficientFunds
	case strings.Contains(msg, "order") && strings.Contains(msg, "not found"):
		return ErrorCategoryOrderNotFound
	default:
		return ErrorCategoryUnexpected
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NewValidationError reports a locally rejected input
func NewValidationError(component, operation, message string) *TradeError {
	return NewTradeError(ErrorCategoryValidation, component, operation, message)
}

// NewRiskError reports a failed risk sanity gate; every reason is kept
func NewRiskError(component, operation string, reasons []string) *TradeError {
	return NewTradeError(ErrorCategoryRiskPolicy, component, operation, strings.Join(reasons, " ")).
		WithContext("reasons", append([]string(nil), reasons...))
}

// Is reports whether err is a TradeError of category
func Is(err error, category ErrorCategory) bool {
	var tradeErr *TradeError
	return stderrors.As(err, &tradeErr) && tradeErr.Category == category
}

// RecoveryAction is what a caller should do after a failure
type RecoveryAction string

const (
	RecoveryActionRetry  RecoveryAction = "RETRY"
	RecoveryActionAdjust RecoveryAction = "ADJUST"
	RecoveryActionSkip   RecoveryAction = "SKIP"
	RecoveryActionStop   RecoveryAction = "STOP"
)

// GetRecoveryAction suggests a recovery action based on error category
func (e *TradeError) GetRecoveryAction() RecoveryAction {
	switch e.Category {
	case ErrorCategoryConnectivity:
		return RecoveryActionRetry
	case ErrorCategoryValidation, ErrorCategoryRiskPolicy, ErrorCategoryInsufficientFunds, ErrorCategoryInvalidOrder:
		return RecoveryActionAdjust
	case ErrorCategoryMarketNotFound, ErrorCategoryOrderNotFound:
		return RecoveryActionSkip
	default:
		return RecoveryActionStop
	}
}

// ErrorStats tracks error statistics for a session
type ErrorStats struct {
	mu               sync.Mutex
	TotalErrors      int
	ErrorsByCategory map[ErrorCategory]int
	RecentErrors     []*TradeError
	MaxRecentErrors  int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats(maxRecentErrors int) *ErrorStats {
	return &ErrorStats{
		ErrorsByCategory: make(map[ErrorCategory]int),
		RecentErrors:     make([]*TradeError, 0, maxRecentErrors),
		MaxRecentErrors:  maxRecentErrors,
	}
}

// RecordError records an error in the statistics
func (es *ErrorStats) RecordError(err *TradeError) {
	if err == nil {
		return
	}
	es.mu.Lock()
	defer es.mu.Unlock()

	es.TotalErrors++
	es.ErrorsByCategory[err.Category]++

	es.RecentErrors = append(es.RecentErrors, err)
	if len(es.RecentErrors) > es.MaxRecentErrors {
		es.RecentErrors = es.RecentErrors[1:]
	}
}

// GetErrorRate returns the share of errors in category
func (es *ErrorStats) GetErrorRate(category ErrorCategory) float64 {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.TotalErrors == 0 {
		return 0.0
	}
	return float64(es.ErrorsByCategory[category]) / float64(es.TotalErrors)
}

// HasRecentErrors checks whether at least count recent errors are of category
func (es *ErrorStats) HasRecentErrors(category ErrorCategory, count int) bool {
	es.mu.Lock()
	defer es.mu.Unlock()

	recentCount := 0
	for _, err := range es.RecentErrors {
		if err.Category == category {
			recentCount++
		}
	}
	return recentCount >= count
}

// Counts returns a copy of the per-category totals
func (es *ErrorStats) Counts() map[ErrorCategory]int {
	es.mu.Lock()
	defer es.mu.Unlock()

	out := make(map[ErrorCategory]int, len(es.ErrorsByCategory))
	for k, v := range es.ErrorsByCategory {
		out[k] = v
	}
	return out
}

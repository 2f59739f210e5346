// Package errors provides standardized error classification for bioquery
// components. Every failure that crosses a package boundary carries a Class so
// the gateway, retry layer, and router can decide locally whether to wait,
// fail fast, retry, or surface a partial result.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Class represents the handling classification of an error.
type Class int

const (
	// ClassTransient represents temporary failures (network, 5xx, 429) that
	// may be retried per the endpoint's retry policy.
	ClassTransient Class = iota
	// ClassPermanent represents failures (4xx, local validation) that will
	// not succeed on retry and must propagate immediately.
	ClassPermanent
	// ClassRateLimited represents local admission rejection; recoverable by
	// waiting, never by immediate retry.
	ClassRateLimited
	// ClassCircuitOpen represents a fail-fast rejection before any network
	// attempt because the endpoint's breaker is open.
	ClassCircuitOpen
	// ClassTimeout represents a deadline expiry; surfaces as a domain-scoped
	// partial failure, never as a whole-request failure.
	ClassTimeout
)

// String returns the wire-stable name of the class.
func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassRateLimited:
		return "rate_limited"
	case ClassCircuitOpen:
		return "circuit_open"
	case ClassTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Admission and isolation errors
	ErrRateLimited      = errors.New("rate limited")
	ErrCircuitOpen      = errors.New("circuit breaker open")
	ErrConcurrencyLimit = errors.New("global concurrency limit reached")

	// Retry errors
	ErrRetryExhausted = errors.New("maximum attempts exhausted")

	// Gateway errors
	ErrEndpointUnknown = errors.New("endpoint not registered")
	ErrEntryTooLarge   = errors.New("response exceeds cache entry size bound")

	// Query errors
	ErrEmptyQuery = errors.New("empty query")
	ErrEmptyPlan  = errors.New("routing plan resolves to no domains")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// ClassifiedError wraps an error with its classification and the component
// context in which it arose.
type ClassifiedError struct {
	Class     Class
	Err       error
	Message   string
	Component string
	Operation string
	Endpoint  string // endpoint key when the failure is endpoint-scoped
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Code returns the stable string code for the error's class, suitable for the
// result envelope.
func (ce *ClassifiedError) Code() string {
	return ce.Class.String()
}

// ClassOf returns the classification of an error. Unclassified errors default
// to transient so unknown network conditions remain retryable.
func ClassOf(err error) Class {
	if err == nil {
		return ClassTransient
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}

	switch {
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrConcurrencyLimit):
		return ClassRateLimited
	case errors.Is(err, ErrCircuitOpen):
		return ClassCircuitOpen
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ClassTimeout
	case errors.Is(err, ErrEndpointUnknown), errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrMissingConfig), errors.Is(err, ErrEmptyQuery):
		return ClassPermanent
	}

	// Fall back to message inspection for errors from the net stack.
	errStr := strings.ToLower(err.Error())
	permanentPatterns := []string{
		"invalid",
		"malformed",
		"unsupported",
		"not found",
	}
	for _, pattern := range permanentPatterns {
		if strings.Contains(errStr, pattern) {
			return ClassPermanent
		}
	}

	return ClassTransient
}

// IsRetryable reports whether the retry layer may re-issue the failed call.
// Only transient failures are retryable; rate-limited and circuit-open
// rejections are handled by waiting or failing fast, never by hammering.
func IsRetryable(err error) bool {
	return err != nil && ClassOf(err) == ClassTransient
}

// IsTimeout reports whether the error represents a deadline expiry.
func IsTimeout(err error) bool {
	return err != nil && ClassOf(err) == ClassTimeout
}

// ClassifyStatus maps an HTTP status code to an error class. Retryable
// statuses are 429 and the transient 5xx family; the 4xx family is permanent.
func ClassifyStatus(status int) Class {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return ClassTransient
	}
	if status >= 400 && status < 500 {
		return ClassPermanent
	}
	if status >= 500 {
		return ClassTransient
	}
	return ClassPermanent
}

// FromStatus builds a classified error for a non-2xx HTTP response.
func FromStatus(status int, endpoint string) error {
	class := ClassifyStatus(status)
	err := fmt.Errorf("upstream returned HTTP %d", status)
	return &ClassifiedError{
		Class:    class,
		Err:      err,
		Message:  err.Error(),
		Endpoint: endpoint,
	}
}

// newClassified creates a new classified error.
// Internal helper - use the per-class Wrap functions instead.
func newClassified(class Class, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context.
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ClassTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapPermanent wraps an error as permanent with context.
func WrapPermanent(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ClassPermanent, wrappedErr, component, method, wrappedErr.Error())
}

// WrapTimeout wraps an error as a deadline expiry with context.
func WrapTimeout(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ClassTimeout, wrappedErr, component, method, wrappedErr.Error())
}

// RateLimitedError builds the admission-rejection error surfaced in
// non-blocking limiter mode, carrying the estimated wait.
func RateLimitedError(endpoint, waitHint string) error {
	return &ClassifiedError{
		Class:    ClassRateLimited,
		Err:      ErrRateLimited,
		Message:  fmt.Sprintf("rate limited on %s, next token in %s", endpoint, waitHint),
		Endpoint: endpoint,
	}
}

// CircuitOpenError builds the fail-fast error for an open breaker.
func CircuitOpenError(endpoint string) error {
	return &ClassifiedError{
		Class:    ClassCircuitOpen,
		Err:      ErrCircuitOpen,
		Message:  fmt.Sprintf("circuit open for %s", endpoint),
		Endpoint: endpoint,
	}
}

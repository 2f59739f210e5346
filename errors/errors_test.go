package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassOf_ClassifiedError(t *testing.T) {
	err := WrapPermanent(errors.New("bad field"), "Parser", "Parse", "field validation")
	assert.Equal(t, ClassPermanent, ClassOf(err))

	err = WrapTransient(errors.New("connection reset"), "Gateway", "Execute", "network call")
	assert.Equal(t, ClassTransient, ClassOf(err))
}

func TestClassOf_Sentinels(t *testing.T) {
	assert.Equal(t, ClassRateLimited, ClassOf(ErrRateLimited))
	assert.Equal(t, ClassRateLimited, ClassOf(ErrConcurrencyLimit))
	assert.Equal(t, ClassCircuitOpen, ClassOf(ErrCircuitOpen))
	assert.Equal(t, ClassTimeout, ClassOf(context.DeadlineExceeded))
	assert.Equal(t, ClassPermanent, ClassOf(ErrEndpointUnknown))
}

func TestClassOf_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", ErrCircuitOpen)
	assert.Equal(t, ClassCircuitOpen, ClassOf(err))
}

func TestClassOf_UnknownDefaultsTransient(t *testing.T) {
	assert.Equal(t, ClassTransient, ClassOf(errors.New("connection refused")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("i/o timeout")))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrCircuitOpen))
	assert.False(t, IsRetryable(WrapPermanent(errors.New("boom"), "x", "y", "z")))
}

func TestClassifyStatus(t *testing.T) {
	retryable := []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
	for _, status := range retryable {
		assert.Equal(t, ClassTransient, ClassifyStatus(status), "status %d", status)
	}

	permanent := []int{
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
	}
	for _, status := range permanent {
		assert.Equal(t, ClassPermanent, ClassifyStatus(status), "status %d", status)
	}
}

func TestFromStatus(t *testing.T) {
	err := FromStatus(http.StatusServiceUnavailable, "pubtator")
	require.Error(t, err)

	var ce *ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ClassTransient, ce.Class)
	assert.Equal(t, "pubtator", ce.Endpoint)
	assert.Contains(t, ce.Error(), "503")
}

func TestWrapPattern(t *testing.T) {
	base := errors.New("no route to host")
	err := Wrap(base, "Gateway", "Execute", "network call")
	require.Error(t, err)
	assert.Equal(t, "Gateway.Execute: network call failed: no route to host", err.Error())
	assert.ErrorIs(t, err, base)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "a", "b", "c"))
	assert.NoError(t, WrapTransient(nil, "a", "b", "c"))
	assert.NoError(t, WrapPermanent(nil, "a", "b", "c"))
	assert.NoError(t, WrapTimeout(nil, "a", "b", "c"))
}

func TestClassifiedErrorCode(t *testing.T) {
	err := CircuitOpenError("clinvar")
	var ce *ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "circuit_open", ce.Code())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestRateLimitedErrorCarriesHint(t *testing.T) {
	err := RateLimitedError("trials", "250ms")
	assert.Contains(t, err.Error(), "250ms")
	assert.Equal(t, ClassRateLimited, ClassOf(err))
}

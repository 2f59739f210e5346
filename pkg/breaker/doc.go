// Package breaker implements the circuit breaker pattern with one
// independent state machine per endpoint key.
//
// # State machine
//
//	CLOSED    --N consecutive failures-->  OPEN
//	OPEN      --recovery timeout-->        HALF_OPEN (one trial call)
//	HALF_OPEN --trial succeeds-->          CLOSED (failure count reset)
//	HALF_OPEN --trial fails-->             OPEN (recovery timer restarts)
//
// While open, Allow fails fast with a circuit-open error so neither the
// caller nor the failing upstream pays for doomed calls. The half-open probe
// slot is taken atomically inside Allow, so concurrent callers racing past
// the recovery timeout still produce exactly one trial call.
//
// State transitions are observable through OnStateChange for logging and
// metrics export.
package breaker

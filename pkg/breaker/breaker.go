// Package breaker provides per-endpoint circuit breaking for upstream calls.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/tastyGranola/bioquery/errors"
)

// State captures circuit breaker states.
type State int

const (
	// StateClosed indicates normal operation.
	StateClosed State = iota
	// StateOpen indicates the breaker is rejecting calls.
	StateOpen
	// StateHalfOpen indicates a single trial call is permitted.
	StateHalfOpen
)

// String returns the wire-stable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config controls thresholds for state transitions.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit from closed.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// RecoveryTimeout is how long an open circuit waits before permitting a
	// trial call.
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`
}

// DefaultConfig returns the production defaults: 5 consecutive failures to
// open, 60s recovery.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return errors.WrapPermanent(errors.ErrInvalidConfig, "breaker", "Validate",
			"failure_threshold must be positive")
	}
	if c.RecoveryTimeout <= 0 {
		return errors.WrapPermanent(errors.ErrInvalidConfig, "breaker", "Validate",
			"recovery_timeout must be positive")
	}
	return nil
}

// StateChange is an observer callback invoked after a state transition.
// Callbacks run outside the per-endpoint lock and must not call back into
// the breaker synchronously from another goroutine holding breaker calls.
type StateChange func(endpoint string, from, to State)

// endpointState tracks one endpoint's failure history. Each endpoint has its
// own mutex so breakers for unrelated endpoints never serialize.
type endpointState struct {
	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	probeInFlight bool
}

// Breaker tracks circuit state for every endpoint it has seen. States are
// created closed on first use.
type Breaker struct {
	mu       sync.RWMutex
	states   map[string]*endpointState
	cfg      Config
	onChange []StateChange

	// now is injectable for deterministic tests.
	now func() time.Time
}

// New creates a breaker with the given configuration.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultConfig().RecoveryTimeout
	}
	return &Breaker{
		states: make(map[string]*endpointState),
		cfg:    cfg,
		now:    time.Now,
	}
}

// OnStateChange registers an observer for state transitions. Startup-only;
// not safe for concurrent use with Allow.
func (b *Breaker) OnStateChange(fn StateChange) {
	if fn != nil {
		b.onChange = append(b.onChange, fn)
	}
}

func (b *Breaker) stateFor(key string) *endpointState {
	b.mu.RLock()
	st, ok := b.states[key]
	b.mu.RUnlock()
	if ok {
		return st
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok = b.states[key]; ok {
		return st
	}
	st = &endpointState{state: StateClosed}
	b.states[key] = st
	return st
}

func (b *Breaker) notify(key string, from, to State) {
	for _, fn := range b.onChange {
		fn(key, from, to)
	}
}

// Allow reports whether a call to the endpoint may proceed. While open it
// fails fast with a circuit-open error without touching the network; after
// the recovery timeout it admits exactly one trial call regardless of how
// many callers race for it.
func (b *Breaker) Allow(key string) error {
	st := b.stateFor(key)

	st.mu.Lock()
	switch st.state {
	case StateClosed:
		st.mu.Unlock()
		return nil

	case StateOpen:
		if b.now().Sub(st.openedAt) < b.cfg.RecoveryTimeout {
			st.mu.Unlock()
			return errors.CircuitOpenError(key)
		}
		// Recovery elapsed: move to half-open and take the probe slot.
		st.state = StateHalfOpen
		st.probeInFlight = true
		st.mu.Unlock()
		b.notify(key, StateOpen, StateHalfOpen)
		return nil

	case StateHalfOpen:
		if st.probeInFlight {
			st.mu.Unlock()
			return errors.CircuitOpenError(key)
		}
		st.probeInFlight = true
		st.mu.Unlock()
		return nil
	}

	st.mu.Unlock()
	return nil
}

// CancelProbe relinquishes a half-open trial slot without recording an
// outcome. Callers that pass Allow but abandon the call before the network
// (a cache hit, an admission rejection) must cancel, or the slot would stay
// taken and no later call could run the trial.
func (b *Breaker) CancelProbe(key string) {
	st := b.stateFor(key)

	st.mu.Lock()
	if st.state == StateHalfOpen {
		st.probeInFlight = false
	}
	st.mu.Unlock()
}

// RecordSuccess records a successful call outcome for the endpoint.
func (b *Breaker) RecordSuccess(key string) {
	st := b.stateFor(key)

	st.mu.Lock()
	from := st.state
	st.failures = 0
	st.probeInFlight = false
	if st.state == StateHalfOpen {
		st.state = StateClosed
	}
	to := st.state
	st.mu.Unlock()

	if from != to {
		b.notify(key, from, to)
	}
}

// RecordFailure records a failed call outcome for the endpoint.
func (b *Breaker) RecordFailure(key string) {
	st := b.stateFor(key)

	st.mu.Lock()
	from := st.state
	switch st.state {
	case StateClosed:
		st.failures++
		if st.failures >= b.cfg.FailureThreshold {
			st.state = StateOpen
			st.openedAt = b.now()
		}
	case StateHalfOpen:
		// Failed trial call: reopen and restart the recovery timer.
		st.state = StateOpen
		st.openedAt = b.now()
		st.probeInFlight = false
	case StateOpen:
		// Failure recorded while already open (e.g. a straggler call that
		// was admitted before the transition). Restarting the timer would
		// let stragglers extend the outage indefinitely, so don't.
	}
	to := st.state
	st.mu.Unlock()

	if from != to {
		b.notify(key, from, to)
	}
}

// Do wraps fn with the breaker for one endpoint: fail fast while open,
// record the outcome otherwise.
func (b *Breaker) Do(_ context.Context, key string, fn func() error) error {
	if err := b.Allow(key); err != nil {
		return err
	}
	if err := fn(); err != nil {
		b.RecordFailure(key)
		return err
	}
	b.RecordSuccess(key)
	return nil
}

// State returns the current state for an endpoint.
func (b *Breaker) State(key string) State {
	st := b.stateFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// Failures returns the consecutive failure count for an endpoint.
func (b *Breaker) Failures(key string) int {
	st := b.stateFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.failures
}

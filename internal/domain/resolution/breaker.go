package resolution

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker position.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig configures a CircuitBreaker.  A Threshold of zero disables
// the breaker.
type BreakerConfig struct {
	Threshold    int           `mapstructure:"threshold" yaml:"threshold"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout"`
}

// CircuitBreaker counts consecutive failed batches.  At Threshold it opens
// and rejects every call until ResetTimeout has elapsed, after which a single
// call is let through (half-open).  A successful trial call closes it, a failed
// one re-opens it.  Safe for concurrent use.
type CircuitBreaker struct {
	mu               sync.Mutex
	cfg              BreakerConfig
	state            BreakerState
	consecutiveFails int
	openedAt         time.Time
	trialInFlight    bool

	now      func() time.Time
	onChange func(from, to BreakerState)
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = time.Minute
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// OnStateChange registers a hook called, outside the lock, on every
// transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to BreakerState)) {
	cb.mu.Lock()
	cb.onChange = fn
	cb.mu.Unlock()
}

// Allow reports whether a call may proceed.
func (cb *CircuitBreaker) Allow() bool {
	if cb == nil {
		return true
	}
	cb.mu.Lock()
	if cb.cfg.Threshold <= 0 {
		cb.mu.Unlock()
		return true
	}
	var from, to BreakerState
	changed := false
	allowed := false

	switch cb.state {
	case BreakerClosed:
		allowed = true
	case BreakerOpen:
		if cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
			from, to, changed = BreakerOpen, BreakerHalfOpen, true
			cb.state = BreakerHalfOpen
			cb.trialInFlight = true
			allowed = true
		}
	case BreakerHalfOpen:
		if !cb.trialInFlight {
			cb.trialInFlight = true
			allowed = true
		}
	}
	hook := cb.onChange
	cb.mu.Unlock()

	if changed && hook != nil {
		hook(from, to)
	}
	return allowed
}

// RecordSuccess resets the failure count and closes a half-open breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	cb.consecutiveFails = 0
	cb.trialInFlight = false
	changed := cb.state != BreakerClosed
	from := cb.state
	cb.state = BreakerClosed
	hook := cb.onChange
	cb.mu.Unlock()

	if changed && hook != nil {
		hook(from, BreakerClosed)
	}
}

// RecordFailure counts a failed batch and may trip the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	if cb.cfg.Threshold <= 0 {
		cb.mu.Unlock()
		return
	}
	cb.consecutiveFails++
	from := cb.state
	changed := false

	switch cb.state {
	case BreakerClosed:
		if cb.consecutiveFails >= cb.cfg.Threshold {
			cb.state, cb.openedAt, changed = BreakerOpen, cb.now(), true
		}
	case BreakerHalfOpen:
		cb.state, cb.openedAt, changed = BreakerOpen, cb.now(), true
		cb.trialInFlight = false
	}
	hook := cb.onChange
	cb.mu.Unlock()

	if changed && hook != nil {
		hook(from, BreakerOpen)
	}
}

// Release ends a call that was allowed but never reached a verdict from the
// authority, such as one abandoned by its caller.  Counters and state are
// untouched; a half-open trial slot is freed for the next caller.
func (cb *CircuitBreaker) Release() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	if cb.state == BreakerHalfOpen {
		cb.trialInFlight = false
	}
	cb.mu.Unlock()
}

// State returns the current position without side effects.
func (cb *CircuitBreaker) State() BreakerState {
	if cb == nil {
		return BreakerClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current failure streak.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	if cb == nil {
		return 0
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFails
}

//Personal.AI order the ending

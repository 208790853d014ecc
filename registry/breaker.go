package registry

import (
	"sync"
	"time"
)

// CircuitState is the current gate position of an endpoint's breaker.
type CircuitState string

const (
	// CircuitClosed is normal operation: failures are counted, success
	// resets the counter.
	CircuitClosed CircuitState = "closed"
	// CircuitOpen fails every invocation fast without contacting the
	// endpoint. Entered after the consecutive-failure threshold is hit.
	CircuitOpen CircuitState = "open"
	// CircuitHalfOpen admits exactly one trial invocation after the
	// cool-down window elapses.
	CircuitHalfOpen CircuitState = "half-open"
)

// breaker is the per-endpoint failure-isolation state machine. All state
// transitions happen under its mutex; the registry never touches the
// fields directly.
type breaker struct {
	mu sync.Mutex

	state               CircuitState
	consecutiveFailures int
	lastFailureAt       time.Time
	trialInFlight       bool

	threshold int
	coolDown  time.Duration
	now       func() time.Time
}

func newBreaker(threshold int, coolDown time.Duration, now func() time.Time) *breaker {
	if now == nil {
		now = time.Now
	}
	return &breaker{state: CircuitClosed, threshold: threshold, coolDown: coolDown, now: now}
}

// allow reports whether an invocation may proceed. When the cool-down of
// an open circuit has elapsed it transitions to half-open and admits the
// caller as the single trial; concurrent callers during a trial are
// rejected as if the circuit were still open.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if b.now().Sub(b.lastFailureAt) < b.coolDown {
			return false
		}
		b.state = CircuitHalfOpen
		b.trialInFlight = true
		return true
	case CircuitHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	}
	return false
}

// onSuccess records a successful invocation: half-open trials close the
// circuit and the failure counter is cleared.
func (b *breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = CircuitClosed
	b.consecutiveFailures = 0
	b.trialInFlight = false
}

// onFailure records a failed invocation. A failed half-open trial reopens
// the circuit and restarts the cool-down timer; in the closed state the
// threshold decides whether the circuit trips.
func (b *breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures++
	b.lastFailureAt = b.now()
	b.trialInFlight = false
	if b.state == CircuitHalfOpen || b.consecutiveFailures >= b.threshold {
		b.state = CircuitOpen
	}
}

// snapshot returns the externally visible health of the breaker.
func (b *breaker) snapshot() Health {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Health{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailureAt:       b.lastFailureAt,
	}
}

// Health is a point-in-time view of an endpoint's circuit state.
type Health struct {
	State               CircuitState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastFailureAt       time.Time    `json:"last_failure_at"`
}

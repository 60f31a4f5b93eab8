package circuitbreaker

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Primary is used
	StateOpen                  // Primary is bypassed until cooldown elapses
	StateHalfOpen              // Probing primary with one request
)

// Breaker gates access to the primary cluster. Transitions are driven only
// by Allow/RecordFailure/RecordSuccess under a single mutex, so concurrent
// outcomes never leave the machine in an inconsistent state.
type Breaker struct {
	mutex            sync.Mutex
	state            State
	failures         int
	lastFailure      time.Time
	failureThreshold int
	cooldown         time.Duration
}

// New creates a closed breaker that opens after threshold qualifying
// failures and bypasses primary for the cooldown duration.
func New(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		state:            StateClosed,
		failureThreshold: threshold,
		cooldown:         cooldown,
	}
}

// Allow reports whether the next call may go to primary. It owns the
// cooldown clock: an open breaker whose cooldown has elapsed flips to
// half-open and permits exactly that call as the probe.
func (b *Breaker) Allow() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) >= b.cooldown {
			b.state = StateHalfOpen
			return true
		}
		return false
	default:
		// Closed and half-open both let the call through.
		return true
	}
}

// RecordFailure registers a transient-connectivity failure against primary.
// The cooldown restarts from this failure's timestamp.
func (b *Breaker) RecordFailure() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
		b.state = StateOpen
	}
}

// RecordSuccess settles the breaker back to closed and clears the
// failure count.
func (b *Breaker) RecordSuccess() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.failures = 0
	b.state = StateClosed
}

func (b *Breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

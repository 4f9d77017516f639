// Package circuit implements a minimal counting circuit breaker. Callers
// record outcomes; the breaker tells them when to stop calling a failing
// collaborator and when to resume.
package circuit

import (
	"sync"
	"time"
)

// State is the breaker's position.
type State int

const (
	// StateClosed passes traffic to the primary path.
	StateClosed State = iota
	// StateOpen diverts traffic to the fallback path.
	StateOpen
)

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultRetryInterval    = 30 * time.Second
)

// Change reports a state transition caused by a recorded outcome. Both
// fields false means the outcome changed nothing.
type Change struct {
	Opened bool
	Closed bool
}

// Breaker counts consecutive failures and successes. It trips open after
// FailureThreshold consecutive failures and re-closes after
// SuccessThreshold consecutive successes. Safe for concurrent use.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	retryInterval    time.Duration

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	lastProbe time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures trip the breaker.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) { b.failureThreshold = n }
}

// WithSuccessThreshold sets how many consecutive successes re-close it.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) { b.successThreshold = n }
}

// WithRetryInterval sets how often an open breaker lets a probe call
// through so it has a chance to observe recovery.
func WithRetryInterval(d time.Duration) Option {
	return func(b *Breaker) { b.retryInterval = d }
}

// New builds a closed Breaker.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		retryInterval:    defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker's name, used in logs and metrics.
func (b *Breaker) Name() string { return b.name }

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen reports whether callers should take the fallback path.
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Allow reports whether the caller should attempt the primary path. A
// closed breaker always allows; an open one lets a single probe through
// per retry interval so recovery can be observed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return true
	}
	now := time.Now()
	if now.Sub(b.lastProbe) >= b.retryInterval {
		b.lastProbe = now
		return true
	}
	return false
}

// RecordFailure notes a failed call. It returns whether the caller should
// now use the fallback, and the transition (if any) this outcome caused.
func (b *Breaker) RecordFailure() (useFallback bool, change Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	if b.state == StateOpen {
		return true, Change{}
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = StateOpen
		b.failures = 0
		b.lastProbe = time.Now()
		return true, Change{Opened: true}
	}
	return false, Change{}
}

// RecordSuccess notes a successful call. It returns whether the caller
// should now use the primary path, and the transition (if any) this outcome
// caused.
func (b *Breaker) RecordSuccess() (usePrimary bool, change Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateClosed {
		return true, Change{}
	}

	b.successes++
	if b.successes >= b.successThreshold {
		b.state = StateClosed
		b.successes = 0
		return true, Change{Closed: true}
	}
	return false, Change{}
}

// Reset force-closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}

package circuitbreaker

import (
	"biblioteca/pkg/metrics"
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling a dependency after more than maxFailures
// failures inside window, and lets a single trial call through once
// cooldown has passed.
type CircuitBreaker struct {
	name        string
	maxFailures int
	window      time.Duration
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures []time.Time
	openedAt time.Time
	trial    bool
}

func NewCircuitBreaker(name string, maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return NewCircuitBreakerWithWindow(name, maxFailures, cooldown, 60*time.Second)
}

func NewCircuitBreakerWithWindow(name string, maxFailures int, cooldown, window time.Duration) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		window:      window,
		cooldown:    cooldown,
		now:         time.Now,
	}
	cb.report()
	return cb
}

// Execute runs fn unless the breaker is open. fn runs without the lock held,
// so slow calls do not serialize each other.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return ErrOpen
		}
		cb.setState(StateHalfOpen)
		cb.trial = true
		return nil
	case StateHalfOpen:
		if cb.trial {
			return ErrOpen
		}
		cb.trial = true
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	if cb.state == StateHalfOpen {
		cb.trial = false
		if err != nil {
			cb.trip(now)
			return
		}
		cb.failures = cb.failures[:0]
		cb.setState(StateClosed)
		return
	}

	cb.dropOldFailures(now)
	if err == nil {
		return
	}
	cb.failures = append(cb.failures, now)
	if len(cb.failures) > cb.maxFailures {
		cb.trip(now)
	}
}

func (cb *CircuitBreaker) trip(now time.Time) {
	cb.openedAt = now
	cb.failures = cb.failures[:0]
	cb.setState(StateOpen)
}

// dropOldFailures keeps only failures newer than the window; failures are
// appended in time order.
func (cb *CircuitBreaker) dropOldFailures(now time.Time) {
	cutoff := now.Add(-cb.window)
	i := 0
	for i < len(cb.failures) && !cb.failures[i].After(cutoff) {
		i++
	}
	cb.failures = cb.failures[i:]
}

func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	cb.report()
}

func (cb *CircuitBreaker) report() {
	metrics.BreakerState.WithLabelValues(cb.name).Set(float64(cb.state))
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

package knowledge

import (
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"
)

// CircuitBreakerState is the breaker position.
type CircuitBreakerState int32

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
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

// ErrCircuitOpen is returned without calling through while the breaker is open.
var ErrCircuitOpen = stderrors.New("circuit breaker is open")

// CircuitBreaker guards one upstream AI service.
type CircuitBreaker struct {
	name string

	failureThreshold int
	successThreshold int
	cooldown         time.Duration

	state           int32
	failureCount    int32
	successCount    int32
	lastFailureTime time.Time
	mutex           sync.RWMutex
}

// NewCircuitBreaker opens after failureThreshold consecutive failures and
// probes again once cooldown has passed. A non-positive threshold disables it.
func NewCircuitBreaker(name string, failureThreshold, successThreshold int, cooldown time.Duration) *CircuitBreaker {
	if successThreshold <= 0 {
		successThreshold = 1
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
		state:            int32(StateClosed),
	}
}

// Call runs fn unless the breaker is open. Only failures for which
// countable returns true move the breaker toward open.
func (cb *CircuitBreaker) Call(fn func() error, countable func(error) bool) error {
	if cb == nil || cb.failureThreshold <= 0 {
		return fn()
	}
	if !cb.canExecute() {
		return ErrCircuitOpen
	}

	err := fn()
	switch {
	case err == nil:
		cb.recordSuccess()
	case countable == nil || countable(err):
		cb.recordFailure()
	}
	return err
}

func (cb *CircuitBreaker) canExecute() bool {
	switch cb.State() {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		cb.mutex.RLock()
		elapsed := time.Since(cb.lastFailureTime)
		cb.mutex.RUnlock()

		if elapsed >= cb.cooldown {
			if atomic.CompareAndSwapInt32(&cb.state, int32(StateOpen), int32(StateHalfOpen)) {
				atomic.StoreInt32(&cb.successCount, 0)
			}
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	switch cb.State() {
	case StateHalfOpen:
		if int(atomic.AddInt32(&cb.successCount, 1)) >= cb.successThreshold {
			atomic.StoreInt32(&cb.state, int32(StateClosed))
			atomic.StoreInt32(&cb.failureCount, 0)
		}
	case StateClosed:
		atomic.StoreInt32(&cb.failureCount, 0)
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	cb.lastFailureTime = time.Now()
	cb.mutex.Unlock()

	switch cb.State() {
	case StateHalfOpen:
		atomic.StoreInt32(&cb.state, int32(StateOpen))
		atomic.StoreInt32(&cb.successCount, 0)
	case StateClosed:
		if int(atomic.AddInt32(&cb.failureCount, 1)) >= cb.failureThreshold {
			atomic.StoreInt32(&cb.state, int32(StateOpen))
		}
	}
}

// State returns the current position.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	return CircuitBreakerState(atomic.LoadInt32(&cb.state))
}

// Stats is exposed on the health endpoint.
func (cb *CircuitBreaker) Stats() map[string]interface{} {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	return map[string]interface{}{
		"name":              cb.name,
		"state":             cb.State().String(),
		"failure_count":     atomic.LoadInt32(&cb.failureCount),
		"failure_threshold": cb.failureThreshold,
		"cooldown":          cb.cooldown.String(),
		"last_failure_time": cb.lastFailureTime,
	}
}

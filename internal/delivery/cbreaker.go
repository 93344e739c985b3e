package delivery

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker fails fast after a run of consecutive delivery failures. While
// open, calls are refused without touching the network until the cool-down
// elapses; then a single half-open probe decides whether to close again.
type Breaker struct {
	mu        sync.Mutex
	state     breakerState
	fails     int
	threshold int
	openFor   time.Duration
	retryAt   time.Time
	probing   bool
}

func NewBreaker(threshold int, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{threshold: threshold, openFor: openFor}
}

// Allow reports whether a call may go out. In half-open it reserves the
// single probe slot, so at most one call tests the remote at a time.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Now().After(b.retryAt) && !b.probing {
			b.state = stateHalfOpen
			b.probing = true
			return true
		}
		return false
	case stateHalfOpen:
		if !b.probing {
			b.probing = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	b.fails = 0
	b.state = stateClosed
	b.probing = false
	b.mu.Unlock()
}

func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.retryAt = time.Now().Add(b.openFor)
		b.probing = false
		return
	}

	b.fails++
	if b.fails >= b.threshold {
		b.state = stateOpen
		b.retryAt = time.Now().Add(b.openFor)
	}
}

// release frees a reserved half-open probe slot without recording an
// outcome. Used when a call is abandoned (context cancellation) so the
// breaker neither counts it nor leaks the slot.
func (b *Breaker) release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

// Open reports whether the breaker is currently refusing calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen && time.Now().Before(b.retryAt)
}

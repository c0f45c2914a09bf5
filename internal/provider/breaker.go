package provider

import (
	"sync"
	"time"
)

type breakerState int

const (
	stClosed breakerState = iota
	stOpen
	stHalfOpen
)

// breaker is a minimal consecutive-failure circuit breaker. After
// failThreshold consecutive failures it opens for openFor, then lets a
// single probe through.
type breaker struct {
	mu               sync.Mutex
	st               breakerState
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool
}

func newBreaker(threshold int, openFor time.Duration) *breaker {
	return &breaker{failThreshold: threshold, openFor: openFor}
}

func (b *breaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.st {
	case stClosed:
		return true
	case stOpen:
		return time.Now().After(b.nextTryAt) && !b.probeInFlight
	case stHalfOpen:
		return !b.probeInFlight
	default:
		return true
	}
}

func (b *breaker) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	switch b.st {
	case stClosed:
		return true
	case stOpen:
		if now.After(b.nextTryAt) && !b.probeInFlight {
			b.st = stHalfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case stHalfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *breaker) OnSuccess() {
	b.mu.Lock()
	b.consecutiveFails = 0
	b.st = stClosed
	b.probeInFlight = false
	b.mu.Unlock()
}

func (b *breaker) OnFailure() {
	b.mu.Lock()
	if b.st == stHalfOpen {
		b.st = stOpen
		b.nextTryAt = time.Now().Add(b.openFor)
		b.probeInFlight = false
		b.mu.Unlock()
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.st = stOpen
		b.nextTryAt = time.Now().Add(b.openFor)
	}

	b.mu.Unlock()
}

package scanning

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultConcurrency is the number of per-target pipelines allowed in flight.
	DefaultConcurrency = 100
)

// AdmissionGate bounds the number of per-target pipelines running at once.
type AdmissionGate interface {
	// Acquire blocks until a slot is available for target or ctx is done.
	Acquire(ctx context.Context, target string) error

	// Release returns the slot held by target.
	Release(target string)

	// InFlight returns the number of targets currently holding a slot.
	InFlight() int

	// Available returns the number of free slots.
	Available() int

	// Close releases every slot and rejects further acquisitions.
	Close() error
}

// FixedGate implements AdmissionGate with a fixed number of slots.
type FixedGate struct {
	capacity  int
	semaphore chan struct{}
	inFlight  map[string]time.Time
	peak      int
	mutex     sync.RWMutex
	closed    bool
}

// NewFixedGate creates a gate with the specified capacity.
func NewFixedGate(capacity int) *FixedGate {
	if capacity <= 0 {
		capacity = 1
	}

	return &FixedGate{
		capacity:  capacity,
		semaphore: make(chan struct{}, capacity),
		inFlight:  make(map[string]time.Time),
	}
}

// Acquire attempts to acquire a slot for the given target.
func (g *FixedGate) Acquire(ctx context.Context, target string) error {
	g.mutex.RLock()
	closed := g.closed
	g.mutex.RUnlock()
	if closed {
		return fmt.Errorf("admission gate is closed")
	}

	select {
	case g.semaphore <- struct{}{}:
		g.mutex.Lock()
		g.inFlight[target] = time.Now()
		if len(g.inFlight) > g.peak {
			g.peak = len(g.inFlight)
		}
		g.mutex.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases the slot held by the given target.
func (g *FixedGate) Release(target string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, exists := g.inFlight[target]; exists {
		delete(g.inFlight, target)

		select {
		case <-g.semaphore:
		default:
		}
	}
}

// InFlight returns the current number of admitted targets.
func (g *FixedGate) InFlight() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return len(g.inFlight)
}

// Available returns the number of free slots.
func (g *FixedGate) Available() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return g.capacity - len(g.inFlight)
}

// Peak returns the highest number of targets that held a slot at the same time.
func (g *FixedGate) Peak() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return g.peak
}

// Close shuts the gate down.
func (g *FixedGate) Close() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.closed {
		return nil
	}

	g.closed = true
	g.inFlight = make(map[string]time.Time)

	for {
		select {
		case <-g.semaphore:
		default:
			return nil
		}
	}
}

// Stats returns statistics about the gate.
func (g *FixedGate) Stats() map[string]interface{} {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return map[string]interface{}{
		"capacity":  g.capacity,
		"in_flight": len(g.inFlight),
		"available": g.capacity - len(g.inFlight),
		"peak":      g.peak,
		"closed":    g.closed,
	}
}

package shutdown

import (
	"context"
	"sync"

	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// InFlightTracker tracks in-flight work (requests, jobs) so shutdown waits for it
type InFlightTracker struct {
	logger   ports.Logger
	name     string
	wg       sync.WaitGroup
	mu       sync.Mutex
	count    int
	stopping bool
}

// NewInFlightTracker creates a new in-flight work tracker
func NewInFlightTracker(name string, logger ports.Logger) *InFlightTracker {
	return &InFlightTracker{name: name, logger: logger}
}

// Add registers one unit of work. Returns false once shutdown started.
func (ift *InFlightTracker) Add() bool {
	ift.mu.Lock()
	defer ift.mu.Unlock()
	if ift.stopping {
		return false
	}
	ift.count++
	ift.wg.Add(1)
	return true
}

// Done marks one unit of work complete
func (ift *InFlightTracker) Done() {
	ift.mu.Lock()
	ift.count--
	ift.mu.Unlock()
	ift.wg.Done()
}

// Count returns the amount of work in flight
func (ift *InFlightTracker) Count() int {
	ift.mu.Lock()
	defer ift.mu.Unlock()
	return ift.count
}

// IsShuttingDown returns true once Shutdown was called
func (ift *InFlightTracker) IsShuttingDown() bool {
	ift.mu.Lock()
	defer ift.mu.Unlock()
	return ift.stopping
}

// Shutdown rejects new work and waits for in-flight work or ctx expiry
func (ift *InFlightTracker) Shutdown(ctx context.Context) error {
	ift.mu.Lock()
	ift.stopping = true
	pending := ift.count
	ift.mu.Unlock()

	ift.logger.Info("Waiting for in-flight work to complete",
		ports.String("tracker", ift.name),
		ports.Int("in_flight", pending))

	done := make(chan struct{})
	go func() {
		ift.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ift.logger.Info("All in-flight work completed", ports.String("tracker", ift.name))
		return nil
	case <-ctx.Done():
		ift.logger.Warn("Shutdown timeout, some work may be incomplete",
			ports.String("tracker", ift.name),
			ports.Int("in_flight", ift.Count()))
		return ctx.Err()
	}
}

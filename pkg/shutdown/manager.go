// Package shutdown stops process components in order within a deadline
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

var (
	shutdownSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_shutdown_duration_seconds",
		Help:    "Time spent stopping each component; component=\"total\" covers the whole run",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"component"})

	shutdownFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_shutdown_errors_total",
		Help: "Components whose shutdown returned an error",
	}, []string{"component"})
)

// ShutdownFunc stops one component
type ShutdownFunc func(context.Context) error

type component struct {
	name string
	stop ShutdownFunc
}

// Manager stops components in reverse registration order, so register
// dependencies (database, redis) before their users (workers, HTTP server).
type Manager struct {
	logger  ports.Logger
	timeout time.Duration

	mu         sync.Mutex
	components []component
	once       sync.Once
	err        error
}

func NewManager(logger ports.Logger, timeout time.Duration) *Manager {
	return &Manager{logger: logger, timeout: timeout}
}

func (m *Manager) Register(name string, fn ShutdownFunc) {
	m.mu.Lock()
	m.components = append(m.components, component{name: name, stop: fn})
	m.mu.Unlock()
	m.logger.Debug("Registered shutdown component", ports.String("component", name))
}

// RegisterCloser registers anything with Close() error
func (m *Manager) RegisterCloser(name string, closer interface{ Close() error }) {
	m.Register(name, func(context.Context) error { return closer.Close() })
}

func (m *Manager) RegisterNoErr(name string, fn func()) {
	m.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// NotifyContext returns a context cancelled on SIGINT or SIGTERM
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Shutdown stops every component once; later calls return the first result
func (m *Manager) Shutdown() error {
	m.once.Do(func() { m.err = m.shutdown() })
	return m.err
}

func (m *Manager) shutdown() error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	components := append([]component(nil), m.components...)
	m.mu.Unlock()

	m.logger.Info("Starting graceful shutdown",
		ports.Int("component_count", len(components)),
		ports.Duration("timeout", m.timeout))

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		if err := m.stop(ctx, components[i]); err != nil {
			errs = append(errs, err)
		}
	}

	elapsed := time.Since(start)
	shutdownSeconds.WithLabelValues("total").Observe(elapsed.Seconds())
	if err := errors.Join(errs...); err != nil {
		m.logger.Error("Graceful shutdown completed with errors",
			ports.Int("error_count", len(errs)),
			ports.Duration("elapsed", elapsed))
		return err
	}
	m.logger.Info("Graceful shutdown completed", ports.Duration("elapsed", elapsed))
	return nil
}

func (m *Manager) stop(ctx context.Context, c component) error {
	start := time.Now()
	err := c.stop(ctx)
	elapsed := time.Since(start)
	shutdownSeconds.WithLabelValues(c.name).Observe(elapsed.Seconds())

	if err != nil {
		shutdownFailures.WithLabelValues(c.name).Inc()
		m.logger.Error("Component shutdown failed",
			ports.String("component", c.name),
			ports.Duration("elapsed", elapsed),
			ports.Err(err))
		return fmt.Errorf("%s: %w", c.name, err)
	}
	m.logger.Info("Component shut down",
		ports.String("component", c.name),
		ports.Duration("elapsed", elapsed))
	return nil
}

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// ErrBusClosed is returned when publishing after the bus stopped
var ErrBusClosed = errors.New("event bus is closed")

// Handler reacts to one event
type Handler[T any] func(ctx context.Context, event T) error

// delivery is a queued event; result, when set, receives the handlers' joined error
type delivery[T any] struct {
	event  T
	result chan error
}

// category is one ordered stream of events with its subscribers
type category[T any] struct {
	events   chan delivery[T]
	name     string
	handlers []Handler[T]
}

// Bus dispatches events with one goroutine per category, so events of a category are
// handled in publish order.
type Bus struct {
	orderLines *category[domain.OrderLineCreatedEvent]
	stock      *category[domain.StockMovementEvent]
	logger     ports.Logger
	done       chan struct{}
	stopped    chan struct{}
	mu         sync.RWMutex
	running    bool
}

// NewBus creates a bus whose categories buffer up to bufferSize events
func NewBus(logger ports.Logger, bufferSize int) *Bus {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Bus{
		orderLines: &category[domain.OrderLineCreatedEvent]{
			name:   "order_line_created",
			events: make(chan delivery[domain.OrderLineCreatedEvent], bufferSize),
		},
		stock: &category[domain.StockMovementEvent]{
			name:   "stock_movement",
			events: make(chan delivery[domain.StockMovementEvent], bufferSize),
		},
		logger:  logger,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// SubscribeOrderLineCreated registers a handler; call before Run
func (b *Bus) SubscribeOrderLineCreated(h Handler[domain.OrderLineCreatedEvent]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orderLines.handlers = append(b.orderLines.handlers, h)
}

// SubscribeStockMovement registers a handler; call before Run
func (b *Bus) SubscribeStockMovement(h Handler[domain.StockMovementEvent]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stock.handlers = append(b.stock.handlers, h)
}

// PublishOrderLineCreated blocks until the event is buffered
func (b *Bus) PublishOrderLineCreated(ctx context.Context, event domain.OrderLineCreatedEvent) error {
	return publish(ctx, b.done, b.orderLines, delivery[domain.OrderLineCreatedEvent]{event: event})
}

// PublishStockMovement blocks until the event is buffered
func (b *Bus) PublishStockMovement(ctx context.Context, event domain.StockMovementEvent) error {
	return publish(ctx, b.done, b.stock, delivery[domain.StockMovementEvent]{event: event})
}

// DeliverOrderLineCreated blocks until every handler ran and returns their joined errors
func (b *Bus) DeliverOrderLineCreated(ctx context.Context, event domain.OrderLineCreatedEvent) error {
	return deliverAndWait(ctx, b, b.orderLines, event)
}

// DeliverStockMovement blocks until every handler ran and returns their joined errors
func (b *Bus) DeliverStockMovement(ctx context.Context, event domain.StockMovementEvent) error {
	return deliverAndWait(ctx, b, b.stock, event)
}

func deliverAndWait[T any](ctx context.Context, b *Bus, c *category[T], event T) error {
	result := make(chan error, 1)
	if err := publish(ctx, b.done, c, delivery[T]{event: event, result: result}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-b.stopped:
		// the drain may have answered just before stopping
		select {
		case err := <-result:
			return err
		default:
			return ErrBusClosed
		}
	}
}

func publish[T any](ctx context.Context, done <-chan struct{}, c *category[T], d delivery[T]) error {
	select {
	case <-done:
		return ErrBusClosed
	default:
	}
	select {
	case c.events <- d:
		return nil
	case <-done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run dispatches until ctx is cancelled, then handles what is still buffered and returns
func (b *Bus) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("event bus already running")
	}
	b.running = true
	orderLineHandlers := append([]Handler[domain.OrderLineCreatedEvent](nil), b.orderLines.handlers...)
	stockHandlers := append([]Handler[domain.StockMovementEvent](nil), b.stock.handlers...)
	b.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatch(ctx, b.logger, b.orderLines, orderLineHandlers)
	}()
	go func() {
		defer wg.Done()
		dispatch(ctx, b.logger, b.stock, stockHandlers)
	}()

	<-ctx.Done()
	close(b.done)
	wg.Wait()
	close(b.stopped)
	return nil
}

func dispatch[T any](ctx context.Context, logger ports.Logger, c *category[T], handlers []Handler[T]) {
	// handlers keep running during shutdown drain
	handlerCtx := context.WithoutCancel(ctx)
	for {
		select {
		case d := <-c.events:
			deliver(handlerCtx, logger, c.name, handlers, d)
		case <-ctx.Done():
			for {
				select {
				case d := <-c.events:
					deliver(handlerCtx, logger, c.name, handlers, d)
				default:
					return
				}
			}
		}
	}
}

func deliver[T any](ctx context.Context, logger ports.Logger, name string, handlers []Handler[T], d delivery[T]) {
	var errs []error
	for i, h := range handlers {
		if err := safeCall(ctx, h, d.event); err != nil {
			logger.Error("Event handler failed",
				ports.String("category", name),
				ports.Int("handler", i),
				ports.Err(err))
			errs = append(errs, err)
		}
	}
	if d.result != nil {
		d.result <- errors.Join(errs...)
	}
}

func safeCall[T any](ctx context.Context, h Handler[T], event T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in event handler: %v", r)
		}
	}()
	return h(ctx, event)
}

package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/pkg/logging"
)

func runBus(t *testing.T, bus *Bus) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx) }()
	return func() {
		stop()
		require.NoError(t, <-done)
	}
}

func TestBus_PreservesOrderPerCategory(t *testing.T) {
	bus := NewBus(logging.NewNop(), 16)

	var mu sync.Mutex
	var got []string
	bus.SubscribeStockMovement(func(_ context.Context, ev domain.StockMovementEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.OrderLineIDs[0])
		return nil
	})

	stop := runBus(t, bus)
	for _, id := range []string{"1", "2", "3", "4"} {
		require.NoError(t, bus.PublishStockMovement(context.Background(), domain.StockMovementEvent{
			Type:         domain.StockMovementRelease,
			OrderLineIDs: []string{id},
		}))
	}
	stop()

	assert.Equal(t, []string{"1", "2", "3", "4"}, got)
}

func TestBus_HandlerErrorsDoNotStopDispatch(t *testing.T) {
	bus := NewBus(logging.NewNop(), 4)

	calls := make(chan string, 4)
	bus.SubscribeOrderLineCreated(func(_ context.Context, ev domain.OrderLineCreatedEvent) error {
		calls <- ev.OrderLineID
		if ev.OrderLineID == "bad" {
			return errors.New("lookup failed")
		}
		return nil
	})
	bus.SubscribeOrderLineCreated(func(_ context.Context, ev domain.OrderLineCreatedEvent) error {
		if ev.OrderLineID == "panic" {
			panic("boom")
		}
		return nil
	})

	stop := runBus(t, bus)
	defer stop()

	for _, id := range []string{"bad", "panic", "good"} {
		require.NoError(t, bus.PublishOrderLineCreated(context.Background(), domain.OrderLineCreatedEvent{OrderLineID: id}))
	}

	var seen []string
	for i := 0; i < 3; i++ {
		select {
		case id := <-calls:
			seen = append(seen, id)
		case <-time.After(time.Second):
			t.Fatal("handler not called")
		}
	}
	assert.Equal(t, []string{"bad", "panic", "good"}, seen)
}

func TestBus_PublishAfterStop(t *testing.T) {
	bus := NewBus(logging.NewNop(), 1)
	stop := runBus(t, bus)
	stop()

	err := bus.PublishStockMovement(context.Background(), domain.StockMovementEvent{})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestBus_PublishRespectsContext(t *testing.T) {
	bus := NewBus(logging.NewNop(), 1)

	// not running: the single buffer slot fills and the next publish blocks
	require.NoError(t, bus.PublishStockMovement(context.Background(), domain.StockMovementEvent{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.PublishStockMovement(ctx, domain.StockMovementEvent{}), context.DeadlineExceeded)
}

func TestBus_DeliverWaitsForHandlers(t *testing.T) {
	bus := NewBus(logging.NewNop(), 4)

	var handled []string
	bus.SubscribeStockMovement(func(_ context.Context, ev domain.StockMovementEvent) error {
		handled = append(handled, ev.OrderLineIDs[0])
		if ev.OrderLineIDs[0] == "bad" {
			return errors.New("enqueue failed")
		}
		return nil
	})
	bus.SubscribeStockMovement(func(context.Context, domain.StockMovementEvent) error {
		return nil
	})

	stop := runBus(t, bus)
	defer stop()

	require.NoError(t, bus.DeliverStockMovement(context.Background(), domain.StockMovementEvent{OrderLineIDs: []string{"good"}}))
	err := bus.DeliverStockMovement(context.Background(), domain.StockMovementEvent{OrderLineIDs: []string{"bad"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enqueue failed")
	assert.Equal(t, []string{"good", "bad"}, handled)
}

func TestBus_DeliverAfterStop(t *testing.T) {
	bus := NewBus(logging.NewNop(), 1)
	stop := runBus(t, bus)
	stop()

	err := bus.DeliverOrderLineCreated(context.Background(), domain.OrderLineCreatedEvent{OrderLineID: "l1"})
	assert.ErrorIs(t, err, ErrBusClosed)
}

package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/pkg/logging"
	"github.com/kevin07696/subscription-billing/pkg/resilience"
)

// fakeReader serves queued messages, then blocks until ctx is done
type fakeReader struct {
	messages  []kafka.Message
	committed []int64
	mu        sync.Mutex
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.messages) > 0 {
		msg := f.messages[0]
		f.messages = f.messages[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) Committed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

type fakePublisher struct {
	stock      []domain.StockMovementEvent
	orderLines []domain.OrderLineCreatedEvent
	// failStock is how many stock deliveries fail before one succeeds
	failStock  int
	stockCalls int
	mu         sync.Mutex
}

func (f *fakePublisher) DeliverStockMovement(_ context.Context, event domain.StockMovementEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stockCalls++
	if f.failStock > 0 {
		f.failStock--
		return errors.New("enqueue cancellation: database unavailable")
	}
	f.stock = append(f.stock, event)
	return nil
}

func (f *fakePublisher) DeliverOrderLineCreated(_ context.Context, event domain.OrderLineCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderLines = append(f.orderLines, event)
	return nil
}

func runConsumer(t *testing.T, reader *fakeReader, publisher *fakePublisher, expectCommits int) {
	t.Helper()
	consumer := NewConsumerWithReader(reader, publisher, logging.NewNop())
	consumer.retry = &resilience.FixedBackoff{Delay: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(reader.Committed()) >= expectCommits }, time.Second, 5*time.Millisecond)
	// let the loop settle on the blocking fetch
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestConsumer_PublishesAndCommits(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`{"type":"stock_movement","data":{"channel_token":"eu","type":"RELEASE","order_line_ids":["l1","l2"]}}`)},
		{Offset: 2, Value: []byte(`{"type":"order_line_created","data":{"channel_token":"eu","order_id":"o1","order_line_id":"l3","variant_id":"v1"}}`)},
		{Offset: 3, Value: []byte(`{"type":"price_changed","data":{}}`)},
	}}
	publisher := &fakePublisher{}

	runConsumer(t, reader, publisher, 3)

	require.Len(t, publisher.stock, 1)
	assert.Equal(t, domain.StockMovementRelease, publisher.stock[0].Type)
	assert.Equal(t, []string{"l1", "l2"}, publisher.stock[0].OrderLineIDs)
	require.Len(t, publisher.orderLines, 1)
	assert.Equal(t, "l3", publisher.orderLines[0].OrderLineID)
	assert.Equal(t, []int64{1, 2, 3}, reader.Committed())
}

func TestConsumer_DropsUndecodableMessages(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 7, Value: []byte(`not json`)},
		{Offset: 8, Value: []byte(`{"type":"stock_movement","data":{"type":"RELEASE"}}`)},
	}}
	publisher := &fakePublisher{}

	runConsumer(t, reader, publisher, 2)

	assert.Empty(t, publisher.stock)
	assert.Equal(t, []int64{7, 8}, reader.Committed())
}

func TestConsumer_RetriesFailedHandlersBeforeCommitting(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`{"type":"stock_movement","data":{"channel_token":"eu","type":"CANCELLATION","order_line_ids":["l1"]}}`)},
		{Offset: 2, Value: []byte(`{"type":"order_line_created","data":{"order_line_id":"l2"}}`)},
	}}
	publisher := &fakePublisher{failStock: 2}

	runConsumer(t, reader, publisher, 2)

	assert.Equal(t, 3, publisher.stockCalls)
	require.Len(t, publisher.stock, 1)
	assert.Equal(t, []string{"l1"}, publisher.stock[0].OrderLineIDs)
	assert.Equal(t, []int64{1, 2}, reader.Committed())
}

func TestConsumer_LeavesFailingMessageUncommittedOnShutdown(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`{"type":"stock_movement","data":{"channel_token":"eu","type":"CANCELLATION","order_line_ids":["l1"]}}`)},
		{Offset: 2, Value: []byte(`{"type":"order_line_created","data":{"order_line_id":"l2"}}`)},
	}}
	publisher := &fakePublisher{failStock: 1000}
	consumer := NewConsumerWithReader(reader, publisher, logging.NewNop())
	consumer.retry = &resilience.FixedBackoff{Delay: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	assert.Eventually(t, func() bool {
		publisher.mu.Lock()
		defer publisher.mu.Unlock()
		return publisher.stockCalls >= 3
	}, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Empty(t, reader.Committed())
	assert.Empty(t, publisher.orderLines)
}

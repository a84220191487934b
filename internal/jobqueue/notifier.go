package jobqueue

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Notifier wakes idle workers when a job is enqueued
type Notifier interface {
	Notify(ctx context.Context, queue string) error
	// Subscribe delivers a signal per notification until ctx is done
	Subscribe(ctx context.Context, queue string) (<-chan struct{}, error)
}

// RedisNotifier uses redis pub/sub channels named "<prefix><queue>"
type RedisNotifier struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisNotifier creates a notifier on the given client
func NewRedisNotifier(client redis.UniversalClient, prefix string) *RedisNotifier {
	if prefix == "" {
		prefix = "jobqueue:"
	}
	return &RedisNotifier{client: client, prefix: prefix}
}

func (n *RedisNotifier) Notify(ctx context.Context, queue string) error {
	return n.client.Publish(ctx, n.prefix+queue, "enqueued").Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, queue string) (<-chan struct{}, error) {
	pubsub := n.client.Subscribe(ctx, n.prefix+queue)
	// wait for the subscription confirmation so no notification is missed after return
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	wake := make(chan struct{}, 1)
	messages := pubsub.Channel()

	go func() {
		defer close(wake)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			}
		}
	}()

	return wake, nil
}

package ports

import (
	"context"

	"github.com/kevin07696/subscription-billing/internal/domain"
)

// JobHandle identifies an enqueued job
type JobHandle struct {
	ID    string
	Queue string
}

// JobEnqueuer enqueues billing jobs with the retry policy of their kind:
// creation is never retried, cancellation uses the queue default.
type JobEnqueuer interface {
	EnqueueCreateSubscriptions(ctx context.Context, rc domain.RequestContext, payload domain.CreateSubscriptionsJob) (JobHandle, error)
	EnqueueCancelSubscription(ctx context.Context, rc domain.RequestContext, payload domain.CancelSubscriptionJob) (JobHandle, error)
}

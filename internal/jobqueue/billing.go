package jobqueue

import (
	"context"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// BillingJobs enqueues billing jobs with the retry policy of their kind
type BillingJobs struct {
	queue *Queue
}

var _ ports.JobEnqueuer = (*BillingJobs)(nil)

// NewBillingJobs wraps the billing queue
func NewBillingJobs(queue *Queue) *BillingJobs {
	return &BillingJobs{queue: queue}
}

// EnqueueCreateSubscriptions never retries: provider subscriptions are not safe to re-create
func (b *BillingJobs) EnqueueCreateSubscriptions(ctx context.Context, rc domain.RequestContext, payload domain.CreateSubscriptionsJob) (ports.JobHandle, error) {
	return b.queue.Enqueue(ctx, domain.JobKindCreateSubscriptions, payload, rc, WithRetries(0))
}

// EnqueueCancelSubscription uses the default retry policy; cancelling twice is harmless
func (b *BillingJobs) EnqueueCancelSubscription(ctx context.Context, rc domain.RequestContext, payload domain.CancelSubscriptionJob) (ports.JobHandle, error) {
	return b.queue.Enqueue(ctx, domain.JobKindCancelSubscription, payload, rc)
}

// BillingHandlers executes billing jobs
type BillingHandlers interface {
	CreateSubscriptionsForOrder(ctx context.Context, rc domain.RequestContext, job domain.CreateSubscriptionsJob) error
	CancelSubscriptionsForOrderLine(ctx context.Context, rc domain.RequestContext, job domain.CancelSubscriptionJob) error
}

// RegisterBillingHandlers wires both billing job kinds onto w
func RegisterBillingHandlers(w *Worker, h BillingHandlers) {
	w.OnJob(domain.JobKindCreateSubscriptions, Typed(h.CreateSubscriptionsForOrder))
	w.OnJob(domain.JobKindCancelSubscription, Typed(h.CancelSubscriptionsForOrderLine))
}

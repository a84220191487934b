package jobqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/pkg/logging"
)

type recordingBillingHandlers struct {
	created  []domain.CreateSubscriptionsJob
	canceled []domain.CancelSubscriptionJob
}

func (r *recordingBillingHandlers) CreateSubscriptionsForOrder(_ context.Context, _ domain.RequestContext, job domain.CreateSubscriptionsJob) error {
	r.created = append(r.created, job)
	return nil
}

func (r *recordingBillingHandlers) CancelSubscriptionsForOrderLine(_ context.Context, _ domain.RequestContext, job domain.CancelSubscriptionJob) error {
	r.canceled = append(r.canceled, job)
	return nil
}

func TestBillingJobs_RetryPolicyPerKind(t *testing.T) {
	storage := NewMemoryStorage()
	queue, err := NewQueue(storage, domain.BillingQueueName, nil, logging.NewNop())
	require.NoError(t, err)
	jobs := NewBillingJobs(queue)
	ctx := context.Background()
	rc := domain.RequestContext{ChannelToken: "eu"}

	create, err := jobs.EnqueueCreateSubscriptions(ctx, rc, domain.CreateSubscriptionsJob{OrderCode: "ORD-1", ProviderCustomerID: "cus_1"})
	require.NoError(t, err)
	cancel, err := jobs.EnqueueCancelSubscription(ctx, rc, domain.CancelSubscriptionJob{OrderLineID: "line-1"})
	require.NoError(t, err)

	assert.Equal(t, domain.BillingQueueName, create.Queue)

	createJob, err := storage.GetJob(ctx, jobID(t, create.ID))
	require.NoError(t, err)
	assert.Equal(t, 0, createJob.MaxRetries)
	assert.Equal(t, domain.JobKindCreateSubscriptions, createJob.Kind)

	cancelJob, err := storage.GetJob(ctx, jobID(t, cancel.ID))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRetries, cancelJob.MaxRetries)
}

func TestRegisterBillingHandlers(t *testing.T) {
	storage := NewMemoryStorage()
	queue, err := NewQueue(storage, domain.BillingQueueName, nil, logging.NewNop())
	require.NoError(t, err)
	worker, err := NewWorker(storage, domain.BillingQueueName, logging.NewNop())
	require.NoError(t, err)

	handlers := &recordingBillingHandlers{}
	RegisterBillingHandlers(worker, handlers)

	jobs := NewBillingJobs(queue)
	_, err = jobs.EnqueueCreateSubscriptions(context.Background(), domain.RequestContext{}, domain.CreateSubscriptionsJob{OrderCode: "ORD-7"})
	require.NoError(t, err)
	_, err = jobs.EnqueueCancelSubscription(context.Background(), domain.RequestContext{}, domain.CancelSubscriptionJob{OrderLineID: "line-7"})
	require.NoError(t, err)

	for {
		processed, err := worker.ProcessNext(context.Background())
		require.NoError(t, err)
		if !processed {
			break
		}
	}

	require.Len(t, handlers.created, 1)
	assert.Equal(t, "ORD-7", handlers.created[0].OrderCode)
	require.Len(t, handlers.canceled, 1)
	assert.Equal(t, "line-7", handlers.canceled[0].OrderLineID)
}

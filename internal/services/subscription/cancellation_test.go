package subscription

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/jobqueue"
)

func subscribedOrder(ids ...string) *domain.Order {
	line := subscriptionLine("l1", "Gym", "GYM", 9000, monthlySchedule())
	line.SubscriptionIDs = ids
	return testOrder(line)
}

func TestCancelSubscriptionsForOrderLine_CancelsAtPeriodEnd(t *testing.T) {
	f := newFixture()
	f.orders.put(subscribedOrder("sub_a", "sub_b"))

	err := f.svc.CancelSubscriptionsForOrderLine(context.Background(),
		domain.RequestContext{ChannelToken: f.channel.Token}, domain.CancelSubscriptionJob{OrderLineID: "l1"})
	require.NoError(t, err)

	assert.Equal(t, 2, f.provider.UpdateCalls)
	for _, id := range []string{"sub_a", "sub_b"} {
		sub, ok := f.provider.Subscription(id)
		require.True(t, ok)
		assert.True(t, sub.CancelAtPeriodEnd, id)
	}
	assert.Equal(t, []string{"Cancelled subscription sub_a", "Cancelled subscription sub_b"}, f.history.messages("o1"))
}

func TestCancelSubscriptionsForOrderLine_AlreadyCanceledIsSuccess(t *testing.T) {
	f := newFixture()
	f.orders.put(subscribedOrder("sub_a", "sub_b"))
	f.provider.MarkCanceled("sub_b")
	rc := domain.RequestContext{ChannelToken: f.channel.Token}
	job := domain.CancelSubscriptionJob{OrderLineID: "l1"}

	require.NoError(t, f.svc.CancelSubscriptionsForOrderLine(context.Background(), rc, job))

	entries := f.history.entries["o1"]
	require.Len(t, entries, 2)
	assert.Equal(t, "Cancelled subscription sub_a", entries[0].Data.Message)
	assert.Equal(t, "Subscription sub_b was already canceled", entries[1].Data.Message)
	assert.True(t, entries[1].Data.Valid)

	// cancelling twice is harmless
	f.provider.MarkCanceled("sub_a")
	require.NoError(t, f.svc.CancelSubscriptionsForOrderLine(context.Background(), rc, job))
	assert.Len(t, f.history.entries["o1"], 4)
}

func TestCancelSubscriptionsForOrderLine_FailureDoesNotStopOtherIDs(t *testing.T) {
	f := newFixture()
	f.orders.put(subscribedOrder("sub_a", "sub_b"))
	f.provider.SetUpdateError("sub_a", domain.ErrProviderUnavailable)

	err := f.svc.CancelSubscriptionsForOrderLine(context.Background(),
		domain.RequestContext{ChannelToken: f.channel.Token}, domain.CancelSubscriptionJob{OrderLineID: "l1"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
	assert.Equal(t, 2, f.provider.UpdateCalls)

	entries := f.history.entries["o1"]
	require.Len(t, entries, 2)
	assert.Equal(t, "Failed to cancel sub_a", entries[0].Data.Message)
	assert.False(t, entries[0].Data.Valid)
	assert.Equal(t, "Cancelled subscription sub_b", entries[1].Data.Message)
}

func TestCancelSubscriptionsForOrderLine_UnknownProviderIDIsNotSuccess(t *testing.T) {
	f := newFixture()
	f.orders.put(subscribedOrder("sub_a", "sub_typo"))
	f.provider.SetUpdateError("sub_typo", fmt.Errorf("%w: no such subscription", domain.ErrSubscriptionNotFound))

	err := f.svc.CancelSubscriptionsForOrderLine(context.Background(),
		domain.RequestContext{ChannelToken: f.channel.Token}, domain.CancelSubscriptionJob{OrderLineID: "l1"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	assert.True(t, jobqueue.IsPermanent(err))
	assert.Equal(t, []string{"Cancelled subscription sub_a", "Subscription sub_typo not found at provider"},
		f.history.messages("o1"))
	assert.False(t, f.history.entries["o1"][1].Data.Valid)

	// a transient failure next to it keeps the job retriable
	f.provider.SetUpdateError("sub_a", domain.ErrProviderUnavailable)
	err = f.svc.CancelSubscriptionsForOrderLine(context.Background(),
		domain.RequestContext{ChannelToken: f.channel.Token}, domain.CancelSubscriptionJob{OrderLineID: "l1"})
	require.Error(t, err)
	assert.False(t, jobqueue.IsPermanent(err))
}

func TestCancelSubscriptionsForOrderLine_UnknownLine(t *testing.T) {
	f := newFixture()

	err := f.svc.CancelSubscriptionsForOrderLine(context.Background(),
		domain.RequestContext{ChannelToken: f.channel.Token}, domain.CancelSubscriptionJob{OrderLineID: "missing"})

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationLineNotFound))
	assert.True(t, jobqueue.IsPermanent(err))
	assert.Zero(t, f.provider.UpdateCalls)
}

func TestCancelSubscriptionsForOrderLine_LineWithoutSubscriptions(t *testing.T) {
	f := newFixture()
	f.orders.put(subscribedOrder())

	err := f.svc.CancelSubscriptionsForOrderLine(context.Background(),
		domain.RequestContext{ChannelToken: f.channel.Token}, domain.CancelSubscriptionJob{OrderLineID: "l1"})

	require.NoError(t, err)
	assert.Zero(t, f.provider.UpdateCalls)
	assert.Empty(t, f.history.entries["o1"])
}

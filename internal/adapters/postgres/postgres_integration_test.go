package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/kevin07696/subscription-billing/internal/adapters/database"
	"github.com/kevin07696/subscription-billing/internal/adapters/postgres"
	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/jobqueue"
)

// setupTestDB starts a disposable postgres, applies migrations and returns an executor.
// Skipped with -short or when Docker is unavailable.
func setupTestDB(t *testing.T) *postgres.DBExecutor {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker not available, skipping integration tests")
	}
	_ = provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("billing_test"),
		tcpostgres.WithUsername("billing"),
		tcpostgres.WithPassword("billing"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.RunMigrations(ctx, pool))
	return postgres.NewDBExecutor(pool)
}

func seedOrder(t *testing.T, db *postgres.DBExecutor) {
	t.Helper()
	ctx := context.Background()
	_, err := db.Pool().Exec(ctx, `
		INSERT INTO schedules (id, channel_id, name, interval_unit, interval_count, start_moment, auto_renew)
		VALUES ('00000000-0000-0000-0000-000000000001', '1', 'Monthly', 'month', 1, 'start_of_cycle', TRUE);
		INSERT INTO variants (id, channel_id, name, sku, currency, price, schedule_id) VALUES
			('v1', '1', 'Gym membership', 'GYM', 'USD', 9000, '00000000-0000-0000-0000-000000000001'),
			('v2', '1', 'Towel', 'TOWEL', 'USD', 500, NULL);
		INSERT INTO customers (id, email, first_name, last_name) VALUES ('c1', 'jane@example.com', 'Jane', 'Doe');
		INSERT INTO orders (id, code, channel_id, customer_id, state, currency, total_with_tax)
			VALUES ('o1', 'ORDER1', '1', 'c1', 'ArrangingPayment', 'USD', 9500);
		INSERT INTO order_lines (id, order_id, variant_id, quantity, unit_price, start_date) VALUES
			('l1', 'o1', 'v1', 1, 9000, '2024-05-01T00:00:00Z'),
			('l2', 'o1', 'v2', 1, 500, NULL);
		INSERT INTO order_shipping_lines (order_id, method, price) VALUES ('o1', 'pickup', 0);`)
	require.NoError(t, err)
}

func TestOrderRepository_Integration(t *testing.T) {
	db := setupTestDB(t)
	seedOrder(t, db)
	ctx := context.Background()
	repo := postgres.NewOrderRepository(db)

	t.Run("finds order with lines and schedule", func(t *testing.T) {
		order, err := repo.FindOrderByCode(ctx, "1", "ORDER1")
		require.NoError(t, err)
		require.NotNil(t, order.Customer)
		assert.Equal(t, "jane@example.com", order.Customer.Email)
		assert.Equal(t, 1, order.ShippingLineCount)
		require.Len(t, order.Lines, 2)
		assert.True(t, order.Lines[0].IsSubscription())
		assert.Equal(t, domain.IntervalUnitMonth, order.Lines[0].Variant.Schedule.IntervalUnit)
		assert.False(t, order.Lines[1].IsSubscription())
		require.NotNil(t, order.Lines[0].StartDate)
		assert.True(t, order.Lines[0].StartDate.Equal(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)))
		assert.Nil(t, order.Lines[0].Downpayment)
		assert.Nil(t, order.Lines[1].StartDate)
	})

	t.Run("missing order is not found", func(t *testing.T) {
		_, err := repo.FindOrderByCode(ctx, "1", "NOPE")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("append subscription ids is idempotent", func(t *testing.T) {
		require.NoError(t, repo.AppendSubscriptionIDs(ctx, "l1", "sub_1", "sub_2"))
		require.NoError(t, repo.AppendSubscriptionIDs(ctx, "l1", "sub_2"))

		line, err := repo.FindOrderLineByID(ctx, "l1")
		require.NoError(t, err)
		assert.Equal(t, []string{"sub_1", "sub_2"}, line.SubscriptionIDs)
	})

	t.Run("downpayment subscription id is kept apart", func(t *testing.T) {
		require.NoError(t, repo.SetDownpaymentSubscriptionID(ctx, "l1", "sub_3"))
		require.NoError(t, repo.SetDownpaymentSubscriptionID(ctx, "l1", "sub_3"))

		line, err := repo.FindOrderLineByID(ctx, "l1")
		require.NoError(t, err)
		assert.Equal(t, []string{"sub_1", "sub_2", "sub_3"}, line.SubscriptionIDs)
		assert.Equal(t, "sub_3", line.DownpaymentSubscriptionID)
		assert.True(t, line.HasRecurringSubscription())

		err = repo.SetDownpaymentSubscriptionID(ctx, "nope", "sub_4")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("surcharge raises total", func(t *testing.T) {
		require.NoError(t, repo.AddSurcharge(ctx, "o1", domain.Surcharge{Description: "Verification fee", SKU: "VF", Amount: 100}))
		order, err := repo.FindOrderByID(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, int64(9600), order.TotalWithTax)
	})
}

func TestPaymentEventRepository_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := postgres.NewPaymentEventRepository(db)

	event := func() *domain.PaymentEvent {
		return &domain.PaymentEvent{
			ChannelID: "1", EventType: string(domain.EventInvoicePaymentSucceeded), Currency: "usd",
			InvoiceID: "in_1", OrderCode: "ORDER1", SubscriptionID: "sub_1", Charge: 9000,
		}
	}

	created, err := repo.Insert(ctx, event())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Insert(ctx, event())
	require.NoError(t, err)
	assert.False(t, created, "redelivery must not create a second row")

	failed := event()
	failed.EventType = string(domain.EventInvoicePaymentFailed)
	created, err = repo.Insert(ctx, failed)
	require.NoError(t, err)
	assert.True(t, created)

	events, err := repo.List(ctx, domain.PaymentEventFilter{ChannelID: "1", OrderCode: "ORDER1"})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestScheduleRepository_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := postgres.NewScheduleRepository(db)

	saved, err := repo.Upsert(ctx, &domain.Schedule{
		ChannelID: "1", Name: "Yearly paid up front", IntervalUnit: domain.IntervalUnitMonth, IntervalCount: 1,
		DurationUnit: domain.IntervalUnitYear, DurationCount: 1, StartMoment: domain.StartMomentStartOfCycle,
		PaidUpFront: true, AutoRenew: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	saved.Name = "Renamed"
	updated, err := repo.Upsert(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	list, err := repo.List(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, "1", saved.ID))
	assert.ErrorIs(t, repo.Delete(ctx, "1", saved.ID), domain.ErrNotFound)
}

func newJob(queue string, maxRetries int, createdAt time.Time) *jobqueue.Job {
	return &jobqueue.Job{
		ID:             uuid.New(),
		Queue:          queue,
		Kind:           domain.JobKindCancelSubscription,
		Status:         jobqueue.StatusPending,
		Payload:        json.RawMessage(`{"order_line_id":"l1"}`),
		RequestContext: domain.RequestContext{ChannelToken: "default-channel"},
		MaxRetries:     maxRetries,
		RunAt:          createdAt,
		CreatedAt:      createdAt,
	}
}

func TestJobStorage_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	storage := postgres.NewJobStorage(db)
	worker := uuid.New()
	base := time.Now().Add(-time.Minute).UTC()

	first := newJob("billing", 0, base)
	second := newJob("billing", 3, base.Add(time.Second))
	require.NoError(t, storage.CreateJob(ctx, first))
	require.NoError(t, storage.CreateJob(ctx, second))

	claimed, err := storage.ClaimJob(ctx, "billing", worker, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first.ID, claimed.ID)
	assert.Equal(t, "default-channel", claimed.RequestContext.ChannelToken)

	_, err = storage.ClaimJob(ctx, "billing", worker, time.Minute)
	assert.ErrorIs(t, err, jobqueue.ErrNoJob, "one running job per queue")

	require.NoError(t, storage.FailJob(ctx, first.ID, "boom", nil))
	dead, err := storage.GetJob(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, jobqueue.StatusFailed, dead.Status)
	assert.Equal(t, 1, dead.Attempts)

	claimed, err = storage.ClaimJob(ctx, "billing", worker, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, second.ID, claimed.ID)
	require.NoError(t, storage.CompleteJob(ctx, second.ID))

	require.NoError(t, storage.RequeueJob(ctx, first.ID))
	assert.ErrorIs(t, storage.RequeueJob(ctx, second.ID), jobqueue.ErrJobNotFailed)

	requeued, err := storage.GetJob(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, jobqueue.StatusPending, requeued.Status)
	assert.Equal(t, 1, requeued.MaxRetries)

	counts, err := storage.CountByStatus(ctx, "billing")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[jobqueue.StatusPending])
	assert.Equal(t, 1, counts[jobqueue.StatusCompleted])
}

func TestJobStorage_ReleaseExpiredLocks_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	storage := postgres.NewJobStorage(db)

	job := newJob("billing", 1, time.Now().Add(-time.Minute).UTC())
	require.NoError(t, storage.CreateJob(ctx, job))

	_, err := storage.ClaimJob(ctx, "billing", uuid.New(), time.Millisecond)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	released, err := storage.ReleaseExpiredLocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	got, err := storage.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobqueue.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.LastError)
}

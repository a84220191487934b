package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_webhook_events_total",
		Help: "Provider webhook events received",
	}, []string{
		"event_type",
		"outcome", // processed, ignored, rejected, failed
	})

	jobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_jobs_processed_total",
		Help: "Queue job attempts by kind and result",
	}, []string{
		"queue",
		"kind",
		"status", // completed, retrying, failed
	})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_job_duration_seconds",
		Help:    "Time to run a single queue job attempt",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{
		"queue",
		"kind",
	})

	subscriptionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_subscriptions_created_total",
		Help: "Provider subscriptions created for order lines",
	}, []string{
		"channel",
		"kind",   // recurring, downpayment
		"status", // success, invalid, failed
	})

	subscriptionsCanceledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_subscriptions_canceled_total",
		Help: "Provider subscriptions set to cancel at period end",
	}, []string{
		"status", // success, already_canceled, failed
	})

	providerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_provider_call_duration_seconds",
		Help:    "Latency of billing provider API calls",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
	}, []string{
		"operation",
		"status", // ok, error
	})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "billing_provider_circuit_state",
		Help: "Provider circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{
		"channel",
	})

	paymentEventsSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_payment_events_saved_total",
		Help: "Invoice payment events persisted",
	}, []string{
		"event_type",
		"duplicate", // true when the (invoice, type) pair was already stored
	})

	invoiceChargeMinor = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_invoice_charge_minor_total",
		Help: "Sum of charged invoice amounts in minor currency units",
	}, []string{
		"currency",
	})

	stockUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_stock_updates_total",
		Help: "Stock level messages consumed",
	}, []string{
		"status", // applied, invalid, failed
	})
)

// RecordWebhookEvent records the handling outcome of a provider webhook
func RecordWebhookEvent(eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordJob records a single job attempt
func RecordJob(queue, kind, status string, seconds float64) {
	jobsProcessedTotal.WithLabelValues(queue, kind, status).Inc()
	jobDuration.WithLabelValues(queue, kind).Observe(seconds)
}

// RecordSubscriptionCreated records a provider subscription creation attempt
func RecordSubscriptionCreated(channel, kind, status string) {
	subscriptionsCreatedTotal.WithLabelValues(channel, kind, status).Inc()
}

// RecordSubscriptionCanceled records a cancellation attempt
func RecordSubscriptionCanceled(status string) {
	subscriptionsCanceledTotal.WithLabelValues(status).Inc()
}

// RecordProviderCall records the latency of one provider API call
func RecordProviderCall(operation, status string, seconds float64) {
	providerCallDuration.WithLabelValues(operation, status).Observe(seconds)
}

// SetCircuitState publishes the breaker state for a channel
func SetCircuitState(channel string, state int) {
	circuitBreakerState.WithLabelValues(channel).Set(float64(state))
}

// RecordPaymentEvent records a persisted invoice event; charges count once per invoice event
func RecordPaymentEvent(eventType, currency string, charge int64, duplicate bool) {
	if duplicate {
		paymentEventsSavedTotal.WithLabelValues(eventType, "true").Inc()
		return
	}
	paymentEventsSavedTotal.WithLabelValues(eventType, "false").Inc()
	if charge > 0 {
		invoiceChargeMinor.WithLabelValues(currency).Add(float64(charge))
	}
}

// RecordStockUpdate records a consumed stock message
func RecordStockUpdate(status string) {
	stockUpdatesTotal.WithLabelValues(status).Inc()
}

var queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "billing_queue_jobs",
	Help: "Jobs currently stored per queue and status",
}, []string{
	"queue",
	"status",
})

// SetQueueDepth publishes the number of jobs of a queue in one status
func SetQueueDepth(queue, status string, n int) {
	queueDepth.WithLabelValues(queue, status).Set(float64(n))
}

var dbPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "billing_db_pool_connections",
	Help: "Postgres pool connections by state",
}, []string{
	"state", // acquired, idle, max
})

// SetDBPool publishes a pool snapshot
func SetDBPool(acquired, idle, limit int32) {
	dbPoolConnections.WithLabelValues("acquired").Set(float64(acquired))
	dbPoolConnections.WithLabelValues("idle").Set(float64(idle))
	dbPoolConnections.WithLabelValues("max").Set(float64(limit))
}

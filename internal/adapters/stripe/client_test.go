package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/pkg/logging"
	"github.com/kevin07696/subscription-billing/pkg/resilience"
	"github.com/kevin07696/subscription-billing/test/mocks"
)

func setupClientTest(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := ClientConfig{
		BaseURL:  server.URL,
		Timeouts: resilience.TestTimeoutConfig(),
		Breaker: resilience.CircuitBreakerConfig{
			MaxFailures:         2,
			Timeout:             time.Minute,
			MaxRequestsHalfOpen: 1,
		},
	}
	client := NewClient(cfg, "sk_test_123", "default-channel", server.Client(), logging.NewNop())
	client.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	return client
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_CreateSubscription_FormEncoding(t *testing.T) {
	client := setupClientTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/subscriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		assert.Equal(t, "pm_1", r.PostForm.Get("default_payment_method"))
		assert.Equal(t, "true", r.PostForm.Get("off_session"))
		assert.Equal(t, "usd", r.PostForm.Get("items[0][price_data][currency]"))
		assert.Equal(t, "prod_1", r.PostForm.Get("items[0][price_data][product]"))
		assert.Equal(t, "4500", r.PostForm.Get("items[0][price_data][unit_amount]"))
		assert.Equal(t, "month", r.PostForm.Get("items[0][price_data][recurring][interval]"))
		assert.Equal(t, "3", r.PostForm.Get("items[0][price_data][recurring][interval_count]"))
		assert.Equal(t, "ORDER1", r.PostForm.Get("metadata[orderCode]"))
		assert.Equal(t, "default-channel", r.PostForm.Get("metadata[channelToken]"))

		start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, start.Unix(), mustParseInt(t, r.PostForm.Get("trial_end")))
		assert.Empty(t, r.PostForm.Get("cancel_at"))

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":                 "sub_1",
			"customer":           "cus_1",
			"status":             "trialing",
			"current_period_end": start.Unix(),
			"metadata":           map[string]string{"orderCode": "ORDER1"},
		})
	})

	sub, err := client.CreateSubscription(context.Background(), domain.CreateSubscriptionParams{
		StartDate:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Metadata:        map[string]string{domain.MetadataOrderCode: "ORDER1", domain.MetadataChannelToken: "default-channel"},
		CustomerID:      "cus_1",
		ProductID:       "prod_1",
		PaymentMethodID: "pm_1",
		Currency:        "USD",
		Description:     "Gym membership",
		Interval:        domain.IntervalUnitMonth,
		IntervalCount:   3,
		Amount:          4500,
	})
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.ID)
	assert.Equal(t, domain.ProviderSubscriptionTrialing, sub.Status)
	assert.True(t, sub.Status.IsHealthy())
	require.NotNil(t, sub.CurrentPeriodEnd)
}

func TestClient_CreateSubscription_StartTodayHasNoTrial(t *testing.T) {
	client := setupClientTest(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Empty(t, r.PostForm.Get("trial_end"))
		assert.NotEmpty(t, r.PostForm.Get("cancel_at"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": "sub_2", "status": "active"})
	})

	end := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	sub, err := client.CreateSubscription(context.Background(), domain.CreateSubscriptionParams{
		StartDate:     time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
		EndDate:       &end,
		CustomerID:    "cus_1",
		ProductID:     "prod_1",
		Currency:      "eur",
		Interval:      domain.IntervalUnitMonth,
		IntervalCount: 1,
		Amount:        1000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderSubscriptionActive, sub.Status)
}

func TestClient_FindCustomerByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		client := setupClientTest(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/v1/customers", r.URL.Path)
			assert.Equal(t, "jane@example.com", r.URL.Query().Get("email"))
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"data": []map[string]string{{"id": "cus_9", "email": "jane@example.com", "name": "Jane"}},
			})
		})
		cust, err := client.FindCustomerByEmail(context.Background(), "jane@example.com")
		require.NoError(t, err)
		require.NotNil(t, cust)
		assert.Equal(t, "cus_9", cust.ID)
	})

	t.Run("not found", func(t *testing.T) {
		client := setupClientTest(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"data": []interface{}{}})
		})
		cust, err := client.FindCustomerByEmail(context.Background(), "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, cust)
	})
}

func TestClient_UpdateSubscription_AlreadyCanceled(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]interface{}
	}{
		{
			name:   "canceled subscription",
			status: http.StatusBadRequest,
			body: map[string]interface{}{"error": map[string]string{
				"type":    "invalid_request_error",
				"message": "A canceled subscription can only update its cancellation_details and metadata.",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupClientTest(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/subscriptions/sub_1", r.URL.Path)
				writeJSON(w, tt.status, tt.body)
			})
			cancel := true
			_, err := client.UpdateSubscription(context.Background(), "sub_1", domain.UpdateSubscriptionParams{CancelAtPeriodEnd: &cancel})
			assert.ErrorIs(t, err, domain.ErrSubscriptionAlreadyCanceled)
		})
	}
}

func TestClient_UpdateSubscription_UnknownIDIsNotCanceled(t *testing.T) {
	client := setupClientTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": map[string]string{
			"type": "invalid_request_error", "code": "resource_missing", "message": "No such subscription: 'sub_typo'",
		}})
	})
	cancel := true
	_, err := client.UpdateSubscription(context.Background(), "sub_typo", domain.UpdateSubscriptionParams{CancelAtPeriodEnd: &cancel})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	assert.NotErrorIs(t, err, domain.ErrSubscriptionAlreadyCanceled)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeProviderRejected))
}

func TestClient_UpdateSubscription_CancelAtPeriodEnd(t *testing.T) {
	client := setupClientTest(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "true", r.PostForm.Get("cancel_at_period_end"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": "sub_1", "status": "active", "cancel_at_period_end": true})
	})
	cancel := true
	sub, err := client.UpdateSubscription(context.Background(), "sub_1", domain.UpdateSubscriptionParams{CancelAtPeriodEnd: &cancel})
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode domain.ErrorCode
	}{
		{"card declined", http.StatusPaymentRequired, domain.ErrorCodeProviderRejected},
		{"bad request", http.StatusBadRequest, domain.ErrorCodeProviderRejected},
		{"rate limited", http.StatusTooManyRequests, domain.ErrorCodeProviderError},
		{"server error", http.StatusInternalServerError, domain.ErrorCodeProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupClientTest(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]interface{}{"error": map[string]string{"message": "nope"}})
			})
			_, err := client.CreateProduct(context.Background(), "Gym")
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domain.GetErrorCode(err))
			assert.True(t, domain.IsProviderError(err))
		})
	}
}

func TestClient_CircuitOpensOnRetriableFailures(t *testing.T) {
	calls := 0
	client := setupClientTest(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{})
	})

	for i := 0; i < 2; i++ {
		_, err := client.GetSubscription(context.Background(), "sub_1")
		require.Error(t, err)
	}

	_, err := client.GetSubscription(context.Background(), "sub_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
	assert.Equal(t, 2, calls, "open circuit must not reach the provider")
}

func TestClient_RejectionsDoNotOpenCircuit(t *testing.T) {
	calls := 0
	client := setupClientTest(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{})
	})

	for i := 0; i < 5; i++ {
		_, _ = client.CreatePaymentIntent(context.Background(), domain.PaymentIntentParams{Amount: 100, Currency: "usd"})
	}
	assert.Equal(t, 5, calls)
	assert.Equal(t, resilience.StateClosed, client.breaker.State())
}

func TestClient_CreatePaymentIntent(t *testing.T) {
	client := setupClientTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "off_session", r.PostForm.Get("setup_future_usage"))
		assert.Equal(t, "100", r.PostForm.Get("amount"))
		assert.Equal(t, "100", r.PostForm.Get("metadata[amount]"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": "pi_1", "client_secret": "pi_1_secret", "status": "requires_payment_method", "currency": "usd", "amount": 100,
		})
	})

	pi, err := client.CreatePaymentIntent(context.Background(), domain.PaymentIntentParams{
		Metadata:         map[string]string{domain.MetadataAmount: "100"},
		CustomerID:       "cus_1",
		Currency:         "USD",
		SetupFutureUsage: domain.SetupFutureUsageOffSession,
		Amount:           100,
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", pi.ClientSecret)
}

func mustParseInt(t *testing.T, s string) int64 {
	t.Helper()
	var v int64
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestClient_TransportFailureIsUnavailable(t *testing.T) {
	httpClient := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	cfg := DefaultClientConfig()
	cfg.Timeouts = resilience.TestTimeoutConfig()
	client := NewClient(cfg, "sk_test_123", "default-channel", httpClient, logging.NewNop())

	_, err := client.GetSubscription(context.Background(), "sub_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
	require.Len(t, httpClient.Calls, 1)
	assert.Equal(t, "Bearer sk_test_123", httpClient.Calls[0].Header.Get("Authorization"))
	assert.Equal(t, DefaultAPIVersion, httpClient.Calls[0].Header.Get("Stripe-Version"))
}

func TestClient_CancelAtPeriodEndBody(t *testing.T) {
	httpClient := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return mocks.JSONResponse(http.StatusOK, `{"id":"sub_1","status":"active","customer":"cus_1","cancel_at_period_end":true}`), nil
	})
	cfg := DefaultClientConfig()
	cfg.Timeouts = resilience.TestTimeoutConfig()
	client := NewClient(cfg, "sk_test_123", "default-channel", httpClient, logging.NewNop())

	cancel := true
	sub, err := client.UpdateSubscription(context.Background(), "sub_1", domain.UpdateSubscriptionParams{CancelAtPeriodEnd: &cancel})

	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
	require.Len(t, httpClient.Bodies, 1)
	assert.Equal(t, "cancel_at_period_end=true", httpClient.Bodies[0])
	assert.Equal(t, "/v1/subscriptions/sub_1", httpClient.Calls[0].URL.Path)
}

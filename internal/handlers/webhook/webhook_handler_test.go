package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/handlers/response"
	"github.com/kevin07696/subscription-billing/internal/services/subscription"
)

// MockWebhookService is a mock implementation of WebhookService
type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) (subscription.WebhookResult, error) {
	args := m.Called(ctx, rawBody, signatureHeader)
	return args.Get(0).(subscription.WebhookResult), args.Error(1)
}

func post(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/stripe-subscriptions/webhook", strings.NewReader(body))
	req.Header.Set(SignatureHeader, "t=1,v1=abc")
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	return rec
}

func TestHandleWebhook_Responses(t *testing.T) {
	tests := []struct {
		name   string
		result subscription.WebhookResult
		err    error
		status int
	}{
		{
			name:   "processed",
			result: subscription.WebhookResult{EventID: "evt_1", Outcome: subscription.WebhookProcessed, Acknowledged: true},
			status: http.StatusOK,
		},
		{
			name:   "missing metadata is acknowledged",
			result: subscription.WebhookResult{EventID: "evt_1", Outcome: subscription.WebhookRejected, Acknowledged: true},
			err:    domain.ErrMissingMetadata,
			status: http.StatusOK,
		},
		{
			name:   "order not found",
			result: subscription.WebhookResult{EventID: "evt_1", Outcome: subscription.WebhookFailed},
			err:    domain.WrapError(domain.ErrorCodeValidationOrderNotFound, "order not found", domain.ErrNotFound),
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "invalid signature",
			result: subscription.WebhookResult{EventID: "evt_1", Outcome: subscription.WebhookRejected},
			err:    domain.ErrSignatureInvalid,
			status: http.StatusBadRequest,
		},
		{
			name:   "provider failure",
			result: subscription.WebhookResult{EventID: "evt_1", Outcome: subscription.WebhookFailed},
			err:    domain.ErrProviderUnavailable,
			status: http.StatusInternalServerError,
		},
		{
			name:   "persistence failure",
			result: subscription.WebhookResult{EventID: "evt_1", Outcome: subscription.WebhookFailed},
			err:    domain.NewDomainError(domain.ErrorCodePersistenceFailed, "db down"),
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockWebhookService)
			svc.On("HandleWebhook", mock.Anything, []byte(`{"id":"evt_1"}`), "t=1,v1=abc").Return(tt.result, tt.err)
			h := NewHandler(svc, zap.NewNop())

			rec := post(h, `{"id":"evt_1"}`)

			assert.Equal(t, tt.status, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandleWebhook_AcknowledgedBody(t *testing.T) {
	svc := new(MockWebhookService)
	svc.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).Return(subscription.WebhookResult{
		EventID:      "evt_1",
		EventType:    domain.EventInvoicePaymentSucceeded,
		OrderCode:    "ORDER1",
		Outcome:      subscription.WebhookProcessed,
		Acknowledged: true,
	}, nil)

	rec := post(NewHandler(svc, zap.NewNop()), `{}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var got subscription.WebhookResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ORDER1", got.OrderCode)
	assert.Equal(t, subscription.WebhookProcessed, got.Outcome)
}

func TestHandleWebhook_InternalErrorsAreMasked(t *testing.T) {
	svc := new(MockWebhookService)
	svc.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).
		Return(subscription.WebhookResult{Outcome: subscription.WebhookFailed}, errors.New("password=hunter2"))

	rec := post(NewHandler(svc, zap.NewNop()), `{}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body.Error, "hunter2")
}

func TestHandleWebhook_BodyTooLarge(t *testing.T) {
	svc := new(MockWebhookService)

	rec := post(NewHandler(svc, zap.NewNop()), strings.Repeat("x", maxBodyBytes+1))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	svc.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)
}

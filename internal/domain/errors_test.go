package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Taxonomy(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		configuration bool
		validation    bool
		provider      bool
		persistence   bool
	}{
		{name: "invalid_schedule", err: ErrInvalidSchedule, configuration: true},
		{name: "missing_payment_method", err: ErrPaymentMethodMissing, configuration: true},
		{name: "missing_metadata", err: ErrMissingMetadata, validation: true},
		{name: "order_not_found", err: ErrOrderNotFound, validation: true},
		{name: "missing_customer", err: ErrMissingCustomer, validation: true},
		{name: "provider_unavailable", err: ErrProviderUnavailable, provider: true},
		{name: "not_found", err: ErrNotFound, persistence: true},
		{name: "plain_error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.configuration, IsConfigurationError(tt.err))
			assert.Equal(t, tt.validation, IsValidationError(tt.err))
			assert.Equal(t, tt.provider, IsProviderError(tt.err))
			assert.Equal(t, tt.persistence, IsPersistenceError(tt.err))
		})
	}
}

func TestDomainError_WrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError(ErrorCodeProviderError, "create subscription", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorCodeProviderError, GetErrorCode(err))
	assert.Contains(t, err.Error(), "PROVIDER_ERROR")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("webhook: %w", WrapError(ErrorCodeValidationOrderNotFound, "order ABC not found", nil))

	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.NotErrorIs(t, err, ErrMissingCustomer)
	assert.True(t, IsDomainError(err, ErrorCodeValidationOrderNotFound))
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorCodeValidationFailed, "bad input").WithDetail("field", "email")
	assert.Equal(t, "email", err.Details["field"])

	var empty DomainError
	empty.WithDetail("k", 1)
	assert.Equal(t, 1, empty.Details["k"])
}

func TestGetErrorCode_NonDomainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(nil))
}

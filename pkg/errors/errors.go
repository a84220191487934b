package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of a billing provider error
type ErrorCategory string

const (
	CategoryCardError      ErrorCategory = "card_error"
	CategoryInvalidRequest ErrorCategory = "invalid_request"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryRateLimited    ErrorCategory = "rate_limited"
	CategoryAPIError       ErrorCategory = "api_error"
	CategoryNetworkError   ErrorCategory = "network_error"
	CategoryNotFound       ErrorCategory = "not_found"
)

// ProviderError is a failed call to the billing provider with enough context to decide on a retry
type ProviderError struct {
	Details         map[string]interface{}
	Code            string
	Message         string
	ProviderMessage string
	Category        ErrorCategory
	StatusCode      int
	IsRetriable     bool
}

func (e *ProviderError) Error() string {
	if e.ProviderMessage != "" {
		return fmt.Sprintf("%s: %s (provider: %s)", e.Code, e.Message, e.ProviderMessage)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewProviderError creates a new provider error
func NewProviderError(code, message string, category ErrorCategory, retriable bool) *ProviderError {
	return &ProviderError{
		Code:        code,
		Message:     message,
		Category:    category,
		IsRetriable: retriable,
		Details:     make(map[string]interface{}),
	}
}

// FromStatus classifies an HTTP response from the provider. 429 and 5xx are retriable.
func FromStatus(status int, code, providerMessage string) *ProviderError {
	var category ErrorCategory
	retriable := false

	switch {
	case status == 402:
		category = CategoryCardError
	case status == 401 || status == 403:
		category = CategoryAuthentication
	case status == 404:
		category = CategoryNotFound
	case status == 429:
		category = CategoryRateLimited
		retriable = true
	case status >= 500:
		category = CategoryAPIError
		retriable = true
	default:
		category = CategoryInvalidRequest
	}

	if code == "" {
		code = string(category)
	}

	return &ProviderError{
		Code:            code,
		Message:         fmt.Sprintf("provider returned HTTP %d", status),
		ProviderMessage: providerMessage,
		Category:        category,
		StatusCode:      status,
		IsRetriable:     retriable,
		Details:         make(map[string]interface{}),
	}
}

// IsRetriable reports whether err wraps a retriable ProviderError
func IsRetriable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetriable
	}
	return false
}

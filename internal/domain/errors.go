package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Configuration Errors (CONFIGURATION_*)
	ErrorCodeConfigInvalidSchedule     ErrorCode = "CONFIGURATION_INVALID_SCHEDULE"
	ErrorCodeConfigPaymentMethod       ErrorCode = "CONFIGURATION_PAYMENT_METHOD"
	ErrorCodeConfigChannelNotFound     ErrorCode = "CONFIGURATION_CHANNEL_NOT_FOUND"
	ErrorCodeConfigMissingCredentials  ErrorCode = "CONFIGURATION_MISSING_CREDENTIALS"
	ErrorCodeConfigVariantNotScheduled ErrorCode = "CONFIGURATION_VARIANT_NOT_SCHEDULED"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed          ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationMissingField    ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrorCodeValidationMissingMetadata ErrorCode = "VALIDATION_MISSING_METADATA"
	ErrorCodeValidationOrderNotFound   ErrorCode = "VALIDATION_ORDER_NOT_FOUND"
	ErrorCodeValidationLineNotFound    ErrorCode = "VALIDATION_ORDER_LINE_NOT_FOUND"
	ErrorCodeValidationVariantNotFound ErrorCode = "VALIDATION_VARIANT_NOT_FOUND"
	ErrorCodeValidationMissingCustomer ErrorCode = "VALIDATION_MISSING_CUSTOMER"
	ErrorCodeValidationMalformedEvent  ErrorCode = "VALIDATION_MALFORMED_EVENT"

	// Webhook signature
	ErrorCodeSignatureInvalid ErrorCode = "SIGNATURE_INVALID"

	// External provider Errors (PROVIDER_*)
	ErrorCodeProviderError       ErrorCode = "PROVIDER_ERROR"
	ErrorCodeProviderTimeout     ErrorCode = "PROVIDER_TIMEOUT"
	ErrorCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrorCodeProviderRejected    ErrorCode = "PROVIDER_REJECTED"

	// Persistence Errors (PERSISTENCE_*)
	ErrorCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ErrorCodeNotFound          ErrorCode = "PERSISTENCE_NOT_FOUND"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code so sentinel values work with errors.Is
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsConfigurationError reports fatal misconfiguration: invalid schedules, missing payment method setup.
func IsConfigurationError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeConfigInvalidSchedule,
		ErrorCodeConfigPaymentMethod,
		ErrorCodeConfigChannelNotFound,
		ErrorCodeConfigMissingCredentials,
		ErrorCodeConfigVariantNotScheduled:
		return true
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeValidationFailed,
		ErrorCodeValidationMissingField,
		ErrorCodeValidationMissingMetadata,
		ErrorCodeValidationOrderNotFound,
		ErrorCodeValidationLineNotFound,
		ErrorCodeValidationVariantNotFound,
		ErrorCodeValidationMissingCustomer,
		ErrorCodeValidationMalformedEvent:
		return true
	}
	return false
}

// IsProviderError checks if an error came from the external billing provider
func IsProviderError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeProviderError,
		ErrorCodeProviderTimeout,
		ErrorCodeProviderUnavailable,
		ErrorCodeProviderRejected:
		return true
	}
	return false
}

// IsPersistenceError checks if an error is a storage failure
func IsPersistenceError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodePersistenceFailed || code == ErrorCodeNotFound
}

// IsSignatureError checks if an error is a webhook signature failure
func IsSignatureError(err error) bool {
	return IsDomainError(err, ErrorCodeSignatureInvalid)
}

// Sentinel values for errors.Is comparisons. Never mutate these; use NewDomainError/WrapError
// to attach details.
var (
	ErrInvalidSchedule      = NewDomainError(ErrorCodeConfigInvalidSchedule, "invalid schedule")
	ErrPaymentMethodMissing = NewDomainError(ErrorCodeConfigPaymentMethod, "payment method is not configured")
	ErrChannelNotFound      = NewDomainError(ErrorCodeConfigChannelNotFound, "channel not found")

	ErrMissingMetadata = NewDomainError(ErrorCodeValidationMissingMetadata, "event metadata is missing orderCode or channelToken")
	ErrOrderNotFound   = NewDomainError(ErrorCodeValidationOrderNotFound, "order not found")
	ErrLineNotFound    = NewDomainError(ErrorCodeValidationLineNotFound, "order line not found")
	ErrVariantNotFound = NewDomainError(ErrorCodeValidationVariantNotFound, "variant not found")
	ErrMissingCustomer = NewDomainError(ErrorCodeValidationMissingCustomer, "customer is missing")

	ErrSignatureInvalid = NewDomainError(ErrorCodeSignatureInvalid, "webhook signature is invalid")

	ErrProviderUnavailable = NewDomainError(ErrorCodeProviderUnavailable, "billing provider unavailable")

	ErrNotFound = NewDomainError(ErrorCodeNotFound, "record not found")
)

// Plain sentinels used below the domain error layer
var (
	ErrSubscriptionAlreadyCanceled = errors.New("subscription is already canceled")
	ErrSubscriptionNotFound        = errors.New("subscription not found at provider")
	ErrUnsupportedEventType        = errors.New("unsupported event type")
)

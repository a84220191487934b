// Package response writes JSON bodies and maps domain errors to HTTP status codes
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kevin07696/subscription-billing/internal/domain"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Success bool                   `json:"success"`
	Code    string                 `json:"code,omitempty"`
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Message writes an error body without a domain error behind it
func Message(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	JSON(w, logger, status, ErrorBody{Error: message})
}

// Error writes err with the status StatusCode picks for it
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	WithStatus(w, logger, StatusCode(err), err)
}

// WithStatus writes err with an explicit status. Internal failures never leak their message.
func WithStatus(w http.ResponseWriter, logger *zap.Logger, status int, err error) {
	body := ErrorBody{Error: err.Error(), Code: string(domain.GetErrorCode(err))}
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) && status < http.StatusInternalServerError {
		body.Details = domainErr.Details
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
		body.Error = http.StatusText(status)
	}
	JSON(w, logger, status, body)
}

// StatusCode maps the error taxonomy to HTTP
func StatusCode(err error) int {
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeNotFound,
		domain.ErrorCodeValidationOrderNotFound,
		domain.ErrorCodeValidationLineNotFound,
		domain.ErrorCodeValidationVariantNotFound,
		domain.ErrorCodeConfigChannelNotFound:
		return http.StatusNotFound
	case domain.ErrorCodeSignatureInvalid:
		return http.StatusBadRequest
	case domain.ErrorCodeProviderUnavailable, domain.ErrorCodeProviderTimeout:
		return http.StatusServiceUnavailable
	case domain.ErrorCodeProviderError, domain.ErrorCodeProviderRejected:
		return http.StatusBadGateway
	}
	if domain.IsValidationError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ChannelTokenHeader selects the channel a storefront or admin request runs in
const ChannelTokenHeader = "X-Channel-Token"

// ChannelToken reads the channel header and answers 400 when it is missing
func ChannelToken(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	token := r.Header.Get(ChannelTokenHeader)
	if token == "" {
		Message(w, logger, http.StatusBadRequest, ChannelTokenHeader+" header is required")
		return "", false
	}
	return token, true
}

// Package errors defines the service error taxonomy surfaced over HTTP.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes returned in the "code" member of error bodies.
const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeStore        = "STORE_ERROR"
	CodeUpload       = "UPLOAD_FAILED"
	CodeAuthFailed   = "AUTH_FAILED"
	CodeInvalidState = "INVALID_STATE"
	CodeRateLimited  = "RATE_LIMITED"
	CodeUnavailable  = "UNAVAILABLE"
	CodeInternal     = "INTERNAL"
)

// ServiceError is an error that knows how it should be reported to a client.
type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a detail entry and returns the same error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(status int, code, msg string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: msg, HTTPStatus: status, Err: err}
}

// Validation reports per-field messages. The map is keyed by field name.
func Validation(fields map[string]string) *ServiceError {
	return newError(http.StatusUnprocessableEntity, CodeValidation, "入力内容に誤りがあります", nil).
		WithDetails("fields", fields)
}

// NotFound reports a missing record.
func NotFound(kind string, id interface{}) *ServiceError {
	return newError(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s %v not found", kind, id), nil)
}

// Conflict reports a uniqueness or state conflict with a user-facing message.
func Conflict(msg string, err error) *ServiceError {
	return newError(http.StatusConflict, CodeConflict, msg, err)
}

// Unauthorized reports a missing or unusable session.
func Unauthorized(msg string) *ServiceError {
	return newError(http.StatusUnauthorized, CodeUnauthorized, msg, nil)
}

// Forbidden reports an authenticated caller lacking rights.
func Forbidden(msg string) *ServiceError {
	return newError(http.StatusForbidden, CodeForbidden, msg, nil)
}

// Store wraps a record store failure. The raw store message is shown to the user.
func Store(err error) *ServiceError {
	msg := "データベースエラー"
	if err != nil {
		msg = err.Error()
	}
	return newError(http.StatusBadGateway, CodeStore, msg, err)
}

// Upload wraps an object storage failure.
func Upload(err error) *ServiceError {
	return newError(http.StatusBadGateway, CodeUpload, "ファイルのアップロードに失敗しました", err)
}

// AuthFailed reports a sign-in failure with the provider's message appended.
func AuthFailed(providerMsg string, err error) *ServiceError {
	return newError(http.StatusUnauthorized, CodeAuthFailed, "ログインに失敗しました: "+providerMsg, err)
}

// InvalidState reports an operation not allowed in the current workflow state.
func InvalidState(msg string) *ServiceError {
	return newError(http.StatusConflict, CodeInvalidState, msg, nil)
}

// RateLimitExceeded reports a throttled caller.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// Unavailable reports a feature that cannot run with the current configuration.
func Unavailable(msg string, err error) *ServiceError {
	return newError(http.StatusServiceUnavailable, CodeUnavailable, msg, err)
}

// Internal wraps an unexpected failure.
func Internal(msg string, err error) *ServiceError {
	return newError(http.StatusInternalServerError, CodeInternal, msg, err)
}

// GetServiceError extracts a ServiceError from err's chain.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if stderrors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	if svcErr := GetServiceError(err); svcErr != nil {
		return svcErr.Code == code
	}
	return false
}

// FieldErrors returns the per-field validation messages carried by err.
func FieldErrors(err error) map[string]string {
	svcErr := GetServiceError(err)
	if svcErr == nil || svcErr.Code != CodeValidation {
		return nil
	}
	fields, _ := svcErr.Details["fields"].(map[string]string)
	return fields
}

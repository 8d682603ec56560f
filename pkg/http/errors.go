package http

import (
	"fmt"
	"net/http"
)

// Error codes carried in AppError.Code.
const (
	CodeBadRequest  = "ERR_BAD_REQUEST"
	CodeRateLimited = "ERR_RATE_LIMITED"
	CodeInternal    = "ERR_INTERNAL"
	CodeUpstream    = "ERR_UPSTREAM"
)

// AppError is a client-visible failure with its HTTP status. Err is logged,
// never serialized.
type AppError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithError attaches the underlying cause.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// BadRequestError rejects one query or body field.
func BadRequestError(field, message string) *AppError {
	return &AppError{Code: CodeBadRequest, Field: field, Message: message, Status: http.StatusBadRequest}
}

func BadRequestErrorf(field, format string, a ...interface{}) *AppError {
	return BadRequestError(field, fmt.Sprintf(format, a...))
}

// RateLimitedError is returned when a client exhausted its request budget.
func RateLimitedError() *AppError {
	return &AppError{Code: CodeRateLimited, Message: "rate limit exceeded", Status: http.StatusTooManyRequests}
}

// InternalError hides the cause from the client; attach it with WithError.
func InternalError(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Status: http.StatusInternalServerError}
}

// StatusError describes a non-2xx answer received by Client. body is truncated.
func StatusError(status int, body []byte) *AppError {
	const maxBody = 512
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	return &AppError{
		Code:    CodeUpstream,
		Message: fmt.Sprintf("unexpected status %d: %s", status, body),
		Status:  status,
	}
}

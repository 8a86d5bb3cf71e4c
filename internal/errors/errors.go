// Package errors defines the coded application error shared by the pipelines
// and the HTTP layer, plus the JSON envelopes the API responds with.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

type ErrorCode string

const (
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeValidation     ErrorCode = "VALIDATION_ERROR"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeBadRequest     ErrorCode = "BAD_REQUEST"
	CodeRateLimit      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"

	// Pipeline failures.
	CodeMissingData     ErrorCode = "MISSING_DATA"
	CodeJoinMismatch    ErrorCode = "JOIN_MISMATCH"
	CodeDegenerateInput ErrorCode = "DEGENERATE_INPUT"
	CodeModelFit        ErrorCode = "MODEL_FIT"
)

var statusByCode = map[ErrorCode]int{
	CodeValidation:      http.StatusBadRequest,
	CodeBadRequest:      http.StatusBadRequest,
	CodeJoinMismatch:    http.StatusBadRequest,
	CodeNotFound:        http.StatusNotFound,
	CodeMissingData:     http.StatusNotFound,
	CodeDegenerateInput: http.StatusUnprocessableEntity,
	CodeModelFit:        http.StatusUnprocessableEntity,
	CodeRateLimit:       http.StatusTooManyRequests,
	CodeServiceUnavail:  http.StatusServiceUnavailable,
}

// StatusFor maps a code to its HTTP status. Unknown codes are 500.
func StatusFor(code ErrorCode) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// AppError carries a machine readable code alongside the message shown to
// API clients. Cause is logged but never serialized.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithDetails attaches a formatted detail string and returns e.
func (e *AppError) WithDetails(format string, args ...any) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

func New(code ErrorCode, message string) *AppError {
	return Wrap(nil, code, message)
}

func Wrap(cause error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: StatusFor(code),
		Cause:      cause,
		Timestamp:  time.Now().UTC(),
	}
}

func Internal(message string) *AppError   { return New(CodeInternal, message) }
func Validation(message string) *AppError { return New(CodeValidation, message) }
func RateLimit(message string) *AppError  { return New(CodeRateLimit, message) }
func NotFound(message string) *AppError   { return New(CodeNotFound, message) }

func BadRequestWrap(cause error, message string) *AppError {
	return Wrap(cause, CodeBadRequest, message)
}

func ServiceUnavailable(message string) *AppError {
	return New(CodeServiceUnavail, message)
}

// MissingData reports an empty input table or a missing required column.
func MissingData(message string) *AppError { return New(CodeMissingData, message) }

// JoinMismatch reports foreign keys absent from a reference table.
func JoinMismatch(message string) *AppError { return New(CodeJoinMismatch, message) }

// DegenerateInput reports input a model cannot use, such as a zero base price.
func DegenerateInput(message string) *AppError { return New(CodeDegenerateInput, message) }

func ModelFit(message string) *AppError { return New(CodeModelFit, message) }

func ModelFitWrap(cause error, message string) *AppError {
	return Wrap(cause, CodeModelFit, message)
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

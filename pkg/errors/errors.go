// Package errors provides structured error types for the report engine.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a rejection kind so callers can render an
// actionable message instead of a generic failure.
type ErrorCode string

// Error codes surfaced by the risk computation and versioning engine.
const (
	CodeUnknown              ErrorCode = "UNKNOWN"
	CodeValidation           ErrorCode = "VALIDATION_ERROR"
	CodeScoreOutOfRange      ErrorCode = "SCORE_OUT_OF_RANGE"
	CodeFactorOutOfRange     ErrorCode = "FACTOR_OUT_OF_RANGE"
	CodeIncompleteData       ErrorCode = "INCOMPLETE_DATA"
	CodeInvalidTransition    ErrorCode = "INVALID_TRANSITION"
	CodeGenerationInProgress ErrorCode = "GENERATION_IN_PROGRESS"
	CodeGenerationTimeout    ErrorCode = "GENERATION_TIMEOUT"
	CodeReportNotFound       ErrorCode = "REPORT_NOT_FOUND"
	CodeVersionNotFound      ErrorCode = "VERSION_NOT_FOUND"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeConflict             ErrorCode = "CONFLICT"
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
)

// AppError is a structured application error.
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail key-value pair to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON returns the JSON representation of the error.
func (e *AppError) ToJSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

// New creates a new AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// Constructor helpers for the engine's error taxonomy.

// ScoreOutOfRange reports an impact-dimension score outside [0,4].
func ScoreOutOfRange(dimension string, value int) *AppError {
	return Newf(CodeScoreOutOfRange, "impact score %d for dimension %q is outside [0,4]", value, dimension).
		WithDetail("dimension", dimension).
		WithDetail("value", value)
}

// FactorOutOfRange reports an attack-potential factor outside its allowed range.
func FactorOutOfRange(factor string, value, max int) *AppError {
	return Newf(CodeFactorOutOfRange, "attack potential factor %q is %d, allowed range is [0,%d]", factor, value, max).
		WithDetail("factor", factor).
		WithDetail("value", value).
		WithDetail("max", max)
}

// IncompleteData reports a dangling entity reference found during snapshot build.
func IncompleteData(entityType, entityID, refType, refID string) *AppError {
	return Newf(CodeIncompleteData, "%s %s references missing %s %s", entityType, entityID, refType, refID).
		WithDetail("entity_type", entityType).
		WithDetail("entity_id", entityID).
		WithDetail("missing_type", refType).
		WithDetail("missing_id", refID)
}

// InvalidTransition reports an illegal version state-machine move.
func InvalidTransition(from, to string) *AppError {
	return Newf(CodeInvalidTransition, "cannot transition version from %q to %q", from, to).
		WithDetail("from", from).
		WithDetail("to", to)
}

// GenerationInProgress reports a concurrent generation attempt for a report.
func GenerationInProgress(reportID string) *AppError {
	return Newf(CodeGenerationInProgress, "a generation is already in progress for report %s", reportID).
		WithDetail("report_id", reportID)
}

// ReportNotFound reports a missing report.
func ReportNotFound(reportID string) *AppError {
	return Newf(CodeReportNotFound, "report %s not found", reportID).
		WithDetail("report_id", reportID)
}

// VersionNotFound reports a missing report version.
func VersionNotFound(reportID, version string) *AppError {
	return Newf(CodeVersionNotFound, "version %s of report %s not found", version, reportID).
		WithDetail("report_id", reportID).
		WithDetail("version", version)
}

// Validation creates a validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

// Internal creates an internal error.
func Internal(message string) *AppError {
	return New(CodeInternalError, message)
}

// CodeOf extracts the ErrorCode from an error chain, or CodeUnknown.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// HTTPStatusOf returns the HTTP status for an error chain.
func HTTPStatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeValidation, CodeScoreOutOfRange, CodeFactorOutOfRange:
		return http.StatusBadRequest
	case CodeIncompleteData:
		return http.StatusUnprocessableEntity
	case CodeInvalidTransition, CodeConflict, CodeGenerationInProgress:
		return http.StatusConflict
	case CodeGenerationTimeout:
		return http.StatusGatewayTimeout
	case CodeNotFound, CodeReportNotFound, CodeVersionNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a failure kind across the service.
type ErrorCode string

const (
	// generic
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeTimeout        ErrorCode = "TIMEOUT"

	// validation
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeEmptyInput       ErrorCode = "EMPTY_INPUT"

	// documents
	ErrCodeUnreachableResource ErrorCode = "UNREACHABLE_RESOURCE"
	ErrCodeUnsupportedFormat   ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeCorruptDocument     ErrorCode = "CORRUPT_DOCUMENT"

	// vectors
	ErrCodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"
	ErrCodeDegenerateVector  ErrorCode = "DEGENERATE_VECTOR"

	// storage
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeNoEmbeddings     ErrorCode = "NO_EMBEDDINGS"

	// external services
	ErrCodeEmbeddingUnavailable  ErrorCode = "EMBEDDING_SERVICE_UNAVAILABLE"
	ErrCodeGenerativeUnavailable ErrorCode = "GENERATIVE_SERVICE_UNAVAILABLE"
)

// ErrorType groups codes by who is at fault.
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError is the tagged failure returned by every component.
type AppError struct {
	Code      ErrorCode   `json:"code"`
	Message   string      `json:"message"`
	Type      ErrorType   `json:"type"`
	HTTPCode  int         `json:"-"`
	Details   interface{} `json:"details,omitempty"`
	Cause     error       `json:"-"`
	RequestID string      `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code, so callers can write
// errors.Is(err, ErrNotFound).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails attaches response details.
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause attaches the underlying error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithRequestID attaches the request id.
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// Sentinels for errors.Is. Never return these directly; use the constructors.
var (
	ErrInvalidInput          = &AppError{Code: ErrCodeInvalidInput}
	ErrEmptyInput            = &AppError{Code: ErrCodeEmptyInput}
	ErrUnreachableResource   = &AppError{Code: ErrCodeUnreachableResource}
	ErrUnsupportedFormat     = &AppError{Code: ErrCodeUnsupportedFormat}
	ErrCorruptDocument       = &AppError{Code: ErrCodeCorruptDocument}
	ErrEmbeddingUnavailable  = &AppError{Code: ErrCodeEmbeddingUnavailable}
	ErrDimensionMismatch     = &AppError{Code: ErrCodeDimensionMismatch}
	ErrDegenerateVector      = &AppError{Code: ErrCodeDegenerateVector}
	ErrStoreUnavailable      = &AppError{Code: ErrCodeStoreUnavailable}
	ErrNotFound              = &AppError{Code: ErrCodeResourceNotFound}
	ErrNoEmbeddings          = &AppError{Code: ErrCodeNoEmbeddings}
	ErrGenerativeUnavailable = &AppError{Code: ErrCodeGenerativeUnavailable}
)

// NewSystemError creates an internal error.
func NewSystemError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: getHTTPCodeForError(code),
	}
}

// NewBusinessError creates an expected-outcome error such as a missing record.
func NewBusinessError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeBusiness,
		HTTPCode: getHTTPCodeForError(code),
	}
}

// NewExternalError creates an error caused by a collaborator outside the process.
func NewExternalError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeExternal,
		HTTPCode: getHTTPCodeForError(code),
	}
}

// NewValidationError creates a request validation error.
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewInvalidInputError creates a single-field validation error.
func NewInvalidInputError(field, reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("Invalid input for field '%s': %s", field, reason),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

func NewEmptyInputError(field string) *AppError {
	return &AppError{
		Code:     ErrCodeEmptyInput,
		Message:  fmt.Sprintf("%s must not be empty", field),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

func NewUnreachableResourceError(locator string) *AppError {
	return NewExternalError(ErrCodeUnreachableResource, fmt.Sprintf("document %s could not be fetched", locator))
}

func NewUnsupportedFormatError(format string) *AppError {
	return NewBusinessError(ErrCodeUnsupportedFormat, fmt.Sprintf("unsupported document format %q", format))
}

func NewCorruptDocumentError(format string) *AppError {
	return NewBusinessError(ErrCodeCorruptDocument, fmt.Sprintf("%s document could not be parsed", format))
}

func NewEmbeddingUnavailableError() *AppError {
	return NewExternalError(ErrCodeEmbeddingUnavailable, "Embedding service temporarily unavailable")
}

func NewGenerativeUnavailableError() *AppError {
	return NewExternalError(ErrCodeGenerativeUnavailable, "Generative service temporarily unavailable")
}

func NewDimensionMismatchError(a, b int) *AppError {
	return NewSystemError(ErrCodeDimensionMismatch, fmt.Sprintf("vector dimensions differ: %d != %d", a, b))
}

func NewDegenerateVectorError() *AppError {
	return NewBusinessError(ErrCodeDegenerateVector, "vector has zero magnitude")
}

func NewStoreUnavailableError() *AppError {
	return NewSystemError(ErrCodeStoreUnavailable, "Embedding store temporarily unavailable")
}

// NewNotFoundError creates a missing-resource error.
func NewNotFoundError(resource string) *AppError {
	return NewBusinessError(ErrCodeResourceNotFound, fmt.Sprintf("%s not found", resource))
}

func NewNoEmbeddingsError(scope string) *AppError {
	return NewBusinessError(ErrCodeNoEmbeddings, fmt.Sprintf("no embeddings available for %s", scope))
}

// getHTTPCodeForError maps a code to its response status.
func getHTTPCodeForError(code ErrorCode) int {
	switch code {
	case ErrCodeResourceNotFound, ErrCodeNotFound, ErrCodeNoEmbeddings:
		return http.StatusNotFound
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodeEmptyInput, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case ErrCodeCorruptDocument, ErrCodeDegenerateVector:
		return http.StatusUnprocessableEntity
	case ErrCodeUnreachableResource:
		return http.StatusBadGateway
	case ErrCodeEmbeddingUnavailable, ErrCodeGenerativeUnavailable, ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsAppError reports whether err is or wraps an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError unwraps an AppError, wrapping anything else as a system error.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

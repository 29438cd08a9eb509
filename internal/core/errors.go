package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation  ErrorCategory = "validation"  // Invalid input
	ErrCatTooLarge    ErrorCategory = "too_large"   // Payload over limit
	ErrCatConfig      ErrorCategory = "config"      // Server misconfiguration
	ErrCatUpstream    ErrorCategory = "upstream"    // Model call or model output failed
	ErrCatRateLimit   ErrorCategory = "rate_limit"  // Model quota exhausted
	ErrCatUnavailable ErrorCategory = "unavailable" // Circuit open, model not callable
	ErrCatTimeout     ErrorCategory = "timeout"     // Operation timed out
	ErrCatNotFound    ErrorCategory = "not_found"   // Resource not found
	ErrCatInternal    ErrorCategory = "internal"    // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
// Message is safe to show to end users; Cause is for logs only.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     code,
		Message:  message,
	}
}

// ErrTooLarge creates a payload size error.
func ErrTooLarge(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatTooLarge,
		Code:     code,
		Message:  message,
	}
}

// ErrConfig creates a server configuration error.
func ErrConfig(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatConfig,
		Code:     code,
		Message:  message,
	}
}

// ErrUpstream creates an error for a failed or unusable model call.
func ErrUpstream(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatUpstream,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatRateLimit,
		Code:      CodeQuotaExceeded,
		Message:   message,
		Retryable: true,
	}
}

// ErrUnavailable creates an error for a model that is currently not callable.
func ErrUnavailable(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatUnavailable,
		Code:      CodeModelUnavailable,
		Message:   message,
		Retryable: true,
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category: ErrCatNotFound,
		Code:     "NOT_FOUND",
		Message:  fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// ErrInternal creates an unexpected internal error.
func ErrInternal(message string) *DomainError {
	return &DomainError{
		Category: ErrCatInternal,
		Code:     "INTERNAL",
		Message:  message,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// GetCode extracts the error code, or "" for non-domain errors.
func GetCode(err error) string {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Code
	}
	return ""
}

// Predefined error codes
const (
	// Request validation
	CodeInvalidImage  = "INVALID_IMAGE"
	CodeImageTooLarge = "IMAGE_TOO_LARGE"
	CodeMissingAPIKey = "MISSING_API_KEY"
	CodeEmptyFeedback = "EMPTY_FEEDBACK"

	// Model call
	CodeModelFailed      = "MODEL_FAILED"
	CodeModelNotFound    = "MODEL_NOT_FOUND"
	CodeModelAuth        = "MODEL_AUTH"
	CodeModelUnavailable = "MODEL_UNAVAILABLE"
	CodeQuotaExceeded    = "QUOTA_EXCEEDED"

	// Model output
	CodeEmptyResponse = "EMPTY_RESPONSE"
	CodeNoJSON        = "NO_JSON"
	CodeMalformedJSON = "MALFORMED_JSON"
	CodeUnidentified  = "UNIDENTIFIED"
	CodeIncomplete    = "INCOMPLETE"

	// Feedback delivery
	CodeDeliveryFailed = "DELIVERY_FAILED"
)

// User-facing messages shared by the HTTP layer and the CLI.
const (
	MsgInvalidImageData  = "Invalid image data"
	MsgInvalidBase64     = "Invalid base64 image data"
	MsgMissingAPIKey     = "Server configuration error: Missing API key"
	MsgModelAuth         = "API key is invalid or has insufficient permissions"
	MsgQuotaExceeded     = "API quota exceeded. Please try again later"
	MsgModelNotFound     = "Model not available. Please check if your API key has access to the latest models"
	MsgModelUnavailable  = "AI model temporarily unavailable. Please try again later"
	MsgModelFailed       = "Failed to process image with AI model"
	MsgIdentifyTimeout   = "Plant identification timed out"
	MsgEmptyResponse     = "Empty response from Gemini API"
	MsgNoJSON            = "Could not extract JSON from the response"
	MsgUnprocessable     = "Could not process the plant identification response"
	MsgUnidentified      = "Could not identify the plant in the image"
	MsgIncomplete        = "Incomplete plant information received"
	MsgIdentifyFailed    = "Failed to identify plant"
	MsgFeedbackRequired  = "Feedback message is required"
	MsgFeedbackFailed    = "Error sending feedback"
	MsgFeedbackDelivered = "Feedback sent successfully"
)

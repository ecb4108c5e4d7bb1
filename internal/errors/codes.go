package errors

// ErrorCode represents a machine-readable error identifier for client error handling.
type ErrorCode string

// Request validation errors
const (
	ErrCodeMissingField    ErrorCode = "missing_field"
	ErrCodeInvalidField    ErrorCode = "invalid_field"
	ErrCodeInvalidReport   ErrorCode = "invalid_report"
	ErrCodeReportTooLarge  ErrorCode = "report_too_large"
	ErrCodeUnsupportedBody ErrorCode = "unsupported_body"
)

// Authorization errors
const (
	ErrCodeUnauthorized ErrorCode = "unauthorized"
)

// Rate limiting
const (
	ErrCodeRateLimited ErrorCode = "rate_limited"
)

// Internal/System errors
const (
	ErrCodeInternalError ErrorCode = "internal_error"
	ErrCodeStorageError  ErrorCode = "storage_error"
	ErrCodeConfigError   ErrorCode = "config_error"
)

// IsRetryable returns whether an error code represents a retryable error.
// Transient storage or internal problems are retryable, validation and
// authorization failures are not.
func (e ErrorCode) IsRetryable() bool {
	switch e {
	case ErrCodeStorageError, ErrCodeInternalError, ErrCodeRateLimited:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	case ErrCodeMissingField,
		ErrCodeInvalidField,
		ErrCodeInvalidReport,
		ErrCodeUnsupportedBody:
		return 400

	case ErrCodeUnauthorized:
		return 401

	case ErrCodeReportTooLarge:
		return 413

	case ErrCodeRateLimited:
		return 429

	case ErrCodeInternalError,
		ErrCodeStorageError,
		ErrCodeConfigError:
		return 500

	default:
		return 500
	}
}

package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUnavailable      = "BACKEND_UNAVAILABLE"
)

// Validation errors
var (
	ErrInvalidContentKind   = NewDomainError(ErrCodeValidation, "invalid content kind")
	ErrUnknownContentKind   = NewDomainError(ErrCodeValidation, "unknown content kind")
	ErrInvalidIngestStatus  = NewDomainError(ErrCodeValidation, "invalid ingest job status")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query text is empty")
	ErrInvalidVectorRecord  = NewDomainError(ErrCodeValidation, "invalid vector record")
)

// Not found errors
var (
	ErrMemoryNotFound = NewDomainError(ErrCodeNotFound, "memory not found")
	ErrChunkNotFound  = NewDomainError(ErrCodeNotFound, "memory chunk not found")
	ErrStatusNotFound = NewDomainError(ErrCodeNotFound, "processing status not found")
	ErrAPIKeyNotFound = NewDomainError(ErrCodeNotFound, "api key not found")
)

// Already exists errors
var (
	ErrMemoryAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "memory already exists")
	ErrAPIKeyAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "api key already exists")
)

// Authorization errors
var (
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Backend errors
var (
	ErrSegmentationUnavailable = NewDomainError(ErrCodeUnavailable, "segmentation backend unavailable")
	ErrEmbeddingUnavailable    = NewDomainError(ErrCodeUnavailable, "embedding backend unavailable")
	ErrAnswerUnavailable       = NewDomainError(ErrCodeUnavailable, "no context source or language model available")
)

// Operation errors
var (
	ErrMemoryImmutable = NewDomainError(ErrCodeInvalidOperation, "memory id cannot be changed after ingestion")
)

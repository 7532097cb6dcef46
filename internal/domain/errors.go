package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that the registry has no record for an identifier.
	ErrNotFound = errors.New("not found")

	// ErrMapping indicates that a registry record could not be projected into a Record.
	ErrMapping = errors.New("mapping failed")

	// ErrTransport indicates a network failure or a non-200 response.
	ErrTransport = errors.New("transport error")

	// ErrInvalidDocument indicates that fetched content is not a structurally valid PDF.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrExhaustedCandidates indicates that every applicable candidate source failed.
	ErrExhaustedCandidates = errors.New("exhausted candidates")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrCancelled indicates that an operation was cancelled.
	ErrCancelled = errors.New("cancelled")

	// ErrNoIdentifier indicates that a record carries no retrievable identifier.
	ErrNoIdentifier = errors.New("no identifier")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
// Cause is set when the lookup failed at the transport level.
type NotFoundError struct {
	Entity string
	ID     string
	Cause  error
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s not found: %s: %v", e.Entity, e.ID, e.Cause)
	}
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns ErrNotFound and, when present, the transport cause.
func (e *NotFoundError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrNotFound}
	}
	return []error{ErrNotFound, e.Cause}
}

// MappingError reports a required field that could not be extracted or normalized.
type MappingError struct {
	PMID  string
	Field string
	Cause error
}

// Error implements the error interface.
func (e *MappingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mapping record %s: field %s: %v", e.PMID, e.Field, e.Cause)
	}
	return fmt.Sprintf("mapping record %s: field %s is missing", e.PMID, e.Field)
}

// Unwrap returns ErrMapping and, when present, the cause.
func (e *MappingError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrMapping}
	}
	return []error{ErrMapping, e.Cause}
}

// TransportError describes a failed HTTP exchange. StatusCode is zero when no
// response was received.
type TransportError struct {
	URL        string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
	case e.Cause != nil:
		return fmt.Sprintf("GET %s: %v", e.URL, e.Cause)
	default:
		return fmt.Sprintf("GET %s: transport error", e.URL)
	}
}

// Unwrap returns ErrTransport and, when present, the cause.
func (e *TransportError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Cause}
}

// InvalidDocumentError reports a persisted file that failed structural validation.
type InvalidDocumentError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("invalid document %s: %v", e.Path, e.Cause)
}

// Unwrap returns ErrInvalidDocument and the parser cause.
func (e *InvalidDocumentError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrInvalidDocument}
	}
	return []error{ErrInvalidDocument, e.Cause}
}

// ExhaustedCandidatesError is the terminal failure of a record whose candidate
// lists were all tried without success.
type ExhaustedCandidatesError struct {
	PMID     string
	Attempts int
	Last     error
}

// Error implements the error interface.
func (e *ExhaustedCandidatesError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("record %s: %d candidate(s) exhausted, last error: %v", e.PMID, e.Attempts, e.Last)
	}
	return fmt.Sprintf("record %s: %d candidate(s) exhausted", e.PMID, e.Attempts)
}

// Unwrap returns ErrExhaustedCandidates and, when present, the last attempt error.
func (e *ExhaustedCandidatesError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrExhaustedCandidates}
	}
	return []error{ErrExhaustedCandidates, e.Last}
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string, cause error) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
		Cause:  cause,
	}
}

// NewMappingError creates a new MappingError.
func NewMappingError(pmid, field string, cause error) *MappingError {
	return &MappingError{
		PMID:  pmid,
		Field: field,
		Cause: cause,
	}
}

// NewTransportError creates a new TransportError.
func NewTransportError(url string, statusCode int, cause error) *TransportError {
	return &TransportError{
		URL:        url,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// NewInvalidDocumentError creates a new InvalidDocumentError.
func NewInvalidDocumentError(path string, cause error) *InvalidDocumentError {
	return &InvalidDocumentError{
		Path:  path,
		Cause: cause,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

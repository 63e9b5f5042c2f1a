package domain

import (
	"errors"
	"fmt"
)

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

// Is matches sentinel domain errors by code and message so that wrapped
// copies created with Wrap still compare equal to their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Wrap returns a copy of the sentinel carrying cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Err: cause}
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

// NewExternalServiceError wraps a failed embedding/generative/image call.
func NewExternalServiceError(op string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeExternalService, op+" failed", err)
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Common domain error codes
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeExternalService     = "EXTERNAL_SERVICE_FAILURE"
	ErrCodeEmptyContent        = "EMPTY_CONTENT"
	ErrCodeConstraintViolation = "CONSTRAINT_VIOLATION"
	ErrCodeStructuralInvariant = "STRUCTURAL_INVARIANT_VIOLATION"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidBlockType     = NewDomainError(ErrCodeValidation, "invalid block type")
	ErrInvalidRelationType  = NewDomainError(ErrCodeValidation, "invalid relation type")
	ErrInvalidJobStatus     = NewDomainError(ErrCodeValidation, "invalid job status")
	ErrInvalidJobKind       = NewDomainError(ErrCodeValidation, "invalid job kind")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrDefinitionTooLong    = NewDomainError(ErrCodeValidation, "concept definition exceeds maximum length")
	ErrInvalidTopK          = NewDomainError(ErrCodeValidation, "top_k out of range")
	ErrInvalidSimilarity    = NewDomainError(ErrCodeValidation, "min_similarity out of range")
	ErrNotImageSuggestion   = NewDomainError(ErrCodeValidation, "block is not an image suggestion")
)

// Not found errors
var (
	ErrPageNotFound     = NewDomainError(ErrCodeNotFound, "page not found")
	ErrModuleNotFound   = NewDomainError(ErrCodeNotFound, "module not found")
	ErrBlockNotFound    = NewDomainError(ErrCodeNotFound, "block not found")
	ErrJobNotFound      = NewDomainError(ErrCodeNotFound, "pipeline job not found")
	ErrRelationNotFound = NewDomainError(ErrCodeNotFound, "relation not found")
)

// Empty content errors
var (
	ErrEmptyContent = NewDomainError(ErrCodeEmptyContent, "page has no content to analyze")
)

// Constraint errors
var (
	ErrConceptAlreadyExists  = NewDomainError(ErrCodeConstraintViolation, "concept term already exists for page")
	ErrRelationAlreadyExists = NewDomainError(ErrCodeConstraintViolation, "relation already exists for page pair")
	ErrSelfRelation          = NewDomainError(ErrCodeConstraintViolation, "page cannot relate to itself")
)

// Structural invariant errors
var (
	ErrConsecutiveTextBlocks = NewDomainError(ErrCodeStructuralInvariant, "generated content contains consecutive text blocks")
	ErrAnchorNotFound        = NewDomainError(ErrCodeStructuralInvariant, "mention text not found verbatim in block")
)

// External service errors
var (
	ErrMalformedReply = NewDomainError(ErrCodeExternalService, "generative reply does not match requested schema")
	ErrThreadExpired  = NewDomainError(ErrCodeExternalService, "generation thread not found or expired")
)

package util

import (
	"errors"
	"fmt"
	"sort"
)

// Error codes surfaced to callers of the ticket layer.
const (
	CodeDBConnection = "DB_CONNECTION"
	CodeDBSchema     = "DB_SCHEMA"
	CodeNetwork      = "NETWORK"
	CodeValidation   = "VALIDATION"
	CodeUnknown      = "UNKNOWN"

	// CodeUnauthorized is raised by the session layer when the auth
	// provider rejects credentials or a token.
	CodeUnauthorized = "UNAUTHORIZED"
)

// FieldError is a single failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DomainError standardizes application errors.
type DomainError struct {
	Code    string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so callers can write
// errors.Is(err, &DomainError{Code: CodeValidation}).
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code && t.Message == ""
}

// FieldMap flattens field issues into field -> message. The first message
// recorded for a field wins.
func (e *DomainError) FieldMap() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, exists := out[f.Field]; !exists {
			out[f.Field] = f.Message
		}
	}
	return out
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

func NewValidationError(fields []FieldError) *DomainError {
	sorted := append([]FieldError(nil), fields...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Field < sorted[j].Field })
	msg := "validation failed"
	if len(sorted) > 0 {
		msg = sorted[0].Message
	}
	return &DomainError{Code: CodeValidation, Message: msg, Fields: sorted}
}

func NewConnectionError(err error) *DomainError {
	return NewDomainError(CodeDBConnection, "backend unreachable", err)
}

func NewSchemaError(message string, err error) *DomainError {
	if message == "" {
		message = "storage schema mismatch"
	}
	return NewDomainError(CodeDBSchema, message, err)
}

func NewNetworkError(err error) *DomainError {
	return NewDomainError(CodeNetwork, "network failure", err)
}

func NewUnauthorizedError(message string, err error) *DomainError {
	if message == "" {
		message = "not authorized"
	}
	return NewDomainError(CodeUnauthorized, message, err)
}

func NewUnknownError(message string, err error) *DomainError {
	if message == "" {
		message = "unexpected error"
	}
	return NewDomainError(CodeUnknown, message, err)
}

// ToDomainError converts generic errors to DomainError; anything unrecognized
// becomes UNKNOWN.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return NewUnknownError(err.Error(), err)
}

// CodeOf returns the taxonomy code of err, or "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

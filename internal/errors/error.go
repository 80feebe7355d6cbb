package errors

import (
	"errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryCollection    Category = "collection"
	CategoryAuthorization Category = "authorization"
	CategoryValidation    Category = "validation"
	CategoryRoute         Category = "route"
	CategoryTransport     Category = "transport"
	CategoryInvocation    Category = "invocation"
	CategoryManifest      Category = "manifest"
	CategoryConfig        Category = "config"
	CategoryCLI           Category = "cli"
	CategorySession       Category = "session"
)

// WireError is a structured error with a code, an explanation and a hint.
type WireError struct {
	// Code is a unique error identifier (e.g., "E201").
	Code string

	// Category is the error type (route, transport, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *WireError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *WireError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target carries the same code.
func (e *WireError) Is(target error) bool {
	t, ok := target.(*WireError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithSuggestion adds a fix suggestion to the error.
func (e *WireError) WithSuggestion(s string) *WireError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *WireError) WithDetail(d string) *WireError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detailed explanation to the error.
func (e *WireError) WithDetailf(format string, args ...any) *WireError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *WireError) Wrap(err error) *WireError {
	e.Wrapped = err
	return e
}

// New creates a WireError from a registered error code.
func New(code string) *WireError {
	template, ok := registry[code]
	if !ok {
		return &WireError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &WireError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new WireError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *WireError {
	return &WireError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a WireError.
func FromError(err error, code string) *WireError {
	if err == nil {
		return nil
	}
	var we *WireError
	if errors.As(err, &we) {
		return we
	}
	return New(code).Wrap(err)
}

// CodeOf returns the code of the first WireError in err's chain.
func CodeOf(err error) string {
	var we *WireError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

// CategoryOf returns the category of the first WireError in err's chain.
func CategoryOf(err error) Category {
	var we *WireError
	if errors.As(err, &we) {
		return we.Category
	}
	return ""
}

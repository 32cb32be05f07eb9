package types

import (
	"errors"
	"fmt"
)

// ErrorKind tags a structured error per the taxonomy every tool result is
// mapped into before it crosses the protocol boundary.
type ErrorKind string

const (
	KindMissingEntities    ErrorKind = "MissingEntities"
	KindAlreadyExists      ErrorKind = "AlreadyExists"
	KindNotFound           ErrorKind = "NotFound"
	KindInvalid            ErrorKind = "Invalid"
	KindProviderUnavailable ErrorKind = "ProviderUnavailable"
	KindConflict           ErrorKind = "Conflict"
	KindInternal           ErrorKind = "Internal"
)

// Sentinel errors returned by the storage and graph layers. Callers use
// errors.Is / errors.As against these rather than string-matching.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrConflict           = errors.New("conflict")
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
)

// ToolError is the structured error surfaced by every tool-layer operation.
// It implements error so it can be wrapped and inspected with errors.As,
// and carries enough detail for the protocol adapter to serialize it
// without re-deriving context.
type ToolError struct {
	Kind   ErrorKind
	Detail string

	// Kind-specific payload.
	Names []string // MissingEntities
	Name  string   // AlreadyExists, NotFound
	Field string   // Invalid
	Reason string  // Invalid
}

func (e *ToolError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

// NewMissingEntities builds a MissingEntities ToolError for the given names.
func NewMissingEntities(names []string) *ToolError {
	return &ToolError{Kind: KindMissingEntities, Names: names, Detail: fmt.Sprintf("missing entities: %v", names)}
}

// NewAlreadyExists builds an AlreadyExists ToolError.
func NewAlreadyExists(name string) *ToolError {
	return &ToolError{Kind: KindAlreadyExists, Name: name, Detail: fmt.Sprintf("entity %q already exists", name)}
}

// NewNotFound builds a NotFound ToolError.
func NewNotFound(name string) *ToolError {
	return &ToolError{Kind: KindNotFound, Name: name, Detail: fmt.Sprintf("entity %q not found", name)}
}

// NewInvalid builds an Invalid ToolError for a single offending field.
func NewInvalid(field, reason string) *ToolError {
	return &ToolError{Kind: KindInvalid, Field: field, Reason: reason, Detail: fmt.Sprintf("%s: %s", field, reason)}
}

// NewProviderUnavailable builds a ProviderUnavailable ToolError.
func NewProviderUnavailable(detail string) *ToolError {
	return &ToolError{Kind: KindProviderUnavailable, Detail: detail}
}

// NewConflict builds a Conflict ToolError.
func NewConflict(detail string) *ToolError {
	return &ToolError{Kind: KindConflict, Detail: detail}
}

// NewInternal builds an Internal ToolError. The detail passed here must
// already be redacted; callers should log the full error separately.
func NewInternal(detail string) *ToolError {
	return &ToolError{Kind: KindInternal, Detail: detail}
}

// AsToolError unwraps err looking for a *ToolError, falling back to an
// Internal kind wrapping err's message so nothing crosses the adapter
// boundary as an opaque failure.
func AsToolError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return &ToolError{Kind: KindNotFound, Detail: err.Error()}
	case errors.Is(err, ErrAlreadyExists):
		return &ToolError{Kind: KindAlreadyExists, Detail: err.Error()}
	case errors.Is(err, ErrConflict):
		return &ToolError{Kind: KindConflict, Detail: err.Error()}
	case errors.Is(err, ErrProviderUnavailable):
		return &ToolError{Kind: KindProviderUnavailable, Detail: err.Error()}
	default:
		return &ToolError{Kind: KindInternal, Detail: err.Error()}
	}
}

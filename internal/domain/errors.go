package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidTransition is returned when a status machine is asked to
	// perform a move that is not in its transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidChecksum is returned when a national identifier fails its
	// check digit validation.
	ErrInvalidChecksum = errors.New("invalid identifier checksum")

	// ErrMissingRequiredField is returned when a submission omits a required placeholder.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrUnknownField is returned when a submission references a key the
	// template does not declare. Submit only warns about it.
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidFieldValue is returned when a submitted value does not match
	// the placeholder's declared type.
	ErrInvalidFieldValue = errors.New("invalid field value")

	// ErrNoPlaceholdersFound is returned when a published template would end
	// up without any active placeholder.
	ErrNoPlaceholdersFound = errors.New("no placeholders found")

	// ErrTemplateNotPublished is returned when a generation is requested for
	// a template that is not in the published state.
	ErrTemplateNotPublished = errors.New("template is not published")
)

// MissingFieldError lists every required placeholder key absent from a submission.
type MissingFieldError struct {
	Keys []string
}

// Error implements the error interface for MissingFieldError.
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingRequiredField, strings.Join(e.Keys, ", "))
}

// Unwrap returns ErrMissingRequiredField to support errors.Is.
func (e *MissingFieldError) Unwrap() error {
	return ErrMissingRequiredField
}

// NewMissingFieldError builds a MissingFieldError with its keys sorted.
func NewMissingFieldError(keys []string) *MissingFieldError {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return &MissingFieldError{Keys: sorted}
}

// FieldValueError reports a submitted value rejected by its placeholder type.
type FieldValueError struct {
	Key    string
	Type   FieldType
	Reason string
}

// Error implements the error interface for FieldValueError.
func (e *FieldValueError) Error() string {
	return fmt.Sprintf("%s: %s (%s): %s", ErrInvalidFieldValue, e.Key, e.Type, e.Reason)
}

// Unwrap returns ErrInvalidFieldValue to support errors.Is.
func (e *FieldValueError) Unwrap() error {
	return ErrInvalidFieldValue
}

// TransitionError describes a rejected status move.
type TransitionError struct {
	Machine string
	From    string
	To      string
}

// Error implements the error interface for TransitionError.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s cannot move from %q to %q", ErrInvalidTransition, e.Machine, e.From, e.To)
}

// Unwrap returns ErrInvalidTransition to support errors.Is.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

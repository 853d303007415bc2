package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/store"
)

// ErrMissingDependency is returned by constructors given a nil dependency.
var ErrMissingDependency = errors.New("missing service dependency")

// ServiceError wraps unexpected failures with the operation that hit them.
type ServiceError struct {
	// Service is the service name (e.g. "template", "document")
	Service string
	// Operation is the operation that failed (e.g. "sync", "transition")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s failed: %s: %v", e.Service, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s service %s failed: %s", e.Service, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// expectedErrors are returned to callers unwrapped.
var expectedErrors = []error{
	store.ErrNotFound,
	store.ErrDuplicate,
	domain.ErrValidation,
	domain.ErrInvalidTransition,
	domain.ErrNoPlaceholdersFound,
}

// NewServiceError wraps err unless it is nil or one of the expected store or
// domain errors, which are returned as they are.
func NewServiceError(service, operation, message string, err error) error {
	if err == nil {
		return nil
	}
	for _, expected := range expectedErrors {
		if errors.Is(err, expected) {
			return err
		}
	}
	return &ServiceError{
		Service:   service,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

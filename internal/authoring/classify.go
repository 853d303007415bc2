package authoring

import (
	"context"
	"errors"

	"github.com/phrazzld/docgen/internal/breaker"
	"github.com/phrazzld/docgen/internal/retry"
)

// Classify maps an authoring error to its retry class. Throttling, transient
// failures and attempt timeouts are retryable; rejected requests, missing
// resources, permission problems and cancellation are fatal.
func Classify(err error) retry.Class {
	switch {
	case errors.Is(err, breaker.ErrOpen):
		return retry.CircuitOpen
	case errors.Is(err, retry.ErrAttemptTimeout),
		errors.Is(err, ErrTransient),
		errors.Is(err, ErrRateLimited):
		return retry.Retryable
	case errors.Is(err, context.Canceled),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPermission),
		errors.Is(err, ErrInvalidRequest):
		return retry.Fatal
	default:
		return retry.Retryable
	}
}

// IsDownstreamFailure reports whether err says something about the health of
// the authoring service. It is the breaker's failure predicate: errors caused
// by the request or by the caller do not trip the circuit.
func IsDownstreamFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPermission),
		errors.Is(err, ErrInvalidRequest):
		return false
	default:
		return true
	}
}

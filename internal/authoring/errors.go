package authoring

import "errors"

// Errors returned by Client implementations. Provider errors are wrapped so
// that errors.Is matches one of these.
var (
	// ErrTransient is returned for temporary failures that may succeed on retry,
	// such as network errors and 5xx responses.
	ErrTransient = errors.New("transient authoring service error")

	// ErrRateLimited is returned when the provider throttles requests.
	ErrRateLimited = errors.New("authoring service rate limit exceeded")

	// ErrNotFound is returned when the source or artifact does not exist.
	ErrNotFound = errors.New("authoring resource not found")

	// ErrPermission is returned when the service account may not access a resource.
	ErrPermission = errors.New("authoring permission denied")

	// ErrInvalidRequest is returned when the provider rejects the request itself.
	ErrInvalidRequest = errors.New("invalid authoring request")
)

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/docgen/internal/api/shared"
	"github.com/phrazzld/docgen/internal/authoring"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/service/auth"
	"github.com/phrazzld/docgen/internal/store"
	"github.com/phrazzld/docgen/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingSubject):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Submission errors
	case errors.Is(err, domain.ErrMissingRequiredField),
		errors.Is(err, domain.ErrInvalidFieldValue),
		errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, domain.ErrInvalidChecksum):
		return http.StatusUnprocessableEntity

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, domain.ErrTemplateNotPublished),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNoPlaceholdersFound),
		errors.Is(err, task.ErrNotCancellable),
		errors.Is(err, task.ErrTaskNotOwned):
		return http.StatusConflict

	// Capacity errors
	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	// Upstream authoring service errors
	case errors.Is(err, authoring.ErrNotFound),
		errors.Is(err, authoring.ErrPermission),
		errors.Is(err, authoring.ErrTransient),
		errors.Is(err, authoring.ErrRateLimited),
		errors.Is(err, authoring.ErrInvalidRequest):
		return http.StatusBadGateway

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var missing *domain.MissingFieldError
	var fieldErr *domain.FieldValueError

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingSubject):
		return "Invalid token"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.As(err, &missing):
		return "Missing required fields"
	case errors.As(err, &fieldErr):
		return "Invalid value for field " + fieldErr.Key
	case errors.Is(err, domain.ErrUnknownField):
		return "Unknown field in submission"
	case errors.Is(err, domain.ErrInvalidChecksum):
		return "Invalid CPF or CNPJ"

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"
	case errors.Is(err, domain.ErrTemplateNotPublished):
		return "Template is not published"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Status transition not allowed"
	case errors.Is(err, domain.ErrNoPlaceholdersFound):
		return "Template has no placeholders"
	case errors.Is(err, task.ErrNotCancellable):
		return "Generation task already finished"
	case errors.Is(err, task.ErrTaskNotOwned):
		return "Generation task is running on another instance"

	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return "Generation capacity exhausted, try again later"

	case errors.Is(err, authoring.ErrNotFound):
		return "Template source not found"
	case errors.Is(err, authoring.ErrPermission):
		return "Template source not accessible"
	case errors.Is(err, authoring.ErrTransient),
		errors.Is(err, authoring.ErrRateLimited),
		errors.Is(err, authoring.ErrInvalidRequest):
		return "Authoring service unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// errorDetails returns client-safe structured details for err, or nil.
// Missing field keys are placeholder keys, never submitted values.
func errorDetails(err error) any {
	var missing *domain.MissingFieldError
	if errors.As(err, &missing) {
		return map[string]any{"missing_fields": missing.Keys}
	}
	var fieldErr *domain.FieldValueError
	if errors.As(err, &fieldErr) {
		return map[string]any{"field": fieldErr.Key, "type": fieldErr.Type, "reason": fieldErr.Reason}
	}
	return nil
}

// HandleAPIError maps err to a status code and a safe message and writes
// the response. fallback replaces the generic message for unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	if details := errorDetails(err); details != nil {
		opts = append(opts, shared.WithDetails(details))
	}
	if status == http.StatusUnauthorized || status == http.StatusConflict {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	first := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", first.Field(), getValidationTagMessage(first.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

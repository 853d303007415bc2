package gdocs

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/phrazzld/docgen/internal/authoring"
	"google.golang.org/api/googleapi"
)

// Reasons Google reports on 403 responses that are really throttling.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// mapError wraps a Google API error in the matching authoring error.
// Context errors pass through unchanged.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%s: %w (status %d: %s)", op, classifyStatus(gerr), gerr.Code, gerr.Message)
	}

	// Anything else failed before a response arrived.
	return fmt.Errorf("%s: %w: %v", op, authoring.ErrTransient, err)
}

func classifyStatus(gerr *googleapi.Error) error {
	switch {
	case gerr.Code == http.StatusTooManyRequests:
		return authoring.ErrRateLimited
	case gerr.Code == http.StatusForbidden && isRateLimitReason(gerr):
		return authoring.ErrRateLimited
	case gerr.Code == http.StatusUnauthorized, gerr.Code == http.StatusForbidden:
		return authoring.ErrPermission
	case gerr.Code == http.StatusNotFound:
		return authoring.ErrNotFound
	case gerr.Code == http.StatusRequestTimeout, gerr.Code >= http.StatusInternalServerError:
		return authoring.ErrTransient
	default:
		return authoring.ErrInvalidRequest
	}
}

func isRateLimitReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, authoring.ErrNotFound)
}

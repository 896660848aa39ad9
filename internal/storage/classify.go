package storage

import (
	"context"
	"errors"
	"net/http"

	"beatshop/internal/services"
)

// MarkerForStatus maps a remote HTTP status to the services marker remote
// bindings report. Unknown failures are treated as transient.
func MarkerForStatus(status int) error {
	switch {
	case status == http.StatusNotFound:
		return services.ErrNotFound
	case status == http.StatusPreconditionFailed, status == http.StatusConflict:
		return services.ErrAlreadyExists
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return services.ErrConfiguration
	case status == http.StatusBadRequest:
		return services.ErrValidation
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return services.ErrUnavailable
	default:
		return services.ErrUnavailable
	}
}

// MarkerForContext reports ErrTimeout when err stems from a cancelled or
// expired context, and nil otherwise.
func MarkerForContext(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return services.ErrTimeout
	}
	return nil
}

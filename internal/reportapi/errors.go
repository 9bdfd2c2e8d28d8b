package reportapi

import (
	"errors"
	"fmt"
	"net/http"

	"report-portal/internal/model"
)

var (
	// ErrNotFound is returned for a 404 from the Remote Report API.
	ErrNotFound = errors.New("report api: not found")

	// ErrReportedFailure is returned when a 2xx body carries success=false.
	ErrReportedFailure = errors.New("report api: request reported failure")

	// ErrInvalidResponse is returned when a body does not have the expected shape.
	ErrInvalidResponse = errors.New("report api: invalid response")
)

// StatusError is a non-2xx, non-404 response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("report api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("report api: status %d", e.StatusCode)
}

// IsUpstreamFailure reports whether err is a failure the remote side told us
// about, as opposed to a transport or decoding problem.
func IsUpstreamFailure(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) || errors.Is(err, ErrReportedFailure)
}

func outcomeOf(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrReportedFailure):
		return "reported_failure"
	case errors.As(err, &statusErr) && statusErr.StatusCode >= http.StatusInternalServerError:
		return "server_error"
	case errors.As(err, &statusErr):
		return "client_error"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, model.ErrInvalidInput):
		return "invalid_request"
	}
	return "transport_error"
}

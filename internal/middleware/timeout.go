package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"report-portal/internal/model"
)

// Timeout bounds JSON endpoints. The response is buffered, so routes that
// hijack the connection or relay files use TransferTimeout instead.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message, _ := json.Marshal(model.Failure("REQUEST_TIMEOUT", "request timed out", "the report service may be slow, try again"))

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(message))
	}
}

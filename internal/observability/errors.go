package observability

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorType classifies an error into a low-cardinality metric label.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "circuit breaker"):
		return "circuit_open"
	case strings.Contains(msg, "status"):
		return "http_status"
	case strings.Contains(msg, "decode"), strings.Contains(msg, "parse"):
		return "decode"
	default:
		return "other"
	}
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Reason classifies why a fetch failed. It is used as a metric label.
type Reason string

const (
	ReasonTimeout      Reason = "timeout"
	ReasonHTTPStatus   Reason = "http-status"
	ReasonParseError   Reason = "parse-error"
	ReasonNetworkError Reason = "network-error"
	ReasonCircuitOpen  Reason = "circuit-open"
	ReasonRateLimited  Reason = "rate-limited"
)

// FetchError is returned by WeatherClient.Fetch for every failure.
type FetchError struct {
	Location   string
	Reason     Reason
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %q: %s (status %d): %v", e.Location, e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %q: %s: %v", e.Location, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the failure reason carried by err, classifying errors that
// did not come from a WeatherClient as transport failures.
func ReasonOf(err error) Reason {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Reason
	}
	return transportReason(err)
}

func transportReason(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonNetworkError
}

package raah

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNotFound marks a 404 from upstream. For listings this is the
// authoritative end-of-data signal, not a failure.
var ErrNotFound = errors.New("raah: not found")

// ErrMalformed marks a payload whose shape could not be interpreted.
var ErrMalformed = errors.New("raah: malformed response")

// StatusError carries a non-2xx HTTP status for the retry loop to count.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("raah: HTTP %d", e.Code)
}

// Kind buckets an error for status lines and telemetry.
type Kind string

const (
	KindNotFound  Kind = "NOT_FOUND"
	KindRateLimit Kind = "RATE_LIMIT"
	KindNetwork   Kind = "NETWORK_ERROR"
	KindTimeout   Kind = "TIMEOUT"
	KindMalformed Kind = "MALFORMED_RESPONSE"
	KindUnknown   Kind = "UNKNOWN_ERROR"
)

// Classify maps an error to its Kind. Unrecognized errors are
// KindUnknown; nil maps to the empty Kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	if errors.Is(err, ErrMalformed) {
		return KindMalformed
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case 404:
			return KindNotFound
		case 429:
			return KindRateLimit
		}
		return KindUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetwork
	}

	return KindUnknown
}

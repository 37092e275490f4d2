// Package providers declares the shared error taxonomy for upstream
// quote providers.
package providers

import "errors"

// Sentinel error kinds. Concrete clients wrap these with call context;
// callers classify with errors.Is.
var (
	// ErrUnavailable means the provider refused the call or timed out
	ErrUnavailable = errors.New("provider unavailable")

	// ErrRateLimited means the caller must back off
	ErrRateLimited = errors.New("provider rate limited")

	// ErrNotFound means the ticker is unknown to the provider
	ErrNotFound = errors.New("ticker not found")

	// ErrMalformed means the response could not be parsed or failed
	// normalization
	ErrMalformed = errors.New("malformed provider response")
)

// severity orders error kinds for failover propagation:
// Unavailable > Malformed > RateLimited > NotFound.
func severity(err error) int {
	switch {
	case errors.Is(err, ErrUnavailable):
		return 4
	case errors.Is(err, ErrMalformed):
		return 3
	case errors.Is(err, ErrRateLimited):
		return 2
	case errors.Is(err, ErrNotFound):
		return 1
	default:
		return 0
	}
}

// Stronger returns whichever of the two errors carries the higher
// severity, preferring the first on ties. A nil argument yields the
// other error.
func Stronger(a, b error) error {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if severity(b) > severity(a) {
		return b
	}
	return a
}

// Transient reports whether an error kind should trigger failover to
// the secondary provider.
func Transient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrMalformed)
}

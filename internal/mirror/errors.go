package mirror

import "errors"

var (
	// ErrDisabled indicates the mirror is turned off
	ErrDisabled = errors.New("mirror is disabled")

	// ErrClosed indicates the mirror has been closed
	ErrClosed = errors.New("mirror is closed")

	// ErrCircuitOpen indicates recent failures have tripped the breaker and calls are skipped
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// IsDisabled checks if the error is a disabled mirror error
func IsDisabled(err error) bool {
	return errors.Is(err, ErrDisabled)
}

// IsCircuitOpen checks if the error is an open circuit error
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

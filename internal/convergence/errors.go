package convergence

import "errors"

var (
	// ErrAlreadyStarted indicates Start was called on a running component
	ErrAlreadyStarted = errors.New("already started")

	// ErrStopped indicates the component was stopped and cannot be restarted
	ErrStopped = errors.New("stopped")
)

// IsAlreadyStarted checks if an error is ErrAlreadyStarted
func IsAlreadyStarted(err error) bool {
	return errors.Is(err, ErrAlreadyStarted)
}

// IsStopped checks if an error is ErrStopped
func IsStopped(err error) bool {
	return errors.Is(err, ErrStopped)
}

package store

import "errors"

// ErrMalformedValue indicates a value that is not valid JSON
var ErrMalformedValue = errors.New("malformed value")

// IsMalformedValue checks if the error is a malformed value error
func IsMalformedValue(err error) bool {
	return errors.Is(err, ErrMalformedValue)
}

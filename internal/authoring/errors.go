package authoring

import "errors"

// Custom authoring errors
var (
	// ErrInvalidName indicates a playlist name that yields an empty id
	ErrInvalidName = errors.New("playlist name is invalid")

	// ErrPlaylistExists indicates a playlist with the same id already exists
	ErrPlaylistExists = errors.New("playlist already exists")

	// ErrPlaylistNotFound indicates the requested playlist does not exist
	ErrPlaylistNotFound = errors.New("playlist not found")

	// ErrDefaultPlaylistProtected indicates an attempt to delete the default playlist
	ErrDefaultPlaylistProtected = errors.New("default playlist cannot be deleted")

	// ErrItemNotFound indicates the requested playlist item does not exist
	ErrItemNotFound = errors.New("playlist item not found")

	// ErrNoValidRefs indicates none of the supplied inputs named playable content
	ErrNoValidRefs = errors.New("no valid content references found")

	// ErrInvalidEvent indicates a schedule event failed validation
	ErrInvalidEvent = errors.New("invalid schedule event")

	// ErrEventNotFound indicates the requested schedule event does not exist
	ErrEventNotFound = errors.New("schedule event not found")

	// ErrInvalidRule indicates a legacy schedule rule failed validation
	ErrInvalidRule = errors.New("invalid schedule rule")

	// ErrInvalidOrder indicates an unknown playback order
	ErrInvalidOrder = errors.New("invalid playback order")
)

// IsInvalidName checks if the error is an invalid name error
func IsInvalidName(err error) bool {
	return errors.Is(err, ErrInvalidName)
}

// IsPlaylistExists checks if the error is a duplicate playlist error
func IsPlaylistExists(err error) bool {
	return errors.Is(err, ErrPlaylistExists)
}

// IsPlaylistNotFound checks if the error is a playlist not found error
func IsPlaylistNotFound(err error) bool {
	return errors.Is(err, ErrPlaylistNotFound)
}

// IsDefaultPlaylistProtected checks if the error is a protected default playlist error
func IsDefaultPlaylistProtected(err error) bool {
	return errors.Is(err, ErrDefaultPlaylistProtected)
}

// IsItemNotFound checks if the error is a playlist item not found error
func IsItemNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound)
}

// IsNoValidRefs checks if the error is a no valid refs error
func IsNoValidRefs(err error) bool {
	return errors.Is(err, ErrNoValidRefs)
}

// IsInvalidEvent checks if the error is an invalid event error
func IsInvalidEvent(err error) bool {
	return errors.Is(err, ErrInvalidEvent)
}

// IsEventNotFound checks if the error is an event not found error
func IsEventNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound)
}

// IsInvalidRule checks if the error is an invalid rule error
func IsInvalidRule(err error) bool {
	return errors.Is(err, ErrInvalidRule)
}

// IsInvalidOrder checks if the error is an invalid order error
func IsInvalidOrder(err error) bool {
	return errors.Is(err, ErrInvalidOrder)
}

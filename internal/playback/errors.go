package playback

import (
	"errors"
	"fmt"
)

// Renderer error codes reported by embedded video players
const (
	CodeInvalidParameter  = 2
	CodeRendererFailure   = 5
	CodeNotFound          = 100
	CodeEmbeddingDisabled = 101
	CodeEmbeddingBlocked  = 150
)

// ErrorType represents the class of a playback error
type ErrorType int

const (
	// ErrorTypeTransient indicates an unclassified, possibly temporary failure
	ErrorTypeTransient ErrorType = iota
	// ErrorTypeNotFound indicates the content does not exist
	ErrorTypeNotFound
	// ErrorTypeEmbeddingDisabled indicates the content refuses to be embedded
	ErrorTypeEmbeddingDisabled
	// ErrorTypeInvalidContent indicates the content reference is malformed
	ErrorTypeInvalidContent
	// ErrorTypeRenderer indicates the rendering surface itself failed
	ErrorTypeRenderer
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeEmbeddingDisabled:
		return "embedding_disabled"
	case ErrorTypeInvalidContent:
		return "invalid_content"
	case ErrorTypeRenderer:
		return "renderer"
	default:
		return "unknown"
	}
}

// ErrorSeverity represents the severity of a playback error
type ErrorSeverity int

const (
	// SeverityWarning represents content problems handled by skipping
	SeverityWarning ErrorSeverity = iota
	// SeverityError represents failures of the rendering surface
	SeverityError
)

// String returns the string representation of ErrorSeverity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// PlaybackError is a classified content or renderer failure
type PlaybackError struct {
	Type       ErrorType
	Severity   ErrorSeverity
	Code       int
	ContentRef string
	Live       bool
}

// NewPlaybackError classifies a renderer error code for the given content
func NewPlaybackError(code int, contentRef string, live bool) *PlaybackError {
	errType := ClassifyErrorCode(code)
	severity := SeverityWarning
	if errType == ErrorTypeRenderer || errType == ErrorTypeTransient {
		severity = SeverityError
	}
	return &PlaybackError{
		Type:       errType,
		Severity:   severity,
		Code:       code,
		ContentRef: contentRef,
		Live:       live,
	}
}

// Error implements the error interface
func (e *PlaybackError) Error() string {
	return fmt.Sprintf("%s: content %q failed with code %d", e.Type, e.ContentRef, e.Code)
}

// ClassifyErrorCode maps a renderer error code onto an ErrorType
func ClassifyErrorCode(code int) ErrorType {
	switch code {
	case CodeInvalidParameter:
		return ErrorTypeInvalidContent
	case CodeRendererFailure:
		return ErrorTypeRenderer
	case CodeNotFound:
		return ErrorTypeNotFound
	case CodeEmbeddingDisabled, CodeEmbeddingBlocked:
		return ErrorTypeEmbeddingDisabled
	default:
		return ErrorTypeTransient
	}
}

var (
	// ErrNoLiveSource indicates live mode was requested without a source
	ErrNoLiveSource = errors.New("live source cannot be empty")

	// ErrUnknownCommand indicates a command type the engine does not handle
	ErrUnknownCommand = errors.New("unknown command")
)

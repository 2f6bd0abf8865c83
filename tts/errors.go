package tts

import (
	"errors"
	"fmt"
)

// Common errors for the speech system.
var (
	// Controller errors
	ErrEmptyDocument      = errors.New("nothing to read")
	ErrUnsupportedEngine  = errors.New("speech synthesis is not supported on this host")
	ErrEngineFailure      = errors.New("speech engine failure")
	ErrControllerClosed   = errors.New("controller has been closed")
	ErrInvalidVoiceParams = errors.New("invalid voice parameters")
	ErrInvalidIndex       = errors.New("invalid sentence index")

	// Engine errors
	ErrSpeakInProgress  = errors.New("an utterance is already in flight")
	ErrNotSpeaking      = errors.New("no utterance is in flight")
	ErrPauseUnsupported = errors.New("engine cannot pause")
	ErrVoiceNotFound    = errors.New("requested voice not found")
	ErrEngineClosed     = errors.New("engine has been closed")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// EngineFailure is reported when the engine fails an utterance.
type EngineFailure struct {
	Index  int    // Sentence being spoken
	Reason string // Engine-provided reason
	Err    error  // Underlying error, if any
}

// Error implements the error interface.
func (e *EngineFailure) Error() string {
	return fmt.Sprintf("speech synthesis error on sentence %d: %s", e.Index+1, e.Reason)
}

// Unwrap returns the underlying error.
func (e *EngineFailure) Unwrap() error {
	return e.Err
}

// Is reports ErrEngineFailure as matching any EngineFailure.
func (e *EngineFailure) Is(target error) bool {
	return target == ErrEngineFailure
}

// newEngineFailure builds an EngineFailure, defaulting the reason.
func newEngineFailure(index int, err error) *EngineFailure {
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}
	return &EngineFailure{Index: index, Reason: reason, Err: err}
}

// IsRecoverableError checks if an error leaves the controller usable.
func IsRecoverableError(err error) bool {
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, ErrUnsupportedEngine),
		errors.Is(err, ErrControllerClosed),
		errors.Is(err, ErrEngineClosed),
		errors.Is(err, ErrInvalidConfig):
		return false
	}

	return true
}

// Level is the severity of a status message.
type Level int

const (
	// LevelInfo is for progress messages.
	LevelInfo Level = iota
	// LevelSuccess is for completed actions.
	LevelSuccess
	// LevelWarning is for conditions that need the user's attention.
	LevelWarning
	// LevelDanger is for failures.
	LevelDanger
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelDanger:
		return "danger"
	default:
		return "unknown"
	}
}

// Status is a user-visible status message.
type Status struct {
	Level   Level
	Message string
	Err     error
}

// statusFor translates an error into the status shown to the user.
func statusFor(err error) Status {
	switch {
	case errors.Is(err, ErrEmptyDocument):
		return Status{Level: LevelWarning, Message: "Nothing to read: load a document first.", Err: err}
	case errors.Is(err, ErrUnsupportedEngine):
		return Status{Level: LevelDanger, Message: "Speech synthesis is not supported on this host.", Err: err}
	default:
		return Status{Level: LevelDanger, Message: err.Error(), Err: err}
	}
}

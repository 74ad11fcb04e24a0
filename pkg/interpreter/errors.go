package interpreter

import (
	"errors"
	"fmt"
)

var (
	// ErrStackOverflow is recorded on a request when a push would exceed the
	// configured stack depth.
	ErrStackOverflow = errors.New("interpreter stack depth exceeded")

	// ErrNoFrame is returned when a request has no active frame.
	ErrNoFrame = errors.New("request has no active frame")

	// ErrNotFunctionFrame is returned by the function frame API when the
	// topmost frame was not pushed with PushFunction.
	ErrNotFunctionFrame = errors.New("topmost frame is not a function frame")

	// ErrMissingRepeat is recorded when a function frame suspends without a
	// callback to resume it.
	ErrMissingRepeat = errors.New("function frame suspended without a repeat callback")

	// ErrReentrantRun is returned when Run or Signal is called for a request
	// that is already being advanced, e.g. from inside a signal handler.
	ErrReentrantRun = errors.New("interpreter re-entered while request is being advanced")

	// ErrRequestCancelled is returned by Run after a cancel or timeout signal.
	ErrRequestCancelled = errors.New("request cancelled")

	// ErrRequestFailed is returned by Run when a frame reports a terminal
	// failure without recording a more specific cause.
	ErrRequestFailed = errors.New("request failed")

	// ErrNothingPushed is recorded when a callback claims to have pushed a
	// child but the stack did not grow.
	ErrNothingPushed = errors.New("callback reported a pushed child but pushed nothing")

	// ErrUnexpectedYield is recorded when a module call yields instead of
	// pushing a function frame.
	ErrUnexpectedYield = errors.New("module yielded without pushing a function frame")

	// ErrUnknownRcode is returned when parsing an unknown result code name.
	ErrUnknownRcode = errors.New("unknown result code")

	// ErrInvalidAction is returned when parsing an invalid action.
	ErrInvalidAction = errors.New("invalid action")

	// ErrInvalidConfig is returned when interpreter options are invalid.
	ErrInvalidConfig = errors.New("invalid interpreter configuration")
)

// FrameError describes a failure attributed to a specific frame.
type FrameError struct {
	// Instruction is the debug name of the frame's instruction.
	Instruction string

	// Depth is the stack depth of the frame (1 is the bottom frame).
	Depth int

	// Cause is the underlying error.
	Cause error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d (%s): %v", e.Depth, e.Instruction, e.Cause)
}

func (e *FrameError) Unwrap() error {
	return e.Cause
}

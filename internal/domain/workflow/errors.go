package workflow

import "errors"

var (
	// ErrUnknownEvent is returned when an event is not part of the
	// machine's declared event set
	ErrUnknownEvent = errors.New("unknown event")

	// ErrIllegalTransition is returned when a declared event is not
	// permitted from the current state
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrGuardFailed is returned when every candidate transition's
	// guard condition rejects the event
	ErrGuardFailed = errors.New("guard condition failed")
)

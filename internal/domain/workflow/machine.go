package workflow

import "context"

// StateMachine tracks the current state of one entity and validates
// transitions against the declared table. Machines are pure: no I/O,
// no clock access. Whether a transition is legal now is decided here;
// whether it is legal yet is the caller's concern.
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the event is permitted in the current state
	CanFire(event Event) bool

	// Fire attempts to apply the event, transitioning to the new state
	// if the table allows it
	Fire(ctx context.Context, event Event) error

	// PermittedEvents returns all events that can fire from the current state
	PermittedEvents() []Event

	// IsTerminal returns true if the current state has no outgoing transitions
	IsTerminal() bool
}

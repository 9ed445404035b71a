package workflow

// Event represents an occurrence that can cause a state transition
type Event string

// String returns the string representation of the event
func (e Event) String() string {
	return string(e)
}

package workflow

// State represents a lifecycle state of a workflow entity
type State string

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

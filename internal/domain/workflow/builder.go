package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// Builder assembles the transition table for one entity kind. Each kind
// declares its own state and event sets up front, so a machine can tell
// an unknown event apart from a known event fired at the wrong time.
type Builder struct {
	kind           string
	states         map[State]bool
	events         map[Event]bool
	configurations map[State]*stateConfig
}

// StateConfiguration configures the outgoing transitions of one state
type StateConfiguration interface {
	// Permit allows an event to transition to the target state
	Permit(event Event, toState State) StateConfiguration

	// PermitIf allows the transition only while the guard condition passes
	PermitIf(event Event, toState State, guard GuardFunc) StateConfiguration
}

type transition struct {
	toState State
	guard   GuardFunc
}

type stateConfig struct {
	fromState   State
	transitions map[Event][]transition
}

// NewBuilder creates a builder for the named entity kind with its
// declared state and event sets. Configure and Permit panic on states
// outside the declared set; a table typo is a programming error, not a
// runtime condition.
func NewBuilder(kind string, states []State, events []Event) *Builder {
	stateSet := make(map[State]bool, len(states))
	for _, s := range states {
		stateSet[s] = true
	}
	eventSet := make(map[Event]bool, len(events))
	for _, e := range events {
		eventSet[e] = true
	}
	return &Builder{
		kind:           kind,
		states:         stateSet,
		events:         eventSet,
		configurations: make(map[State]*stateConfig),
	}
}

// Configure returns the state configuration for the given state
func (b *Builder) Configure(state State) StateConfiguration {
	if !b.states[state] {
		panic(fmt.Sprintf("workflow %s: undeclared state %s", b.kind, state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{
			fromState:   state,
			transitions: make(map[Event][]transition),
		}
		b.configurations[state] = config
	}

	return &builderConfig{builder: b, config: config}
}

// builderConfig wraps stateConfig so Permit can validate against the
// builder's declared sets.
type builderConfig struct {
	builder *Builder
	config  *stateConfig
}

// Permit allows an event to transition to the target state
func (c *builderConfig) Permit(event Event, toState State) StateConfiguration {
	return c.PermitIf(event, toState, nil)
}

// PermitIf allows the transition only while the guard condition passes
func (c *builderConfig) PermitIf(event Event, toState State, guard GuardFunc) StateConfiguration {
	if !c.builder.states[toState] {
		panic(fmt.Sprintf("workflow %s: undeclared target state %s", c.builder.kind, toState))
	}
	if !c.builder.events[event] {
		panic(fmt.Sprintf("workflow %s: undeclared event %s", c.builder.kind, event))
	}

	c.config.transitions[event] = append(c.config.transitions[event], transition{
		toState: toState,
		guard:   guard,
	})

	return c
}

// Build creates a machine instance positioned at the given initial state.
// The table is copied so machines stay independent of later builder use.
func (b *Builder) Build(initialState State) StateMachine {
	if !b.states[initialState] {
		panic(fmt.Sprintf("workflow %s: undeclared initial state %s", b.kind, initialState))
	}

	configsCopy := make(map[State]*stateConfig, len(b.configurations))
	for state, config := range b.configurations {
		transitionsCopy := make(map[Event][]transition, len(config.transitions))
		for event, transitions := range config.transitions {
			transitionsCopy[event] = append([]transition{}, transitions...)
		}
		configsCopy[state] = &stateConfig{
			fromState:   state,
			transitions: transitionsCopy,
		}
	}

	eventsCopy := make(map[Event]bool, len(b.events))
	for e := range b.events {
		eventsCopy[e] = true
	}

	return &stateMachine{
		kind:           b.kind,
		currentState:   initialState,
		events:         eventsCopy,
		configurations: configsCopy,
	}
}

// stateMachine implements StateMachine
type stateMachine struct {
	kind           string
	currentState   State
	events         map[Event]bool
	configurations map[State]*stateConfig
}

// State returns the current state
func (m *stateMachine) State() State {
	return m.currentState
}

// CanFire returns true if the event is permitted in the current state
func (m *stateMachine) CanFire(event Event) bool {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return false
	}
	return len(config.transitions[event]) > 0
}

// Fire attempts to apply the event, transitioning to the new state if allowed
func (m *stateMachine) Fire(ctx context.Context, event Event) error {
	if !m.events[event] {
		return fmt.Errorf("%w: %s event %s", ErrUnknownEvent, m.kind, event)
	}

	config, exists := m.configurations[m.currentState]
	if !exists || len(config.transitions[event]) == 0 {
		return fmt.Errorf("%w: %s cannot fire %s from %s", ErrIllegalTransition, m.kind, event, m.currentState)
	}

	// First transition whose guard passes wins
	for _, t := range config.transitions[event] {
		if t.guard == nil || t.guard(ctx) {
			m.currentState = t.toState
			return nil
		}
	}

	return fmt.Errorf("%w: %s event %s from %s", ErrGuardFailed, m.kind, event, m.currentState)
}

// PermittedEvents returns all events that can fire from the current state,
// sorted for stable output
func (m *stateMachine) PermittedEvents() []Event {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return []Event{}
	}

	events := make([]Event, 0, len(config.transitions))
	for event := range config.transitions {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })

	return events
}

// IsTerminal returns true if the current state has no outgoing transitions
func (m *stateMachine) IsTerminal() bool {
	config, exists := m.configurations[m.currentState]
	return !exists || len(config.transitions) == 0
}

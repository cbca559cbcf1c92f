package workflow

import "context"

// StateMachine tracks the current state of one request and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger has at least one transition from the current state
	CanFire(trigger Trigger) bool

	// Destination resolves the target state for trigger without moving the machine
	Destination(ctx context.Context, trigger Trigger) (State, error)

	// Fire moves the machine to the target state of trigger
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the triggers configured for the current state, sorted by name
	PermittedTriggers() []Trigger
}

package lifecycle

import (
	"errors"
	"fmt"
)

// State is a controller lifecycle state.
type State string

const (
	StateNew        State = "new"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

// ErrInvalidTransition is returned when a lifecycle step is attempted from
// a state that does not allow it.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

var transitions = map[State]State{
	StateNew:        StateInstalling,
	StateInstalling: StateInstalled,
	StateInstalled:  StateActivating,
	StateActivating: StateActivated,
}

// CanTransition reports whether a controller in state s may move to next.
// Every state except redundant itself may become redundant.
func (s State) CanTransition(next State) bool {
	if next == StateRedundant {
		return s != StateRedundant
	}
	return transitions[s] == next
}

// Waiting reports whether the state is installed but not yet activated.
func (s State) Waiting() bool {
	return s == StateInstalled
}

func checkTransition(from, to State) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

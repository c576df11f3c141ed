package ble

import (
	"errors"
	"fmt"
)

// State is the connection flow state.
type State int

// Connection states.
const (
	StateDisconnected State = iota
	StateRequesting
	StateConnecting
	StateConnected
)

// ErrIllegalTransition is returned for a transition the flow does not allow.
var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[State][]State{
	StateDisconnected: {StateRequesting, StateConnecting},
	StateRequesting:   {StateConnecting, StateDisconnected},
	StateConnecting:   {StateConnected, StateDisconnected},
	StateConnected:    {StateDisconnected},
}

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateRequesting:
		return "Requesting"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CanTransition reports whether the flow may move from s to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func transition(from, to State) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

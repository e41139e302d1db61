// Package session implements the Peer Session state machine (C9): the
// Device-side and Edge-side halves of a configure -> key-exchange -> prepare
// -> invoke/stream -> stop -> destroy lifecycle.
package session

import "github.com/beyondnet/beyond/internal/berr"

const component = "session"

// State enumerates the Peer Session lifecycle.
type State int

const (
	StateIdle State = iota
	StateConfigured
	StateActivated
	StatePrepared
	StateStreaming
	StateStopped
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConfigured:
		return "Configured"
	case StateActivated:
		return "Activated"
	case StatePrepared:
		return "Prepared"
	case StateStreaming:
		return "Streaming"
	case StateStopped:
		return "Stopped"
	case StateDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// transitions lists, for each state, the states reachable by one legal
// operation. A transition absent from this table is a SequenceError.
var transitions = map[State]map[State]bool{
	StateIdle:        {StateConfigured: true, StateActivated: true},
	StateConfigured:  {StateActivated: true, StateConfigured: true},
	StateActivated:   {StateActivated: true, StatePrepared: true, StateStopped: true},
	StatePrepared:    {StateStreaming: true, StateStopped: true},
	StateStreaming:   {StateStreaming: true, StateStopped: true},
	StateStopped:     {StateDestroyed: true},
	StateDestroyed:   {},
}

// transition validates and returns the next state, or a SequenceError.
func transition(current, next State) (State, error) {
	allowed, ok := transitions[current]
	if !ok || !allowed[next] {
		return current, berr.New(berr.SequenceError, component, "transition")
	}
	return next, nil
}

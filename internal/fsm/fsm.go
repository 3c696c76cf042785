// Package fsm defines the push-to-talk recording state machine.
package fsm

import (
	"errors"
	"fmt"
)

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateTerminated State = "terminated"
)

const (
	EventRecordStart Event = "record_start"
	EventRecordStop  Event = "record_stop"
	EventDiscard     Event = "discard"
	EventHandoffDone Event = "handoff_done"
	EventQuit        Event = "quit"
)

// ErrInvalidTransition is wrapped by every rejected transition.
var ErrInvalidTransition = errors.New("invalid transition")

func Transition(current State, event Event) (State, error) {
	if event == EventQuit {
		if current == StateTerminated {
			return current, invalidTransition(current, event)
		}
		if _, known := knownStates[current]; !known {
			return current, fmt.Errorf("unknown state %q", current)
		}
		return StateTerminated, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventRecordStart:
			return StateRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventRecordStop:
			return StateProcessing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateProcessing:
		switch event {
		case EventHandoffDone, EventDiscard:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateTerminated:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

var knownStates = map[State]struct{}{
	StateIdle:       {},
	StateRecording:  {},
	StateProcessing: {},
	StateTerminated: {},
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("%w: %s --(%s)--> ?", ErrInvalidTransition, state, event)
}

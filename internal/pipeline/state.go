package pipeline

import "fmt"

// State is the lifecycle phase of one extraction run.
type State string

const (
	StateDrafting      State = "DRAFTING"
	StateSelfImproving State = "SELF_IMPROVING"
	StateVerifying     State = "VERIFYING"
	StateReviewing     State = "REVIEWING"
	StateFixing        State = "FIXING"
	StateDeciding      State = "DECIDING"
	StateAccepted      State = "ACCEPTED"
	StateRejected      State = "REJECTED"
	StateFailed        State = "FAILED"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateRejected || s == StateFailed
}

// event drives transitions between states.
type event string

const (
	evAdvance  event = "advance"  // current stage finished, move forward
	evContinue event = "continue" // verdict: fix, then run another iteration
	evAccept   event = "accept"
	evReject   event = "reject"
	evFail     event = "fail"
)

// Machine is the pure transition function for the run lifecycle. It
// holds only the static review-stage toggle; all run state lives in
// the caller.
type Machine struct {
	reviewEnabled bool
}

func NewMachine(reviewEnabled bool) Machine {
	return Machine{reviewEnabled: reviewEnabled}
}

// Next returns the state after applying one event. Any event is legal
// to attempt; transitions not in the table return an error and leave
// interpretation to the caller. evFail is accepted from every
// non-terminal state.
func (m Machine) Next(current State, ev event) (State, error) {
	if current.Terminal() {
		return current, fmt.Errorf("state %s is terminal", current)
	}
	if ev == evFail {
		return StateFailed, nil
	}

	switch current {
	case StateDrafting:
		if ev == evAdvance {
			return StateSelfImproving, nil
		}
	case StateSelfImproving:
		if ev == evAdvance {
			return StateVerifying, nil
		}
	case StateVerifying:
		if ev == evAdvance {
			if m.reviewEnabled {
				return StateReviewing, nil
			}
			return StateDeciding, nil
		}
	case StateReviewing:
		if ev == evAdvance {
			return StateDeciding, nil
		}
	case StateDeciding:
		// The verdict is reached straight after verification, so an
		// accepting pass never installs unverified fix output.
		switch ev {
		case evContinue:
			return StateFixing, nil
		case evAccept:
			return StateAccepted, nil
		case evReject:
			return StateRejected, nil
		}
	case StateFixing:
		if ev == evAdvance {
			return StateVerifying, nil
		}
	}
	return current, fmt.Errorf("no transition from %s on %s", current, ev)
}

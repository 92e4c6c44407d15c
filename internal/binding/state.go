package binding

import "fmt"

// State is a step of the call lifecycle
type State int

const (
	StateInit State = iota
	StateSecurityBound
	StateParametersBound
	StateBodyPrepared
	StateSent
	StateStatusMatched
	StateDecoded
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateInit:            "Init",
	StateSecurityBound:   "SecurityBound",
	StateParametersBound: "ParametersBound",
	StateBodyPrepared:    "BodyPrepared",
	StateSent:            "Sent",
	StateStatusMatched:   "StatusMatched",
	StateDecoded:         "Decoded",
	StateDone:            "Done",
	StateFailed:          "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Observer is notified of every lifecycle transition
type Observer func(operationID string, from, to State)

// lifecycle enforces the strict state sequence of one call
type lifecycle struct {
	operationID string
	current     State
	observe     func(from, to State)
}

// advance moves to the next state in sequence
func (l *lifecycle) advance(to State) {
	if to != l.current+1 || l.current >= StateDone {
		panic(fmt.Sprintf("binding: illegal transition %s -> %s", l.current, to))
	}
	from := l.current
	l.current = to
	l.observe(from, to)
}

// fail records the terminal failure and wraps err with the state reached
func (l *lifecycle) fail(err error) *CallError {
	reached := l.current
	l.observe(reached, StateFailed)
	l.current = StateFailed
	return &CallError{OperationID: l.operationID, State: reached, Err: err}
}

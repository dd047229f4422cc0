package operation

import "fmt"

// State is the lifecycle position of an operation session.
type State uint32

const (
	Idle State = iota
	Executing
	Suspended
	Completed
	Stopped
	Failed
)

var stateNames = [...]string{
	Idle:      "idle",
	Executing: "executing",
	Suspended: "suspended",
	Completed: "completed",
	Stopped:   "stopped",
	Failed:    "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint32(s))
}

// Terminal reports whether only Reset can leave s.
func (s State) Terminal() bool {
	return s == Completed || s == Stopped || s == Failed
}

// Running reports whether a handler invocation is in flight.
func (s State) Running() bool {
	return s == Executing || s == Suspended
}

// MarshalText renders the state name in JSON documents and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Policy declares how Execute relates to the handler's work.
type Policy uint8

const (
	// SynchronousInvocation blocks Execute until the handler returns.
	SynchronousInvocation Policy = iota + 1
	// AsyncInvocation starts the handler in the background; callers poll Status.
	AsyncInvocation
)

func (p Policy) String() string {
	switch p {
	case SynchronousInvocation:
		return "synchronous"
	case AsyncInvocation:
		return "asynchronous"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// Valid reports whether p is one of the declared policies.
func (p Policy) Valid() bool {
	return p == SynchronousInvocation || p == AsyncInvocation
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Package cycluserr defines the closed set of error kinds the simulation
// kernel raises, plus the agent-context wrapper used to attach
// (prototype, spec, id, time) to an error thrown from inside an agent
// callback.
package cycluserr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of behavioral error kinds the kernel can raise.
type Kind int

const (
	// KindValueError marks a numeric constraint violation: negative
	// quantity, over-capacity push, quantity exceeding a buffer's total,
	// an invalid distribution parameter.
	KindValueError Kind = iota
	// KindKeyError marks a lookup miss: unknown recipe, unknown package,
	// duplicate object push, unregistered producer.
	KindKeyError
	// KindStateError marks an invalid lifecycle transition: Build on an
	// already-built agent, Decommission before Build, dereferencing a
	// freed agent id.
	KindStateError
	// KindIoError marks a backend or loader failure surfaced from an
	// external collaborator.
	KindIoError
	// KindAssertionError marks a broken invariant: conservation broken, a
	// tree cycle detected. Fatal.
	KindAssertionError
)

func (k Kind) String() string {
	switch k {
	case KindValueError:
		return "ValueError"
	case KindKeyError:
		return "KeyError"
	case KindStateError:
		return "StateError"
	case KindIoError:
		return "IoError"
	case KindAssertionError:
		return "AssertionError"
	default:
		return "UnknownError"
	}
}

// Error is a typed kernel error. It wraps an underlying cause and carries
// the kind so callers can branch on it with errors.Is / errors.As without
// string matching.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Is supports errors.Is(err, cycluserr.ValueError) style kind checks by
// comparing Kind, not identity.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind && other.msg == "" && other.cause == nil
	}
	return false
}

func newKind(kind Kind) *Error { return &Error{Kind: kind} }

// Sentinel values usable with errors.Is(err, cycluserr.ValueError), etc.
// They carry no message; the matching relies on Kind equality via Is above.
var (
	ValueError     = newKind(KindValueError)
	KeyError       = newKind(KindKeyError)
	StateError     = newKind(KindStateError)
	IoError        = newKind(KindIoError)
	AssertionError = newKind(KindAssertionError)
)

// Newf builds a Kind error with a formatted message and no cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrapf builds a Kind error with a formatted message wrapping cause.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

// AgentContext is attached to any error raised from inside an agent
// callback per spec §7: "all errors carry the agent's (prototype, spec,
// id) and current simulation time when thrown from inside an agent
// callback."
type AgentContext struct {
	Prototype string
	Spec      string
	AgentID   int64
	Time      int
	cause     error
}

func (a *AgentContext) Error() string {
	return fmt.Sprintf("agent[%s spec=%s id=%d t=%d]: %v", a.Prototype, a.Spec, a.AgentID, a.Time, a.cause)
}

func (a *AgentContext) Unwrap() error { return a.cause }

// WithAgent annotates err with the calling agent's identity and the
// current simulation time.
func WithAgent(err error, prototype, spec string, agentID int64, t int) error {
	if err == nil {
		return nil
	}
	return &AgentContext{Prototype: prototype, Spec: spec, AgentID: agentID, Time: t, cause: err}
}

package chain

import (
	"errors"
	"fmt"
)

// Kinds of construction-time failures. A *ValidationError matches its kind
// with errors.Is.
var (
	ErrInvalidRootCount  = errors.New("mechanism must have exactly one fixed body")
	ErrSelfMate          = errors.New("body mated to itself")
	ErrUnknownBody       = errors.New("mate references unknown body")
	ErrDuplicateBody     = errors.New("duplicate body index")
	ErrDuplicateMate     = errors.New("duplicate mate index")
	ErrUnknownJoint      = errors.New("mate references unknown joint")
	ErrClosedChain       = errors.New("mate closes a kinematic loop")
	ErrJointTypeMismatch = errors.New("mate joints have different types")
)

// ValidationError describes why a System cannot be turned into a tree.
type ValidationError struct {
	Kind error
	Mate int // -1 when not tied to a mate
	Body int // -1 when not tied to a body
	Msg  string
}

func (e *ValidationError) Error() string {
	s := e.Kind.Error()
	if e.Mate >= 0 {
		s = fmt.Sprintf("%s (mate %d)", s, e.Mate)
	}
	if e.Body >= 0 {
		s = fmt.Sprintf("%s (body %d)", s, e.Body)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *ValidationError) Unwrap() error { return e.Kind }

func invalid(kind error, mate, body int, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Kind: kind, Mate: mate, Body: body, Msg: fmt.Sprintf(format, args...)}
}

package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Host-visible errors
// ---------------------------------------------------------------------------

// ErrorKind is the closed set of error categories surfaced to callers.
type ErrorKind uint8

const (
	SyntaxError ErrorKind = iota
	TypeError
	ReferenceError
	RangeError
	InternalError
	IOError
)

var errorKindNames = [...]string{
	SyntaxError:    "SyntaxError",
	TypeError:      "TypeError",
	ReferenceError: "ReferenceError",
	RangeError:     "RangeError",
	InternalError:  "InternalError",
	IOError:        "IOError",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return "Error"
}

// ErrorKindByName maps a script error constructor name to its kind.
func ErrorKindByName(name string) (ErrorKind, bool) {
	for k, n := range errorKindNames {
		if n == name && ErrorKind(k) != IOError {
			return ErrorKind(k), true
		}
	}
	return InternalError, false
}

// Error is the error type returned by compilation and execution.
type Error struct {
	Kind    ErrorKind
	Message string

	// Thrown is the script value of an uncaught throw, or Undefined.
	Thrown Value
}

// NewError creates an Error.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates an Error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Message
}

// Is matches errors of the same kind, so errors.Is(err, &vm.Error{Kind: vm.TypeError})
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Script-level throws
// ---------------------------------------------------------------------------

// Exception carries a thrown script value while the VM unwinds. Natives
// return it to throw; it is converted to *Error when it escapes Execute.
type Exception struct {
	Value Value
}

func (e *Exception) Error() string {
	return "Uncaught " + e.Value.String()
}

// Throw returns an error that throws v into the running script.
func Throw(v Value) error {
	return &Exception{Value: v}
}

// throwError creates an error object of the given kind and returns it as a
// script exception.
func (vm *VM) throwError(kind ErrorKind, format string, args ...any) error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	obj, err := vm.newErrorObject(kind.String(), msg)
	if err != nil {
		return err
	}
	return &Exception{Value: obj}
}

// toScriptError converts an *Error raised inside an operation (for example
// from Environment.Get) into a catchable exception. Other errors pass
// through unchanged.
func (vm *VM) toScriptError(err error) error {
	if err == nil {
		return nil
	}
	var exc *Exception
	if errors.As(err, &exc) {
		return exc
	}
	if e, ok := AsError(err); ok && e.Kind != InternalError && e.Kind != IOError {
		return vm.throwError(e.Kind, "%s", e.Message)
	}
	return err
}

// hostError converts an uncaught script exception into an *Error.
func (vm *VM) hostError(err error) error {
	var exc *Exception
	if !errors.As(err, &exc) {
		return err
	}
	v := exc.Value
	if o := v.Object(); o != nil && o.Class == ClassError {
		name := "Error"
		if n, ok := vm.getOwnOrProto(o, "name"); ok {
			name = n.String()
		}
		msg := ""
		if m, ok := o.Props.Get("message"); ok {
			msg = m.String()
		}
		if kind, ok := ErrorKindByName(name); ok {
			return &Error{Kind: kind, Message: msg, Thrown: v}
		}
		if msg != "" {
			msg = name + ": " + msg
		} else {
			msg = name
		}
		return &Error{Kind: InternalError, Message: "Uncaught " + msg, Thrown: v}
	}
	return &Error{Kind: InternalError, Message: "Uncaught " + v.String(), Thrown: v}
}

package vm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Exception objects
// ---------------------------------------------------------------------------

// Exception is an instance of Exception or one of its subclasses.
type Exception struct {
	class     *Class
	message   string
	backtrace []string
	cause     *Exception
}

// NewException builds an exception without a backtrace.
func NewException(class *Class, message string) *Exception {
	return &Exception{class: class, message: message}
}

// Class returns the exception's class.
func (e *Exception) Class() *Class { return e.class }

// Message returns the exception message.
func (e *Exception) Message() string { return e.message }

// Backtrace returns the frames captured when the exception was raised.
func (e *Exception) Backtrace() []string { return e.backtrace }

// Cause returns the exception that was active when this one was raised.
func (e *Exception) Cause() *Exception { return e.cause }

// IsKindOf reports whether the exception is an instance of class or a
// subclass.
func (e *Exception) IsKindOf(class *Class) bool {
	return e.class.IsSubclassOf(class)
}

// ---------------------------------------------------------------------------
// Raising
// ---------------------------------------------------------------------------

// Raise returns a fault carrying a new exception of class with a backtrace
// taken from the frame stack.
func (c *ThreadContext) Raise(class *Class, format string, args ...any) error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return c.RaiseException(NewException(class, msg))
}

// RaiseException fills in exc's backtrace if it has none and returns it as
// a fault.
func (c *ThreadContext) RaiseException(exc *Exception) error {
	if exc.backtrace == nil {
		exc.backtrace = c.Backtrace()
	}
	return &RaiseException{Exception: exc}
}

// ArgumentCountError reports a call with the wrong number of arguments.
func (c *ThreadContext) ArgumentCountError(given int, expected string) error {
	return c.Raise(c.runtime.ArgumentErrorClass,
		"wrong number of arguments (given %d, expected %s)", given, expected)
}

// TypeError reports an operand of the wrong kind.
func (c *ThreadContext) TypeError(format string, args ...any) error {
	return c.Raise(c.runtime.TypeErrorClass, format, args...)
}

// LocalJumpError reports a break or return with no live target.
func (c *ThreadContext) LocalJumpError(msg string) error {
	return c.Raise(c.runtime.LocalJumpErrorClass, "%s", msg)
}

// NoMethodError reports a failed or forbidden method lookup.
func (c *ThreadContext) NoMethodError(format string, args ...any) error {
	return c.Raise(c.runtime.NoMethodErrorClass, format, args...)
}

const (
	breakFromProcMessage  = "break from proc-closure"
	staleReturnMessage    = "return from stale block"
	unexpectedReturnError = "unexpected return"
)

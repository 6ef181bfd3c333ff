package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Faults
// ---------------------------------------------------------------------------

// RaiseException carries a language-level exception through Go error
// returns. It is what a rescue range catches.
type RaiseException struct {
	Exception *Exception
}

func (e *RaiseException) Error() string {
	return e.Exception.class.Name + ": " + e.Exception.message
}

// AsException extracts the language exception from err, if it carries one.
func AsException(err error) (*Exception, bool) {
	var re *RaiseException
	if errors.As(err, &re) {
		return re.Exception, true
	}
	return nil, false
}

// Unrescuable marks faults that bypass every rescue and ensure range in
// every frame, such as thread termination.
type Unrescuable interface {
	error
	Unrescuable()
}

// ThreadKill terminates a ThreadContext at its next poll.
type ThreadKill struct {
	Cause error
}

func (k *ThreadKill) Error() string {
	if k.Cause != nil {
		return "thread killed: " + k.Cause.Error()
	}
	return "thread killed"
}

func (k *ThreadKill) Unwrap() error { return k.Cause }
func (k *ThreadKill) Unrescuable()  {}

// IsUnrescuable reports whether err must skip all rescue handling.
func IsUnrescuable(err error) bool {
	var u Unrescuable
	return errors.As(err, &u)
}

// ---------------------------------------------------------------------------
// Control transfers (uses Go panic/recover)
// ---------------------------------------------------------------------------

// TransferKind distinguishes the two non-local control transfers.
type TransferKind uint8

const (
	TransferBreak TransferKind = iota
	TransferNonlocalReturn
)

func (k TransferKind) String() string {
	if k == TransferBreak {
		return "break"
	}
	return "return"
}

// ControlTransfer is panicked to unwind to a specific activation. A break
// names the binding of the block whose CallIter site claims it. A non-local
// return names the dynamic scope of the method activation that returns.
type ControlTransfer struct {
	Kind    TransferKind
	Value   Value
	Binding *Binding
	Scope   *DynamicScope
}

func (t *ControlTransfer) String() string {
	return fmt.Sprintf("%s transfer (%s)", t.Kind, Inspect(t.Value))
}

// operandFault carries a fault raised while reading an operand, where
// there is no error return to hand it back through. The dispatch loop
// routes it like any other fault of the current instruction.
type operandFault struct {
	err error
}

// ---------------------------------------------------------------------------
// Interpreter bugs
// ---------------------------------------------------------------------------

// BugError reports a broken interpreter or compiler invariant. It is
// panicked and never rescued.
type BugError struct {
	Msg string
}

func (e *BugError) Error() string { return "BUG: " + e.Msg }

func bug(format string, args ...any) {
	panic(&BugError{Msg: fmt.Sprintf(format, args...)})
}

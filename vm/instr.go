package vm

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// Instr is one IR instruction. Each operation has its own struct carrying
// only the fields it needs.
type Instr interface {
	Op() Operation
	CanRaise() bool
	String() string

	// Inputs lists the operands the instruction reads.
	Inputs() []Operand
	// Output is the operand the instruction writes, or nil.
	Output() Operand
}

type base struct {
	op Operation
}

func (b base) Op() Operation  { return b.op }
func (b base) CanRaise() bool { return b.op.CanRaise() }

func format(result Operand, op Operation, args ...any) string {
	var sb strings.Builder
	if result != nil {
		sb.WriteString(result.String())
		sb.WriteString(" = ")
	}
	sb.WriteString(op.String())
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		switch x := a.(type) {
		case Operand:
			sb.WriteString(x.String())
		case []Operand:
			sb.WriteByte('[')
			for j, o := range x {
				if j > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(o.String())
			}
			sb.WriteByte(']')
		default:
			fmt.Fprint(&sb, x)
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

func nonNil(ops ...Operand) []Operand {
	out := ops[:0:0]
	for _, o := range ops {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// ALU, copy and boxing
// ---------------------------------------------------------------------------

// AluInstr is an integer or float arithmetic or comparison. Comparisons
// write a boolean temp; arithmetic writes a temp of the operation's bank.
type AluInstr struct {
	base
	Result     Temp
	Arg1, Arg2 Operand
}

// NewAluInstr builds an IntOp or FloatOp instruction.
func NewAluInstr(op Operation, result Temp, arg1, arg2 Operand) *AluInstr {
	return &AluInstr{base: base{op}, Result: result, Arg1: arg1, Arg2: arg2}
}

func (i *AluInstr) String() string    { return format(i.Result, i.op, i.Arg1, i.Arg2) }
func (i *AluInstr) Inputs() []Operand { return []Operand{i.Arg1, i.Arg2} }
func (i *AluInstr) Output() Operand   { return i.Result }

// CopyInstr moves a value into a destination, converting to the
// destination's bank.
type CopyInstr struct {
	Result Operand
	Source Operand
}

func (i *CopyInstr) Op() Operation     { return COPY }
func (i *CopyInstr) CanRaise() bool    { return false }
func (i *CopyInstr) String() string    { return format(i.Result, COPY, i.Source) }
func (i *CopyInstr) Inputs() []Operand { return []Operand{i.Source} }
func (i *CopyInstr) Output() Operand   { return i.Result }

// BoxInstr wraps a raw register value as an object.
type BoxInstr struct {
	base
	Result Operand
	Value  Operand
}

// NewBoxInstr builds a BOX_FIXNUM, BOX_FLOAT or BOX_BOOLEAN instruction.
func NewBoxInstr(op Operation, result, value Operand) *BoxInstr {
	return &BoxInstr{base: base{op}, Result: result, Value: value}
}

func (i *BoxInstr) String() string    { return format(i.Result, i.op, i.Value) }
func (i *BoxInstr) Inputs() []Operand { return []Operand{i.Value} }
func (i *BoxInstr) Output() Operand   { return i.Result }

// UnboxInstr extracts a raw value from an object into a typed temp.
type UnboxInstr struct {
	base
	Result Temp
	Value  Operand
}

// NewUnboxInstr builds an UNBOX_FIXNUM, UNBOX_FLOAT or UNBOX_BOOLEAN
// instruction.
func NewUnboxInstr(op Operation, result Temp, value Operand) *UnboxInstr {
	return &UnboxInstr{base: base{op}, Result: result, Value: value}
}

func (i *UnboxInstr) String() string    { return format(i.Result, i.op, i.Value) }
func (i *UnboxInstr) Inputs() []Operand { return []Operand{i.Value} }
func (i *UnboxInstr) Output() Operand   { return i.Result }

// ---------------------------------------------------------------------------
// Branches
// ---------------------------------------------------------------------------

// JumpInstr transfers control unconditionally.
type JumpInstr struct {
	Target int
}

func (i *JumpInstr) Op() Operation     { return JUMP }
func (i *JumpInstr) CanRaise() bool    { return false }
func (i *JumpInstr) String() string    { return format(nil, JUMP, "@"+strconv.Itoa(i.Target)) }
func (i *JumpInstr) Inputs() []Operand { return nil }
func (i *JumpInstr) Output() Operand   { return nil }

// BranchInstr jumps to Target when its condition holds. Arg2 is only used
// by BEQ and BNE.
type BranchInstr struct {
	base
	Arg1, Arg2 Operand
	Target     int
}

// NewBranchInstr builds a conditional branch.
func NewBranchInstr(op Operation, arg1, arg2 Operand, target int) *BranchInstr {
	return &BranchInstr{base: base{op}, Arg1: arg1, Arg2: arg2, Target: target}
}

func (i *BranchInstr) String() string {
	if i.Arg2 == nil {
		return format(nil, i.op, i.Arg1, "@"+strconv.Itoa(i.Target))
	}
	return format(nil, i.op, i.Arg1, i.Arg2, "@"+strconv.Itoa(i.Target))
}

func (i *BranchInstr) Inputs() []Operand { return nonNil(i.Arg1, i.Arg2) }
func (i *BranchInstr) Output() Operand   { return nil }

// ---------------------------------------------------------------------------
// Argument receiving
// ---------------------------------------------------------------------------

// ReceiveSelfInstr copies self into Result.
type ReceiveSelfInstr struct {
	Result Operand
}

func (i *ReceiveSelfInstr) Op() Operation     { return RECV_SELF }
func (i *ReceiveSelfInstr) CanRaise() bool    { return false }
func (i *ReceiveSelfInstr) String() string    { return format(i.Result, RECV_SELF) }
func (i *ReceiveSelfInstr) Inputs() []Operand { return nil }
func (i *ReceiveSelfInstr) Output() Operand   { return i.Result }

// ReceivePreReqdArgInstr reads leading required argument Index. Missing
// arguments read as nil.
type ReceivePreReqdArgInstr struct {
	Result Operand
	Index  int
}

func (i *ReceivePreReqdArgInstr) Op() Operation  { return RECV_PRE_REQD_ARG }
func (i *ReceivePreReqdArgInstr) CanRaise() bool { return false }
func (i *ReceivePreReqdArgInstr) String() string {
	return format(i.Result, RECV_PRE_REQD_ARG, i.Index)
}
func (i *ReceivePreReqdArgInstr) Inputs() []Operand { return nil }
func (i *ReceivePreReqdArgInstr) Output() Operand   { return i.Result }

// ReceivePostReqdArgInstr reads trailing required argument Index out of
// PostReqd, after PreReqd leading ones.
type ReceivePostReqdArgInstr struct {
	Result   Operand
	Index    int
	PreReqd  int
	PostReqd int
}

func (i *ReceivePostReqdArgInstr) Op() Operation  { return RECV_POST_REQD_ARG }
func (i *ReceivePostReqdArgInstr) CanRaise() bool { return false }
func (i *ReceivePostReqdArgInstr) String() string {
	return format(i.Result, RECV_POST_REQD_ARG, i.Index, i.PreReqd, i.PostReqd)
}
func (i *ReceivePostReqdArgInstr) Inputs() []Operand { return nil }
func (i *ReceivePostReqdArgInstr) Output() Operand   { return i.Result }

// ReceiveOptArgInstr reads optional argument at absolute position Index,
// or Undefined when the caller did not supply it.
type ReceiveOptArgInstr struct {
	Result   Operand
	Index    int
	PostReqd int
}

func (i *ReceiveOptArgInstr) Op() Operation  { return RECV_OPT_ARG }
func (i *ReceiveOptArgInstr) CanRaise() bool { return false }
func (i *ReceiveOptArgInstr) String() string {
	return format(i.Result, RECV_OPT_ARG, i.Index, i.PostReqd)
}
func (i *ReceiveOptArgInstr) Inputs() []Operand { return nil }
func (i *ReceiveOptArgInstr) Output() Operand   { return i.Result }

// ReceiveRestArgInstr collects the arguments between the leading and
// trailing ones into an array.
type ReceiveRestArgInstr struct {
	Result   Operand
	PreReqd  int
	Optional int
	PostReqd int
}

func (i *ReceiveRestArgInstr) Op() Operation  { return RECV_REST_ARG }
func (i *ReceiveRestArgInstr) CanRaise() bool { return false }
func (i *ReceiveRestArgInstr) String() string {
	return format(i.Result, RECV_REST_ARG, i.PreReqd, i.Optional, i.PostReqd)
}
func (i *ReceiveRestArgInstr) Inputs() []Operand { return nil }
func (i *ReceiveRestArgInstr) Output() Operand   { return i.Result }

// ReceiveKeywordArgInstr reads keyword Name. A missing required keyword
// raises ArgumentError; a missing optional one reads as Undefined.
type ReceiveKeywordArgInstr struct {
	Result   Operand
	Name     string
	Required bool
}

func (i *ReceiveKeywordArgInstr) Op() Operation  { return RECV_KW_ARG }
func (i *ReceiveKeywordArgInstr) CanRaise() bool { return true }
func (i *ReceiveKeywordArgInstr) String() string {
	return format(i.Result, RECV_KW_ARG, i.Name, i.Required)
}
func (i *ReceiveKeywordArgInstr) Inputs() []Operand { return nil }
func (i *ReceiveKeywordArgInstr) Output() Operand   { return i.Result }

// ReceiveExceptionInstr reads the activation's current exception cell.
// RECV_EXC unwraps language exceptions; RECV_HOST_EXC keeps the raw fault.
type ReceiveExceptionInstr struct {
	base
	Result Operand
}

// NewReceiveExceptionInstr builds a RECV_EXC or RECV_HOST_EXC instruction.
func NewReceiveExceptionInstr(op Operation, result Operand) *ReceiveExceptionInstr {
	return &ReceiveExceptionInstr{base: base{op}, Result: result}
}

func (i *ReceiveExceptionInstr) String() string    { return format(i.Result, i.op) }
func (i *ReceiveExceptionInstr) Inputs() []Operand { return nil }
func (i *ReceiveExceptionInstr) Output() Operand   { return i.Result }

// LoadImplicitClosureInstr reads the block passed to this activation.
type LoadImplicitClosureInstr struct {
	Result Operand
}

func (i *LoadImplicitClosureInstr) Op() Operation     { return LOAD_IMPLICIT_CLOSURE }
func (i *LoadImplicitClosureInstr) CanRaise() bool    { return false }
func (i *LoadImplicitClosureInstr) String() string    { return format(i.Result, LOAD_IMPLICIT_CLOSURE) }
func (i *LoadImplicitClosureInstr) Inputs() []Operand { return nil }
func (i *LoadImplicitClosureInstr) Output() Operand   { return i.Result }

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// CallInstr invokes a method through its call site. Closure is nil when no
// block is passed. LiteralClosure is set when the block is written at the
// call, which makes the call the target of a break from it.
type CallInstr struct {
	base
	Result         Operand
	Receiver       Operand
	Args           []Operand
	Closure        Operand
	LiteralClosure bool
	Site           *CallSite
	Flags          CallFlags
	Splat          bool
}

// NewCallInstr builds a CALL, or a NORESULT_CALL when result is nil.
func NewCallInstr(result Operand, name string, callType CallType, receiver Operand, args []Operand, closure Operand) *CallInstr {
	op := CALL
	if result == nil {
		op = NORESULT_CALL
	}
	return &CallInstr{
		base:     base{op},
		Result:   result,
		Receiver: receiver,
		Args:     args,
		Closure:  closure,
		Site:     NewCallSite(name, callType),
	}
}

func (i *CallInstr) String() string {
	args := []any{SymbolConst{i.Site.Name()}, i.Receiver, i.Args}
	if i.Closure != nil {
		c := "&" + i.Closure.String()
		if i.LiteralClosure {
			c += "!"
		}
		args = append(args, c)
	}
	if i.Splat {
		args = append(args, "splat")
	}
	return format(i.Result, i.op, args...)
}

func (i *CallInstr) Inputs() []Operand {
	in := make([]Operand, 0, len(i.Args)+2)
	in = append(in, i.Receiver)
	in = append(in, i.Args...)
	if i.Closure != nil {
		in = append(in, i.Closure)
	}
	return in
}

func (i *CallInstr) Output() Operand { return i.Result }

// FrameNameCallInstr returns the name of the method the frame is running.
type FrameNameCallInstr struct {
	Result Operand
}

func (i *FrameNameCallInstr) Op() Operation     { return FRAME_NAME_CALL }
func (i *FrameNameCallInstr) CanRaise() bool    { return false }
func (i *FrameNameCallInstr) String() string    { return format(i.Result, FRAME_NAME_CALL) }
func (i *FrameNameCallInstr) Inputs() []Operand { return nil }
func (i *FrameNameCallInstr) Output() Operand   { return i.Result }

// ---------------------------------------------------------------------------
// Returns
// ---------------------------------------------------------------------------

// ReturnInstr ends the activation with RETURN, BREAK or NONLOCAL_RETURN.
type ReturnInstr struct {
	base
	Value Operand
}

// NewReturnInstr builds a return-class instruction.
func NewReturnInstr(op Operation, value Operand) *ReturnInstr {
	return &ReturnInstr{base: base{op}, Value: value}
}

func (i *ReturnInstr) String() string    { return format(nil, i.op, i.Value) }
func (i *ReturnInstr) Inputs() []Operand { return []Operand{i.Value} }
func (i *ReturnInstr) Output() Operand   { return nil }

// ---------------------------------------------------------------------------
// Bookkeeping
// ---------------------------------------------------------------------------

// LabelInstr marks a jump target. It does nothing at runtime.
type LabelInstr struct {
	Name string
}

func (i *LabelInstr) Op() Operation     { return LABEL }
func (i *LabelInstr) CanRaise() bool    { return false }
func (i *LabelInstr) String() string    { return i.Name + ":" }
func (i *LabelInstr) Inputs() []Operand { return nil }
func (i *LabelInstr) Output() Operand   { return nil }

// BookKeepingInstr is a bookkeeping operation with no operands.
type BookKeepingInstr struct {
	base
}

// NewBookKeepingInstr builds an operand-free bookkeeping instruction.
func NewBookKeepingInstr(op Operation) *BookKeepingInstr {
	return &BookKeepingInstr{base: base{op}}
}

func (i *BookKeepingInstr) String() string    { return format(nil, i.op) }
func (i *BookKeepingInstr) Inputs() []Operand { return nil }
func (i *BookKeepingInstr) Output() Operand   { return nil }

// PushMethodFrameInstr pushes a frame for the running method.
type PushMethodFrameInstr struct {
	Visibility Visibility
}

func (i *PushMethodFrameInstr) Op() Operation     { return PUSH_METHOD_FRAME }
func (i *PushMethodFrameInstr) CanRaise() bool    { return false }
func (i *PushMethodFrameInstr) String() string    { return format(nil, PUSH_METHOD_FRAME, i.Visibility) }
func (i *PushMethodFrameInstr) Inputs() []Operand { return nil }
func (i *PushMethodFrameInstr) Output() Operand   { return nil }

// PushBlockFrameInstr pushes a copy of the block binding's frame and saves
// it in Result for the matching pop.
type PushBlockFrameInstr struct {
	Result Operand
}

func (i *PushBlockFrameInstr) Op() Operation     { return PUSH_BLOCK_FRAME }
func (i *PushBlockFrameInstr) CanRaise() bool    { return false }
func (i *PushBlockFrameInstr) String() string    { return format(i.Result, PUSH_BLOCK_FRAME) }
func (i *PushBlockFrameInstr) Inputs() []Operand { return nil }
func (i *PushBlockFrameInstr) Output() Operand   { return i.Result }

// PopBlockFrameInstr pops the frame pushed by PUSH_BLOCK_FRAME.
type PopBlockFrameInstr struct {
	Frame Operand
}

func (i *PopBlockFrameInstr) Op() Operation     { return POP_BLOCK_FRAME }
func (i *PopBlockFrameInstr) CanRaise() bool    { return false }
func (i *PopBlockFrameInstr) String() string    { return format(nil, POP_BLOCK_FRAME, i.Frame) }
func (i *PopBlockFrameInstr) Inputs() []Operand { return []Operand{i.Frame} }
func (i *PopBlockFrameInstr) Output() Operand   { return nil }

// SaveBindingVisibilityInstr stores the binding frame's visibility.
type SaveBindingVisibilityInstr struct {
	Result Operand
}

func (i *SaveBindingVisibilityInstr) Op() Operation     { return SAVE_BINDING_VIZ }
func (i *SaveBindingVisibilityInstr) CanRaise() bool    { return false }
func (i *SaveBindingVisibilityInstr) String() string    { return format(i.Result, SAVE_BINDING_VIZ) }
func (i *SaveBindingVisibilityInstr) Inputs() []Operand { return nil }
func (i *SaveBindingVisibilityInstr) Output() Operand   { return i.Result }

// RestoreBindingVisibilityInstr writes a saved visibility back.
type RestoreBindingVisibilityInstr struct {
	Visibility Operand
}

func (i *RestoreBindingVisibilityInstr) Op() Operation  { return RESTORE_BINDING_VIZ }
func (i *RestoreBindingVisibilityInstr) CanRaise() bool { return false }
func (i *RestoreBindingVisibilityInstr) String() string {
	return format(nil, RESTORE_BINDING_VIZ, i.Visibility)
}
func (i *RestoreBindingVisibilityInstr) Inputs() []Operand { return []Operand{i.Visibility} }
func (i *RestoreBindingVisibilityInstr) Output() Operand   { return nil }

// CheckArityInstr validates the argument count. Rest means any number of
// extra arguments is accepted.
type CheckArityInstr struct {
	Required int
	Optional int
	Rest     bool
}

func (i *CheckArityInstr) Op() Operation  { return CHECK_ARITY }
func (i *CheckArityInstr) CanRaise() bool { return true }
func (i *CheckArityInstr) String() string {
	return format(nil, CHECK_ARITY, i.Required, i.Optional, i.Rest)
}
func (i *CheckArityInstr) Inputs() []Operand { return nil }
func (i *CheckArityInstr) Output() Operand   { return nil }

// LineNumberInstr records the current source line. A line marked for
// coverage is counted by the profiler each time it runs, or only the first
// time when OneShot is set.
type LineNumberInstr struct {
	Line     int
	Coverage bool
	OneShot  bool

	spent atomic.Bool
}

func (i *LineNumberInstr) Op() Operation     { return LINE_NUM }
func (i *LineNumberInstr) CanRaise() bool    { return false }
func (i *LineNumberInstr) Inputs() []Operand { return nil }
func (i *LineNumberInstr) Output() Operand   { return nil }

func (i *LineNumberInstr) String() string {
	switch {
	case i.Coverage && i.OneShot:
		return format(nil, LINE_NUM, i.Line, "oneshot")
	case i.Coverage:
		return format(nil, LINE_NUM, i.Line, "coverage")
	}
	return format(nil, LINE_NUM, i.Line)
}

// covers reports whether this execution of the line should be counted.
func (i *LineNumberInstr) covers() bool {
	if !i.Coverage {
		return false
	}
	return !i.OneShot || i.spent.CompareAndSwap(false, true)
}

// ---------------------------------------------------------------------------
// Closures, exceptions and fields
// ---------------------------------------------------------------------------

// BuildClosureInstr creates a block over the current binding.
type BuildClosureInstr struct {
	Result Operand
	Body   *CompiledUnit
}

func (i *BuildClosureInstr) Op() Operation     { return BUILD_CLOSURE }
func (i *BuildClosureInstr) CanRaise() bool    { return false }
func (i *BuildClosureInstr) String() string    { return format(i.Result, BUILD_CLOSURE, i.Body.Name) }
func (i *BuildClosureInstr) Inputs() []Operand { return nil }
func (i *BuildClosureInstr) Output() Operand   { return i.Result }

// CheckForLJEInstr raises LocalJumpError when a return inside a block has
// no live method to return from.
type CheckForLJEInstr struct {
	MaybeLambda bool
}

func (i *CheckForLJEInstr) Op() Operation     { return CHECK_FOR_LJE }
func (i *CheckForLJEInstr) CanRaise() bool    { return true }
func (i *CheckForLJEInstr) String() string    { return format(nil, CHECK_FOR_LJE, i.MaybeLambda) }
func (i *CheckForLJEInstr) Inputs() []Operand { return nil }
func (i *CheckForLJEInstr) Output() Operand   { return nil }

// ThrowExceptionInstr raises an exception, or resumes a fault or control
// transfer saved by an ensure handler.
type ThrowExceptionInstr struct {
	Exception Operand
}

func (i *ThrowExceptionInstr) Op() Operation     { return THROW_EXCEPTION }
func (i *ThrowExceptionInstr) CanRaise() bool    { return true }
func (i *ThrowExceptionInstr) String() string    { return format(nil, THROW_EXCEPTION, i.Exception) }
func (i *ThrowExceptionInstr) Inputs() []Operand { return []Operand{i.Exception} }
func (i *ThrowExceptionInstr) Output() Operand   { return nil }

// RescueMatchInstr tests an exception against rescue clause classes.
type RescueMatchInstr struct {
	Result    Operand
	Exception Operand
	Classes   []Operand
}

func (i *RescueMatchInstr) Op() Operation  { return RESCUE_EXCEPTION_MATCH }
func (i *RescueMatchInstr) CanRaise() bool { return true }
func (i *RescueMatchInstr) String() string {
	return format(i.Result, RESCUE_EXCEPTION_MATCH, i.Exception, i.Classes)
}
func (i *RescueMatchInstr) Inputs() []Operand {
	return append([]Operand{i.Exception}, i.Classes...)
}
func (i *RescueMatchInstr) Output() Operand { return i.Result }

// GetFieldInstr reads an instance variable.
type GetFieldInstr struct {
	Result Operand
	Object Operand
	Name   string
}

func (i *GetFieldInstr) Op() Operation     { return GET_FIELD }
func (i *GetFieldInstr) CanRaise() bool    { return false }
func (i *GetFieldInstr) String() string    { return format(i.Result, GET_FIELD, i.Object, i.Name) }
func (i *GetFieldInstr) Inputs() []Operand { return []Operand{i.Object} }
func (i *GetFieldInstr) Output() Operand   { return i.Result }

// PutFieldInstr writes an instance variable.
type PutFieldInstr struct {
	Object Operand
	Name   string
	Value  Operand
}

func (i *PutFieldInstr) Op() Operation     { return PUT_FIELD }
func (i *PutFieldInstr) CanRaise() bool    { return true }
func (i *PutFieldInstr) String() string    { return format(nil, PUT_FIELD, i.Object, i.Name, i.Value) }
func (i *PutFieldInstr) Inputs() []Operand { return []Operand{i.Object, i.Value} }
func (i *PutFieldInstr) Output() Operand   { return nil }

// LoadFrameClosureInstr reads the block of the current frame.
type LoadFrameClosureInstr struct {
	Result Operand
}

func (i *LoadFrameClosureInstr) Op() Operation     { return LOAD_FRAME_CLOSURE }
func (i *LoadFrameClosureInstr) CanRaise() bool    { return false }
func (i *LoadFrameClosureInstr) String() string    { return format(i.Result, LOAD_FRAME_CLOSURE) }
func (i *LoadFrameClosureInstr) Inputs() []Operand { return nil }
func (i *LoadFrameClosureInstr) Output() Operand   { return i.Result }

// LoadBlockImplicitClosureInstr reads the block that was passed to the
// method a block was created in, so yield works inside blocks.
type LoadBlockImplicitClosureInstr struct {
	Result Operand
}

func (i *LoadBlockImplicitClosureInstr) Op() Operation  { return LOAD_BLOCK_IMPLICIT_CLOSURE }
func (i *LoadBlockImplicitClosureInstr) CanRaise() bool { return false }
func (i *LoadBlockImplicitClosureInstr) String() string {
	return format(i.Result, LOAD_BLOCK_IMPLICIT_CLOSURE)
}
func (i *LoadBlockImplicitClosureInstr) Inputs() []Operand { return nil }
func (i *LoadBlockImplicitClosureInstr) Output() Operand   { return i.Result }

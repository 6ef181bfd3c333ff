package wire

import (
	"fmt"
	"math/big"

	"github.com/chazu/garnet/vm"
)

// ---------------------------------------------------------------------------
// Operands
// ---------------------------------------------------------------------------

// FromOperand converts an operand to its wire form.
func FromOperand(op vm.Operand) (Operand, error) {
	switch o := op.(type) {
	case vm.Self:
		return Operand{Kind: "self"}, nil
	case vm.NilConst:
		return Operand{Kind: "nil"}, nil
	case vm.IntConst:
		return Operand{Kind: "int", Int: o.V}, nil
	case vm.FloatConst:
		return Operand{Kind: "float", Float: o.V}, nil
	case vm.BoolConst:
		return Operand{Kind: "bool", Bool: o.V}, nil
	case vm.BignumConst:
		return Operand{Kind: "bignum", Str: o.V.String()}, nil
	case vm.StringConst:
		return Operand{Kind: "string", Str: o.V}, nil
	case vm.SymbolConst:
		return Operand{Kind: "symbol", Str: o.V}, nil
	case vm.ConstRef:
		return Operand{Kind: "const", Str: o.Name}, nil
	case vm.Temp:
		return Operand{Kind: "temp", Bank: uint8(o.Bank), Index: o.Index}, nil
	case vm.Local:
		return Operand{Kind: "local", Str: o.Name, Depth: o.Depth, Index: o.Index}, nil
	case nil:
		return Operand{}, fmt.Errorf("nil operand")
	}
	return Operand{}, fmt.Errorf("unsupported operand %T", op)
}

// ToOperand rebuilds the vm operand.
func (w Operand) ToOperand() (vm.Operand, error) {
	switch w.Kind {
	case "self":
		return vm.Self{}, nil
	case "nil":
		return vm.NilConst{}, nil
	case "int":
		return vm.IntConst{V: w.Int}, nil
	case "float":
		return vm.FloatConst{V: w.Float}, nil
	case "bool":
		return vm.BoolConst{V: w.Bool}, nil
	case "bignum":
		n, ok := new(big.Int).SetString(w.Str, 10)
		if !ok {
			return nil, fmt.Errorf("malformed bignum %q", w.Str)
		}
		return vm.BignumConst{V: n}, nil
	case "string":
		return vm.StringConst{V: w.Str}, nil
	case "symbol":
		return vm.SymbolConst{V: w.Str}, nil
	case "const":
		return vm.ConstRef{Name: w.Str}, nil
	case "temp":
		if vm.Bank(w.Bank) >= vm.NumBanks {
			return nil, fmt.Errorf("temp in unknown bank %d", w.Bank)
		}
		return vm.Temp{Bank: vm.Bank(w.Bank), Index: w.Index}, nil
	case "local":
		return vm.Local{Depth: w.Depth, Index: w.Index, Name: w.Str}, nil
	}
	return nil, fmt.Errorf("unknown operand kind %q", w.Kind)
}

func fromOperands(ops ...vm.Operand) ([]Operand, error) {
	out := make([]Operand, len(ops))
	for i, op := range ops {
		w, err := FromOperand(op)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func fromOptional(op vm.Operand) (*Operand, error) {
	if op == nil {
		return nil, nil
	}
	w, err := FromOperand(op)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

func fromInstr(instr vm.Instr) (Instr, error) {
	w := Instr{Op: instr.Op().String()}
	var err error
	setResult := func(op vm.Operand) {
		if err == nil {
			w.Result, err = fromOptional(op)
		}
	}
	setArgs := func(ops ...vm.Operand) {
		if err == nil {
			w.Args, err = fromOperands(ops...)
		}
	}

	switch i := instr.(type) {
	case *vm.AluInstr:
		setResult(i.Result)
		setArgs(i.Arg1, i.Arg2)
	case *vm.CopyInstr:
		setResult(i.Result)
		setArgs(i.Source)
	case *vm.BoxInstr:
		setResult(i.Result)
		setArgs(i.Value)
	case *vm.UnboxInstr:
		setResult(i.Result)
		setArgs(i.Value)
	case *vm.JumpInstr:
		w.Ints = []int{i.Target}
	case *vm.BranchInstr:
		if i.Arg2 != nil {
			setArgs(i.Arg1, i.Arg2)
		} else {
			setArgs(i.Arg1)
		}
		w.Ints = []int{i.Target}
	case *vm.ReceiveSelfInstr:
		setResult(i.Result)
	case *vm.ReceivePreReqdArgInstr:
		setResult(i.Result)
		w.Ints = []int{i.Index}
	case *vm.ReceivePostReqdArgInstr:
		setResult(i.Result)
		w.Ints = []int{i.Index, i.PreReqd, i.PostReqd}
	case *vm.ReceiveOptArgInstr:
		setResult(i.Result)
		w.Ints = []int{i.Index, i.PostReqd}
	case *vm.ReceiveRestArgInstr:
		setResult(i.Result)
		w.Ints = []int{i.PreReqd, i.Optional, i.PostReqd}
	case *vm.ReceiveKeywordArgInstr:
		setResult(i.Result)
		w.Name = i.Name
		if i.Required {
			w.Bits |= bitRequired
		}
	case *vm.ReceiveExceptionInstr:
		setResult(i.Result)
	case *vm.LoadImplicitClosureInstr:
		setResult(i.Result)
	case *vm.CallInstr:
		setResult(i.Result)
		setArgs(append([]vm.Operand{i.Receiver}, i.Args...)...)
		if err == nil {
			w.Closure, err = fromOptional(i.Closure)
		}
		w.Name = i.Site.Name()
		w.Ints = []int{int(i.Site.CallType())}
		w.Flags = uint32(i.Flags)
		if i.LiteralClosure {
			w.Bits |= bitLiteralClosure
		}
		if i.Splat {
			w.Bits |= bitSplat
		}
	case *vm.FrameNameCallInstr:
		setResult(i.Result)
	case *vm.ReturnInstr:
		setArgs(i.Value)
	case *vm.LabelInstr:
		w.Name = i.Name
	case *vm.BookKeepingInstr:
	case *vm.PushMethodFrameInstr:
		w.Ints = []int{int(i.Visibility)}
	case *vm.PushBlockFrameInstr:
		setResult(i.Result)
	case *vm.PopBlockFrameInstr:
		setArgs(i.Frame)
	case *vm.SaveBindingVisibilityInstr:
		setResult(i.Result)
	case *vm.RestoreBindingVisibilityInstr:
		setArgs(i.Visibility)
	case *vm.CheckArityInstr:
		w.Ints = []int{i.Required, i.Optional}
		if i.Rest {
			w.Bits |= bitRest
		}
	case *vm.LineNumberInstr:
		w.Ints = []int{i.Line}
		if i.Coverage {
			w.Bits |= bitCoverage
		}
		if i.OneShot {
			w.Bits |= bitOneShot
		}
	case *vm.BuildClosureInstr:
		setResult(i.Result)
		if err == nil {
			w.Body, err = FromUnit(i.Body)
		}
	case *vm.CheckForLJEInstr:
		if i.MaybeLambda {
			w.Bits |= bitMaybeLambda
		}
	case *vm.ThrowExceptionInstr:
		setArgs(i.Exception)
	case *vm.RescueMatchInstr:
		setResult(i.Result)
		setArgs(append([]vm.Operand{i.Exception}, i.Classes...)...)
	case *vm.GetFieldInstr:
		setResult(i.Result)
		setArgs(i.Object)
		w.Name = i.Name
	case *vm.PutFieldInstr:
		setArgs(i.Object, i.Value)
		w.Name = i.Name
	case *vm.LoadFrameClosureInstr:
		setResult(i.Result)
	case *vm.LoadBlockImplicitClosureInstr:
		setResult(i.Result)
	default:
		return Instr{}, fmt.Errorf("unsupported instruction %T", instr)
	}
	return w, err
}

// decoder pulls operands out of a wire instruction, remembering the first
// error.
type decoder struct {
	w   *Instr
	err error
}

func (d *decoder) result() vm.Operand {
	if d.err != nil {
		return nil
	}
	if d.w.Result == nil {
		return nil
	}
	op, err := d.w.Result.ToOperand()
	d.err = err
	return op
}

func (d *decoder) temp() vm.Temp {
	op := d.result()
	if d.err != nil {
		return vm.Temp{}
	}
	t, ok := op.(vm.Temp)
	if !ok {
		d.err = fmt.Errorf("%s writes %v, want a temp", d.w.Op, op)
	}
	return t
}

func (d *decoder) arg(i int) vm.Operand {
	if d.err != nil {
		return nil
	}
	if i >= len(d.w.Args) {
		d.err = fmt.Errorf("%s: missing operand %d", d.w.Op, i)
		return nil
	}
	op, err := d.w.Args[i].ToOperand()
	d.err = err
	return op
}

func (d *decoder) optArg(i int) vm.Operand {
	if i >= len(d.w.Args) {
		return nil
	}
	return d.arg(i)
}

func (d *decoder) args(from int) []vm.Operand {
	var out []vm.Operand
	for i := from; i < len(d.w.Args); i++ {
		out = append(out, d.arg(i))
	}
	return out
}

func (d *decoder) integer(i int) int {
	if d.err != nil {
		return 0
	}
	if i >= len(d.w.Ints) {
		d.err = fmt.Errorf("%s: missing integer field %d", d.w.Op, i)
		return 0
	}
	return d.w.Ints[i]
}

func (w *Instr) toInstr(scope *vm.StaticScope) (vm.Instr, error) {
	op, ok := vm.OperationByName(w.Op)
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", w.Op)
	}
	d := &decoder{w: w}
	var instr vm.Instr

	switch op.Class() {
	case vm.IntOp, vm.FloatOp:
		instr = vm.NewAluInstr(op, d.temp(), d.arg(0), d.arg(1))
	case vm.RetOp:
		instr = vm.NewReturnInstr(op, d.arg(0))
	case vm.BranchOp:
		if op == vm.JUMP {
			instr = &vm.JumpInstr{Target: d.integer(0)}
		} else {
			instr = vm.NewBranchInstr(op, d.arg(0), d.optArg(1), d.integer(0))
		}
	}
	if instr != nil {
		return instr, d.err
	}

	switch op {
	case vm.COPY:
		instr = &vm.CopyInstr{Result: d.result(), Source: d.arg(0)}
	case vm.BOX_FIXNUM, vm.BOX_FLOAT, vm.BOX_BOOLEAN:
		instr = vm.NewBoxInstr(op, d.result(), d.arg(0))
	case vm.UNBOX_FIXNUM, vm.UNBOX_FLOAT, vm.UNBOX_BOOLEAN:
		instr = vm.NewUnboxInstr(op, d.temp(), d.arg(0))
	case vm.RECV_SELF:
		instr = &vm.ReceiveSelfInstr{Result: d.result()}
	case vm.RECV_PRE_REQD_ARG:
		instr = &vm.ReceivePreReqdArgInstr{Result: d.result(), Index: d.integer(0)}
	case vm.RECV_POST_REQD_ARG:
		instr = &vm.ReceivePostReqdArgInstr{Result: d.result(), Index: d.integer(0), PreReqd: d.integer(1), PostReqd: d.integer(2)}
	case vm.RECV_OPT_ARG:
		instr = &vm.ReceiveOptArgInstr{Result: d.result(), Index: d.integer(0), PostReqd: d.integer(1)}
	case vm.RECV_REST_ARG:
		instr = &vm.ReceiveRestArgInstr{Result: d.result(), PreReqd: d.integer(0), Optional: d.integer(1), PostReqd: d.integer(2)}
	case vm.RECV_KW_ARG:
		instr = &vm.ReceiveKeywordArgInstr{Result: d.result(), Name: w.Name, Required: w.Bits&bitRequired != 0}
	case vm.RECV_EXC, vm.RECV_HOST_EXC:
		instr = vm.NewReceiveExceptionInstr(op, d.result())
	case vm.LOAD_IMPLICIT_CLOSURE:
		instr = &vm.LoadImplicitClosureInstr{Result: d.result()}
	case vm.CALL, vm.NORESULT_CALL:
		var closure vm.Operand
		if w.Closure != nil && d.err == nil {
			closure, d.err = w.Closure.ToOperand()
		}
		c := vm.NewCallInstr(d.result(), w.Name, vm.CallType(d.integer(0)), d.arg(0), d.args(1), closure)
		c.Flags = vm.CallFlags(w.Flags)
		c.LiteralClosure = w.Bits&bitLiteralClosure != 0
		c.Splat = w.Bits&bitSplat != 0
		if c.Op() != op {
			d.err = fmt.Errorf("%s with result mismatch", w.Op)
		}
		instr = c
	case vm.FRAME_NAME_CALL:
		instr = &vm.FrameNameCallInstr{Result: d.result()}
	case vm.LABEL:
		instr = &vm.LabelInstr{Name: w.Name}
	case vm.PUSH_METHOD_FRAME:
		instr = &vm.PushMethodFrameInstr{Visibility: vm.Visibility(d.integer(0))}
	case vm.PUSH_BLOCK_FRAME:
		instr = &vm.PushBlockFrameInstr{Result: d.result()}
	case vm.POP_BLOCK_FRAME:
		instr = &vm.PopBlockFrameInstr{Frame: d.arg(0)}
	case vm.SAVE_BINDING_VIZ:
		instr = &vm.SaveBindingVisibilityInstr{Result: d.result()}
	case vm.RESTORE_BINDING_VIZ:
		instr = &vm.RestoreBindingVisibilityInstr{Visibility: d.arg(0)}
	case vm.CHECK_ARITY:
		instr = &vm.CheckArityInstr{Required: d.integer(0), Optional: d.integer(1), Rest: w.Bits&bitRest != 0}
	case vm.LINE_NUM:
		instr = &vm.LineNumberInstr{Line: d.integer(0), Coverage: w.Bits&bitCoverage != 0, OneShot: w.Bits&bitOneShot != 0}
	case vm.BUILD_CLOSURE:
		if w.Body == nil {
			return nil, fmt.Errorf("%s without a body", w.Op)
		}
		body, err := w.Body.ToUnit(scope)
		if err != nil {
			return nil, err
		}
		instr = &vm.BuildClosureInstr{Result: d.result(), Body: body}
	case vm.CHECK_FOR_LJE:
		instr = &vm.CheckForLJEInstr{MaybeLambda: w.Bits&bitMaybeLambda != 0}
	case vm.THROW_EXCEPTION:
		instr = &vm.ThrowExceptionInstr{Exception: d.arg(0)}
	case vm.RESCUE_EXCEPTION_MATCH:
		instr = &vm.RescueMatchInstr{Result: d.result(), Exception: d.arg(0), Classes: d.args(1)}
	case vm.GET_FIELD:
		instr = &vm.GetFieldInstr{Result: d.result(), Object: d.arg(0), Name: w.Name}
	case vm.PUT_FIELD:
		instr = &vm.PutFieldInstr{Object: d.arg(0), Name: w.Name, Value: d.arg(1)}
	case vm.LOAD_FRAME_CLOSURE:
		instr = &vm.LoadFrameClosureInstr{Result: d.result()}
	case vm.LOAD_BLOCK_IMPLICIT_CLOSURE:
		instr = &vm.LoadBlockImplicitClosureInstr{Result: d.result()}
	default:
		if op.Class() != vm.BookKeepingOp {
			return nil, fmt.Errorf("operation %s has no wire form", w.Op)
		}
		instr = vm.NewBookKeepingInstr(op)
	}
	return instr, d.err
}

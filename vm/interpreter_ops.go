package vm

// ---- ALU ----

func (a *activation) interpretIntOp(instr *AluInstr) error {
	x := a.fixnumArg(instr.Arg1)
	y := a.fixnumArg(instr.Arg2)
	switch instr.op {
	case IADD:
		a.setFixnum(instr.Result, x+y)
	case ISUB:
		a.setFixnum(instr.Result, x-y)
	case IMUL:
		a.setFixnum(instr.Result, x*y)
	case IDIV:
		if y == 0 {
			return a.ctx.Raise(a.ctx.runtime.ZeroDivisionErrorClass, "divided by 0")
		}
		a.setFixnum(instr.Result, x/y)
	case IOR:
		a.setFixnum(instr.Result, x|y)
	case IAND:
		a.setFixnum(instr.Result, x&y)
	case IXOR:
		a.setFixnum(instr.Result, x^y)
	case ISHL:
		a.setFixnum(instr.Result, x<<(uint64(y)&63))
	case ISHR:
		a.setFixnum(instr.Result, x>>(uint64(y)&63))
	case ILT:
		a.setBoolean(instr.Result, x < y)
	case IGT:
		a.setBoolean(instr.Result, x > y)
	case IEQ:
		a.setBoolean(instr.Result, x == y)
	default:
		bug("unhandled integer operation %s", instr.op)
	}
	return nil
}

func (a *activation) interpretFloatOp(instr *AluInstr) {
	x := a.floatArg(instr.Arg1)
	y := a.floatArg(instr.Arg2)
	switch instr.op {
	case FADD:
		a.setFloat(instr.Result, x+y)
	case FSUB:
		a.setFloat(instr.Result, x-y)
	case FMUL:
		a.setFloat(instr.Result, x*y)
	case FDIV:
		a.setFloat(instr.Result, x/y)
	case FLT:
		a.setBoolean(instr.Result, x < y)
	case FGT:
		a.setBoolean(instr.Result, x > y)
	case FEQ:
		a.setBoolean(instr.Result, x == y)
	default:
		bug("unhandled float operation %s", instr.op)
	}
}

// ---- Argument receiving ----

func (a *activation) receiveArg(instr Instr) error {
	switch i := instr.(type) {
	case *ReceiveSelfInstr:
		a.setResult(i.Result, a.self)
	case *ReceivePreReqdArgInstr:
		v := Nil
		if i.Index < len(a.args) {
			v = a.args[i.Index]
		}
		a.setResult(i.Result, v)
	case *ReceivePostReqdArgInstr:
		v := Nil
		if idx := len(a.args) - i.PostReqd + i.Index; idx >= i.PreReqd && idx < len(a.args) {
			v = a.args[idx]
		}
		a.setResult(i.Result, v)
	case *ReceiveOptArgInstr:
		v := Undefined
		if i.Index < len(a.args)-i.PostReqd {
			v = a.args[i.Index]
		}
		a.setResult(i.Result, v)
	case *ReceiveRestArgInstr:
		start := i.PreReqd + i.Optional
		end := len(a.args) - i.PostReqd
		var elems []Value
		if end > start {
			elems = make([]Value, end-start)
			copy(elems, a.args[start:end])
		}
		a.setResult(i.Result, NewArray(elems...))
	case *ReceiveKeywordArgInstr:
		if a.keywords != nil {
			if v, ok := a.keywords.Get(Symbol(i.Name)); ok {
				a.setResult(i.Result, v)
				return nil
			}
		}
		if i.Required {
			return a.ctx.Raise(a.ctx.runtime.ArgumentErrorClass, "missing keyword: :%s", i.Name)
		}
		a.setResult(i.Result, Undefined)
	case *ReceiveExceptionInstr:
		a.setResult(i.Result, a.receiveException(i.op))
	case *LoadImplicitClosureInstr:
		a.setResult(i.Result, blockValue(a.blockArg))
	default:
		bug("unhandled argument instruction %s", instr)
	}
	return nil
}

// receiveException reads the current-exception cell. RECV_EXC unwraps
// language exceptions and wraps foreign Go errors; RECV_HOST_EXC returns
// the raw fault.
func (a *activation) receiveException(op Operation) Value {
	switch x := a.exception.(type) {
	case nil:
		return Nil
	case *ControlTransfer:
		return x
	case error:
		if op == RECV_HOST_EXC {
			return x
		}
		if exc, ok := AsException(x); ok {
			return exc
		}
		if IsUnrescuable(x) {
			return x
		}
		exc := NewException(a.ctx.runtime.StandardErrorClass, x.Error())
		exc.backtrace = a.ctx.Backtrace()
		return exc
	}
	bug("unexpected value %T in exception cell", a.exception)
	return nil
}

// ---- Calls ----

func (e *Engine) processCall(a *activation, instr Instr) error {
	switch call := instr.(type) {
	case *CallInstr:
		return e.call(a, call)
	case *FrameNameCallInstr:
		name := a.name
		if name == "" {
			a.setResult(call.Result, Nil)
		} else {
			a.setResult(call.Result, Symbol(name))
		}
		return nil
	}
	bug("unhandled call instruction %s", instr)
	return nil
}

func (e *Engine) call(a *activation, call *CallInstr) error {
	ctx := a.ctx
	recv := a.retrieve(call.Receiver)

	var blk *Block
	if call.Closure != nil {
		switch c := a.retrieve(call.Closure).(type) {
		case *Block:
			blk = c
		case nilValue:
		default:
			return ctx.TypeError("wrong argument type %s (expected Proc)", ctx.runtime.ClassOf(c).Name)
		}
	}
	iter := call.LiteralClosure && blk != nil

	if e.profiler != nil {
		e.profiler.recordCall(call.Site)
	}

	site := call.Site
	var result Value
	var err error

	switch {
	case call.Splat:
		args := a.splatArgs(call.Args)
		ctx.SetCallInfo(call.Flags)
		if iter {
			result, err = site.CallIter(ctx, a.self, recv, args, blk)
		} else {
			result, err = site.Call(ctx, a.self, recv, args, blk)
		}
	case len(call.Args) == 0:
		ctx.SetCallInfo(call.Flags)
		if iter {
			result, err = site.CallIter0(ctx, a.self, recv, blk)
		} else {
			result, err = site.Call0(ctx, a.self, recv, blk)
		}
	case len(call.Args) == 1:
		arg := call.Args[0]
		ctx.SetCallInfo(call.Flags)
		switch {
		case blk == nil && isFixnumOperand(arg):
			result, err = site.CallFixnum(ctx, a.self, recv, a.fixnumArg(arg))
		case blk == nil && isFloatOperand(arg):
			result, err = site.CallFloat(ctx, a.self, recv, a.floatArg(arg))
		case iter:
			result, err = site.CallIter1(ctx, a.self, recv, a.retrieve(arg), blk)
		default:
			result, err = site.Call1(ctx, a.self, recv, a.retrieve(arg), blk)
		}
	case len(call.Args) == 2:
		arg1, arg2 := a.retrieve(call.Args[0]), a.retrieve(call.Args[1])
		ctx.SetCallInfo(call.Flags)
		if iter {
			result, err = site.CallIter2(ctx, a.self, recv, arg1, arg2, blk)
		} else {
			result, err = site.Call2(ctx, a.self, recv, arg1, arg2, blk)
		}
	default:
		args := make([]Value, len(call.Args))
		for i, op := range call.Args {
			args[i] = a.retrieve(op)
		}
		ctx.SetCallInfo(call.Flags)
		if iter {
			result, err = site.CallIter(ctx, a.self, recv, args, blk)
		} else {
			result, err = site.Call(ctx, a.self, recv, args, blk)
		}
	}

	if err != nil {
		return err
	}
	if call.op == CALL {
		a.setResult(call.Result, result)
	}
	return nil
}

func isFixnumOperand(op Operand) bool {
	switch o := op.(type) {
	case IntConst:
		return true
	case Temp:
		return o.Bank == FixnumBank
	}
	return false
}

func isFloatOperand(op Operand) bool {
	switch o := op.(type) {
	case FloatConst:
		return true
	case Temp:
		return o.Bank == FloatBank
	}
	return false
}

// splatArgs evaluates call arguments, expanding an array in last position.
func (a *activation) splatArgs(ops []Operand) []Value {
	args := make([]Value, 0, len(ops)+4)
	for i, op := range ops {
		v := a.retrieve(op)
		if i == len(ops)-1 {
			if arr, ok := v.(*Array); ok {
				args = append(args, arr.Elems...)
				continue
			}
		}
		args = append(args, v)
	}
	return args
}

// ---- Returns ----

func (a *activation) processReturnOp(instr *ReturnInstr) (Value, error) {
	v := a.retrieve(instr.Value)
	switch instr.op {
	case RETURN:
		return v, nil
	case BREAK:
		return a.initiateBreak(v)
	case NONLOCAL_RETURN:
		return a.initiateNonLocalReturn(v)
	}
	bug("unhandled return operation %s", instr.op)
	return nil, nil
}

// ---- Branches ----

func (a *activation) processBranch(instr Instr, next int) int {
	switch b := instr.(type) {
	case *JumpInstr:
		return b.Target
	case *BranchInstr:
		if a.branchTaken(b) {
			return b.Target
		}
		return next
	}
	bug("unhandled branch instruction %s", instr)
	return next
}

func (a *activation) branchTaken(b *BranchInstr) bool {
	switch b.op {
	case B_TRUE:
		return a.booleanArg(b.Arg1)
	case B_FALSE:
		return !a.booleanArg(b.Arg1)
	case B_NIL:
		return IsNil(a.retrieve(b.Arg1))
	case B_UNDEF:
		return a.retrieve(b.Arg1) == Undefined
	case BEQ:
		return ValuesEqual(a.retrieve(b.Arg1), a.retrieve(b.Arg2))
	case BNE:
		return !ValuesEqual(a.retrieve(b.Arg1), a.retrieve(b.Arg2))
	}
	bug("unhandled branch operation %s", b.op)
	return false
}

// ---- Bookkeeping ----

func (e *Engine) processBookKeepingOp(a *activation, instr Instr) error {
	ctx := a.ctx
	switch i := instr.(type) {
	case *LabelInstr:
	case *PushMethodFrameInstr:
		ctx.PushFrame(&Frame{
			Module:     a.module,
			Name:       a.name,
			Self:       a.self,
			Visibility: i.Visibility,
			Block:      a.blockArg,
			File:       a.unit.File,
			Line:       ctx.line,
		})
		a.pushedFrames++
	case *PushBlockFrameInstr:
		f := a.pushBlockFrame()
		a.setResult(i.Result, f)
	case *PopBlockFrameInstr:
		f, _ := a.retrieve(i.Frame).(*Frame)
		if f == nil || ctx.CurrentFrame() != f {
			bug("pop_block_frame does not match the frame on top of the stack in %s", a.unit.Name)
		}
		a.popFrame()
	case *SaveBindingVisibilityInstr:
		a.setResult(i.Result, a.bindingFrame().Visibility)
	case *RestoreBindingVisibilityInstr:
		vis, ok := a.retrieve(i.Visibility).(Visibility)
		if !ok {
			bug("restore_binding_viz operand is not a saved visibility")
		}
		a.bindingFrame().Visibility = vis
	case *CheckArityInstr:
		arity := Arity{Required: i.Required, Optional: i.Optional, Rest: i.Rest}
		if !arity.Accepts(len(a.args)) {
			return ctx.ArgumentCountError(len(a.args), arity.Expected())
		}
	case *LineNumberInstr:
		ctx.SetLine(i.Line)
		if e.profiler != nil && i.covers() {
			e.profiler.recordLine(a.unit.File, i.Line)
		}
	case *BookKeepingInstr:
		switch i.op {
		case PUSH_METHOD_BINDING:
			s := ctx.arena.alloc(a.unit.Scope, nil)
			a.owned = append(a.owned, s)
			a.pushScope(s)
			a.methodScope = s
			s.owner = ctx
		case PUSH_BLOCK_BINDING:
			a.pushBlockBinding()
		case POP_BINDING:
			if a.pushedScopes == 0 {
				bug("pop_binding without a matching push in %s", a.unit.Name)
			}
			ctx.PopScope()
			a.pushedScopes--
		case POP_METHOD_FRAME:
			a.popFrame()
		case UPDATE_BLOCK_STATE:
			if a.block != nil {
				a.self = a.block.Binding.Self
			}
		case PREPARE_NO_BLOCK_ARGS, PREPARE_SINGLE_BLOCK_ARG, PREPARE_FIXED_BLOCK_ARGS, PREPARE_BLOCK_ARGS:
			return a.prepareBlockArgs(i.op)
		case THREAD_POLL:
			if e.profiler != nil {
				e.profiler.clockTick()
			}
			return ctx.PollThreadEvents()
		default:
			bug("unhandled bookkeeping operation %s", i.op)
		}
	default:
		bug("unhandled bookkeeping instruction %s", instr)
	}
	return nil
}

func (a *activation) pushScope(s *DynamicScope) {
	a.ctx.PushScope(s)
	a.pushedScopes++
	a.scope = s
}

func (a *activation) popFrame() {
	if a.pushedFrames == 0 {
		bug("frame pop without a matching push in %s", a.unit.Name)
	}
	a.ctx.PopFrame()
	a.pushedFrames--
}

// ---- Everything else ----

func (a *activation) processOtherOp(instr Instr) error {
	ctx := a.ctx
	switch i := instr.(type) {
	case *CopyInstr:
		a.copy(i.Result, i.Source)
	case *BoxInstr:
		switch i.op {
		case BOX_FIXNUM:
			a.setResult(i.Result, Fixnum(a.fixnumArg(i.Value)))
		case BOX_FLOAT:
			a.setResult(i.Result, Float(a.floatArg(i.Value)))
		case BOX_BOOLEAN:
			a.setResult(i.Result, BoxBool(a.booleanArg(i.Value)))
		}
	case *UnboxInstr:
		switch i.op {
		case UNBOX_FIXNUM:
			a.setFixnum(i.Result, a.fixnumArg(i.Value))
		case UNBOX_FLOAT:
			a.setFloat(i.Result, a.floatArg(i.Value))
		case UNBOX_BOOLEAN:
			a.setBoolean(i.Result, a.booleanArg(i.Value))
		}
	case *BuildClosureInstr:
		a.setResult(i.Result, a.buildClosure(i.Body))
	case *CheckForLJEInstr:
		return a.checkForLJE(i.MaybeLambda)
	case *ThrowExceptionInstr:
		return a.throwException(a.retrieve(i.Exception))
	case *RescueMatchInstr:
		ok, err := a.rescueMatch(i)
		if err != nil {
			return err
		}
		a.setBoolean(i.Result, ok)
	case *GetFieldInstr:
		v := Nil
		if o, ok := a.retrieve(i.Object).(*Object); ok {
			v = o.GetField(i.Name)
		}
		a.setResult(i.Result, v)
	case *PutFieldInstr:
		o, ok := a.retrieve(i.Object).(*Object)
		if !ok {
			return ctx.TypeError("can't set instance variable %s on %s", i.Name, Inspect(a.retrieve(i.Object)))
		}
		o.SetField(i.Name, a.retrieve(i.Value))
	case *LoadFrameClosureInstr:
		var b *Block
		if f := ctx.CurrentFrame(); f != nil {
			b = f.Block
		}
		a.setResult(i.Result, blockValue(b))
	case *LoadBlockImplicitClosureInstr:
		var b *Block
		if a.block != nil && a.block.Binding.Frame != nil {
			b = a.block.Binding.Frame.Block
		}
		a.setResult(i.Result, blockValue(b))
	default:
		bug("unhandled instruction %s", instr)
	}
	return nil
}

// copy moves src into dst using the destination bank.
func (a *activation) copy(dst, src Operand) {
	if t, ok := dst.(Temp); ok {
		switch t.Bank {
		case FixnumBank:
			a.fixnums[t.Index] = a.fixnumArg(src)
			return
		case FloatBank:
			a.floats[t.Index] = a.floatArg(src)
			return
		case BooleanBank:
			a.booleans[t.Index] = a.booleanArg(src)
			return
		}
	}
	a.setResult(dst, a.retrieve(src))
}

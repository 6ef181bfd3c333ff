package vm

// ---- Closures and bindings ----

func (a *activation) buildClosure(body *CompiledUnit) *Block {
	if a.scope == nil {
		bug("closure %s built without a dynamic scope", body.Name)
	}
	return NewBlock(body, &Binding{
		Self:   a.self,
		Frame:  a.ctx.CurrentFrame(),
		Scope:  a.scope,
		Module: a.module,
	})
}

// pushBlockBinding gives a block body its scope: a fresh one under the
// binding's scope, the binding's scope itself, or nothing when the body
// touches no locals of its own.
func (a *activation) pushBlockBinding() {
	if a.block == nil {
		bug("push_block_binding outside a block in %s", a.unit.Name)
	}
	parent := a.block.Binding.Scope
	switch {
	case a.unit.PushNewDynScope:
		s := a.ctx.arena.alloc(a.unit.Scope, parent)
		a.owned = append(a.owned, s)
		a.pushScope(s)
	case a.unit.ReuseParentDynScope:
		a.pushScope(parent)
	default:
		a.scope = parent
	}
}

// pushBlockFrame pushes a copy of the binding's frame so the block runs
// with the defining method's name, self and visibility.
func (a *activation) pushBlockFrame() *Frame {
	if a.block == nil {
		bug("push_block_frame outside a block in %s", a.unit.Name)
	}
	b := a.block.Binding
	var f *Frame
	if b.Frame != nil {
		f = b.Frame.dup()
	} else {
		f = &Frame{Module: b.Module, Name: a.name, Self: b.Self}
	}
	f.File = a.unit.File
	a.ctx.PushFrame(f)
	a.pushedFrames++
	return f
}

func (a *activation) bindingFrame() *Frame {
	if a.block == nil || a.block.Binding.Frame == nil {
		bug("binding visibility accessed without a binding frame in %s", a.unit.Name)
	}
	return a.block.Binding.Frame
}

// ---- Block argument preparation ----

// prepareBlockArgs applies yield semantics to the incoming arguments.
// Lambdas check arity strictly. Other blocks with more than one parameter
// spread a single array argument over their parameters.
func (a *activation) prepareBlockArgs(op Operation) error {
	if a.block != nil && a.block.Type == LambdaBlock {
		if !a.unit.Arity.Accepts(len(a.args)) {
			return a.ctx.ArgumentCountError(len(a.args), a.unit.Arity.Expected())
		}
		return nil
	}
	switch op {
	case PREPARE_NO_BLOCK_ARGS, PREPARE_SINGLE_BLOCK_ARG:
		return nil
	case PREPARE_FIXED_BLOCK_ARGS, PREPARE_BLOCK_ARGS:
		ar := a.unit.Arity
		multi := ar.Required+ar.Optional+ar.Post > 1 || ar.Rest
		if len(a.args) == 1 && multi {
			if arr, ok := a.args[0].(*Array); ok {
				a.args = arr.Elems
			}
		}
	}
	return nil
}

// ---- Break and non-local return ----

// initiateBreak ends the block with a break. Lambdas treat break as a
// return; a block whose iterator call already returned has nowhere to go.
func (a *activation) initiateBreak(v Value) (Value, error) {
	blk := a.block
	if blk == nil {
		bug("break outside a block in %s", a.unit.Name)
	}
	if blk.Type == LambdaBlock {
		return v, nil
	}
	if blk.Escaped() {
		return nil, a.ctx.LocalJumpError(breakFromProcMessage)
	}
	panic(&ControlTransfer{Kind: TransferBreak, Value: v, Binding: blk.Binding})
}

// initiateNonLocalReturn returns from the method the block was written in.
func (a *activation) initiateNonLocalReturn(v Value) (Value, error) {
	blk := a.block
	if blk == nil || blk.Type == LambdaBlock {
		return v, nil
	}
	target, err := a.returnTarget()
	if err != nil {
		return nil, err
	}
	panic(&ControlTransfer{Kind: TransferNonlocalReturn, Value: v, Scope: target})
}

// returnTarget finds the live method scope a block's return aims at. The
// method must still be running on this thread; a block reusing the method's
// scope keeps it on the scope stack after the method has returned.
func (a *activation) returnTarget() (*DynamicScope, error) {
	var target *DynamicScope
	if a.block.Binding.Scope != nil {
		target = a.block.Binding.Scope.MethodScope()
	}
	if target == nil {
		return nil, a.ctx.LocalJumpError(unexpectedReturnError)
	}
	if !target.LiveOn(a.ctx) {
		return nil, a.ctx.LocalJumpError(staleReturnMessage)
	}
	return target, nil
}

func (a *activation) checkForLJE(maybeLambda bool) error {
	if maybeLambda || a.block == nil || a.block.Type == LambdaBlock {
		return nil
	}
	_, err := a.returnTarget()
	return err
}

// ---- Exceptions ----

// throwException raises v. A fault or control transfer parked by an ensure
// handler resumes unwinding unchanged.
func (a *activation) throwException(v Value) error {
	ctx := a.ctx
	rt := ctx.runtime
	switch x := v.(type) {
	case *ControlTransfer:
		panic(x)
	case *Exception:
		return ctx.RaiseException(x)
	case error:
		return x
	case *Class:
		if x.IsSubclassOf(rt.ExceptionClass) {
			return ctx.RaiseException(NewException(x, x.Name))
		}
	case *String:
		return ctx.Raise(rt.RuntimeErrorClass, "%s", x.s)
	}
	return ctx.TypeError("exception class/object expected")
}

// rescueMatch tests the exception operand against each rescue class.
// Control transfers and unrescuable faults never match.
func (a *activation) rescueMatch(i *RescueMatchInstr) (bool, error) {
	var exc *Exception
	switch x := a.retrieve(i.Exception).(type) {
	case *Exception:
		exc = x
	case error:
		if IsUnrescuable(x) {
			return false, nil
		}
		exc, _ = AsException(x)
	}
	for _, op := range i.Classes {
		class, ok := a.retrieve(op).(*Class)
		if !ok {
			return false, a.ctx.TypeError("class or module required for rescue clause")
		}
		if exc != nil && exc.IsKindOf(class) {
			return true, nil
		}
	}
	return false, nil
}

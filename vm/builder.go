package vm

import "fmt"

// ---------------------------------------------------------------------------
// UnitBuilder: assemble compiled units by hand
// ---------------------------------------------------------------------------

// UnitBuilder assembles a CompiledUnit instruction by instruction. Jump and
// rescue targets are given as label names and resolved by Build.
//
//	b := NewUnitBuilder("add", MethodUnit, NewStaticScope(MethodScope, nil, "a", "b"))
//	b.Emit(&ReceivePreReqdArgInstr{Result: Local{Index: 0}, Index: 0})
//	...
//	unit, err := b.Build()
type UnitBuilder struct {
	unit   *CompiledUnit
	labels map[string]int
	fixups []labelFixup
	ranges []pendingRange
}

type labelFixup struct {
	ipc   int
	label string
}

type pendingRange struct {
	start, end, target string
	ensure             bool
}

// NewUnitBuilder starts a unit. A nil scope gets an empty one matching kind.
func NewUnitBuilder(name string, kind UnitKind, scope *StaticScope) *UnitBuilder {
	if scope == nil {
		typ := MethodScope
		switch kind {
		case BlockUnit:
			typ = BlockScope
		case ScriptUnit:
			typ = ScriptScope
		}
		scope = NewStaticScope(typ, nil)
	}
	return &UnitBuilder{
		unit:   &CompiledUnit{Name: name, Kind: kind, Scope: scope},
		labels: make(map[string]int),
	}
}

// Unit exposes the unit under construction for flag and arity settings.
func (b *UnitBuilder) Unit() *CompiledUnit { return b.unit }

// SetArity records the parameter shape.
func (b *UnitBuilder) SetArity(a Arity) *UnitBuilder {
	b.unit.Arity = a
	return b
}

// Temp allocates a fresh temp in bank.
func (b *UnitBuilder) Temp(bank Bank) Temp {
	t := Temp{Bank: bank, Index: b.unit.Temps[bank]}
	b.unit.Temps[bank]++
	return t
}

// PC returns the position the next instruction will occupy.
func (b *UnitBuilder) PC() int { return len(b.unit.Instrs) }

// Emit appends instr and returns its position.
func (b *UnitBuilder) Emit(instr Instr) int {
	b.unit.Instrs = append(b.unit.Instrs, instr)
	return len(b.unit.Instrs) - 1
}

// Label emits a LABEL instruction and binds name to it.
func (b *UnitBuilder) Label(name string) int {
	ipc := b.Emit(&LabelInstr{Name: name})
	b.labels[name] = ipc
	return ipc
}

// Jump emits an unconditional jump to label.
func (b *UnitBuilder) Jump(label string) int {
	ipc := b.Emit(&JumpInstr{})
	b.fixups = append(b.fixups, labelFixup{ipc, label})
	return ipc
}

// Branch emits a conditional branch to label. arg2 is nil except for BEQ
// and BNE.
func (b *UnitBuilder) Branch(op Operation, arg1, arg2 Operand, label string) int {
	ipc := b.Emit(NewBranchInstr(op, arg1, arg2, 0))
	b.fixups = append(b.fixups, labelFixup{ipc, label})
	return ipc
}

// Alu emits an arithmetic or comparison instruction.
func (b *UnitBuilder) Alu(op Operation, result Temp, arg1, arg2 Operand) int {
	return b.Emit(NewAluInstr(op, result, arg1, arg2))
}

// Copy emits a COPY.
func (b *UnitBuilder) Copy(result, source Operand) int {
	return b.Emit(&CopyInstr{Result: result, Source: source})
}

// Call emits a CALL (or NORESULT_CALL when result is nil) and returns the
// instruction so callers can set the closure or flags.
func (b *UnitBuilder) Call(result Operand, name string, callType CallType, receiver Operand, args ...Operand) *CallInstr {
	c := NewCallInstr(result, name, callType, receiver, args, nil)
	b.Emit(c)
	return c
}

// CallWithBlock emits a call passing a block literal built from body.
func (b *UnitBuilder) CallWithBlock(result Operand, name string, callType CallType, receiver Operand, body *CompiledUnit, args ...Operand) *CallInstr {
	blk := b.Temp(ObjectBank)
	b.Emit(&BuildClosureInstr{Result: blk, Body: body})
	c := NewCallInstr(result, name, callType, receiver, args, blk)
	c.LiteralClosure = true
	b.Emit(c)
	return c
}

// Return emits op (RETURN, BREAK or NONLOCAL_RETURN) with value.
func (b *UnitBuilder) Return(op Operation, value Operand) int {
	return b.Emit(NewReturnInstr(op, value))
}

// BookKeeping emits an operand-free bookkeeping instruction.
func (b *UnitBuilder) BookKeeping(op Operation) int {
	return b.Emit(NewBookKeepingInstr(op))
}

// Rescue covers [start, end) with a handler at target. All three are
// labels.
func (b *UnitBuilder) Rescue(start, end, target string) {
	b.ranges = append(b.ranges, pendingRange{start, end, target, false})
}

// Ensure is like Rescue but the handler also intercepts break and
// non-local return.
func (b *UnitBuilder) Ensure(start, end, target string) {
	b.ranges = append(b.ranges, pendingRange{start, end, target, true})
}

// Build resolves labels and finalizes the unit.
func (b *UnitBuilder) Build() (*CompiledUnit, error) {
	lookup := func(label string) (int, error) {
		ipc, ok := b.labels[label]
		if !ok {
			return 0, fmt.Errorf("unit %s: undefined label %q", b.unit.Name, label)
		}
		return ipc, nil
	}
	for _, f := range b.fixups {
		target, err := lookup(f.label)
		if err != nil {
			return nil, err
		}
		switch x := b.unit.Instrs[f.ipc].(type) {
		case *JumpInstr:
			x.Target = target
		case *BranchInstr:
			x.Target = target
		}
	}
	b.unit.Rescues = b.unit.Rescues[:0]
	for _, r := range b.ranges {
		start, err := lookup(r.start)
		if err != nil {
			return nil, err
		}
		end, err := lookup(r.end)
		if err != nil {
			return nil, err
		}
		target, err := lookup(r.target)
		if err != nil {
			return nil, err
		}
		b.unit.Rescues = append(b.unit.Rescues, RescueRange{Start: start, End: end, Target: target, Ensure: r.ensure})
	}
	if err := b.unit.Finalize(); err != nil {
		return nil, err
	}
	return b.unit, nil
}

// MustBuild is Build for units known to be well formed.
func (b *UnitBuilder) MustBuild() *CompiledUnit {
	u, err := b.Build()
	if err != nil {
		panic(err)
	}
	return u
}

// NewMethodBuilder starts a method or script body with the usual prologue:
// a method frame and a fresh scope holding locals.
func NewMethodBuilder(name string, kind UnitKind, locals ...string) *UnitBuilder {
	typ := MethodScope
	if kind == ScriptUnit {
		typ = ScriptScope
	}
	b := NewUnitBuilder(name, kind, NewStaticScope(typ, nil, locals...))
	b.Emit(&PushMethodFrameInstr{Visibility: Public})
	b.BookKeeping(PUSH_METHOD_BINDING)
	return b
}

// NewBlockBuilder starts a block body nested in parent. A block with locals
// gets its own scope; otherwise it runs in the parent's.
func NewBlockBuilder(name string, parent *StaticScope, locals ...string) *UnitBuilder {
	b := NewUnitBuilder(name, BlockUnit, NewStaticScope(BlockScope, parent, locals...))
	b.unit.PushNewDynScope = len(locals) > 0
	b.Emit(&PushBlockFrameInstr{Result: b.Temp(ObjectBank)})
	b.BookKeeping(PUSH_BLOCK_BINDING)
	b.BookKeeping(UPDATE_BLOCK_STATE)
	return b
}

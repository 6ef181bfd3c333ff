package vm

import (
	"errors"
	"strings"
	"testing"
)

func TestIntegerALU(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	tests := []struct {
		op   Operation
		bank Bank
		want Value
	}{
		{IADD, FixnumBank, Fixnum(9)},
		{ISUB, FixnumBank, Fixnum(5)},
		{IMUL, FixnumBank, Fixnum(14)},
		{IDIV, FixnumBank, Fixnum(3)},
		{IOR, FixnumBank, Fixnum(7)},
		{IAND, FixnumBank, Fixnum(2)},
		{IXOR, FixnumBank, Fixnum(5)},
		{ISHL, FixnumBank, Fixnum(28)},
		{ISHR, FixnumBank, Fixnum(1)},
		{ILT, BooleanBank, False},
		{IGT, BooleanBank, True},
		{IEQ, BooleanBank, False},
	}

	for _, tt := range tests {
		b := NewUnitBuilder(tt.op.String(), ScriptUnit, nil)
		r := b.Temp(tt.bank)
		b.Alu(tt.op, r, IntConst{7}, IntConst{2})
		b.Return(RETURN, r)

		got := mustRun(t, rt, ctx, mustBuild(t, b))
		if got != tt.want {
			t.Errorf("%s(7, 2) = %s, want %s", tt.op, Inspect(got), Inspect(tt.want))
		}
	}
}

func TestFloatALU(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	tests := []struct {
		op   Operation
		bank Bank
		want Value
	}{
		{FADD, FloatBank, Float(9)},
		{FSUB, FloatBank, Float(5)},
		{FMUL, FloatBank, Float(14)},
		{FDIV, FloatBank, Float(3.5)},
		{FLT, BooleanBank, False},
		{FGT, BooleanBank, True},
		{FEQ, BooleanBank, False},
	}

	for _, tt := range tests {
		b := NewUnitBuilder(tt.op.String(), ScriptUnit, nil)
		r := b.Temp(tt.bank)
		b.Alu(tt.op, r, FloatConst{7}, FloatConst{2})
		b.Return(RETURN, r)

		got := mustRun(t, rt, ctx, mustBuild(t, b))
		if got != tt.want {
			t.Errorf("%s(7.0, 2.0) = %s, want %s", tt.op, Inspect(got), Inspect(tt.want))
		}
	}
}

func TestShiftCountIsMasked(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	b := NewUnitBuilder("shift", ScriptUnit, nil)
	r := b.Temp(FixnumBank)
	b.Alu(ISHL, r, IntConst{1}, IntConst{65})
	b.Return(RETURN, r)

	if got := mustRun(t, rt, ctx, mustBuild(t, b)); got != Fixnum(2) {
		t.Errorf("1 << 65 = %s, want 2", Inspect(got))
	}
}

func TestIntegerDivideByZeroRaises(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	b := NewUnitBuilder("idiv0", ScriptUnit, nil)
	r := b.Temp(FixnumBank)
	b.Alu(IDIV, r, IntConst{7}, IntConst{0})
	b.Return(RETURN, r)

	_, err := rt.Run(ctx, mustBuild(t, b), nil)
	if got := exceptionClassOf(err); got != "ZeroDivisionError" {
		t.Fatalf("fault = %v, want ZeroDivisionError", err)
	}
	exc, _ := AsException(err)
	if exc.Message() != "divided by 0" {
		t.Errorf("message = %q, want %q", exc.Message(), "divided by 0")
	}
	expectBalanced(t, ctx)
}

func TestBranchLoop(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	b := NewUnitBuilder("sum", ScriptUnit, nil)
	i, s, c := b.Temp(FixnumBank), b.Temp(FixnumBank), b.Temp(BooleanBank)
	b.Copy(i, IntConst{1})
	b.Copy(s, IntConst{0})
	b.Label("loop")
	b.Alu(IGT, c, i, IntConst{10})
	b.Branch(B_TRUE, c, nil, "done")
	b.Alu(IADD, s, s, i)
	b.Alu(IADD, i, i, IntConst{1})
	b.Jump("loop")
	b.Label("done")
	b.Return(RETURN, s)

	if got := mustRun(t, rt, ctx, mustBuild(t, b)); got != Fixnum(55) {
		t.Errorf("sum(1..10) = %s, want 55", Inspect(got))
	}
}

func TestConditionalBranches(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	tests := []struct {
		name  string
		op    Operation
		arg1  Operand
		arg2  Operand
		taken bool
	}{
		{"b_true on true", B_TRUE, BoolConst{true}, nil, true},
		{"b_true on nil", B_TRUE, NilConst{}, nil, false},
		{"b_false on nil", B_FALSE, NilConst{}, nil, true},
		{"b_false on zero", B_FALSE, IntConst{0}, nil, false},
		{"b_nil on nil", B_NIL, NilConst{}, nil, true},
		{"b_nil on false", B_NIL, BoolConst{false}, nil, false},
		{"beq on equal strings", BEQ, StringConst{"a"}, StringConst{"a"}, true},
		{"beq on 1 and 1.0", BEQ, IntConst{1}, FloatConst{1}, true},
		{"bne on symbols", BNE, SymbolConst{"a"}, SymbolConst{"b"}, true},
		{"bne on equal ints", BNE, IntConst{3}, IntConst{3}, false},
	}

	for _, tt := range tests {
		b := NewUnitBuilder(tt.name, ScriptUnit, nil)
		b.Branch(tt.op, tt.arg1, tt.arg2, "taken")
		b.Return(RETURN, BoolConst{false})
		b.Label("taken")
		b.Return(RETURN, BoolConst{true})

		got := mustRun(t, rt, ctx, mustBuild(t, b))
		if got != BoxBool(tt.taken) {
			t.Errorf("%s: taken = %s, want %v", tt.name, Inspect(got), tt.taken)
		}
	}
}

func TestBoxUnbox(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	b := NewUnitBuilder("box", ScriptUnit, nil)
	obj, fix := b.Temp(ObjectBank), b.Temp(FixnumBank)
	flo, boo := b.Temp(FloatBank), b.Temp(BooleanBank)
	out := b.Temp(ObjectBank)
	b.Copy(obj, IntConst{5})
	b.Emit(NewUnboxInstr(UNBOX_FIXNUM, fix, obj))
	b.Alu(IADD, fix, fix, IntConst{1})
	b.Emit(NewUnboxInstr(UNBOX_FLOAT, flo, FloatConst{0.5}))
	b.Alu(FADD, flo, flo, fix)
	b.Emit(NewUnboxInstr(UNBOX_BOOLEAN, boo, NilConst{}))
	b.Branch(B_TRUE, boo, nil, "wrong")
	b.Emit(NewBoxInstr(BOX_FLOAT, out, flo))
	b.Return(RETURN, out)
	b.Label("wrong")
	b.Return(RETURN, NilConst{})

	if got := mustRun(t, rt, ctx, mustBuild(t, b)); got != Float(6.5) {
		t.Errorf("result = %s, want 6.5", Inspect(got))
	}
}

func TestFallingOffTheEndIsABug(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	b := NewUnitBuilder("nothing", ScriptUnit, nil)
	b.Label("start")
	unit := mustBuild(t, b)

	defer func() {
		r := recover()
		bugErr, ok := r.(*BugError)
		if !ok {
			t.Fatalf("recovered %v, want *BugError", r)
		}
		if !strings.Contains(bugErr.Error(), "fell through") {
			t.Errorf("bug = %q, want mention of falling through", bugErr.Error())
		}
	}()
	rt.Run(ctx, unit, nil)
}

func TestInterpretBeforeFinalizeIsABug(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})
	unit := &CompiledUnit{Name: "raw", Scope: NewStaticScope(ScriptScope, nil),
		Instrs: []Instr{NewReturnInstr(RETURN, NilConst{})}}

	defer func() {
		if _, ok := recover().(*BugError); !ok {
			t.Error("expected *BugError")
		}
	}()
	rt.Engine().Interpret(ctx, nil, rt.TopSelf, unit, rt.ObjectClass, "raw", nil, nil)
}

func TestFinalizeRejectsMalformedUnits(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *UnitBuilder)
	}{
		{"temp out of range", func(b *UnitBuilder) {
			b.Return(RETURN, Temp{Bank: ObjectBank, Index: 3})
		}},
		{"jump out of range", func(b *UnitBuilder) {
			b.Emit(&JumpInstr{Target: 5})
		}},
		{"alu op in wrong instruction", func(b *UnitBuilder) {
			b.Emit(NewBookKeepingInstr(IADD))
		}},
		{"return op in wrong instruction", func(b *UnitBuilder) {
			b.Emit(NewBookKeepingInstr(RETURN))
		}},
		{"beq with one operand", func(b *UnitBuilder) {
			b.Label("x")
			b.Branch(BEQ, IntConst{1}, nil, "x")
		}},
		{"undefined label", func(b *UnitBuilder) {
			b.Jump("nowhere")
		}},
		{"nil operand", func(b *UnitBuilder) {
			b.Return(RETURN, nil)
		}},
		{"negative local index", func(b *UnitBuilder) {
			b.Return(RETURN, Local{Index: -1})
		}},
		{"local outside scope", func(b *UnitBuilder) {
			b.Return(RETURN, Local{Index: 0, Name: "x"})
		}},
		{"local deeper than nesting", func(b *UnitBuilder) {
			b.Return(RETURN, Local{Depth: 1, Index: 0, Name: "x"})
		}},
		{"negative temp count", func(b *UnitBuilder) {
			b.Unit().Temps[FixnumBank] = -1
			b.Return(RETURN, NilConst{})
		}},
		{"too many temps", func(b *UnitBuilder) {
			b.Unit().Temps[ObjectBank] = MaxTemps + 1
			b.Return(RETURN, NilConst{})
		}},
	}

	for _, tt := range tests {
		b := NewUnitBuilder(tt.name, ScriptUnit, nil)
		tt.build(b)
		if _, err := b.Build(); err == nil {
			t.Errorf("%s: Build succeeded, want error", tt.name)
		}
	}
}

func TestFinalizeRejectsOverlappingRescues(t *testing.T) {
	b := NewUnitBuilder("overlap", ScriptUnit, nil)
	b.Label("a")
	b.Label("b")
	b.Label("c")
	b.Label("d")
	b.Label("h")
	b.Return(RETURN, NilConst{})
	b.Rescue("a", "c", "h")
	b.Rescue("b", "d", "h")

	_, err := b.Build()
	if !errors.Is(err, ErrOverlappingRescue) {
		t.Errorf("Build error = %v, want ErrOverlappingRescue", err)
	}
}

// argsMethod builds def m(a, b = 2, *r, z) returning [a, b, r, z].
func argsMethod(t *testing.T) *CompiledUnit {
	b := NewMethodBuilder("m", MethodUnit, "a", "b", "r", "z")
	la, lb := Local{Index: 0, Name: "a"}, Local{Index: 1, Name: "b"}
	lr, lz := Local{Index: 2, Name: "r"}, Local{Index: 3, Name: "z"}

	b.Emit(&CheckArityInstr{Required: 2, Optional: 1, Rest: true})
	b.Emit(&ReceivePreReqdArgInstr{Result: la, Index: 0})
	b.Emit(&ReceiveOptArgInstr{Result: lb, Index: 1, PostReqd: 1})
	b.Branch(B_UNDEF, lb, nil, "default")
	b.Jump("done")
	b.Label("default")
	b.Copy(lb, IntConst{2})
	b.Label("done")
	b.Emit(&ReceiveRestArgInstr{Result: lr, PreReqd: 1, Optional: 1, PostReqd: 1})
	b.Emit(&ReceivePostReqdArgInstr{Result: lz, Index: 0, PreReqd: 1, PostReqd: 1})

	arr := b.Temp(ObjectBank)
	b.Call(arr, "new", NormalCall, ConstRef{"Array"})
	b.Call(nil, "push", NormalCall, arr, la, lb, lr, lz)
	b.Return(RETURN, arr)
	b.SetArity(Arity{Required: 1, Optional: 1, Rest: true, Post: 1})
	return mustBuild(t, b)
}

func TestReceiveArguments(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})
	if err := rt.DefineMethod(rt.ObjectClass, "m", argsMethod(t), Public); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		args []Value
		want string
	}{
		{[]Value{Fixnum(1), Fixnum(6)}, "[1, 2, [], 6]"},
		{[]Value{Fixnum(1), Fixnum(9), Fixnum(6)}, "[1, 9, [], 6]"},
		{[]Value{Fixnum(1), Fixnum(9), Fixnum(8), Fixnum(7), Fixnum(6)}, "[1, 9, [8, 7], 6]"},
	}
	for _, tt := range tests {
		got, err := rt.Send(ctx, rt.TopSelf, "m", tt.args, nil)
		if err != nil {
			t.Fatalf("m%v: %v", tt.args, err)
		}
		if Inspect(got) != tt.want {
			t.Errorf("m(%d args) = %s, want %s", len(tt.args), Inspect(got), tt.want)
		}
	}

	_, err := rt.Send(ctx, rt.TopSelf, "m", []Value{Fixnum(1)}, nil)
	exc, ok := AsException(err)
	if !ok || exc.Class() != rt.ArgumentErrorClass {
		t.Fatalf("m(1) fault = %v, want ArgumentError", err)
	}
	if want := "wrong number of arguments (given 1, expected 2+)"; exc.Message() != want {
		t.Errorf("message = %q, want %q", exc.Message(), want)
	}
	expectBalanced(t, ctx)
}

func TestKeywordArguments(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	kw := func(name, keyword string) {
		b := NewMethodBuilder(name, MethodUnit, keyword)
		b.Unit().AcceptsKeywords = true
		b.Emit(&ReceiveKeywordArgInstr{Result: Local{Index: 0}, Name: keyword, Required: true})
		b.Return(RETURN, Local{Index: 0})
		if err := rt.DefineMethod(rt.ObjectClass, name, mustBuild(t, b), Public); err != nil {
			t.Fatal(err)
		}
	}
	kw("sized", "size")
	kw("colored", "color")

	script := func(method string) *CompiledUnit {
		b := NewUnitBuilder("kwcall", ScriptUnit, nil)
		h, r := b.Temp(ObjectBank), b.Temp(ObjectBank)
		b.Call(h, "new", NormalCall, ConstRef{"Hash"})
		b.Call(nil, "[]=", NormalCall, h, SymbolConst{"size"}, IntConst{3})
		b.Call(r, method, FunctionalCall, Self{}, h).Flags = CallKeywords
		b.Return(RETURN, r)
		return mustBuild(t, b)
	}

	if got := mustRun(t, rt, ctx, script("sized")); got != Fixnum(3) {
		t.Errorf("sized(size: 3) = %s, want 3", Inspect(got))
	}

	_, err := rt.Run(ctx, script("colored"), nil)
	exc, ok := AsException(err)
	if !ok || exc.Message() != "missing keyword: :color" {
		t.Errorf("colored(size: 3) fault = %v, want missing keyword", err)
	}
}

func TestFrameNameAndBacktrace(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	b := NewMethodBuilder("whoami", MethodUnit)
	r := b.Temp(ObjectBank)
	b.Emit(&FrameNameCallInstr{Result: r})
	b.Return(RETURN, r)
	if err := rt.DefineMethod(rt.ObjectClass, "whoami", mustBuild(t, b), Public); err != nil {
		t.Fatal(err)
	}
	got, err := rt.Send(ctx, rt.TopSelf, "whoami", nil, nil)
	if err != nil || got != Symbol("whoami") {
		t.Errorf("whoami = %v, %v; want :whoami", got, err)
	}

	b = NewMethodBuilder("boom", MethodUnit)
	b.Emit(&LineNumberInstr{Line: 12})
	b.Call(nil, "raise", FunctionalCall, Self{}, StringConst{"kaboom"})
	b.Return(RETURN, NilConst{})
	if err := rt.DefineMethod(rt.ObjectClass, "boom", mustBuild(t, b), Public); err != nil {
		t.Fatal(err)
	}

	s := NewMethodBuilder("main", ScriptUnit)
	s.Emit(&LineNumberInstr{Line: 3})
	s.Call(nil, "boom", FunctionalCall, Self{})
	s.Return(RETURN, NilConst{})

	_, err = rt.Run(ctx, mustBuild(t, s), nil)
	exc, ok := AsException(err)
	if !ok || exc.Class() != rt.RuntimeErrorClass {
		t.Fatalf("fault = %v, want RuntimeError", err)
	}
	bt := exc.Backtrace()
	if len(bt) != 2 {
		t.Fatalf("backtrace = %v, want 2 frames", bt)
	}
	if bt[0] != "12:in 'Object#boom'" {
		t.Errorf("backtrace[0] = %q", bt[0])
	}
	if bt[1] != "3:in 'Object#main'" {
		t.Errorf("backtrace[1] = %q", bt[1])
	}
	expectBalanced(t, ctx)
}

func TestUnknownConstantRaisesNameError(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	b := NewUnitBuilder("nope", ScriptUnit, nil)
	r := b.Temp(ObjectBank)
	b.Call(r, "new", NormalCall, ConstRef{"Nope"})
	b.Return(RETURN, r)

	_, err := rt.Run(ctx, mustBuild(t, b), nil)
	exc, ok := AsException(err)
	if !ok || exc.Class().Name != "NameError" {
		t.Fatalf("fault = %v, want NameError", err)
	}
	if want := "uninitialized constant Nope"; exc.Message() != want {
		t.Errorf("message = %q, want %q", exc.Message(), want)
	}
	expectBalanced(t, ctx)

	copyUnknown := func(b *UnitBuilder) {
		b.Copy(b.Temp(ObjectBank), ConstRef{"Nope"})
	}
	if got := mustRun(t, rt, ctx, rescueScript(t, "NameError", copyUnknown, nil)); got != Symbol("rescued") {
		t.Errorf("rescued result = %s, want :rescued", Inspect(got))
	}
	expectBalanced(t, ctx)
}

func TestRawTempRejectsObjectResult(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	b := NewUnitBuilder("store", ScriptUnit, nil)
	c := b.Temp(BooleanBank)
	b.Call(c, "+", NormalCall, IntConst{1}, IntConst{2})
	b.Return(RETURN, c)
	unit := mustBuild(t, b)

	defer func() {
		r := recover()
		bugErr, ok := r.(*BugError)
		if !ok {
			t.Fatalf("recovered %v, want *BugError", r)
		}
		if !strings.Contains(bugErr.Error(), "without unboxing") {
			t.Errorf("bug = %v", bugErr)
		}
	}()
	rt.Engine().Interpret(ctx, nil, rt.TopSelf, unit, rt.ObjectClass, "store", nil, nil)
}

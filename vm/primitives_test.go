package vm

import (
	"testing"
)

func send(t *testing.T, rt *Runtime, ctx *ThreadContext, recv Value, name string, args ...Value) Value {
	t.Helper()
	v, err := rt.Send(ctx, recv, name, args, nil)
	if err != nil {
		t.Fatalf("%s.%s: %v", Inspect(recv), name, err)
	}
	return v
}

func TestKernelRaiseForms(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})
	custom := NewException(rt.TypeErrorClass, "prebuilt")

	tests := []struct {
		name      string
		args      []Value
		wantClass string
		wantMsg   string
	}{
		{"no arguments", nil, "RuntimeError", "unhandled exception"},
		{"message", []Value{NewString("oops")}, "RuntimeError", "oops"},
		{"message with verbs", []Value{NewString("100%d %s")}, "RuntimeError", "100%d %s"},
		{"class", []Value{rt.ArgumentErrorClass}, "ArgumentError", "ArgumentError"},
		{"class and message", []Value{rt.ArgumentErrorClass, NewString("bad")}, "ArgumentError", "bad"},
		{"exception object", []Value{custom}, "TypeError", "prebuilt"},
		{"not an exception", []Value{Fixnum(3)}, "TypeError", "exception class/object expected"},
		{"non-exception class", []Value{rt.StringClass}, "TypeError", "exception class/object expected"},
	}

	for _, tt := range tests {
		_, err := rt.Send(ctx, rt.TopSelf, "raise", tt.args, nil)
		exc, ok := AsException(err)
		if !ok {
			t.Errorf("%s: fault = %v, want an exception", tt.name, err)
			continue
		}
		if exc.Class().Name != tt.wantClass || exc.Message() != tt.wantMsg {
			t.Errorf("%s: raised %s %q, want %s %q", tt.name, exc.Class().Name, exc.Message(), tt.wantClass, tt.wantMsg)
		}
	}
}

func TestClassNewRunsInitialize(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})
	point := rt.DefineClass("Point", nil)

	m := NewMethodBuilder("initialize", MethodUnit, "x")
	x := Local{Index: 0, Name: "x"}
	m.Emit(&ReceivePreReqdArgInstr{Result: x, Index: 0})
	m.Emit(&PutFieldInstr{Object: Self{}, Name: "@x", Value: x})
	m.Return(RETURN, NilConst{})
	if err := rt.DefineMethod(point, "initialize", mustBuild(t, m), Private); err != nil {
		t.Fatal(err)
	}

	p := send(t, rt, ctx, point, "new", Fixnum(3))
	if rt.ClassOf(p) != point {
		t.Fatalf("Point.new returned %s", Inspect(p))
	}
	if got := send(t, rt, ctx, p, "instance_variable_get", Symbol("@x")); got != Fixnum(3) {
		t.Errorf("@x = %s, want 3", Inspect(got))
	}
	if got := send(t, rt, ctx, p, "is_a?", rt.ObjectClass); got != True {
		t.Error("Point instance should be an Object")
	}
	if got := send(t, rt, ctx, point, "===", p); got != True {
		t.Error("Point === point should be true")
	}
	if got := send(t, rt, ctx, p, "respond_to?", Symbol("initialize")); got != False {
		t.Error("private initialize should not be reported by respond_to?")
	}
}

func TestSendDispatchesByName(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	if got := send(t, rt, ctx, Fixnum(6), "send", Symbol("*"), Fixnum(7)); got != Fixnum(42) {
		t.Errorf("6.send(:*, 7) = %s, want 42", Inspect(got))
	}
	_, err := rt.Send(ctx, Fixnum(1), "send", nil, nil)
	if exceptionClassOf(err) != "ArgumentError" {
		t.Errorf("send with no name: fault = %v, want ArgumentError", err)
	}
	if got := send(t, rt, ctx, Fixnum(1), "!=", Fixnum(2)); got != True {
		t.Error("1 != 2 should be true")
	}
}

func TestExceptionPrimitives(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	exc := send(t, rt, ctx, rt.ArgumentErrorClass, "new", NewString("bad input"))
	if got := send(t, rt, ctx, exc, "message"); displayString(got) != "bad input" {
		t.Errorf("message = %s", Inspect(got))
	}
	if got := send(t, rt, ctx, exc, "backtrace"); got != Nil {
		t.Errorf("backtrace of an unraised exception = %s, want nil", Inspect(got))
	}
	if got := send(t, rt, ctx, rt.RuntimeErrorClass, "new"); displayString(send(t, rt, ctx, got, "message")) != "RuntimeError" {
		t.Error("default message should be the class name")
	}
	if got := exc.(*Exception).FullMessage(); got != "-: bad input (ArgumentError)" {
		t.Errorf("FullMessage = %q", got)
	}
}

func TestStringPrimitives(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})
	s := NewString("abc")

	if got := send(t, rt, ctx, s, "+", NewString("def")); displayString(got) != "abcdef" {
		t.Errorf("+ = %s", Inspect(got))
	}
	send(t, rt, ctx, s, "<<", NewString("!"))
	if s.String() != "abc!" {
		t.Errorf("<< should append in place, got %q", s.String())
	}
	if got := send(t, rt, ctx, s, "size"); got != Fixnum(4) {
		t.Errorf("size = %s, want 4", Inspect(got))
	}
	if got := send(t, rt, ctx, NewString("12abc"), "to_i"); got != Fixnum(12) {
		t.Errorf("to_i = %s, want 12", Inspect(got))
	}
	if got := send(t, rt, ctx, NewString("ab"), "*", Fixnum(3)); displayString(got) != "ababab" {
		t.Errorf("* = %s", Inspect(got))
	}
	if got := send(t, rt, ctx, NewString("ab"), "upcase"); displayString(got) != "AB" {
		t.Errorf("upcase = %s", Inspect(got))
	}
}

func TestArrayAndHashPrimitives(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	a := send(t, rt, ctx, rt.ArrayClass, "new", Fixnum(2), Symbol("z")).(*Array)
	if Inspect(a) != "[:z, :z]" {
		t.Errorf("Array.new(2, :z) = %s", Inspect(a))
	}
	send(t, rt, ctx, a, "[]=", Fixnum(4), Fixnum(1))
	if Inspect(a) != "[:z, :z, nil, nil, 1]" {
		t.Errorf("[]= past the end = %s", Inspect(a))
	}
	if got := send(t, rt, ctx, a, "pop"); got != Fixnum(1) {
		t.Errorf("pop = %s, want 1", Inspect(got))
	}
	if got := send(t, rt, ctx, a, "[]", Fixnum(-1)); got != Nil {
		t.Errorf("a[-1] = %s, want nil", Inspect(got))
	}

	h := send(t, rt, ctx, rt.HashClass, "new").(*Hash)
	key := NewString("k")
	send(t, rt, ctx, h, "[]=", key, Fixnum(1))
	key.Append("mutated")
	if got := send(t, rt, ctx, h, "[]", NewString("k")); got != Fixnum(1) {
		t.Errorf("h[\"k\"] = %s, want 1", Inspect(got))
	}
	_, err := rt.Send(ctx, h, "fetch", []Value{Symbol("missing")}, nil)
	if exceptionClassOf(err) == "" {
		t.Errorf("fetch of a missing key should raise, got %v", err)
	}
}

func TestIteratorsYieldToBlocks(t *testing.T) {
	rt, ctx, out := newTestRuntime(t, Options{})

	// [1, 2, 3].each_with_index { |x, i| puts x * i }
	s := NewMethodBuilder("main", ScriptUnit)
	body := NewBlockBuilder("show", s.Unit().Scope, "x", "i")
	body.BookKeeping(PREPARE_FIXED_BLOCK_ARGS)
	x, i := Local{Index: 0, Name: "x"}, Local{Index: 1, Name: "i"}
	body.Emit(&ReceivePreReqdArgInstr{Result: x, Index: 0})
	body.Emit(&ReceivePreReqdArgInstr{Result: i, Index: 1})
	p := body.Temp(ObjectBank)
	body.Call(p, "*", NormalCall, x, i)
	body.Call(nil, "puts", FunctionalCall, Self{}, p)
	body.Return(RETURN, NilConst{})
	body.SetArity(Arity{Required: 2})

	arr := s.Temp(ObjectBank)
	s.Call(arr, "new", NormalCall, ConstRef{"Array"})
	for n := int64(1); n <= 3; n++ {
		s.Call(nil, "push", NormalCall, arr, IntConst{n})
	}
	s.CallWithBlock(nil, "each_with_index", NormalCall, arr, mustBuild(t, body))
	s.Return(RETURN, arr)

	mustRun(t, rt, ctx, mustBuild(t, s))
	if out.String() != "0\n2\n6\n" {
		t.Errorf("output = %q, want %q", out.String(), "0\n2\n6\n")
	}
	expectBalanced(t, ctx)
}

func TestBlockGiven(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	m := NewMethodBuilder("given", MethodUnit)
	r := m.Temp(ObjectBank)
	m.Call(r, "block_given?", FunctionalCall, Self{})
	m.Return(RETURN, r)
	if err := rt.DefineMethod(rt.ObjectClass, "given", mustBuild(t, m), Public); err != nil {
		t.Fatal(err)
	}

	s := NewMethodBuilder("main", ScriptUnit)
	body := NewBlockBuilder("noop", s.Unit().Scope)
	body.Return(RETURN, NilConst{})
	with, without := s.Temp(ObjectBank), s.Temp(ObjectBank)
	s.CallWithBlock(with, "given", FunctionalCall, Self{}, mustBuild(t, body))
	s.Call(without, "given", FunctionalCall, Self{})
	res := s.Temp(ObjectBank)
	s.Call(res, "^", NormalCall, with, without)
	s.Return(RETURN, res)

	if got := mustRun(t, rt, ctx, mustBuild(t, s)); got != True {
		t.Errorf("block_given? with ^ without = %s, want true", Inspect(got))
	}
}

func TestYieldArities(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	// proc { |a, b, c, d| [a, b, c, d] }
	s := NewMethodBuilder("main", ScriptUnit)
	names := []string{"a", "b", "c", "d"}
	body := NewBlockBuilder("collect", s.Unit().Scope, names...)
	body.BookKeeping(PREPARE_FIXED_BLOCK_ARGS)
	arr := body.Temp(ObjectBank)
	body.Call(arr, "new", NormalCall, ConstRef{"Array"})
	for i, n := range names {
		l := Local{Index: i, Name: n}
		body.Emit(&ReceivePreReqdArgInstr{Result: l, Index: i})
		body.Call(nil, "push", NormalCall, arr, l)
	}
	body.Return(RETURN, arr)
	body.SetArity(Arity{Required: 4})
	p := s.Temp(ObjectBank)
	s.CallWithBlock(p, "proc", FunctionalCall, Self{}, mustBuild(t, body))
	s.Return(RETURN, p)
	blk := mustRun(t, rt, ctx, mustBuild(t, s)).(*Block)

	tests := []struct {
		args []Value
		want string
	}{
		{nil, "[nil, nil, nil, nil]"},
		{[]Value{Fixnum(1)}, "[1, nil, nil, nil]"},
		{[]Value{Fixnum(1), Fixnum(2)}, "[1, 2, nil, nil]"},
		{[]Value{Fixnum(1), Fixnum(2), Fixnum(3)}, "[1, 2, 3, nil]"},
		{[]Value{Fixnum(1), Fixnum(2), Fixnum(3), Fixnum(4)}, "[1, 2, 3, 4]"},
		{[]Value{Fixnum(1), Fixnum(2), Fixnum(3), Fixnum(4), Fixnum(5)}, "[1, 2, 3, 4]"},
	}
	for _, tt := range tests {
		got, err := blk.Yield(ctx, tt.args...)
		if err != nil {
			t.Fatalf("yield %d: %v", len(tt.args), err)
		}
		if Inspect(got) != tt.want {
			t.Errorf("yield %d = %s, want %s", len(tt.args), Inspect(got), tt.want)
		}
	}
	expectBalanced(t, ctx)
}

package vm

import "testing"

func TestDynamicScopeLookup(t *testing.T) {
	method := NewStaticScope(MethodScope, nil, "a", "b")
	block := NewStaticScope(BlockScope, method, "x")
	if block.IndexOf("x") != 0 || method.IndexOf("b") != 1 || method.IndexOf("zz") != -1 {
		t.Error("IndexOf returned wrong slots")
	}

	outer := NewDynamicScope(method, nil)
	inner := NewDynamicScope(block, outer)
	if outer.GetValue(0, 0) != Nil {
		t.Error("fresh slots should read as nil")
	}

	inner.SetValue(Fixnum(5), 1, 1)
	inner.SetValue(Fixnum(9), 0, 0)
	if outer.GetValue(1, 0) != Fixnum(5) {
		t.Errorf("b = %v, want 5", outer.GetValue(1, 0))
	}
	if inner.GetValue(0, 0) != Fixnum(9) {
		t.Errorf("x = %v, want 9", inner.GetValue(0, 0))
	}
}

func TestScopeOutOfRangeIsABug(t *testing.T) {
	s := NewDynamicScope(NewStaticScope(MethodScope, nil, "a"), nil)
	tests := []struct {
		name string
		fn   func()
	}{
		{"index past slots", func() { s.GetValue(3, 0) }},
		{"depth past nesting", func() { s.SetValue(Nil, 0, 2) }},
	}
	for _, tt := range tests {
		func() {
			defer func() {
				if _, ok := recover().(*BugError); !ok {
					t.Errorf("%s: expected BugError panic", tt.name)
				}
			}()
			tt.fn()
		}()
	}
}

func TestCaptureMarksChain(t *testing.T) {
	method := NewStaticScope(MethodScope, nil)
	outer := NewDynamicScope(method, nil)
	inner := NewDynamicScope(NewStaticScope(BlockScope, method), outer)

	inner.Capture()
	if !inner.IsCaptured() || !outer.IsCaptured() {
		t.Error("Capture should mark the whole parent chain")
	}
}

func TestArenaRecyclesOnlyUncapturedScopes(t *testing.T) {
	var arena scopeArena
	static := NewStaticScope(MethodScope, nil, "a", "b")

	s1 := arena.alloc(static, nil)
	s1.SetValue(Fixnum(1), 0, 0)
	arena.release(s1)

	s2 := arena.alloc(static, nil)
	if s2 != s1 {
		t.Error("released scope should be reused")
	}
	if s2.GetValue(0, 0) != Nil {
		t.Error("reused scope should be cleared")
	}

	s2.Capture()
	arena.release(s2)
	if s3 := arena.alloc(static, nil); s3 == s2 {
		t.Error("captured scope must not be recycled")
	}
}

func TestCapturedScopeSurvivesActivation(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	// def counter; n = 0; proc { n = n + 1 }; end
	m := NewMethodBuilder("counter", MethodUnit, "n")
	n := Local{Index: 0, Name: "n"}
	m.Copy(n, IntConst{0})
	body := NewBlockBuilder("incr", m.Unit().Scope)
	outerN := Local{Depth: 0, Index: 0, Name: "n"}
	body.Call(outerN, "+", NormalCall, outerN, IntConst{1})
	body.Return(RETURN, outerN)
	p := m.Temp(ObjectBank)
	m.CallWithBlock(p, "proc", FunctionalCall, Self{}, mustBuild(t, body))
	m.Return(RETURN, p)
	if err := rt.DefineMethod(rt.ObjectClass, "counter", mustBuild(t, m), Public); err != nil {
		t.Fatal(err)
	}

	v, err := rt.Send(ctx, rt.TopSelf, "counter", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	blk := v.(*Block)

	// Run other methods so a recycled scope would be overwritten.
	for i := 0; i < 3; i++ {
		if _, err := rt.Send(ctx, rt.TopSelf, "counter", nil, nil); err != nil {
			t.Fatal(err)
		}
	}

	for want := int64(1); want <= 3; want++ {
		got, err := blk.Call(ctx, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got != Fixnum(want) {
			t.Errorf("call %d = %s, want %d", want, Inspect(got), want)
		}
	}
	expectBalanced(t, ctx)
}

package vm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestScopeStack(t *testing.T) {
	rt := NewRuntime(Options{})
	ctx := rt.NewThreadContext(context.Background())

	static := NewStaticScope(MethodScope, nil, "a")
	outer := NewDynamicScope(static, nil)
	inner := NewDynamicScope(NewStaticScope(BlockScope, static), outer)
	ctx.PushScope(outer)
	ctx.PushScope(inner)

	if ctx.CurrentScope() != inner {
		t.Error("CurrentScope should be the innermost scope")
	}
	if inner.MethodScope() != outer {
		t.Error("MethodScope should walk out to the method scope")
	}
	if !ctx.ScopeExistsOnCallStack(outer) {
		t.Error("outer scope should be on the call stack")
	}

	ctx.PopScope()
	ctx.PopScope()
	if ctx.ScopeExistsOnCallStack(outer) {
		t.Error("popped scope still reported live")
	}
	if ctx.ScopeDepth() != 0 {
		t.Errorf("ScopeDepth = %d, want 0", ctx.ScopeDepth())
	}
}

func TestPopEmptyScopeStackIsABug(t *testing.T) {
	ctx := NewRuntime(Options{}).NewThreadContext(context.Background())
	defer func() {
		if _, ok := recover().(*BugError); !ok {
			t.Error("popping an empty scope stack should panic with a BugError")
		}
	}()
	ctx.PopScope()
}

func TestStackLevelTooDeep(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{MaxDepth: 50})

	m := NewMethodBuilder("down", MethodUnit)
	m.Call(nil, "down", FunctionalCall, Self{})
	m.Return(RETURN, NilConst{})
	if err := rt.DefineMethod(rt.ObjectClass, "down", mustBuild(t, m), Public); err != nil {
		t.Fatal(err)
	}

	_, err := rt.Send(ctx, rt.TopSelf, "down", nil, nil)
	exc, ok := AsException(err)
	if !ok || exc.Class() != rt.SystemStackErrorClass {
		t.Fatalf("fault = %v, want SystemStackError", err)
	}
	if exc.Message() != "stack level too deep" {
		t.Errorf("message = %q", exc.Message())
	}
	if len(exc.Backtrace()) != 50 {
		t.Errorf("backtrace has %d frames, want 50", len(exc.Backtrace()))
	}
	expectBalanced(t, ctx)
}

func TestKillFromAnotherGoroutine(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t, Options{})

	// loop { } spins until killed.
	s := NewMethodBuilder("main", ScriptUnit)
	body := NewBlockBuilder("spin", s.Unit().Scope)
	body.Return(RETURN, NilConst{})
	s.CallWithBlock(nil, "loop", FunctionalCall, Self{}, mustBuild(t, body))
	s.Return(RETURN, NilConst{})
	unit := mustBuild(t, s)

	stop := errors.New("shutdown")
	go func() {
		time.Sleep(10 * time.Millisecond)
		ctx.Kill(stop)
	}()

	done := make(chan error, 1)
	go func() {
		_, err := rt.Run(ctx, unit, nil)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, stop) {
			t.Errorf("fault = %v, want kill caused by %v", err, stop)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("thread was not killed")
	}
	expectBalanced(t, ctx)
}

func TestContextDeadlineStopsLoop(t *testing.T) {
	rt := NewRuntime(Options{})
	cctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ctx := rt.NewThreadContext(cctx)

	s := NewMethodBuilder("main", ScriptUnit)
	body := NewBlockBuilder("spin", s.Unit().Scope)
	body.Return(RETURN, NilConst{})
	s.CallWithBlock(nil, "loop", FunctionalCall, Self{}, mustBuild(t, body))
	s.Return(RETURN, NilConst{})

	_, err := rt.Run(ctx, mustBuild(t, s), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("fault = %v, want context.DeadlineExceeded", err)
	}
}

func TestCallInfoIsConsumedOnce(t *testing.T) {
	ctx := NewRuntime(Options{}).NewThreadContext(context.Background())
	ctx.SetCallInfo(CallKeywords)
	if ctx.TakeCallInfo() != CallKeywords {
		t.Error("TakeCallInfo should return the pending flags")
	}
	if ctx.TakeCallInfo() != 0 {
		t.Error("call info should be cleared after it is taken")
	}
}

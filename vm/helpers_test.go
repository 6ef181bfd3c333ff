package vm

import (
	"bytes"
	"context"
	"testing"
)

// newTestRuntime creates a runtime writing puts output to a buffer, plus a
// thread bound to a background context.
func newTestRuntime(t *testing.T, opts Options) (*Runtime, *ThreadContext, *bytes.Buffer) {
	t.Helper()
	rt := NewRuntime(opts)
	out := &bytes.Buffer{}
	rt.Stdout = out
	return rt, rt.NewThreadContext(context.Background()), out
}

func mustBuild(t *testing.T, b *UnitBuilder) *CompiledUnit {
	t.Helper()
	u, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return u
}

func mustRun(t *testing.T, rt *Runtime, ctx *ThreadContext, unit *CompiledUnit) Value {
	t.Helper()
	v, err := rt.Run(ctx, unit, nil)
	if err != nil {
		t.Fatalf("Run(%s): %v", unit.Name, err)
	}
	return v
}

// exceptionClassOf returns the class name carried by a fault, or "".
func exceptionClassOf(err error) string {
	if exc, ok := AsException(err); ok {
		return exc.Class().Name
	}
	return ""
}

func expectBalanced(t *testing.T, ctx *ThreadContext) {
	t.Helper()
	if ctx.ScopeDepth() != 0 {
		t.Errorf("ScopeDepth = %d, want 0", ctx.ScopeDepth())
	}
	if ctx.FrameDepth() != 0 {
		t.Errorf("FrameDepth = %d, want 0", ctx.FrameDepth())
	}
	if ctx.Depth() != 0 {
		t.Errorf("Depth = %d, want 0", ctx.Depth())
	}
}

package server

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/wire"
)

func newTestClient(t *testing.T, opts vm.Options, limit int64) *Client {
	t.Helper()
	srv := httptest.NewServer(New(opts, limit).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), srv.URL)
}

func encode(t *testing.T, main *vm.CompiledUnit, classes ...wire.ClassDef) []byte {
	t.Helper()
	p, err := wire.NewProgram(main, classes...)
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	data, err := wire.EncodeProgram(p)
	if err != nil {
		t.Fatalf("EncodeProgram: %v", err)
	}
	return data
}

// addArgs answers its two script arguments added together.
func addArgs() *vm.CompiledUnit {
	b := vm.NewMethodBuilder("main", vm.ScriptUnit, "a", "b")
	a, c := vm.Local{Index: 0, Name: "a"}, vm.Local{Index: 1, Name: "b"}
	b.Emit(&vm.ReceivePreReqdArgInstr{Result: a, Index: 0})
	b.Emit(&vm.ReceivePreReqdArgInstr{Result: c, Index: 1})
	r := b.Temp(vm.ObjectBank)
	b.Call(r, "+", vm.NormalCall, a, c)
	b.Return(vm.RETURN, r)
	b.SetArity(vm.Arity{Required: 2})
	return b.MustBuild()
}

func raising() *vm.CompiledUnit {
	b := vm.NewMethodBuilder("main", vm.ScriptUnit)
	b.Call(nil, "raise", vm.FunctionalCall, vm.Self{}, vm.ConstRef{Name: "ArgumentError"}, vm.StringConst{V: "bad"})
	b.Return(vm.RETURN, vm.NilConst{})
	return b.MustBuild()
}

// forever spins until its thread is killed.
func forever() *vm.CompiledUnit {
	b := vm.NewMethodBuilder("main", vm.ScriptUnit)
	b.Label("top")
	b.BookKeeping(vm.THREAD_POLL)
	b.Jump("top")
	return b.MustBuild()
}

func TestRunReturnsResult(t *testing.T) {
	c := newTestClient(t, vm.Options{}, 2)

	resp, err := c.Run(context.Background(), &RunRequest{
		Program: encode(t, addArgs()),
		Args:    []wire.Value{wire.FromValue(vm.NewString("gar")), wire.FromValue(vm.NewString("net"))},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := resp.Result.String(); got != `"garnet"` {
		t.Errorf("Result = %s, want \"garnet\"", got)
	}
	if resp.ExceptionClass != "" {
		t.Errorf("ExceptionClass = %q, want none", resp.ExceptionClass)
	}
	if _, err := uuid.Parse(resp.InvocationID); err != nil {
		t.Errorf("InvocationID %q is not a UUID: %v", resp.InvocationID, err)
	}
}

func TestRunReportsException(t *testing.T) {
	c := newTestClient(t, vm.Options{}, 2)

	resp, err := c.Run(context.Background(), &RunRequest{Program: encode(t, raising())})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.ExceptionClass != "ArgumentError" || resp.Message != "bad" {
		t.Errorf("exception = %s %q, want ArgumentError \"bad\"", resp.ExceptionClass, resp.Message)
	}
	if len(resp.Backtrace) == 0 {
		t.Error("Backtrace should not be empty")
	}
}

// unitless encodes a program declaring a method that has no body.
func unitless(t *testing.T) []byte {
	t.Helper()
	p, err := wire.NewProgram(raising(), wire.ClassDef{Name: "Foo", Methods: []wire.Method{{Name: "bar"}}})
	if err != nil {
		t.Fatal(err)
	}
	data, err := wire.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// badLocal encodes a program whose main reads a local slot it never declared.
func badLocal(t *testing.T) []byte {
	t.Helper()
	p, err := wire.NewProgram(raising())
	if err != nil {
		t.Fatal(err)
	}
	p.Main.Instrs = append([]wire.Instr{{Op: vm.RETURN.String(), Args: []wire.Operand{{Kind: "local", Index: 7}}}}, p.Main.Instrs...)
	data, err := wire.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestRunRejectsBadInput(t *testing.T) {
	c := newTestClient(t, vm.Options{}, 2)

	tests := []struct {
		name string
		req  *RunRequest
	}{
		{"empty program", &RunRequest{}},
		{"garbage program", &RunRequest{Program: []byte("not cbor")}},
		{"opaque argument", &RunRequest{Program: encode(t, addArgs()), Args: []wire.Value{{Kind: "opaque", Str: "#<Object>"}}}},
		{"unknown superclass", &RunRequest{Program: encode(t, raising(), wire.ClassDef{Name: "X", Superclass: "Nope"})}},
		{"method without unit", &RunRequest{Program: unitless(t)}},
		{"local out of range", &RunRequest{Program: badLocal(t)}},
	}
	for _, tt := range tests {
		_, err := c.Run(context.Background(), tt.req)
		if connect.CodeOf(err) != connect.CodeInvalidArgument {
			t.Errorf("%s: code = %v (%v), want invalid_argument", tt.name, connect.CodeOf(err), err)
		}
	}
}

func TestRunTimeoutKillsThread(t *testing.T) {
	c := newTestClient(t, vm.Options{}, 1)

	_, err := c.Run(context.Background(), &RunRequest{Program: encode(t, forever()), TimeoutMillis: 50})
	if connect.CodeOf(err) != connect.CodeDeadlineExceeded {
		t.Fatalf("code = %v (%v), want deadline_exceeded", connect.CodeOf(err), err)
	}

	// The slot is released: a following run still gets served.
	resp, err := c.Run(context.Background(), &RunRequest{
		Program: encode(t, addArgs()),
		Args:    []wire.Value{wire.FromValue(vm.Fixnum(1)), wire.FromValue(vm.Fixnum(2))},
	})
	if err != nil {
		t.Fatalf("Run after timeout: %v", err)
	}
	if resp.Result.String() != "3" {
		t.Errorf("Result = %s, want 3", resp.Result.String())
	}
}

func TestStatsAggregatesRuns(t *testing.T) {
	c := newTestClient(t, vm.Options{Profile: true}, 2)
	ctx := context.Background()

	if _, err := c.Run(ctx, &RunRequest{Program: encode(t, raising())}); err != nil {
		t.Fatal(err)
	}
	args := []wire.Value{wire.FromValue(vm.Fixnum(1)), wire.FromValue(vm.Fixnum(2))}
	if _, err := c.Run(ctx, &RunRequest{Program: encode(t, addArgs()), Args: args}); err != nil {
		t.Fatal(err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Runs != 2 || stats.Exceptions != 1 {
		t.Errorf("runs, exceptions = %d, %d, want 2, 1", stats.Runs, stats.Exceptions)
	}
	if stats.Active != 0 {
		t.Errorf("Active = %d, want 0", stats.Active)
	}
	if stats.OpCounts["call"] < 2 {
		t.Errorf("OpCounts[call] = %d, want at least 2", stats.OpCounts["call"])
	}
}

func TestWorkerRecoversPanics(t *testing.T) {
	w := NewVMWorker(vm.Options{}, 1)
	err := w.Do(context.Background(), func(*vm.Runtime, *vm.ThreadContext) error {
		panic(&vm.BugError{Msg: "broken"})
	})
	var bugErr *vm.BugError
	if !errors.As(err, &bugErr) || bugErr.Msg != "broken" {
		t.Fatalf("err = %v, want the BugError", err)
	}
	if connect.CodeOf(NewEvalService(w).runError("id", err)) != connect.CodeInternal {
		t.Error("a BugError should map to internal")
	}
}

func TestWorkerAcquireHonorsContext(t *testing.T) {
	w := NewVMWorker(vm.Options{}, 1)
	hold := make(chan struct{})
	started := make(chan struct{})
	go w.Do(context.Background(), func(*vm.Runtime, *vm.ThreadContext) error {
		close(started)
		<-hold
		return nil
	})
	<-started
	defer close(hold)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Do(ctx, func(*vm.Runtime, *vm.ThreadContext) error {
		t.Error("fn ran without a slot")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

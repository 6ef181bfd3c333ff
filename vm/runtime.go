package vm

import (
	"io"
	"os"
	"sync/atomic"
)

// Options configure a runtime and its engine.
type Options struct {
	Debug        bool   // log every instruction
	Profile      bool   // count operations, calls and invocations
	MaxDepth     int    // activation depth that raises SystemStackError
	HotThreshold uint64 // invocations before a unit counts as hot
}

// ---------------------------------------------------------------------------
// Runtime: classes, engine and host entry points
// ---------------------------------------------------------------------------

// Runtime owns the class hierarchy and the engine. It is shared by every
// ThreadContext created from it.
type Runtime struct {
	Classes *ClassTable

	// Well-known classes (for fast-path checks and bootstrapping)
	BasicObjectClass *Class
	ObjectClass      *Class
	ModuleClass      *Class
	ClassClass       *Class
	NilClass         *Class
	TrueClass        *Class
	FalseClass       *Class
	IntegerClass     *Class
	FloatClass       *Class
	StringClass      *Class
	SymbolClass      *Class
	ArrayClass       *Class
	HashClass        *Class
	ProcClass        *Class

	// Exception hierarchy
	ExceptionClass         *Class
	StandardErrorClass     *Class
	RuntimeErrorClass      *Class
	ArgumentErrorClass     *Class
	TypeErrorClass         *Class
	NameErrorClass         *Class
	NoMethodErrorClass     *Class
	ZeroDivisionErrorClass *Class
	LocalJumpErrorClass    *Class
	SystemStackErrorClass  *Class

	// TopSelf is the "main" object scripts run against.
	TopSelf *Object

	// Stdout receives Kernel#puts output.
	Stdout io.Writer

	options      Options
	engine       *Engine
	methodSerial atomic.Uint64
}

// NewRuntime creates and bootstraps a runtime.
func NewRuntime(opts Options) *Runtime {
	rt := &Runtime{
		Classes: NewClassTable(),
		Stdout:  os.Stdout,
		options: opts,
	}
	rt.bootstrap()
	rt.engine = newEngine(rt, opts)
	return rt
}

// Engine returns the runtime's interpreter.
func (rt *Runtime) Engine() *Engine { return rt.engine }

// Profiler returns the engine's profiler, or nil when profiling is off.
func (rt *Runtime) Profiler() *Profiler { return rt.engine.profiler }

// Options returns the options the runtime was created with.
func (rt *Runtime) Options() Options { return rt.options }

// DefineClass creates and registers a class. A nil superclass means Object.
func (rt *Runtime) DefineClass(name string, superclass *Class) *Class {
	if superclass == nil {
		superclass = rt.ObjectClass
	}
	c := &Class{Name: name, Superclass: superclass, serial: &rt.methodSerial}
	rt.Classes.Register(c)
	rt.methodSerial.Add(1)
	return c
}

// DefineMethod installs unit as method name of class.
func (rt *Runtime) DefineMethod(class *Class, name string, unit *CompiledUnit, vis Visibility) error {
	if err := unit.Finalize(); err != nil {
		return err
	}
	class.DefineMethod(name, NewInterpretedMethod(name, class, unit), vis)
	return nil
}

// ClassOf returns the class of any value.
func (rt *Runtime) ClassOf(v Value) *Class {
	switch x := v.(type) {
	case nil, nilValue:
		return rt.NilClass
	case Bool:
		if x {
			return rt.TrueClass
		}
		return rt.FalseClass
	case Fixnum, *Bignum:
		return rt.IntegerClass
	case Float:
		return rt.FloatClass
	case Symbol:
		return rt.SymbolClass
	case *String:
		return rt.StringClass
	case *Array:
		return rt.ArrayClass
	case *Hash:
		return rt.HashClass
	case *Object:
		return x.class
	case *Exception:
		return x.class
	case *Class:
		return rt.ClassClass
	case *Block:
		return rt.ProcClass
	}
	return rt.ObjectClass
}

// ---------------------------------------------------------------------------
// Host entry points
// ---------------------------------------------------------------------------

// Run executes unit as a top-level script. A break or return that escapes
// every activation becomes a LocalJumpError fault. A nil self means main.
func (rt *Runtime) Run(ctx *ThreadContext, unit *CompiledUnit, self Value, args ...Value) (result Value, err error) {
	if err := unit.Finalize(); err != nil {
		return nil, err
	}
	if self == nil {
		self = rt.TopSelf
	}
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		t, ok := r.(*ControlTransfer)
		if !ok {
			panic(r)
		}
		msg := unexpectedReturnError
		if t.Kind == TransferBreak {
			msg = breakFromProcMessage
		}
		result, err = nil, ctx.LocalJumpError(msg)
	}()
	return rt.engine.Interpret(ctx, nil, self, unit, rt.ObjectClass, unit.Name, args, nil)
}

// Send calls method name on recv the way an implicit-self call would, so
// private methods are reachable.
func (rt *Runtime) Send(ctx *ThreadContext, recv Value, name string, args []Value, blk *Block) (Value, error) {
	entry := rt.ClassOf(recv).SearchMethod(name)
	if entry == nil {
		return nil, ctx.NoMethodError("undefined method '%s' for %s", name, describeReceiver(rt, recv))
	}
	return entry.Method.Call(ctx, recv, args, blk)
}

// RespondTo reports whether recv has a public method name.
func (rt *Runtime) RespondTo(recv Value, name string) bool {
	e := rt.ClassOf(recv).SearchMethod(name)
	return e != nil && e.Visibility == Public
}

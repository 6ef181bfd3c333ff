package vm

// Method is anything a call site can dispatch to.
//
// The general entry point takes an argument slice. Implementations that can
// avoid building that slice also implement the arity-specialized interfaces
// below; call sites look them up at dispatch time.
type Method interface {
	Call(ctx *ThreadContext, self Value, args []Value, blk *Block) (Value, error)
	Name() string
	Arity() int // -1 for variable arity
}

// ZeroArgMethod is implemented by methods with a no-argument entry point.
type ZeroArgMethod interface {
	Call0(ctx *ThreadContext, self Value, blk *Block) (Value, error)
}

// OneArgMethod is implemented by methods with a one-argument entry point.
type OneArgMethod interface {
	Call1(ctx *ThreadContext, self Value, arg Value, blk *Block) (Value, error)
}

// TwoArgMethod is implemented by methods with a two-argument entry point.
type TwoArgMethod interface {
	Call2(ctx *ThreadContext, self Value, arg1, arg2 Value, blk *Block) (Value, error)
}

// FixnumArgMethod accepts a single unboxed integer argument.
type FixnumArgMethod interface {
	CallFixnum(ctx *ThreadContext, self Value, arg int64) (Value, error)
}

// FloatArgMethod accepts a single unboxed double argument.
type FloatArgMethod interface {
	CallFloat(ctx *ThreadContext, self Value, arg float64) (Value, error)
}

// PrimitiveFunc implements a variable-arity primitive.
type PrimitiveFunc func(ctx *ThreadContext, self Value, args []Value, blk *Block) (Value, error)

// Method0Func is a primitive taking no arguments.
type Method0Func func(ctx *ThreadContext, self Value, blk *Block) (Value, error)

// Method1Func is a primitive taking one argument.
type Method1Func func(ctx *ThreadContext, self Value, arg Value, blk *Block) (Value, error)

// Method2Func is a primitive taking two arguments.
type Method2Func func(ctx *ThreadContext, self Value, arg1, arg2 Value, blk *Block) (Value, error)

// FixnumArgFunc is the unboxed integer fast path of a one-argument primitive.
type FixnumArgFunc func(ctx *ThreadContext, self Value, arg int64) (Value, error)

// FloatArgFunc is the unboxed double fast path of a one-argument primitive.
type FloatArgFunc func(ctx *ThreadContext, self Value, arg float64) (Value, error)

// ---------------------------------------------------------------------------
// Arity-specialized method wrappers
// ---------------------------------------------------------------------------

// PrimitiveMethod wraps a general PrimitiveFunc as a Method.
type PrimitiveMethod struct {
	name string
	fn   PrimitiveFunc
}

// NewPrimitiveMethod creates a variable-arity method.
func NewPrimitiveMethod(name string, fn PrimitiveFunc) *PrimitiveMethod {
	return &PrimitiveMethod{name: name, fn: fn}
}

func (m *PrimitiveMethod) Call(ctx *ThreadContext, self Value, args []Value, blk *Block) (Value, error) {
	return m.fn(ctx, self, args, blk)
}

func (m *PrimitiveMethod) Name() string { return m.name }
func (m *PrimitiveMethod) Arity() int   { return -1 }

// Method0 wraps a zero-argument primitive.
type Method0 struct {
	name string
	fn   Method0Func
}

// NewMethod0 creates a zero-argument method.
func NewMethod0(name string, fn Method0Func) *Method0 {
	return &Method0{name: name, fn: fn}
}

func (m *Method0) Call(ctx *ThreadContext, self Value, args []Value, blk *Block) (Value, error) {
	if len(args) != 0 {
		return nil, ctx.ArgumentCountError(len(args), "0")
	}
	return m.fn(ctx, self, blk)
}

func (m *Method0) Call0(ctx *ThreadContext, self Value, blk *Block) (Value, error) {
	return m.fn(ctx, self, blk)
}

func (m *Method0) Name() string { return m.name }
func (m *Method0) Arity() int   { return 0 }

// Method1 wraps a one-argument primitive.
type Method1 struct {
	name string
	fn   Method1Func
}

// NewMethod1 creates a one-argument method.
func NewMethod1(name string, fn Method1Func) *Method1 {
	return &Method1{name: name, fn: fn}
}

func (m *Method1) Call(ctx *ThreadContext, self Value, args []Value, blk *Block) (Value, error) {
	if len(args) != 1 {
		return nil, ctx.ArgumentCountError(len(args), "1")
	}
	return m.fn(ctx, self, args[0], blk)
}

func (m *Method1) Call1(ctx *ThreadContext, self Value, arg Value, blk *Block) (Value, error) {
	return m.fn(ctx, self, arg, blk)
}

func (m *Method1) Name() string { return m.name }
func (m *Method1) Arity() int   { return 1 }

// Method2 wraps a two-argument primitive.
type Method2 struct {
	name string
	fn   Method2Func
}

// NewMethod2 creates a two-argument method.
func NewMethod2(name string, fn Method2Func) *Method2 {
	return &Method2{name: name, fn: fn}
}

func (m *Method2) Call(ctx *ThreadContext, self Value, args []Value, blk *Block) (Value, error) {
	if len(args) != 2 {
		return nil, ctx.ArgumentCountError(len(args), "2")
	}
	return m.fn(ctx, self, args[0], args[1], blk)
}

func (m *Method2) Call2(ctx *ThreadContext, self Value, arg1, arg2 Value, blk *Block) (Value, error) {
	return m.fn(ctx, self, arg1, arg2, blk)
}

func (m *Method2) Name() string { return m.name }
func (m *Method2) Arity() int   { return 2 }

// NumericMethod is a one-argument primitive with unboxed fast paths for
// integer and double arguments. Either fast path may be nil.
type NumericMethod struct {
	Method1
	fixnum FixnumArgFunc
	float  FloatArgFunc
}

// NewNumericMethod creates a one-argument method with unboxed entry points.
func NewNumericMethod(name string, fn Method1Func, fixnum FixnumArgFunc, float FloatArgFunc) *NumericMethod {
	return &NumericMethod{Method1: Method1{name: name, fn: fn}, fixnum: fixnum, float: float}
}

func (m *NumericMethod) CallFixnum(ctx *ThreadContext, self Value, arg int64) (Value, error) {
	if m.fixnum == nil {
		return m.fn(ctx, self, Fixnum(arg), nil)
	}
	return m.fixnum(ctx, self, arg)
}

func (m *NumericMethod) CallFloat(ctx *ThreadContext, self Value, arg float64) (Value, error) {
	if m.float == nil {
		return m.fn(ctx, self, Float(arg), nil)
	}
	return m.float(ctx, self, arg)
}

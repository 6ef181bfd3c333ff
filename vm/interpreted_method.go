package vm

// InterpretedMethod is a method whose body is a compiled unit.
type InterpretedMethod struct {
	name   string
	module *Class
	unit   *CompiledUnit
}

// NewInterpretedMethod wraps unit as a method of module.
func NewInterpretedMethod(name string, module *Class, unit *CompiledUnit) *InterpretedMethod {
	return &InterpretedMethod{name: name, module: module, unit: unit}
}

// Unit returns the method body.
func (m *InterpretedMethod) Unit() *CompiledUnit { return m.unit }

func (m *InterpretedMethod) Name() string { return m.name }
func (m *InterpretedMethod) Arity() int   { return m.unit.Arity.Value() }

func (m *InterpretedMethod) Call(ctx *ThreadContext, self Value, args []Value, blk *Block) (Value, error) {
	return ctx.runtime.engine.Interpret(ctx, nil, self, m.unit, m.module, m.name, args, blk)
}

func (m *InterpretedMethod) Call0(ctx *ThreadContext, self Value, blk *Block) (Value, error) {
	return ctx.runtime.engine.Interpret0(ctx, nil, self, m.unit, m.module, m.name, blk)
}

func (m *InterpretedMethod) Call1(ctx *ThreadContext, self Value, arg Value, blk *Block) (Value, error) {
	return ctx.runtime.engine.Interpret1(ctx, nil, self, m.unit, m.module, m.name, arg, blk)
}

func (m *InterpretedMethod) Call2(ctx *ThreadContext, self Value, arg1, arg2 Value, blk *Block) (Value, error) {
	return ctx.runtime.engine.Interpret2(ctx, nil, self, m.unit, m.module, m.name, arg1, arg2, blk)
}

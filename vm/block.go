package vm

import "sync/atomic"

// BlockType distinguishes plain blocks, procs and lambdas, which differ in
// how break, return and arity behave.
type BlockType uint8

const (
	NormalBlock BlockType = iota
	ProcBlock
	LambdaBlock
)

// Binding is the environment a block closes over.
type Binding struct {
	Self   Value
	Frame  *Frame
	Scope  *DynamicScope
	Module *Class
}

// Block is a closure: a compiled body plus its binding. Blocks are also the
// runtime representation of Proc objects.
type Block struct {
	Body    *CompiledUnit
	Binding *Binding
	Type    BlockType

	escaped atomic.Bool
}

// NewBlock closes body over binding and marks the binding's scope chain as
// captured.
func NewBlock(body *CompiledUnit, binding *Binding) *Block {
	if binding.Scope != nil {
		binding.Scope.Capture()
	}
	return &Block{Body: body, Binding: binding, Type: NormalBlock}
}

// Escape marks the block as having outlived the call it was passed to. A
// break from an escaped block has no target.
func (b *Block) Escape() { b.escaped.Store(true) }

// Escaped reports whether Escape has been called.
func (b *Block) Escaped() bool { return b.escaped.Load() }

// MakeLambda turns a block literal into a lambda. Existing procs and
// lambdas are returned unchanged.
func (b *Block) MakeLambda() *Block {
	if b.Type == NormalBlock {
		b.Type = LambdaBlock
	}
	return b
}

// MakeProc turns a block literal into a proc.
func (b *Block) MakeProc() *Block {
	if b.Type == NormalBlock {
		b.Type = ProcBlock
	}
	return b
}

func (b *Block) frameName() string {
	if b.Binding.Frame != nil {
		return b.Binding.Frame.Name
	}
	return b.Body.Name
}

// Call invokes the block with args and an optional block argument.
func (b *Block) Call(ctx *ThreadContext, args []Value, blockArg *Block) (Value, error) {
	return ctx.runtime.engine.Interpret(ctx, b, b.Binding.Self, b.Body, b.Binding.Module, b.frameName(), args, blockArg)
}

// Yield invokes the block with args.
func (b *Block) Yield(ctx *ThreadContext, args ...Value) (Value, error) {
	switch len(args) {
	case 0:
		return ctx.runtime.engine.Interpret0(ctx, b, b.Binding.Self, b.Body, b.Binding.Module, b.frameName(), nil)
	case 1:
		return b.Yield1(ctx, args[0])
	case 2:
		return ctx.runtime.engine.Interpret2(ctx, b, b.Binding.Self, b.Body, b.Binding.Module, b.frameName(), args[0], args[1], nil)
	case 3:
		return ctx.runtime.engine.Interpret3(ctx, b, b.Binding.Self, b.Body, b.Binding.Module, b.frameName(), args[0], args[1], args[2], nil)
	case 4:
		return ctx.runtime.engine.Interpret4(ctx, b, b.Binding.Self, b.Body, b.Binding.Module, b.frameName(), args[0], args[1], args[2], args[3], nil)
	}
	return b.Call(ctx, args, nil)
}

// Yield1 invokes the block with one argument without building a slice.
func (b *Block) Yield1(ctx *ThreadContext, arg Value) (Value, error) {
	return ctx.runtime.engine.Interpret1(ctx, b, b.Binding.Self, b.Body, b.Binding.Module, b.frameName(), arg, nil)
}

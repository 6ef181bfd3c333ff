package vm

// ---------------------------------------------------------------------------
// Proc Primitives
// ---------------------------------------------------------------------------

func (rt *Runtime) registerBlockPrimitives() {
	c := rt.ProcClass

	call := func(ctx *ThreadContext, self Value, args []Value, blk *Block) (Value, error) {
		return self.(*Block).Call(ctx, args, blk)
	}
	c.AddPrimitiveMethod("call", call)
	c.AddPrimitiveMethod("yield", call)
	c.AddPrimitiveMethod("()", call)

	c.AddMethod0("arity", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return Fixnum(self.(*Block).Body.Arity.Value()), nil
	})
	c.AddMethod0("lambda?", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return BoxBool(self.(*Block).Type == LambdaBlock), nil
	})
	c.AddMethod0("to_proc", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return self, nil
	})
}

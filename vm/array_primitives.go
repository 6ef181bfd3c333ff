package vm

// ---------------------------------------------------------------------------
// Array Primitives
// ---------------------------------------------------------------------------

func (rt *Runtime) registerArrayPrimitives() {
	c := rt.ArrayClass

	c.AddPrimitiveMethod("initialize", func(ctx *ThreadContext, self Value, args []Value, _ *Block) (Value, error) {
		a := self.(*Array)
		switch len(args) {
		case 0:
		case 1, 2:
			n, ok := args[0].(Fixnum)
			if !ok {
				return nil, ctx.TypeError("no implicit conversion of %s into Integer", ctx.runtime.ClassOf(args[0]).Name)
			}
			if n < 0 {
				return nil, ctx.Raise(ctx.runtime.ArgumentErrorClass, "negative array size")
			}
			fill := Nil
			if len(args) == 2 {
				fill = args[1]
			}
			a.Elems = make([]Value, n)
			for i := range a.Elems {
				a.Elems[i] = fill
			}
		default:
			return nil, ctx.ArgumentCountError(len(args), "0..2")
		}
		return Nil, nil
	})

	size := func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return Fixnum(len(self.(*Array).Elems)), nil
	}
	c.AddMethod0("size", size)
	c.AddMethod0("length", size)
	c.AddMethod0("empty?", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return BoxBool(len(self.(*Array).Elems) == 0), nil
	})
	c.AddMethod0("first", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return self.(*Array).At(0), nil
	})
	c.AddMethod0("last", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return self.(*Array).At(-1), nil
	})

	c.AddMethod1("[]", func(ctx *ThreadContext, self Value, index Value, _ *Block) (Value, error) {
		i, ok := index.(Fixnum)
		if !ok {
			return nil, ctx.TypeError("no implicit conversion of %s into Integer", ctx.runtime.ClassOf(index).Name)
		}
		return self.(*Array).At(int(i)), nil
	})
	c.AddMethod2("[]=", func(ctx *ThreadContext, self Value, index, v Value, _ *Block) (Value, error) {
		a := self.(*Array)
		i, ok := index.(Fixnum)
		if !ok {
			return nil, ctx.TypeError("no implicit conversion of %s into Integer", ctx.runtime.ClassOf(index).Name)
		}
		n := int(i)
		if n < 0 {
			n += len(a.Elems)
			if n < 0 {
				return nil, ctx.Raise(ctx.runtime.ArgumentErrorClass, "index %d too small for array", int(i))
			}
		}
		for len(a.Elems) <= n {
			a.Elems = append(a.Elems, Nil)
		}
		a.Elems[n] = v
		return v, nil
	})
	c.AddMethod1("<<", func(_ *ThreadContext, self Value, v Value, _ *Block) (Value, error) {
		self.(*Array).Push(v)
		return self, nil
	})
	c.AddPrimitiveMethod("push", func(_ *ThreadContext, self Value, args []Value, _ *Block) (Value, error) {
		a := self.(*Array)
		a.Elems = append(a.Elems, args...)
		return self, nil
	})
	c.AddMethod0("pop", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		a := self.(*Array)
		if len(a.Elems) == 0 {
			return Nil, nil
		}
		v := a.Elems[len(a.Elems)-1]
		a.Elems = a.Elems[:len(a.Elems)-1]
		return v, nil
	})
	c.AddMethod1("==", func(ctx *ThreadContext, self Value, other Value, _ *Block) (Value, error) {
		o, ok := other.(*Array)
		if !ok {
			return False, nil
		}
		a := self.(*Array)
		if len(a.Elems) != len(o.Elems) {
			return False, nil
		}
		for i := range a.Elems {
			eq, err := ctx.runtime.Send(ctx, a.Elems[i], "==", []Value{o.Elems[i]}, nil)
			if err != nil {
				return nil, err
			}
			if !IsTruthy(eq) {
				return False, nil
			}
		}
		return True, nil
	})

	// Iteration. Blocks may mutate the receiver, so index rather than range.
	c.AddMethod0("each", func(ctx *ThreadContext, self Value, blk *Block) (Value, error) {
		if blk == nil {
			return nil, ctx.LocalJumpError("no block given (yield)")
		}
		a := self.(*Array)
		for i := 0; i < len(a.Elems); i++ {
			if _, err := blk.Yield1(ctx, a.Elems[i]); err != nil {
				return nil, err
			}
		}
		return self, nil
	})
	c.AddMethod0("each_with_index", func(ctx *ThreadContext, self Value, blk *Block) (Value, error) {
		if blk == nil {
			return nil, ctx.LocalJumpError("no block given (yield)")
		}
		a := self.(*Array)
		for i := 0; i < len(a.Elems); i++ {
			if _, err := blk.Yield(ctx, a.Elems[i], Fixnum(i)); err != nil {
				return nil, err
			}
		}
		return self, nil
	})
	c.AddMethod0("map", func(ctx *ThreadContext, self Value, blk *Block) (Value, error) {
		if blk == nil {
			return nil, ctx.LocalJumpError("no block given (yield)")
		}
		a := self.(*Array)
		out := make([]Value, 0, len(a.Elems))
		for i := 0; i < len(a.Elems); i++ {
			v, err := blk.Yield1(ctx, a.Elems[i])
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return NewArray(out...), nil
	})
	c.AddMethod0("select", func(ctx *ThreadContext, self Value, blk *Block) (Value, error) {
		if blk == nil {
			return nil, ctx.LocalJumpError("no block given (yield)")
		}
		a := self.(*Array)
		out := NewArray()
		for i := 0; i < len(a.Elems); i++ {
			v, err := blk.Yield1(ctx, a.Elems[i])
			if err != nil {
				return nil, err
			}
			if IsTruthy(v) {
				out.Push(a.Elems[i])
			}
		}
		return out, nil
	})
	c.AddMethod0("to_a", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return self, nil
	})
}

// ---------------------------------------------------------------------------
// Hash Primitives
// ---------------------------------------------------------------------------

func (rt *Runtime) registerHashPrimitives() {
	c := rt.HashClass

	c.AddMethod1("[]", func(_ *ThreadContext, self Value, key Value, _ *Block) (Value, error) {
		v, _ := self.(*Hash).Get(key)
		return v, nil
	})
	c.AddMethod2("[]=", func(_ *ThreadContext, self Value, key, v Value, _ *Block) (Value, error) {
		if s, ok := key.(*String); ok {
			// String keys are copied so later mutation cannot rehash them.
			key = NewString(s.s)
		}
		self.(*Hash).Put(key, v)
		return v, nil
	})
	c.AddMethod1("key?", func(_ *ThreadContext, self Value, key Value, _ *Block) (Value, error) {
		_, ok := self.(*Hash).Get(key)
		return BoxBool(ok), nil
	})
	c.AddPrimitiveMethod("fetch", func(ctx *ThreadContext, self Value, args []Value, blk *Block) (Value, error) {
		if len(args) != 1 && len(args) != 2 {
			return nil, ctx.ArgumentCountError(len(args), "1..2")
		}
		if v, ok := self.(*Hash).Get(args[0]); ok {
			return v, nil
		}
		if blk != nil {
			return blk.Yield1(ctx, args[0])
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, ctx.Raise(ctx.runtime.ArgumentErrorClass, "key not found: %s", Inspect(args[0]))
	})
	size := func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return Fixnum(self.(*Hash).Len()), nil
	}
	c.AddMethod0("size", size)
	c.AddMethod0("length", size)
	c.AddMethod0("keys", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		out := NewArray()
		self.(*Hash).Each(func(k, _ Value) { out.Push(k) })
		return out, nil
	})
	c.AddMethod0("values", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		out := NewArray()
		self.(*Hash).Each(func(_, v Value) { out.Push(v) })
		return out, nil
	})
	c.AddMethod0("each", func(ctx *ThreadContext, self Value, blk *Block) (Value, error) {
		if blk == nil {
			return nil, ctx.LocalJumpError("no block given (yield)")
		}
		h := self.(*Hash)
		for i := 0; i < len(h.keys); i++ {
			if _, err := blk.Yield(ctx, h.keys[i], h.vals[i]); err != nil {
				return nil, err
			}
		}
		return self, nil
	})
}

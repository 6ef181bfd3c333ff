package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Kernel and Object primitives
// ---------------------------------------------------------------------------

func (rt *Runtime) registerKernelPrimitives() {
	c := rt.ObjectClass

	c.AddMethod0("class", func(ctx *ThreadContext, self Value, _ *Block) (Value, error) {
		return ctx.runtime.ClassOf(self), nil
	})
	c.AddMethod1("==", func(_ *ThreadContext, self Value, other Value, _ *Block) (Value, error) {
		return BoxBool(ValuesEqual(self, other)), nil
	})
	c.AddMethod1("!=", func(ctx *ThreadContext, self Value, other Value, _ *Block) (Value, error) {
		eq, err := ctx.runtime.Send(ctx, self, "==", []Value{other}, nil)
		if err != nil {
			return nil, err
		}
		return BoxBool(!IsTruthy(eq)), nil
	})
	c.AddMethod1("equal?", func(_ *ThreadContext, self Value, other Value, _ *Block) (Value, error) {
		return BoxBool(self == other), nil
	})
	c.AddMethod0("!", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return BoxBool(!IsTruthy(self)), nil
	})
	c.AddMethod0("nil?", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return BoxBool(IsNil(self)), nil
	})
	c.AddMethod0("inspect", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return NewString(Inspect(self)), nil
	})
	c.AddMethod0("to_s", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return NewString(displayString(self)), nil
	})
	c.AddMethod0("initialize", func(_ *ThreadContext, _ Value, _ *Block) (Value, error) {
		return Nil, nil
	})
	c.AddMethod1("is_a?", func(ctx *ThreadContext, self Value, class Value, _ *Block) (Value, error) {
		k, ok := class.(*Class)
		if !ok {
			return nil, ctx.TypeError("class or module required")
		}
		return BoxBool(ctx.runtime.ClassOf(self).IsSubclassOf(k)), nil
	})
	c.AddMethod1("respond_to?", func(ctx *ThreadContext, self Value, name Value, _ *Block) (Value, error) {
		return BoxBool(ctx.runtime.RespondTo(self, symbolName(name))), nil
	})
	c.AddPrimitiveMethod("send", func(ctx *ThreadContext, self Value, args []Value, blk *Block) (Value, error) {
		if len(args) == 0 {
			return nil, ctx.Raise(ctx.runtime.ArgumentErrorClass, "no method name given")
		}
		return ctx.runtime.Send(ctx, self, symbolName(args[0]), args[1:], blk)
	})
	c.AddMethod1("instance_variable_get", func(_ *ThreadContext, self Value, name Value, _ *Block) (Value, error) {
		if o, ok := self.(*Object); ok {
			return o.GetField(symbolName(name)), nil
		}
		return Nil, nil
	})

	// Kernel functions are private: only reachable without an explicit
	// receiver.
	c.DefineMethod("raise", NewPrimitiveMethod("raise", kernelRaise), Private)
	c.DefineMethod("block_given?", NewMethod0("block_given?", func(ctx *ThreadContext, _ Value, _ *Block) (Value, error) {
		f := ctx.CurrentFrame()
		return BoxBool(f != nil && f.Block != nil), nil
	}), Private)
	c.DefineMethod("lambda", NewMethod0("lambda", func(ctx *ThreadContext, _ Value, blk *Block) (Value, error) {
		if blk == nil {
			return nil, ctx.Raise(ctx.runtime.ArgumentErrorClass, "tried to create Proc object without a block")
		}
		return blk.MakeLambda(), nil
	}), Private)
	c.DefineMethod("proc", NewMethod0("proc", func(ctx *ThreadContext, _ Value, blk *Block) (Value, error) {
		if blk == nil {
			return nil, ctx.Raise(ctx.runtime.ArgumentErrorClass, "tried to create Proc object without a block")
		}
		return blk.MakeProc(), nil
	}), Private)
	c.DefineMethod("loop", NewMethod0("loop", func(ctx *ThreadContext, self Value, blk *Block) (Value, error) {
		if blk == nil {
			return nil, ctx.LocalJumpError("no block given (yield)")
		}
		for {
			if err := ctx.PollThreadEvents(); err != nil {
				return nil, err
			}
			if _, err := blk.Yield(ctx); err != nil {
				return nil, err
			}
		}
	}), Private)
	c.DefineMethod("puts", NewPrimitiveMethod("puts", func(ctx *ThreadContext, _ Value, args []Value, _ *Block) (Value, error) {
		w := ctx.runtime.Stdout
		if len(args) == 0 {
			fmt.Fprintln(w)
		}
		for _, a := range args {
			s := displayString(a)
			if strings.HasSuffix(s, "\n") {
				fmt.Fprint(w, s)
			} else {
				fmt.Fprintln(w, s)
			}
		}
		return Nil, nil
	}), Private)

	rt.NilClass.AddMethod0("to_s", func(_ *ThreadContext, _ Value, _ *Block) (Value, error) {
		return NewString(""), nil
	})
	rt.NilClass.AddMethod0("to_a", func(_ *ThreadContext, _ Value, _ *Block) (Value, error) {
		return NewArray(), nil
	})
	rt.SymbolClass.AddMethod0("to_s", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return NewString(string(self.(Symbol))), nil
	})
	rt.SymbolClass.AddMethod0("to_sym", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return self, nil
	})
	for _, b := range []*Class{rt.TrueClass, rt.FalseClass} {
		b.AddMethod1("&", func(_ *ThreadContext, self Value, other Value, _ *Block) (Value, error) {
			return BoxBool(IsTruthy(self) && IsTruthy(other)), nil
		})
		b.AddMethod1("|", func(_ *ThreadContext, self Value, other Value, _ *Block) (Value, error) {
			return BoxBool(IsTruthy(self) || IsTruthy(other)), nil
		})
		b.AddMethod1("^", func(_ *ThreadContext, self Value, other Value, _ *Block) (Value, error) {
			return BoxBool(IsTruthy(self) != IsTruthy(other)), nil
		})
	}
}

// kernelRaise implements raise, raise(message), raise(class) and
// raise(class, message).
func kernelRaise(ctx *ThreadContext, _ Value, args []Value, _ *Block) (Value, error) {
	rt := ctx.runtime
	switch len(args) {
	case 0:
		return nil, ctx.Raise(rt.RuntimeErrorClass, "unhandled exception")
	case 1:
		switch x := args[0].(type) {
		case *String:
			return nil, ctx.Raise(rt.RuntimeErrorClass, "%s", x.s)
		case *Exception:
			return nil, ctx.RaiseException(x)
		case *Class:
			exc, err := newException(ctx, x, nil)
			if err != nil {
				return nil, err
			}
			return nil, ctx.RaiseException(exc)
		}
	case 2:
		if class, ok := args[0].(*Class); ok {
			exc, err := newException(ctx, class, args[1])
			if err != nil {
				return nil, err
			}
			return nil, ctx.RaiseException(exc)
		}
	default:
		return nil, ctx.ArgumentCountError(len(args), "0..2")
	}
	return nil, ctx.TypeError("exception class/object expected")
}

func newException(ctx *ThreadContext, class *Class, msg Value) (*Exception, error) {
	if !class.IsSubclassOf(ctx.runtime.ExceptionClass) {
		return nil, ctx.TypeError("exception class/object expected")
	}
	args := []Value{}
	if msg != nil {
		args = append(args, msg)
	}
	v, err := ctx.runtime.newInstance(ctx, class, args, nil)
	if err != nil {
		return nil, err
	}
	return v.(*Exception), nil
}

// displayString is to_s without dispatch, for puts and string coercion.
func displayString(v Value) string {
	switch x := v.(type) {
	case *String:
		return x.s
	case Symbol:
		return string(x)
	case nilValue:
		return ""
	case *Exception:
		return x.message
	}
	return Inspect(v)
}

func symbolName(v Value) string {
	switch x := v.(type) {
	case Symbol:
		return string(x)
	case *String:
		return x.s
	}
	return Inspect(v)
}

// ---------------------------------------------------------------------------
// Class primitives
// ---------------------------------------------------------------------------

func (rt *Runtime) registerClassPrimitives() {
	c := rt.ClassClass

	c.AddPrimitiveMethod("new", func(ctx *ThreadContext, self Value, args []Value, blk *Block) (Value, error) {
		return ctx.runtime.newInstance(ctx, self.(*Class), args, blk)
	})
	c.AddMethod0("name", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return NewString(self.(*Class).Name), nil
	})
	c.AddMethod0("superclass", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		if s := self.(*Class).Superclass; s != nil {
			return s, nil
		}
		return Nil, nil
	})
	c.AddMethod1("===", func(ctx *ThreadContext, self Value, v Value, _ *Block) (Value, error) {
		return BoxBool(ctx.runtime.ClassOf(v).IsSubclassOf(self.(*Class))), nil
	})
	c.AddMethod1("<=", func(_ *ThreadContext, self Value, other Value, _ *Block) (Value, error) {
		o, ok := other.(*Class)
		if !ok {
			return Nil, nil
		}
		return BoxBool(self.(*Class).IsSubclassOf(o)), nil
	})
}

// newInstance allocates an instance of class and runs its initialize.
func (rt *Runtime) newInstance(ctx *ThreadContext, class *Class, args []Value, blk *Block) (Value, error) {
	alloc := class.allocator()
	var inst Value
	if alloc != nil {
		inst = alloc(class)
	}
	if inst == nil {
		return nil, ctx.TypeError("allocator undefined for %s", class.Name)
	}
	if _, err := rt.Send(ctx, inst, "initialize", args, blk); err != nil {
		return nil, err
	}
	return inst, nil
}

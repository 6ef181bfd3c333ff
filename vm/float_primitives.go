package vm

import "math"

// ---------------------------------------------------------------------------
// Float Primitives
// ---------------------------------------------------------------------------

func (rt *Runtime) registerFloatPrimitives() {
	c := rt.FloatClass

	for _, op := range []arithOp{opAdd, opSub, opMul, opDiv, opMod} {
		op := op
		c.DefineMethod(string(op), NewNumericMethod(string(op),
			func(ctx *ThreadContext, self Value, arg Value, _ *Block) (Value, error) {
				b, ok := ToFloat64(arg)
				if !ok {
					return nil, ctx.TypeError("%s can't be coerced into Float", ctx.runtime.ClassOf(arg).Name)
				}
				return floatArith(ctx, op, float64(self.(Float)), b)
			},
			func(ctx *ThreadContext, self Value, arg int64) (Value, error) {
				return floatArith(ctx, op, float64(self.(Float)), float64(arg))
			},
			func(ctx *ThreadContext, self Value, arg float64) (Value, error) {
				return floatArith(ctx, op, float64(self.(Float)), arg)
			},
		), Public)
	}

	for _, name := range []string{"<", ">", "<=", ">="} {
		name := name
		c.DefineMethod(name, NewNumericMethod(name,
			func(ctx *ThreadContext, self Value, arg Value, _ *Block) (Value, error) {
				b, ok := ToFloat64(arg)
				if !ok {
					return nil, ctx.Raise(ctx.runtime.ArgumentErrorClass,
						"comparison of Float with %s failed", Inspect(arg))
				}
				return BoxBool(floatComparison(name, float64(self.(Float)), b)), nil
			},
			func(_ *ThreadContext, self Value, arg int64) (Value, error) {
				return BoxBool(floatComparison(name, float64(self.(Float)), float64(arg))), nil
			},
			func(_ *ThreadContext, self Value, arg float64) (Value, error) {
				return BoxBool(floatComparison(name, float64(self.(Float)), arg)), nil
			},
		), Public)
	}

	c.AddMethod1("==", func(_ *ThreadContext, self Value, arg Value, _ *Block) (Value, error) {
		b, ok := ToFloat64(arg)
		return BoxBool(ok && float64(self.(Float)) == b), nil
	})
	c.AddMethod0("-@", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return -self.(Float), nil
	})
	c.AddMethod0("abs", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return Float(math.Abs(float64(self.(Float)))), nil
	})
	c.AddMethod0("nan?", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return BoxBool(math.IsNaN(float64(self.(Float)))), nil
	})
	c.AddMethod0("to_f", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return self, nil
	})
	c.AddMethod0("to_i", func(ctx *ThreadContext, self Value, _ *Block) (Value, error) {
		f := float64(self.(Float))
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, ctx.Raise(ctx.runtime.ArgumentErrorClass, "%s", formatFloat(f))
		}
		return Fixnum(int64(f)), nil
	})
	c.AddMethod0("to_s", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return NewString(formatFloat(float64(self.(Float)))), nil
	})
}

// floatArith never raises: division by zero yields an infinity or NaN.
func floatArith(_ *ThreadContext, op arithOp, a, b float64) (Value, error) {
	switch op {
	case opAdd:
		return Float(a + b), nil
	case opSub:
		return Float(a - b), nil
	case opMul:
		return Float(a * b), nil
	case opDiv:
		return Float(a / b), nil
	case opMod:
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return Float(m), nil
	}
	bug("unknown arithmetic operator %q", op)
	return nil, nil
}

// floatComparison is false whenever either side is NaN.
func floatComparison(name string, a, b float64) bool {
	switch name {
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	}
	return false
}

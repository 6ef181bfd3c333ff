package vm

import (
	"math"
	"math/big"
	"strconv"
)

// ---------------------------------------------------------------------------
// Integer Primitives
// ---------------------------------------------------------------------------

// arithOp names the binary operators shared by Integer and Float.
type arithOp byte

const (
	opAdd arithOp = '+'
	opSub arithOp = '-'
	opMul arithOp = '*'
	opDiv arithOp = '/'
	opMod arithOp = '%'
)

func (rt *Runtime) registerIntegerPrimitives() {
	c := rt.IntegerClass

	for _, op := range []arithOp{opAdd, opSub, opMul, opDiv, opMod} {
		op := op
		c.DefineMethod(string(op), NewNumericMethod(string(op),
			func(ctx *ThreadContext, self Value, arg Value, _ *Block) (Value, error) {
				return integerArith(ctx, op, self, arg)
			},
			func(ctx *ThreadContext, self Value, arg int64) (Value, error) {
				if a, ok := self.(Fixnum); ok {
					return fixnumArith(ctx, op, int64(a), arg)
				}
				return integerArith(ctx, op, self, Fixnum(arg))
			},
			func(ctx *ThreadContext, self Value, arg float64) (Value, error) {
				f, _ := ToFloat64(self)
				return floatArith(ctx, op, f, arg)
			},
		), Public)
	}

	for _, name := range []string{"<", ">", "<=", ">="} {
		name := name
		c.DefineMethod(name, NewNumericMethod(name,
			func(ctx *ThreadContext, self Value, arg Value, _ *Block) (Value, error) {
				cmp, ok := compareNumbers(self, arg)
				if !ok {
					return nil, ctx.Raise(ctx.runtime.ArgumentErrorClass,
						"comparison of Integer with %s failed", Inspect(arg))
				}
				return BoxBool(comparisonHolds(name, cmp)), nil
			},
			func(_ *ThreadContext, self Value, arg int64) (Value, error) {
				if a, ok := self.(Fixnum); ok {
					return BoxBool(comparisonHolds(name, compareInt64(int64(a), arg))), nil
				}
				cmp, _ := compareNumbers(self, Fixnum(arg))
				return BoxBool(comparisonHolds(name, cmp)), nil
			},
			nil,
		), Public)
	}

	c.AddMethod1("==", func(_ *ThreadContext, self Value, arg Value, _ *Block) (Value, error) {
		cmp, ok := compareNumbers(self, arg)
		return BoxBool(ok && cmp == 0), nil
	})
	c.AddMethod1("<=>", func(_ *ThreadContext, self Value, arg Value, _ *Block) (Value, error) {
		cmp, ok := compareNumbers(self, arg)
		if !ok {
			return Nil, nil
		}
		return Fixnum(cmp), nil
	})

	c.AddMethod0("-@", func(ctx *ThreadContext, self Value, _ *Block) (Value, error) {
		return integerArith(ctx, opSub, Fixnum(0), self)
	})
	c.AddMethod0("abs", func(ctx *ThreadContext, self Value, _ *Block) (Value, error) {
		if cmp, _ := compareNumbers(self, Fixnum(0)); cmp < 0 {
			return integerArith(ctx, opSub, Fixnum(0), self)
		}
		return self, nil
	})
	c.AddMethod0("succ", func(ctx *ThreadContext, self Value, _ *Block) (Value, error) {
		return integerArith(ctx, opAdd, self, Fixnum(1))
	})
	c.AddMethod0("zero?", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return BoxBool(self == Fixnum(0)), nil
	})
	c.AddMethod0("to_i", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return self, nil
	})
	c.AddMethod0("to_f", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		f, _ := ToFloat64(self)
		return Float(f), nil
	})
	c.AddMethod0("to_s", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return NewString(Inspect(self)), nil
	})

	// times yields 0...self and answers self.
	c.AddMethod0("times", func(ctx *ThreadContext, self Value, blk *Block) (Value, error) {
		if blk == nil {
			return nil, ctx.LocalJumpError("no block given (yield)")
		}
		n, _ := ToInt64(self)
		for i := int64(0); i < n; i++ {
			if err := ctx.PollThreadEvents(); err != nil {
				return nil, err
			}
			if _, err := blk.Yield1(ctx, Fixnum(i)); err != nil {
				return nil, err
			}
		}
		return self, nil
	})
}

// ---------------------------------------------------------------------------
// Integer arithmetic with Bignum promotion
// ---------------------------------------------------------------------------

// integerArith applies op to an Integer receiver and any numeric argument.
func integerArith(ctx *ThreadContext, op arithOp, self, arg Value) (Value, error) {
	if f, ok := arg.(Float); ok {
		a, _ := ToFloat64(self)
		return floatArith(ctx, op, a, float64(f))
	}
	if a, ok := self.(Fixnum); ok {
		if b, ok := arg.(Fixnum); ok {
			return fixnumArith(ctx, op, int64(a), int64(b))
		}
	}
	x, ok1 := toBig(self)
	y, ok2 := toBig(arg)
	if !ok1 || !ok2 {
		return nil, ctx.TypeError("%s can't be coerced into Integer", ctx.runtime.ClassOf(arg).Name)
	}
	return bigArith(ctx, op, x, y)
}

func fixnumArith(ctx *ThreadContext, op arithOp, a, b int64) (Value, error) {
	switch op {
	case opAdd:
		s := a + b
		if (a^s)&(b^s) < 0 {
			return bigArith(ctx, op, big.NewInt(a), big.NewInt(b))
		}
		return Fixnum(s), nil
	case opSub:
		s := a - b
		if (a^b)&(a^s) < 0 {
			return bigArith(ctx, op, big.NewInt(a), big.NewInt(b))
		}
		return Fixnum(s), nil
	case opMul:
		if a == 0 || b == 0 {
			return Fixnum(0), nil
		}
		s := a * b
		if s/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return bigArith(ctx, op, big.NewInt(a), big.NewInt(b))
		}
		return Fixnum(s), nil
	case opDiv:
		if b == 0 {
			return nil, ctx.Raise(ctx.runtime.ZeroDivisionErrorClass, "divided by 0")
		}
		if a == math.MinInt64 && b == -1 {
			return bigArith(ctx, op, big.NewInt(a), big.NewInt(b))
		}
		q := a / b
		if a%b != 0 && (a < 0) != (b < 0) {
			q--
		}
		return Fixnum(q), nil
	case opMod:
		if b == 0 {
			return nil, ctx.Raise(ctx.runtime.ZeroDivisionErrorClass, "divided by 0")
		}
		if b == -1 {
			return Fixnum(0), nil
		}
		m := a % b
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return Fixnum(m), nil
	}
	bug("unknown arithmetic operator %q", op)
	return nil, nil
}

// bigArith uses floored division like the fixnum path.
func bigArith(ctx *ThreadContext, op arithOp, x, y *big.Int) (Value, error) {
	r := new(big.Int)
	switch op {
	case opAdd:
		r.Add(x, y)
	case opSub:
		r.Sub(x, y)
	case opMul:
		r.Mul(x, y)
	case opDiv, opMod:
		if y.Sign() == 0 {
			return nil, ctx.Raise(ctx.runtime.ZeroDivisionErrorClass, "divided by 0")
		}
		q, m := new(big.Int), new(big.Int)
		q.DivMod(x, y, m) // Euclidean: 0 <= m < |y|
		if m.Sign() != 0 && y.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
			m.Add(m, y)
		}
		if op == opDiv {
			r = q
		} else {
			r = m
		}
	}
	return NewBignum(r), nil
}

func toBig(v Value) (*big.Int, bool) {
	switch x := v.(type) {
	case Fixnum:
		return big.NewInt(int64(x)), true
	case *Bignum:
		return x.v, true
	}
	return nil, false
}

// compareNumbers orders two numeric values. ok is false if either is not
// numeric.
func compareNumbers(a, b Value) (int, bool) {
	if x, ok := a.(Fixnum); ok {
		if y, ok := b.(Fixnum); ok {
			return compareInt64(int64(x), int64(y)), true
		}
	}
	_, af := a.(Float)
	_, bf := b.(Float)
	if af || bf {
		x, ok1 := ToFloat64(a)
		y, ok2 := ToFloat64(b)
		if !ok1 || !ok2 || math.IsNaN(x) || math.IsNaN(y) {
			return 0, false
		}
		return compareFloat64(x, y), true
	}
	x, ok1 := toBig(a)
	y, ok2 := toBig(b)
	if !ok1 || !ok2 {
		return 0, false
	}
	return x.Cmp(y), true
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func comparisonHolds(name string, cmp int) bool {
	switch name {
	case "<":
		return cmp < 0
	case ">":
		return cmp > 0
	case "<=":
		return cmp <= 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// parseInteger reads a decimal integer, promoting to Bignum when needed.
func parseInteger(s string) (Value, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Fixnum(n), true
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, false
	}
	return NewBignum(b), true
}

package vm

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// String Primitives
// ---------------------------------------------------------------------------

func (rt *Runtime) registerStringPrimitives() {
	c := rt.StringClass

	c.AddPrimitiveMethod("initialize", func(ctx *ThreadContext, self Value, args []Value, _ *Block) (Value, error) {
		switch len(args) {
		case 0:
		case 1:
			s, ok := args[0].(*String)
			if !ok {
				return nil, ctx.TypeError("no implicit conversion of %s into String", ctx.runtime.ClassOf(args[0]).Name)
			}
			self.(*String).s = s.s
		default:
			return nil, ctx.ArgumentCountError(len(args), "0..1")
		}
		return Nil, nil
	})
	c.AddMethod1("+", func(ctx *ThreadContext, self Value, arg Value, _ *Block) (Value, error) {
		o, ok := arg.(*String)
		if !ok {
			return nil, ctx.TypeError("no implicit conversion of %s into String", ctx.runtime.ClassOf(arg).Name)
		}
		return NewString(self.(*String).s + o.s), nil
	})
	c.AddMethod1("<<", func(_ *ThreadContext, self Value, arg Value, _ *Block) (Value, error) {
		self.(*String).Append(displayString(arg))
		return self, nil
	})
	c.AddMethod1("*", func(ctx *ThreadContext, self Value, arg Value, _ *Block) (Value, error) {
		n, ok := arg.(Fixnum)
		if !ok {
			return nil, ctx.TypeError("no implicit conversion of %s into Integer", ctx.runtime.ClassOf(arg).Name)
		}
		if n < 0 {
			return nil, ctx.Raise(ctx.runtime.ArgumentErrorClass, "negative argument")
		}
		return NewString(strings.Repeat(self.(*String).s, int(n))), nil
	})
	c.AddMethod1("==", func(_ *ThreadContext, self Value, arg Value, _ *Block) (Value, error) {
		return BoxBool(ValuesEqual(self, arg)), nil
	})
	size := func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return Fixnum(len([]rune(self.(*String).s))), nil
	}
	c.AddMethod0("size", size)
	c.AddMethod0("length", size)
	c.AddMethod0("empty?", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return BoxBool(self.(*String).s == ""), nil
	})
	c.AddMethod0("to_s", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return self, nil
	})
	c.AddMethod0("to_sym", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return Symbol(self.(*String).s), nil
	})
	c.AddMethod0("to_i", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		if v, ok := parseInteger(leadingDigits(self.(*String).s)); ok {
			return v, nil
		}
		return Fixnum(0), nil
	})
	c.AddMethod0("to_f", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(self.(*String).s), 64)
		if err != nil {
			return Float(0), nil
		}
		return Float(f), nil
	})
	c.AddMethod0("upcase", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return NewString(strings.ToUpper(self.(*String).s)), nil
	})
	c.AddMethod0("downcase", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return NewString(strings.ToLower(self.(*String).s)), nil
	})
}

// leadingDigits returns the optionally signed decimal prefix of s.
func leadingDigits(s string) string {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}

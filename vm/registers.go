package vm

// ---------------------------------------------------------------------------
// Operand access
// ---------------------------------------------------------------------------

func (a *activation) localScope() *DynamicScope {
	if a.scope == nil {
		bug("local variable access without a dynamic scope in %s", a.unit.Name)
	}
	return a.scope
}

// retrieve reads an operand as an object. Raw temps read this way are
// boxed: this is the object view RETURN, COPY and call arguments take of
// a typed temp. Conversions into raw banks go through setResult, which
// accepts only values already of the bank's type.
func (a *activation) retrieve(op Operand) Value {
	switch o := op.(type) {
	case Temp:
		switch o.Bank {
		case ObjectBank:
			if v := a.temps[o.Index]; v != nil {
				return v
			}
			return Nil
		case FixnumBank:
			return Fixnum(a.fixnums[o.Index])
		case FloatBank:
			return Float(a.floats[o.Index])
		case BooleanBank:
			return BoxBool(a.booleans[o.Index])
		}
	case Self:
		return a.self
	case Local:
		return a.localScope().GetValue(o.Index, o.Depth)
	case NilConst:
		return Nil
	case IntConst:
		return Fixnum(o.V)
	case FloatConst:
		return Float(o.V)
	case BoolConst:
		return BoxBool(o.V)
	case BignumConst:
		return NewBignum(o.V)
	case StringConst:
		return NewString(o.V)
	case SymbolConst:
		return Symbol(o.V)
	case ConstRef:
		if c := a.ctx.runtime.Classes.Lookup(o.Name); c != nil {
			return c
		}
		panic(&operandFault{err: a.ctx.Raise(a.ctx.runtime.NameErrorClass, "uninitialized constant %s", o.Name)})
	}
	bug("cannot retrieve operand %v in %s", op, a.unit.Name)
	return nil
}

// setResult writes an object to a destination operand. A raw temp only
// takes a value already of its type; anything else needs an unbox.
func (a *activation) setResult(op Operand, v Value) {
	switch o := op.(type) {
	case Temp:
		switch o.Bank {
		case ObjectBank:
			a.temps[o.Index] = v
			return
		case FixnumBank:
			n, ok := v.(Fixnum)
			if !ok {
				bug("cannot store %s in integer temp %s without unboxing", Inspect(v), o)
			}
			a.fixnums[o.Index] = int64(n)
			return
		case FloatBank:
			f, ok := v.(Float)
			if !ok {
				bug("cannot store %s in float temp %s without unboxing", Inspect(v), o)
			}
			a.floats[o.Index] = float64(f)
			return
		case BooleanBank:
			b, ok := v.(Bool)
			if !ok {
				bug("cannot store %s in boolean temp %s without unboxing", Inspect(v), o)
			}
			a.booleans[o.Index] = bool(b)
			return
		}
	case Local:
		a.localScope().SetValue(v, o.Index, o.Depth)
		return
	}
	bug("invalid result operand %v in %s", op, a.unit.Name)
}

func (a *activation) setFixnum(op Operand, n int64) {
	if t, ok := op.(Temp); ok && t.Bank == FixnumBank {
		a.fixnums[t.Index] = n
		return
	}
	a.setResult(op, Fixnum(n))
}

func (a *activation) setFloat(op Operand, f float64) {
	if t, ok := op.(Temp); ok && t.Bank == FloatBank {
		a.floats[t.Index] = f
		return
	}
	a.setResult(op, Float(f))
}

func (a *activation) setBoolean(op Operand, b bool) {
	if t, ok := op.(Temp); ok && t.Bank == BooleanBank {
		a.booleans[t.Index] = b
		return
	}
	a.setResult(op, BoxBool(b))
}

// fixnumArg reads an integer ALU input.
func (a *activation) fixnumArg(op Operand) int64 {
	switch o := op.(type) {
	case IntConst:
		return o.V
	case FloatConst:
		return int64(o.V)
	case BignumConst:
		return lowBits(o.V)
	case Temp:
		switch o.Bank {
		case FixnumBank:
			return a.fixnums[o.Index]
		case FloatBank:
			return int64(a.floats[o.Index])
		case ObjectBank:
			if n, ok := ToInt64(a.temps[o.Index]); ok {
				return n
			}
		}
	case Local:
		if n, ok := ToInt64(a.retrieve(o)); ok {
			return n
		}
	}
	bug("invalid operand %v for an integer operation in %s", op, a.unit.Name)
	return 0
}

// floatArg reads a float ALU input.
func (a *activation) floatArg(op Operand) float64 {
	switch o := op.(type) {
	case FloatConst:
		return o.V
	case IntConst:
		return float64(o.V)
	case BignumConst:
		f, _ := ToFloat64(&Bignum{v: o.V})
		return f
	case Temp:
		switch o.Bank {
		case FloatBank:
			return a.floats[o.Index]
		case FixnumBank:
			return float64(a.fixnums[o.Index])
		case ObjectBank:
			if f, ok := ToFloat64(a.temps[o.Index]); ok {
				return f
			}
		}
	case Local:
		if f, ok := ToFloat64(a.retrieve(o)); ok {
			return f
		}
	}
	bug("invalid operand %v for a float operation in %s", op, a.unit.Name)
	return 0
}

// booleanArg reads a condition. Raw booleans are used as is; objects use
// the language truth test.
func (a *activation) booleanArg(op Operand) bool {
	switch o := op.(type) {
	case BoolConst:
		return o.V
	case Temp:
		if o.Bank == BooleanBank {
			return a.booleans[o.Index]
		}
	}
	return IsTruthy(a.retrieve(op))
}

// blockValue boxes an optional block for an object register.
func blockValue(b *Block) Value {
	if b == nil {
		return Nil
	}
	return b
}

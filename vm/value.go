package vm

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Value is any runtime value the interpreter can hold in an object register.
//
// Immediates are small Go value types (Fixnum, Float, Bool, Symbol and the
// nil/undefined singletons) so they compare with == and box without
// allocating a heap object. Everything else is a pointer type.
type Value interface{}

type nilValue struct{}

func (nilValue) String() string { return "nil" }

type undefinedValue struct{}

func (undefinedValue) String() string { return "<undefined>" }

var (
	// Nil is the language nil.
	Nil Value = nilValue{}

	// Undefined marks an absent optional or keyword argument. It never
	// escapes to user code.
	Undefined Value = undefinedValue{}
)

// Bool is a boxed boolean.
type Bool bool

const (
	True  Bool = true
	False Bool = false
)

// Fixnum is a boxed machine integer.
type Fixnum int64

// Float is a boxed double.
type Float float64

// Symbol is an interned name.
type Symbol string

// Bignum is an arbitrary precision integer that does not fit a Fixnum.
type Bignum struct {
	v *big.Int
}

// String is a mutable byte string.
type String struct {
	s string
}

// NewString boxes a Go string.
func NewString(s string) *String { return &String{s: s} }

func (s *String) String() string { return s.s }

// Append concatenates o onto s in place.
func (s *String) Append(o string) { s.s += o }

// ---------------------------------------------------------------------------
// Boxing
// ---------------------------------------------------------------------------

// BoxFixnum wraps a raw integer.
func BoxFixnum(n int64) Value { return Fixnum(n) }

// BoxFloat wraps a raw double.
func BoxFloat(f float64) Value { return Float(f) }

// BoxBool wraps a raw boolean.
func BoxBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// NewBignum returns the smallest representation of n: a Fixnum when it
// fits in 64 bits, otherwise a Bignum.
func NewBignum(n *big.Int) Value {
	if n.IsInt64() {
		return Fixnum(n.Int64())
	}
	return &Bignum{v: new(big.Int).Set(n)}
}

// Int returns a copy of the bignum's magnitude.
func (b *Bignum) Int() *big.Int { return new(big.Int).Set(b.v) }

func (b *Bignum) String() string { return b.v.String() }

// ToInt64 converts a numeric value to a raw integer. Floats truncate and
// bignums keep their low-order 64 bits. ok is false for non-numeric values.
func ToInt64(v Value) (n int64, ok bool) {
	switch x := v.(type) {
	case Fixnum:
		return int64(x), true
	case Float:
		return int64(x), true
	case *Bignum:
		return lowBits(x.v), true
	}
	return 0, false
}

// ToFloat64 converts a numeric value to a raw double.
func ToFloat64(v Value) (f float64, ok bool) {
	switch x := v.(type) {
	case Float:
		return float64(x), true
	case Fixnum:
		return float64(x), true
	case *Bignum:
		f, _ := new(big.Float).SetInt(x.v).Float64()
		return f, true
	}
	return 0, false
}

func lowBits(n *big.Int) int64 {
	m := new(big.Int).And(n, new(big.Int).SetUint64(math.MaxUint64))
	return int64(m.Uint64())
}

// ---------------------------------------------------------------------------
// Predicates
// ---------------------------------------------------------------------------

// IsNil reports whether v is nil. An unset Go interface counts as nil.
func IsNil(v Value) bool { return v == nil || v == Nil }

// IsTruthy implements the language truth test: only nil and false are false.
func IsTruthy(v Value) bool {
	return v != nil && v != Nil && v != False
}

// ValuesEqual is the identity-or-value equality used by BEQ/BNE and hash
// keys. It never dispatches.
func ValuesEqual(a, b Value) bool {
	switch x := a.(type) {
	case *String:
		if y, ok := b.(*String); ok {
			return x.s == y.s
		}
		return false
	case *Bignum:
		if y, ok := b.(*Bignum); ok {
			return x.v.Cmp(y.v) == 0
		}
		return false
	case Fixnum:
		if y, ok := b.(Float); ok {
			return float64(x) == float64(y)
		}
	case Float:
		if y, ok := b.(Fixnum); ok {
			return float64(x) == float64(y)
		}
	}
	return a == b
}

// Inspect renders v the way a REPL would print it.
func Inspect(v Value) string {
	switch x := v.(type) {
	case nil, nilValue:
		return "nil"
	case undefinedValue:
		return "<undefined>"
	case Bool:
		return strconv.FormatBool(bool(x))
	case Fixnum:
		return strconv.FormatInt(int64(x), 10)
	case Float:
		return formatFloat(float64(x))
	case *Bignum:
		return x.v.String()
	case Symbol:
		return ":" + string(x)
	case *String:
		return strconv.Quote(x.s)
	case *Array:
		parts := make([]string, len(x.Elems))
		for i, e := range x.Elems {
			parts[i] = Inspect(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Hash:
		parts := make([]string, 0, x.Len())
		x.Each(func(k, v Value) {
			parts = append(parts, Inspect(k)+" => "+Inspect(v))
		})
		return "{" + strings.Join(parts, ", ") + "}"
	case *Exception:
		return fmt.Sprintf("#<%s: %s>", x.class.Name, x.message)
	case *Class:
		return x.Name
	case *Object:
		return fmt.Sprintf("#<%s>", x.class.Name)
	case *Block:
		if x.Type == LambdaBlock {
			return "#<Proc (lambda)>"
		}
		return "#<Proc>"
	}
	return fmt.Sprintf("#<host %T>", v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.IsNaN(f):
		return "NaN"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

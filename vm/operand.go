package vm

import (
	"math/big"
	"strconv"
)

// Bank selects one of the four register banks of an activation.
type Bank uint8

const (
	ObjectBank Bank = iota
	FixnumBank
	FloatBank
	BooleanBank
	NumBanks
)

func (b Bank) String() string {
	switch b {
	case ObjectBank:
		return "obj"
	case FixnumBank:
		return "fix"
	case FloatBank:
		return "flo"
	case BooleanBank:
		return "bool"
	}
	return "?"
}

// Operand is an instruction input or destination.
type Operand interface {
	String() string
	operand()
}

// Self is the receiver of the current activation.
type Self struct{}

// NilConst is the nil literal.
type NilConst struct{}

// IntConst is a machine integer literal.
type IntConst struct{ V int64 }

// FloatConst is a double literal.
type FloatConst struct{ V float64 }

// BoolConst is a boolean literal.
type BoolConst struct{ V bool }

// BignumConst is an arbitrary precision integer literal.
type BignumConst struct{ V *big.Int }

// StringConst is a string literal. Each evaluation yields a fresh String.
type StringConst struct{ V string }

// SymbolConst is a symbol literal.
type SymbolConst struct{ V string }

// ConstRef names a class constant, resolved through the runtime's class
// table. An unknown name reads as nil.
type ConstRef struct{ Name string }

// Temp is a temporary variable in one register bank.
type Temp struct {
	Bank  Bank
	Index int
}

// Local is a variable in the dynamic scope Depth levels out.
type Local struct {
	Depth int
	Index int
	Name  string
}

func (Self) operand()        {}
func (NilConst) operand()    {}
func (IntConst) operand()    {}
func (FloatConst) operand()  {}
func (BoolConst) operand()   {}
func (BignumConst) operand() {}
func (StringConst) operand() {}
func (SymbolConst) operand() {}
func (ConstRef) operand()    {}
func (Temp) operand()        {}
func (Local) operand()       {}

func (Self) String() string          { return "%self" }
func (NilConst) String() string      { return "nil" }
func (o IntConst) String() string    { return strconv.FormatInt(o.V, 10) }
func (o FloatConst) String() string  { return formatFloat(o.V) }
func (o BoolConst) String() string   { return strconv.FormatBool(o.V) }
func (o BignumConst) String() string { return o.V.String() }
func (o StringConst) String() string { return strconv.Quote(o.V) }
func (o SymbolConst) String() string { return ":" + o.V }
func (o ConstRef) String() string    { return o.Name }
func (o Temp) String() string        { return "%" + o.Bank.String() + "_" + strconv.Itoa(o.Index) }

func (o Local) String() string {
	if o.Depth == 0 {
		return o.Name
	}
	return o.Name + "(" + strconv.Itoa(o.Depth) + ")"
}

// ObjTemp returns object temp i.
func ObjTemp(i int) Temp { return Temp{Bank: ObjectBank, Index: i} }

// FixTemp returns integer temp i.
func FixTemp(i int) Temp { return Temp{Bank: FixnumBank, Index: i} }

// FloatTemp returns double temp i.
func FloatTemp(i int) Temp { return Temp{Bank: FloatBank, Index: i} }

// BoolTemp returns boolean temp i.
func BoolTemp(i int) Temp { return Temp{Bank: BooleanBank, Index: i} }

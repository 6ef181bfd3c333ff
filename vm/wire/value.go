package wire

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/chazu/garnet/vm"
)

// ErrOpaque reports a value that was sent by description only and cannot
// be rebuilt.
var ErrOpaque = errors.New("wire: opaque value")

// Value is the wire form of a runtime value. Scalars, strings, symbols,
// arrays and hashes round-trip; anything else travels as its inspect
// string with Kind "opaque".
type Value struct {
	Kind  string  `cbor:"k"`
	Int   int64   `cbor:"i,omitempty"`
	Float float64 `cbor:"f,omitempty"`
	Bool  bool    `cbor:"b,omitempty"`
	Str   string  `cbor:"s,omitempty"`
	Elems []Value `cbor:"e,omitempty"`
}

// FromValue converts a runtime value. It never fails: unsupported values
// become opaque.
func FromValue(v vm.Value) Value {
	switch x := v.(type) {
	case vm.Bool:
		return Value{Kind: "bool", Bool: bool(x)}
	case vm.Fixnum:
		return Value{Kind: "int", Int: int64(x)}
	case *vm.Bignum:
		return Value{Kind: "bignum", Str: x.String()}
	case vm.Float:
		return Value{Kind: "float", Float: float64(x)}
	case *vm.String:
		return Value{Kind: "string", Str: x.String()}
	case vm.Symbol:
		return Value{Kind: "symbol", Str: string(x)}
	case *vm.Array:
		elems := make([]Value, len(x.Elems))
		for i, e := range x.Elems {
			elems[i] = FromValue(e)
		}
		return Value{Kind: "array", Elems: elems}
	case *vm.Hash:
		elems := make([]Value, 0, 2*x.Len())
		x.Each(func(k, v vm.Value) {
			elems = append(elems, FromValue(k), FromValue(v))
		})
		return Value{Kind: "hash", Elems: elems}
	}
	if vm.IsNil(v) {
		return Value{Kind: "nil"}
	}
	return Value{Kind: "opaque", Str: vm.Inspect(v)}
}

// ToValue rebuilds the runtime value.
func (w Value) ToValue() (vm.Value, error) {
	switch w.Kind {
	case "nil":
		return vm.Nil, nil
	case "bool":
		return vm.BoxBool(w.Bool), nil
	case "int":
		return vm.Fixnum(w.Int), nil
	case "bignum":
		n, ok := new(big.Int).SetString(w.Str, 10)
		if !ok {
			return nil, fmt.Errorf("wire: malformed bignum %q", w.Str)
		}
		return vm.NewBignum(n), nil
	case "float":
		return vm.Float(w.Float), nil
	case "string":
		return vm.NewString(w.Str), nil
	case "symbol":
		return vm.Symbol(w.Str), nil
	case "array":
		elems := make([]vm.Value, len(w.Elems))
		for i, e := range w.Elems {
			v, err := e.ToValue()
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return vm.NewArray(elems...), nil
	case "hash":
		if len(w.Elems)%2 != 0 {
			return nil, errors.New("wire: hash with odd element count")
		}
		h := vm.NewHash()
		for i := 0; i < len(w.Elems); i += 2 {
			k, err := w.Elems[i].ToValue()
			if err != nil {
				return nil, err
			}
			v, err := w.Elems[i+1].ToValue()
			if err != nil {
				return nil, err
			}
			h.Put(k, v)
		}
		return h, nil
	case "opaque":
		return nil, fmt.Errorf("%w: %s", ErrOpaque, w.Str)
	}
	return nil, fmt.Errorf("wire: unknown value kind %q", w.Kind)
}

// String renders the value the way the runtime would inspect it.
func (w Value) String() string {
	if w.Kind == "opaque" {
		return w.Str
	}
	v, err := w.ToValue()
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return vm.Inspect(v)
}

// EncodeValue serializes a runtime value.
func EncodeValue(v vm.Value) ([]byte, error) {
	return encMode.Marshal(FromValue(v))
}

// DecodeValue deserializes a runtime value.
func DecodeValue(data []byte) (vm.Value, error) {
	var w Value
	if err := Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("wire: unmarshal value: %w", err)
	}
	return w.ToValue()
}

package vm

import (
	"math"
	"math/big"
	"testing"
)

// ---------------------------------------------------------------------------
// Boxing tests
// ---------------------------------------------------------------------------

func TestFloatRoundTrip(t *testing.T) {
	tests := []float64{
		0.0,
		1.0,
		-1.0,
		3.14159265358979,
		math.MaxFloat64,
		math.SmallestNonzeroFloat64,
		math.Inf(1),
		math.Inf(-1),
	}

	for _, f := range tests {
		got, ok := ToFloat64(BoxFloat(f))
		if !ok || got != f {
			t.Errorf("ToFloat64(BoxFloat(%v)) = %v, %v", f, got, ok)
		}
	}

	got, _ := ToFloat64(BoxFloat(math.NaN()))
	if !math.IsNaN(got) {
		t.Error("NaN roundtrip failed")
	}
}

func TestFixnumRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, math.MaxInt64, math.MinInt64} {
		got, ok := ToInt64(BoxFixnum(n))
		if !ok || got != n {
			t.Errorf("ToInt64(BoxFixnum(%d)) = %d, %v", n, got, ok)
		}
	}
	if _, ok := ToInt64(Symbol("x")); ok {
		t.Error("ToInt64 should reject non-numeric values")
	}
}

func TestNewBignumNormalizes(t *testing.T) {
	small := NewBignum(big.NewInt(42))
	if small != Fixnum(42) {
		t.Errorf("NewBignum(42) = %#v, want Fixnum 42", small)
	}

	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	v := NewBignum(huge)
	b, ok := v.(*Bignum)
	if !ok {
		t.Fatalf("NewBignum(huge) = %T, want *Bignum", v)
	}
	huge.SetInt64(0)
	if b.String() != "123456789012345678901234567890" {
		t.Errorf("bignum aliases its input: %s", b)
	}
}

// ---------------------------------------------------------------------------
// Predicates
// ---------------------------------------------------------------------------

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Nil, false},
		{False, false},
		{nil, false},
		{True, true},
		{Fixnum(0), true},
		{NewString(""), true},
		{Symbol("false"), true},
	}
	for _, tt := range tests {
		if got := IsTruthy(tt.v); got != tt.want {
			t.Errorf("IsTruthy(%s) = %v, want %v", Inspect(tt.v), got, tt.want)
		}
	}
}

func TestValuesEqual(t *testing.T) {
	big1 := NewBignum(new(big.Int).Lsh(big.NewInt(1), 80))
	big2 := NewBignum(new(big.Int).Lsh(big.NewInt(1), 80))
	obj := NewObject(nil)

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"equal strings", NewString("a"), NewString("a"), true},
		{"different strings", NewString("a"), NewString("b"), false},
		{"string and symbol", NewString("a"), Symbol("a"), false},
		{"equal bignums", big1, big2, true},
		{"fixnum and float", Fixnum(2), Float(2), true},
		{"float and fixnum", Float(2.5), Fixnum(2), false},
		{"same object", obj, obj, true},
		{"distinct objects", obj, NewObject(nil), false},
		{"nil and false", Nil, False, false},
	}
	for _, tt := range tests {
		if got := ValuesEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: ValuesEqual = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestInspect(t *testing.T) {
	h := NewHash()
	h.Put(Symbol("a"), Fixnum(1))
	h.Put(NewString("b"), NewArray(Nil, True))

	tests := []struct {
		v    Value
		want string
	}{
		{Nil, "nil"},
		{Fixnum(-3), "-3"},
		{Float(2), "2.0"},
		{Float(0.5), "0.5"},
		{Float(math.Inf(-1)), "-Infinity"},
		{Symbol("sym"), ":sym"},
		{NewString("hi\n"), `"hi\n"`},
		{NewArray(Fixnum(1), NewArray()), "[1, []]"},
		{h, `{:a => 1, "b" => [nil, true]}`},
	}
	for _, tt := range tests {
		if got := Inspect(tt.v); got != tt.want {
			t.Errorf("Inspect = %s, want %s", got, tt.want)
		}
	}
}

func TestHashStringKeysCompareByValue(t *testing.T) {
	h := NewHash()
	h.Put(NewString("k"), Fixnum(1))
	h.Put(NewString("k"), Fixnum(2))
	if h.Len() != 1 {
		t.Errorf("Len = %d, want 1", h.Len())
	}
	if v, ok := h.Get(NewString("k")); !ok || v != Fixnum(2) {
		t.Errorf("Get = %v, %v, want 2", v, ok)
	}
	if _, ok := h.Get(Symbol("k")); ok {
		t.Error("symbol key should not match string key")
	}
}

func TestArrayAt(t *testing.T) {
	a := NewArray(Fixnum(1), Fixnum(2), Fixnum(3))
	tests := []struct {
		i    int
		want Value
	}{
		{0, Fixnum(1)},
		{-1, Fixnum(3)},
		{3, Nil},
		{-4, Nil},
	}
	for _, tt := range tests {
		if got := a.At(tt.i); got != tt.want {
			t.Errorf("At(%d) = %s, want %s", tt.i, Inspect(got), Inspect(tt.want))
		}
	}
}

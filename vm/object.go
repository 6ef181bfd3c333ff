package vm

import "sync"

// ---------------------------------------------------------------------------
// Object: instances of user classes
// ---------------------------------------------------------------------------

// Object is a heap instance with named instance variables.
type Object struct {
	class *Class

	mu     sync.RWMutex
	fields map[string]Value
}

// NewObject allocates an instance of class.
func NewObject(class *Class) *Object {
	return &Object{class: class}
}

// Class returns the object's class.
func (o *Object) Class() *Class { return o.class }

// GetField returns an instance variable, or Nil when unset.
func (o *Object) GetField(name string) Value {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if v, ok := o.fields[name]; ok {
		return v
	}
	return Nil
}

// SetField assigns an instance variable.
func (o *Object) SetField(name string, v Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fields == nil {
		o.fields = make(map[string]Value)
	}
	o.fields[name] = v
}

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

// Array is a growable list of values.
type Array struct {
	Elems []Value
}

// NewArray builds an array holding elems.
func NewArray(elems ...Value) *Array {
	return &Array{Elems: elems}
}

// At returns the element at i, or Nil when out of range. Negative indexes
// count from the end.
func (a *Array) At(i int) Value {
	if i < 0 {
		i += len(a.Elems)
	}
	if i < 0 || i >= len(a.Elems) {
		return Nil
	}
	return a.Elems[i]
}

// Push appends v.
func (a *Array) Push(v Value) { a.Elems = append(a.Elems, v) }

// ---------------------------------------------------------------------------
// Hash
// ---------------------------------------------------------------------------

// Hash is an insertion-ordered map. Keys are compared with ValuesEqual for
// strings, identity otherwise.
type Hash struct {
	keys  []Value
	index map[any]int
	vals  []Value
}

// NewHash creates an empty hash.
func NewHash() *Hash {
	return &Hash{index: make(map[any]int)}
}

func hashKey(k Value) any {
	switch x := k.(type) {
	case *String:
		return "s:" + x.s
	case *Bignum:
		return "b:" + x.v.String()
	}
	return k
}

// Get looks up key.
func (h *Hash) Get(key Value) (Value, bool) {
	i, ok := h.index[hashKey(key)]
	if !ok {
		return Nil, false
	}
	return h.vals[i], true
}

// Put inserts or replaces key.
func (h *Hash) Put(key, v Value) {
	hk := hashKey(key)
	if i, ok := h.index[hk]; ok {
		h.vals[i] = v
		return
	}
	h.index[hk] = len(h.keys)
	h.keys = append(h.keys, key)
	h.vals = append(h.vals, v)
}

// Len returns the number of entries.
func (h *Hash) Len() int { return len(h.keys) }

// Each visits entries in insertion order.
func (h *Hash) Each(fn func(k, v Value)) {
	for i, k := range h.keys {
		fn(k, h.vals[i])
	}
}

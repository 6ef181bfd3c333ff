package vm

// ScopeType says what kind of code body a static scope belongs to.
type ScopeType uint8

const (
	MethodScope ScopeType = iota
	BlockScope
	ScriptScope
)

func (t ScopeType) String() string {
	switch t {
	case MethodScope:
		return "method"
	case BlockScope:
		return "block"
	case ScriptScope:
		return "script"
	}
	return "unknown"
}

// StaticScope is the compile-time shape of a variable scope: the local
// names it declares and its lexical parent.
type StaticScope struct {
	Type   ScopeType
	Names  []string
	Parent *StaticScope
}

// NewStaticScope declares a scope with the given local names.
func NewStaticScope(typ ScopeType, parent *StaticScope, names ...string) *StaticScope {
	return &StaticScope{Type: typ, Names: names, Parent: parent}
}

// NumVariables returns how many locals the scope declares.
func (s *StaticScope) NumVariables() int { return len(s.Names) }

// IndexOf returns the slot of name, or -1.
func (s *StaticScope) IndexOf(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// DynamicScope
// ---------------------------------------------------------------------------

// DynamicScope holds the local variables of one activation of a static
// scope. Scopes nest: a block's scope points at the scope it was created in.
//
// Scopes come from a per-thread arena. A scope that a block binding has
// captured is marked so the arena never recycles it.
type DynamicScope struct {
	static   *StaticScope
	parent   *DynamicScope
	vars     []Value
	captured bool

	// owner is the thread whose method activation is running in this
	// scope. It is cleared when that activation ends.
	owner *ThreadContext
}

// NewDynamicScope allocates a scope outside any arena.
func NewDynamicScope(static *StaticScope, parent *DynamicScope) *DynamicScope {
	d := &DynamicScope{static: static, parent: parent}
	d.vars = make([]Value, static.NumVariables())
	d.clear()
	return d
}

func (d *DynamicScope) clear() {
	for i := range d.vars {
		d.vars[i] = Nil
	}
}

// StaticScope returns the scope's compile-time shape.
func (d *DynamicScope) StaticScope() *StaticScope { return d.static }

// Parent returns the lexically enclosing scope.
func (d *DynamicScope) Parent() *DynamicScope { return d.parent }

// GetValue reads slot index of the scope depth levels up.
func (d *DynamicScope) GetValue(index, depth int) Value {
	s := d.up(depth)
	if index >= len(s.vars) {
		bug("local %d out of range in %s scope with %d slots", index, s.static.Type, len(s.vars))
	}
	return s.vars[index]
}

// SetValue writes slot index of the scope depth levels up.
func (d *DynamicScope) SetValue(v Value, index, depth int) {
	s := d.up(depth)
	if index >= len(s.vars) {
		bug("local %d out of range in %s scope with %d slots", index, s.static.Type, len(s.vars))
	}
	s.vars[index] = v
}

func (d *DynamicScope) up(depth int) *DynamicScope {
	s := d
	for ; depth > 0; depth-- {
		s = s.parent
		if s == nil {
			bug("scope depth %d exceeds lexical nesting", depth)
		}
	}
	return s
}

// Capture marks the scope chain as referenced by a closure.
func (d *DynamicScope) Capture() {
	for s := d; s != nil && !s.captured; s = s.parent {
		s.captured = true
	}
}

// IsCaptured reports whether a closure references the scope.
func (d *DynamicScope) IsCaptured() bool { return d.captured }

// LiveOn reports whether the method activation that pushed d is still
// running on ctx. Blocks that merely reuse d do not count.
func (d *DynamicScope) LiveOn(ctx *ThreadContext) bool { return d.owner == ctx }

// MethodScope walks outward to the nearest method-level scope, or nil.
func (d *DynamicScope) MethodScope() *DynamicScope {
	for s := d; s != nil; s = s.parent {
		if s.static.Type == MethodScope {
			return s
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Scope arena
// ---------------------------------------------------------------------------

const maxFreeScopes = 64

// scopeArena recycles uncaptured scopes for one thread.
type scopeArena struct {
	free []*DynamicScope
}

func (a *scopeArena) alloc(static *StaticScope, parent *DynamicScope) *DynamicScope {
	n := static.NumVariables()
	if k := len(a.free); k > 0 {
		d := a.free[k-1]
		if cap(d.vars) >= n {
			a.free = a.free[:k-1]
			d.static = static
			d.parent = parent
			d.vars = d.vars[:n]
			d.clear()
			return d
		}
	}
	return NewDynamicScope(static, parent)
}

func (a *scopeArena) release(d *DynamicScope) {
	if d.captured || len(a.free) >= maxFreeScopes {
		return
	}
	d.parent = nil
	d.static = nil
	d.owner = nil
	a.free = append(a.free, d)
}

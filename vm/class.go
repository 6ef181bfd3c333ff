package vm

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Visibility controls who may call a method.
type Visibility uint8

const (
	Public Visibility = iota
	Private
	Protected
	ModuleFunction
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	case Protected:
		return "protected"
	case ModuleFunction:
		return "module_function"
	}
	return "unknown"
}

// ---------------------------------------------------------------------------
// Class
// ---------------------------------------------------------------------------

// MethodEntry is a method as installed on a class.
type MethodEntry struct {
	Method     Method
	Visibility Visibility
	Owner      *Class
}

// Class is a named method table with single inheritance.
type Class struct {
	Name       string
	Superclass *Class

	mu      sync.RWMutex
	methods map[string]*MethodEntry

	// allocate builds a bare instance for Class#new.
	allocate func(c *Class) Value

	// serial is the runtime-wide method serial, bumped on every definition
	// so call-site caches can detect redefinition.
	serial *atomic.Uint64
}

// DefineMethod installs m under name.
func (c *Class) DefineMethod(name string, m Method, vis Visibility) {
	c.mu.Lock()
	if c.methods == nil {
		c.methods = make(map[string]*MethodEntry)
	}
	c.methods[name] = &MethodEntry{Method: m, Visibility: vis, Owner: c}
	c.mu.Unlock()
	if c.serial != nil {
		c.serial.Add(1)
	}
}

// AddMethod0 installs a zero-argument primitive.
func (c *Class) AddMethod0(name string, fn Method0Func) {
	c.DefineMethod(name, NewMethod0(name, fn), Public)
}

// AddMethod1 installs a one-argument primitive.
func (c *Class) AddMethod1(name string, fn Method1Func) {
	c.DefineMethod(name, NewMethod1(name, fn), Public)
}

// AddMethod2 installs a two-argument primitive.
func (c *Class) AddMethod2(name string, fn Method2Func) {
	c.DefineMethod(name, NewMethod2(name, fn), Public)
}

// AddPrimitiveMethod installs a variable-arity primitive.
func (c *Class) AddPrimitiveMethod(name string, fn PrimitiveFunc) {
	c.DefineMethod(name, NewPrimitiveMethod(name, fn), Public)
}

// SearchMethod finds name on c or its ancestors. Returns nil if undefined.
func (c *Class) SearchMethod(name string) *MethodEntry {
	for cur := c; cur != nil; cur = cur.Superclass {
		cur.mu.RLock()
		e := cur.methods[name]
		cur.mu.RUnlock()
		if e != nil {
			return e
		}
	}
	return nil
}

// MethodNames returns the names defined directly on c, sorted.
func (c *Class) MethodNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.methods))
	for n := range c.methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsSubclassOf returns true if c is other or inherits from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for cur := c; cur != nil; cur = cur.Superclass {
		if cur == other {
			return true
		}
	}
	return false
}

func (c *Class) String() string { return c.Name }

// ---------------------------------------------------------------------------
// ClassTable: runtime class registry
// ---------------------------------------------------------------------------

// ClassTable manages registered classes by name.
// It's thread-safe for concurrent access.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{classes: make(map[string]*Class)}
}

// Register adds a class to the table.
// Returns the previous class with this name, or nil.
func (ct *ClassTable) Register(c *Class) *Class {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	old := ct.classes[c.Name]
	ct.classes[c.Name] = c
	return old
}

// Lookup finds a class by name.
func (ct *ClassTable) Lookup(name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[name]
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}

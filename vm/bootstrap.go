package vm

// ---------------------------------------------------------------------------
// Bootstrap: Create core classes
// ---------------------------------------------------------------------------

func (rt *Runtime) bootstrap() {
	// Phase 1: the root of the hierarchy
	rt.BasicObjectClass = rt.bootClass("BasicObject", nil)
	rt.ObjectClass = rt.bootClass("Object", rt.BasicObjectClass)
	rt.ModuleClass = rt.bootClass("Module", rt.ObjectClass)
	rt.ClassClass = rt.bootClass("Class", rt.ModuleClass)

	// Phase 2: immediates and builtin containers
	rt.NilClass = rt.bootClass("NilClass", rt.ObjectClass)
	rt.TrueClass = rt.bootClass("TrueClass", rt.ObjectClass)
	rt.FalseClass = rt.bootClass("FalseClass", rt.ObjectClass)
	rt.IntegerClass = rt.bootClass("Integer", rt.ObjectClass)
	rt.FloatClass = rt.bootClass("Float", rt.ObjectClass)
	rt.StringClass = rt.bootClass("String", rt.ObjectClass)
	rt.SymbolClass = rt.bootClass("Symbol", rt.ObjectClass)
	rt.ArrayClass = rt.bootClass("Array", rt.ObjectClass)
	rt.HashClass = rt.bootClass("Hash", rt.ObjectClass)
	rt.ProcClass = rt.bootClass("Proc", rt.ObjectClass)

	// Phase 3: exception hierarchy
	rt.ExceptionClass = rt.bootClass("Exception", rt.ObjectClass)
	rt.StandardErrorClass = rt.bootClass("StandardError", rt.ExceptionClass)
	rt.RuntimeErrorClass = rt.bootClass("RuntimeError", rt.StandardErrorClass)
	rt.ArgumentErrorClass = rt.bootClass("ArgumentError", rt.StandardErrorClass)
	rt.TypeErrorClass = rt.bootClass("TypeError", rt.StandardErrorClass)
	rt.NameErrorClass = rt.bootClass("NameError", rt.StandardErrorClass)
	rt.NoMethodErrorClass = rt.bootClass("NoMethodError", rt.NameErrorClass)
	rt.ZeroDivisionErrorClass = rt.bootClass("ZeroDivisionError", rt.StandardErrorClass)
	rt.LocalJumpErrorClass = rt.bootClass("LocalJumpError", rt.StandardErrorClass)
	rt.SystemStackErrorClass = rt.bootClass("SystemStackError", rt.ExceptionClass)

	// Phase 4: allocators for Class#new
	rt.ObjectClass.allocate = func(c *Class) Value { return NewObject(c) }
	rt.ExceptionClass.allocate = func(c *Class) Value { return NewException(c, c.Name) }
	rt.ArrayClass.allocate = func(*Class) Value { return NewArray() }
	rt.HashClass.allocate = func(*Class) Value { return NewHash() }
	rt.StringClass.allocate = func(*Class) Value { return NewString("") }
	for _, c := range []*Class{rt.NilClass, rt.TrueClass, rt.FalseClass, rt.IntegerClass,
		rt.FloatClass, rt.SymbolClass, rt.ProcClass, rt.ClassClass} {
		c.allocate = noAllocator
	}

	// Phase 5: primitives
	rt.registerKernelPrimitives()
	rt.registerClassPrimitives()
	rt.registerIntegerPrimitives()
	rt.registerFloatPrimitives()
	rt.registerStringPrimitives()
	rt.registerArrayPrimitives()
	rt.registerHashPrimitives()
	rt.registerBlockPrimitives()
	rt.registerExceptionPrimitives()

	rt.TopSelf = NewObject(rt.ObjectClass)
}

// bootClass creates a class during bootstrap, before ObjectClass is known.
func (rt *Runtime) bootClass(name string, superclass *Class) *Class {
	c := &Class{Name: name, Superclass: superclass, serial: &rt.methodSerial}
	rt.Classes.Register(c)
	return c
}

func noAllocator(*Class) Value { return nil }

// allocator finds the nearest allocator on c's ancestry.
func (c *Class) allocator() func(*Class) Value {
	for cur := c; cur != nil; cur = cur.Superclass {
		if cur.allocate != nil {
			return cur.allocate
		}
	}
	return nil
}

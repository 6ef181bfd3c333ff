// Package vm implements the Garnet IR interpreter.
//
// This package contains:
//   - the value and object model (classes, exceptions, blocks)
//   - typed instructions and operands over four register banks
//   - the dispatch loop with rescue-table fault handling
//   - call sites with inline caches and arity-specialized entry points
//   - the dynamic scope and frame manager of a ThreadContext
//   - non-local return and break propagation
//   - a profiler for instruction mix and call-site behavior
package vm

package vm

import (
	"sync/atomic"
)

// Inline caching for method dispatch
//
// Each call instruction owns a CallSite. The site caches the method found
// for each receiver class it has seen, moving through the states
// Empty -> Monomorphic -> Polymorphic -> Megamorphic. The cache is an
// immutable snapshot swapped atomically, so threads sharing a unit never
// see a torn entry. Every entry records the runtime method serial it was
// resolved under; any method definition invalidates it.

// CallType says how a call was written, which decides visibility checks.
type CallType uint8

const (
	NormalCall     CallType = iota // recv.foo
	FunctionalCall                 // foo(), implicit self
	VariableCall                   // foo, could have been a local
)

// CallFlags describe the argument shape of a call. They are handed to the
// callee through the ThreadContext.
type CallFlags uint32

const (
	CallKeywords CallFlags = 1 << iota // last argument is a keyword hash
	CallSplat                          // last argument was splatted
)

// CacheState represents the current state of a call-site cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No cached lookup yet
	CacheMonomorphic                   // Single (class, method) cached
	CachePolymorphic                   // 2-6 entries
	CacheMegamorphic                   // Too many classes, use full lookup
)

func (s CacheState) String() string {
	switch s {
	case CacheEmpty:
		return "empty"
	case CacheMonomorphic:
		return "monomorphic"
	case CachePolymorphic:
		return "polymorphic"
	case CacheMegamorphic:
		return "megamorphic"
	}
	return "unknown"
}

// MaxPICEntries is the maximum number of entries in a polymorphic cache.
const MaxPICEntries = 6

type cacheEntry struct {
	class  *Class
	serial uint64
	entry  *MethodEntry
}

type cacheSnapshot struct {
	state   CacheState
	entries []cacheEntry
}

var megamorphic = &cacheSnapshot{state: CacheMegamorphic}

// CallSite caches method lookup for one call instruction.
type CallSite struct {
	name     string
	callType CallType
	cache    atomic.Pointer[cacheSnapshot]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCallSite creates an empty call site.
func NewCallSite(name string, callType CallType) *CallSite {
	return &CallSite{name: name, callType: callType}
}

// Name returns the method name the site calls.
func (cs *CallSite) Name() string { return cs.name }

// CallType returns how the call was written.
func (cs *CallSite) CallType() CallType { return cs.callType }

// State returns the current cache state.
func (cs *CallSite) State() CacheState {
	if s := cs.cache.Load(); s != nil {
		return s.state
	}
	return CacheEmpty
}

// Hits returns the number of cache hits.
func (cs *CallSite) Hits() uint64 { return cs.hits.Load() }

// Misses returns the number of cache misses.
func (cs *CallSite) Misses() uint64 { return cs.misses.Load() }

// HitRate returns the cache hit rate as a percentage.
func (cs *CallSite) HitRate() float64 {
	h, m := cs.Hits(), cs.Misses()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m) * 100
}

// Reset clears the cache.
func (cs *CallSite) Reset() {
	cs.cache.Store(nil)
	cs.hits.Store(0)
	cs.misses.Store(0)
}

func (cs *CallSite) cached(class *Class, serial uint64) *MethodEntry {
	s := cs.cache.Load()
	if s == nil {
		return nil
	}
	for i := range s.entries {
		e := &s.entries[i]
		if e.class == class && e.serial == serial {
			return e.entry
		}
	}
	return nil
}

func (cs *CallSite) update(class *Class, serial uint64, entry *MethodEntry) {
	old := cs.cache.Load()
	if old == megamorphic {
		return
	}
	var live []cacheEntry
	if old != nil {
		for _, e := range old.entries {
			if e.serial == serial && e.class != class {
				live = append(live, e)
			}
		}
	}
	if len(live) >= MaxPICEntries {
		cs.cache.Store(megamorphic)
		return
	}
	entries := make([]cacheEntry, len(live), len(live)+1)
	copy(entries, live)
	entries = append(entries, cacheEntry{class: class, serial: serial, entry: entry})
	state := CacheMonomorphic
	if len(entries) > 1 {
		state = CachePolymorphic
	}
	cs.cache.Store(&cacheSnapshot{state: state, entries: entries})
}

// lookup resolves the method for recv, checking visibility against the
// call type and caller. Pending call flags are meant for an interpreted
// callee; any other outcome drops them so a later activation, such as a
// block the callee yields to, does not pick them up.
func (cs *CallSite) lookup(ctx *ThreadContext, caller, recv Value) (*MethodEntry, error) {
	entry, err := cs.resolve(ctx, caller, recv)
	if err != nil {
		ctx.TakeCallInfo()
		return nil, err
	}
	if _, ok := entry.Method.(*InterpretedMethod); !ok {
		ctx.TakeCallInfo()
	}
	return entry, nil
}

func (cs *CallSite) resolve(ctx *ThreadContext, caller, recv Value) (*MethodEntry, error) {
	rt := ctx.runtime
	class := rt.ClassOf(recv)
	serial := rt.methodSerial.Load()
	entry := cs.cached(class, serial)
	if entry != nil {
		cs.hits.Add(1)
	} else {
		cs.misses.Add(1)
		entry = class.SearchMethod(cs.name)
		if entry == nil {
			return nil, ctx.NoMethodError("undefined method '%s' for %s", cs.name, describeReceiver(rt, recv))
		}
		cs.update(class, serial, entry)
	}
	switch entry.Visibility {
	case Private:
		if cs.callType == NormalCall {
			return nil, ctx.NoMethodError("private method '%s' called for %s", cs.name, describeReceiver(rt, recv))
		}
	case Protected:
		if cs.callType == NormalCall && !rt.ClassOf(caller).IsSubclassOf(entry.Owner) {
			return nil, ctx.NoMethodError("protected method '%s' called for %s", cs.name, describeReceiver(rt, recv))
		}
	}
	return entry, nil
}

func describeReceiver(rt *Runtime, v Value) string {
	switch v.(type) {
	case nil, nilValue:
		return "nil"
	case Bool:
		return Inspect(v)
	case *Class:
		return "class " + Inspect(v)
	}
	return "an instance of " + rt.ClassOf(v).Name
}

// ---------------------------------------------------------------------------
// Arity-specialized entry points
// ---------------------------------------------------------------------------

// Call dispatches with an argument slice.
func (cs *CallSite) Call(ctx *ThreadContext, caller, recv Value, args []Value, blk *Block) (Value, error) {
	e, err := cs.lookup(ctx, caller, recv)
	if err != nil {
		return nil, err
	}
	return e.Method.Call(ctx, recv, args, blk)
}

// Call0 dispatches a call with no arguments.
func (cs *CallSite) Call0(ctx *ThreadContext, caller, recv Value, blk *Block) (Value, error) {
	e, err := cs.lookup(ctx, caller, recv)
	if err != nil {
		return nil, err
	}
	if m, ok := e.Method.(ZeroArgMethod); ok {
		return m.Call0(ctx, recv, blk)
	}
	return e.Method.Call(ctx, recv, nil, blk)
}

// Call1 dispatches a call with one argument.
func (cs *CallSite) Call1(ctx *ThreadContext, caller, recv, arg Value, blk *Block) (Value, error) {
	e, err := cs.lookup(ctx, caller, recv)
	if err != nil {
		return nil, err
	}
	if m, ok := e.Method.(OneArgMethod); ok {
		return m.Call1(ctx, recv, arg, blk)
	}
	return e.Method.Call(ctx, recv, []Value{arg}, blk)
}

// Call2 dispatches a call with two arguments.
func (cs *CallSite) Call2(ctx *ThreadContext, caller, recv, arg1, arg2 Value, blk *Block) (Value, error) {
	e, err := cs.lookup(ctx, caller, recv)
	if err != nil {
		return nil, err
	}
	if m, ok := e.Method.(TwoArgMethod); ok {
		return m.Call2(ctx, recv, arg1, arg2, blk)
	}
	return e.Method.Call(ctx, recv, []Value{arg1, arg2}, blk)
}

// CallFixnum dispatches a one-argument call whose argument is a raw
// integer. The argument is only boxed if the target has no unboxed entry.
func (cs *CallSite) CallFixnum(ctx *ThreadContext, caller, recv Value, arg int64) (Value, error) {
	e, err := cs.lookup(ctx, caller, recv)
	if err != nil {
		return nil, err
	}
	switch m := e.Method.(type) {
	case FixnumArgMethod:
		return m.CallFixnum(ctx, recv, arg)
	case OneArgMethod:
		return m.Call1(ctx, recv, Fixnum(arg), nil)
	}
	return e.Method.Call(ctx, recv, []Value{Fixnum(arg)}, nil)
}

// CallFloat dispatches a one-argument call whose argument is a raw double.
func (cs *CallSite) CallFloat(ctx *ThreadContext, caller, recv Value, arg float64) (Value, error) {
	e, err := cs.lookup(ctx, caller, recv)
	if err != nil {
		return nil, err
	}
	switch m := e.Method.(type) {
	case FloatArgMethod:
		return m.CallFloat(ctx, recv, arg)
	case OneArgMethod:
		return m.Call1(ctx, recv, Float(arg), nil)
	}
	return e.Method.Call(ctx, recv, []Value{Float(arg)}, nil)
}

// ---------------------------------------------------------------------------
// Iterator calls
// ---------------------------------------------------------------------------

// CallIter dispatches a call whose block was written at the call. A break
// from that block ends the call with the break value. When the call
// returns, by any path, the block is marked escaped.
func (cs *CallSite) CallIter(ctx *ThreadContext, caller, recv Value, args []Value, blk *Block) (result Value, err error) {
	defer blk.Escape()
	defer catchBreak(blk, &result, &err)
	return cs.Call(ctx, caller, recv, args, blk)
}

// CallIter0 is CallIter with no arguments.
func (cs *CallSite) CallIter0(ctx *ThreadContext, caller, recv Value, blk *Block) (result Value, err error) {
	defer blk.Escape()
	defer catchBreak(blk, &result, &err)
	return cs.Call0(ctx, caller, recv, blk)
}

// CallIter1 is CallIter with one argument.
func (cs *CallSite) CallIter1(ctx *ThreadContext, caller, recv, arg Value, blk *Block) (result Value, err error) {
	defer blk.Escape()
	defer catchBreak(blk, &result, &err)
	return cs.Call1(ctx, caller, recv, arg, blk)
}

// CallIter2 is CallIter with two arguments.
func (cs *CallSite) CallIter2(ctx *ThreadContext, caller, recv, arg1, arg2 Value, blk *Block) (result Value, err error) {
	defer blk.Escape()
	defer catchBreak(blk, &result, &err)
	return cs.Call2(ctx, caller, recv, arg1, arg2, blk)
}

// catchBreak claims a break aimed at blk's binding. Anything else keeps
// unwinding.
func catchBreak(blk *Block, result *Value, err *error) {
	r := recover()
	if r == nil {
		return
	}
	if t, ok := r.(*ControlTransfer); ok && t.Kind == TransferBreak && t.Binding == blk.Binding {
		*result, *err = t.Value, nil
		return
	}
	panic(r)
}

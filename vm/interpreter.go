package vm

import (
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("garnet.vm")

// ---------------------------------------------------------------------------
// Engine: IR execution
// ---------------------------------------------------------------------------

// Engine interprets compiled units. One engine serves every thread of a
// runtime; all per-invocation state lives in activations.
type Engine struct {
	runtime  *Runtime
	debug    bool
	profiler *Profiler

	// inject, when set, is consulted before every instruction and may
	// return a fault to raise in its place.
	inject func(ipc int, instr Instr) error
}

func newEngine(rt *Runtime, opts Options) *Engine {
	e := &Engine{runtime: rt, debug: opts.Debug}
	if opts.Profile {
		e.profiler = NewProfiler()
		if opts.HotThreshold > 0 {
			e.profiler.HotThreshold = opts.HotThreshold
		}
	}
	return e
}

// Profiler returns the engine's profiler, or nil when profiling is off.
func (e *Engine) Profiler() *Profiler { return e.profiler }

// ---------------------------------------------------------------------------
// Activation: one invocation of a unit
// ---------------------------------------------------------------------------

// activation holds the register file and bookkeeping of one invocation.
type activation struct {
	ctx      *ThreadContext
	unit     *CompiledUnit
	self     Value
	block    *Block // block being executed, nil for methods
	blockArg *Block // block passed to this invocation
	module   *Class
	name     string

	args     []Value
	argBuf   [4]Value
	keywords *Hash
	callInfo CallFlags

	temps    []Value
	fixnums  []int64
	floats   []float64
	booleans []bool

	scope       *DynamicScope
	methodScope *DynamicScope

	// exception is the current-exception cell: the last fault or control
	// transfer routed to a handler in this activation.
	exception any

	pushedScopes int
	pushedFrames int
	owned        []*DynamicScope

	ipc int
}

func (e *Engine) newActivation(ctx *ThreadContext, block *Block, self Value, unit *CompiledUnit, module *Class, name string, blockArg *Block) *activation {
	a := &activation{
		ctx:      ctx,
		unit:     unit,
		self:     self,
		block:    block,
		blockArg: blockArg,
		module:   module,
		name:     name,
		scope:    ctx.CurrentScope(),
	}
	if n := unit.Temps[ObjectBank]; n > 0 {
		a.temps = make([]Value, n)
	}
	if n := unit.Temps[FixnumBank]; n > 0 {
		a.fixnums = make([]int64, n)
	}
	if n := unit.Temps[FloatBank]; n > 0 {
		a.floats = make([]float64, n)
	}
	if n := unit.Temps[BooleanBank]; n > 0 {
		a.booleans = make([]bool, n)
	}
	return a
}

// Interpret runs unit with an argument slice. block is the block being
// executed when unit is a block body; blockArg is the block passed in.
func (e *Engine) Interpret(ctx *ThreadContext, block *Block, self Value, unit *CompiledUnit, module *Class, name string, args []Value, blockArg *Block) (Value, error) {
	a := e.newActivation(ctx, block, self, unit, module, name, blockArg)
	a.args = args
	return e.run(a)
}

// Interpret0 runs unit with no arguments.
func (e *Engine) Interpret0(ctx *ThreadContext, block *Block, self Value, unit *CompiledUnit, module *Class, name string, blockArg *Block) (Value, error) {
	a := e.newActivation(ctx, block, self, unit, module, name, blockArg)
	a.args = a.argBuf[:0]
	return e.run(a)
}

// Interpret1 runs unit with one argument.
func (e *Engine) Interpret1(ctx *ThreadContext, block *Block, self Value, unit *CompiledUnit, module *Class, name string, arg1 Value, blockArg *Block) (Value, error) {
	a := e.newActivation(ctx, block, self, unit, module, name, blockArg)
	a.argBuf[0] = arg1
	a.args = a.argBuf[:1]
	return e.run(a)
}

// Interpret2 runs unit with two arguments.
func (e *Engine) Interpret2(ctx *ThreadContext, block *Block, self Value, unit *CompiledUnit, module *Class, name string, arg1, arg2 Value, blockArg *Block) (Value, error) {
	a := e.newActivation(ctx, block, self, unit, module, name, blockArg)
	a.argBuf[0], a.argBuf[1] = arg1, arg2
	a.args = a.argBuf[:2]
	return e.run(a)
}

// Interpret3 runs unit with three arguments.
func (e *Engine) Interpret3(ctx *ThreadContext, block *Block, self Value, unit *CompiledUnit, module *Class, name string, arg1, arg2, arg3 Value, blockArg *Block) (Value, error) {
	a := e.newActivation(ctx, block, self, unit, module, name, blockArg)
	a.argBuf[0], a.argBuf[1], a.argBuf[2] = arg1, arg2, arg3
	a.args = a.argBuf[:3]
	return e.run(a)
}

// Interpret4 runs unit with four arguments.
func (e *Engine) Interpret4(ctx *ThreadContext, block *Block, self Value, unit *CompiledUnit, module *Class, name string, arg1, arg2, arg3, arg4 Value, blockArg *Block) (Value, error) {
	a := e.newActivation(ctx, block, self, unit, module, name, blockArg)
	a.argBuf[0], a.argBuf[1], a.argBuf[2], a.argBuf[3] = arg1, arg2, arg3, arg4
	a.args = a.argBuf[:4]
	return e.run(a)
}

func (e *Engine) run(a *activation) (result Value, err error) {
	unit := a.unit
	if !unit.finalized {
		bug("unit %s interpreted before Finalize", unit.Name)
	}
	if err := a.ctx.enter(); err != nil {
		return nil, err
	}
	defer e.unwind(a)
	defer catchNonlocalReturn(a, &result, &err)

	a.callInfo = a.ctx.TakeCallInfo()
	if unit.AcceptsKeywords && a.callInfo&CallKeywords != 0 {
		if n := len(a.args); n > 0 {
			if h, ok := a.args[n-1].(*Hash); ok {
				a.keywords = h
				a.args = a.args[:n-1]
			}
		}
	}
	if e.profiler != nil {
		e.profiler.RecordInvocation(unit)
	}

	for {
		v, err, resumed := e.runRecoverable(a)
		if !resumed {
			return v, err
		}
	}
}

// unwind pops whatever the activation pushed and is still on the thread's
// stacks, then recycles the scopes it allocated.
func (e *Engine) unwind(a *activation) {
	ctx := a.ctx
	for ; a.pushedFrames > 0; a.pushedFrames-- {
		ctx.PopFrame()
	}
	for ; a.pushedScopes > 0; a.pushedScopes-- {
		ctx.PopScope()
	}
	if a.methodScope != nil {
		a.methodScope.owner = nil
	}
	for _, s := range a.owned {
		ctx.arena.release(s)
	}
	a.owned = nil
	ctx.leave()
}

// catchNonlocalReturn claims a non-local return aimed at the method scope
// this activation pushed.
func catchNonlocalReturn(a *activation, result *Value, err *error) {
	r := recover()
	if r == nil {
		return
	}
	if t, ok := r.(*ControlTransfer); ok && t.Kind == TransferNonlocalReturn && a.methodScope != nil && t.Scope == a.methodScope {
		*result, *err = t.Value, nil
		return
	}
	panic(r)
}

// runRecoverable runs the dispatch loop. A control transfer unwinding
// through an ensure range is parked in the exception cell and the loop is
// re-entered at the ensure handler. A fault raised while reading an
// operand resumes at the instruction's rescue handler.
func (e *Engine) runRecoverable(a *activation) (result Value, err error, resumed bool) {
	returned := false
	defer func() {
		if returned {
			return
		}
		r := recover()
		if f, ok := r.(*operandFault); ok {
			rpc := a.unit.RescuePC(a.ipc)
			if rpc < 0 || IsUnrescuable(f.err) {
				result, err = nil, f.err
				return
			}
			a.exception = f.err
			a.ipc = rpc
			resumed = true
			return
		}
		t, ok := r.(*ControlTransfer)
		if !ok {
			panic(r)
		}
		target := a.unit.EnsurePC(a.ipc)
		if target < 0 {
			panic(t)
		}
		if e.debug {
			log.Debugf("%s at %s:%d resumes at ensure %d", t.Kind, a.unit.Name, a.ipc, target)
		}
		a.exception = t
		a.ipc = target
		resumed = true
	}()
	result, err = e.dispatch(a)
	returned = true
	return
}

// dispatch is the interpreter loop. a.ipc holds the position of the
// instruction being executed so faults and transfers can be located.
func (e *Engine) dispatch(a *activation) (Value, error) {
	instrs := a.unit.Instrs
	n := len(instrs)
	ipc := a.ipc

	for ipc < n {
		instr := instrs[ipc]
		op := instr.Op()
		a.ipc = ipc
		ipc++

		if e.debug {
			log.Debugf("I: {%d} %s", a.ipc, instr)
		}
		if e.profiler != nil {
			e.profiler.instrTick(op)
		}

		var err error
		if e.inject != nil {
			err = e.inject(a.ipc, instr)
		}
		if err == nil {
			switch op.Class() {
			case IntOp:
				err = a.interpretIntOp(instr.(*AluInstr))
			case FloatOp:
				a.interpretFloatOp(instr.(*AluInstr))
			case ArgOp:
				err = a.receiveArg(instr)
			case CallOp:
				err = e.processCall(a, instr)
			case RetOp:
				v, rerr := a.processReturnOp(instr.(*ReturnInstr))
				if rerr == nil {
					return v, nil
				}
				err = rerr
			case BranchOp:
				ipc = a.processBranch(instr, ipc)
			case BookKeepingOp:
				err = e.processBookKeepingOp(a, instr)
			default:
				err = a.processOtherOp(instr)
			}
		}

		if err != nil {
			rpc := e.resolveFault(a, instr, a.ipc, err)
			if rpc < 0 {
				return nil, err
			}
			a.exception = err
			ipc = rpc
		}
	}

	panic(&BugError{Msg: "interpreter fell through to end unexpectedly in " + a.unit.Name})
}

package vm

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultMaxDepth bounds nested activations per thread.
const DefaultMaxDepth = 10000

// ThreadContext is the per-thread interpreter state: the dynamic scope
// stack, the frame stack, call info and the poll state that lets another
// goroutine cancel or interrupt execution.
//
// A ThreadContext is owned by one goroutine. Only Kill and RaiseAsync may
// be called from elsewhere.
type ThreadContext struct {
	runtime *Runtime
	ctx     context.Context
	done    <-chan struct{}

	scopes []*DynamicScope
	frames []*Frame
	arena  scopeArena

	callInfo CallFlags
	line     int
	depth    int
	maxDepth int

	killed     atomic.Bool
	hasPending atomic.Bool
	mu         sync.Mutex
	killCause  error
	pending    []error
}

// NewThreadContext creates thread state bound to ctx. Cancelling ctx kills
// the thread at its next poll.
func (rt *Runtime) NewThreadContext(ctx context.Context) *ThreadContext {
	if ctx == nil {
		ctx = context.Background()
	}
	maxDepth := rt.options.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &ThreadContext{
		runtime:  rt,
		ctx:      ctx,
		done:     ctx.Done(),
		scopes:   make([]*DynamicScope, 0, 16),
		frames:   make([]*Frame, 0, 16),
		maxDepth: maxDepth,
	}
}

// Runtime returns the runtime the thread belongs to.
func (c *ThreadContext) Runtime() *Runtime { return c.runtime }

// Context returns the Go context the thread is bound to.
func (c *ThreadContext) Context() context.Context { return c.ctx }

// ---------------------------------------------------------------------------
// Scope stack
// ---------------------------------------------------------------------------

// PushScope makes s the current dynamic scope.
func (c *ThreadContext) PushScope(s *DynamicScope) {
	c.scopes = append(c.scopes, s)
}

// PopScope removes and returns the current dynamic scope.
func (c *ThreadContext) PopScope() *DynamicScope {
	n := len(c.scopes)
	if n == 0 {
		bug("pop from empty scope stack")
	}
	s := c.scopes[n-1]
	c.scopes[n-1] = nil
	c.scopes = c.scopes[:n-1]
	return s
}

// CurrentScope returns the innermost dynamic scope, or nil.
func (c *ThreadContext) CurrentScope() *DynamicScope {
	if n := len(c.scopes); n > 0 {
		return c.scopes[n-1]
	}
	return nil
}

// ScopeDepth returns the number of pushed scopes.
func (c *ThreadContext) ScopeDepth() int { return len(c.scopes) }

// ScopeExistsOnCallStack reports whether s belongs to a live activation.
func (c *ThreadContext) ScopeExistsOnCallStack(s *DynamicScope) bool {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i] == s {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Frame stack
// ---------------------------------------------------------------------------

// PushFrame makes f the current frame.
func (c *ThreadContext) PushFrame(f *Frame) {
	c.frames = append(c.frames, f)
}

// PopFrame removes and returns the current frame.
func (c *ThreadContext) PopFrame() *Frame {
	n := len(c.frames)
	if n == 0 {
		bug("pop from empty frame stack")
	}
	f := c.frames[n-1]
	c.frames[n-1] = nil
	c.frames = c.frames[:n-1]
	return f
}

// CurrentFrame returns the innermost frame, or nil.
func (c *ThreadContext) CurrentFrame() *Frame {
	if n := len(c.frames); n > 0 {
		return c.frames[n-1]
	}
	return nil
}

// FrameDepth returns the number of pushed frames.
func (c *ThreadContext) FrameDepth() int { return len(c.frames) }

// SetLine records the current source line on the thread and its frame.
func (c *ThreadContext) SetLine(line int) {
	c.line = line
	if f := c.CurrentFrame(); f != nil {
		f.Line = line
	}
}

// Line returns the last recorded source line.
func (c *ThreadContext) Line() int { return c.line }

// Backtrace renders the frame stack, innermost first.
func (c *ThreadContext) Backtrace() []string {
	bt := make([]string, 0, len(c.frames))
	for i := len(c.frames) - 1; i >= 0; i-- {
		bt = append(bt, c.frames[i].String())
	}
	return bt
}

// ---------------------------------------------------------------------------
// Call info
// ---------------------------------------------------------------------------

// SetCallInfo records flags describing the call about to be made.
func (c *ThreadContext) SetCallInfo(flags CallFlags) { c.callInfo = flags }

// TakeCallInfo returns and clears the pending call flags.
func (c *ThreadContext) TakeCallInfo() CallFlags {
	f := c.callInfo
	c.callInfo = 0
	return f
}

// ---------------------------------------------------------------------------
// Activation depth
// ---------------------------------------------------------------------------

func (c *ThreadContext) enter() error {
	if c.depth >= c.maxDepth {
		return c.Raise(c.runtime.SystemStackErrorClass, "stack level too deep")
	}
	c.depth++
	return nil
}

func (c *ThreadContext) leave() { c.depth-- }

// Depth returns the number of live activations.
func (c *ThreadContext) Depth() int { return c.depth }

// ---------------------------------------------------------------------------
// Thread events
// ---------------------------------------------------------------------------

// Kill terminates the thread at its next poll with an unrescuable fault.
// Safe to call from any goroutine.
func (c *ThreadContext) Kill(cause error) {
	c.mu.Lock()
	if c.killCause == nil {
		c.killCause = cause
	}
	c.mu.Unlock()
	c.killed.Store(true)
}

// RaiseAsync queues err to be raised at the thread's next poll. Unlike
// Kill, the fault is rescuable. Safe to call from any goroutine.
func (c *ThreadContext) RaiseAsync(err error) {
	c.mu.Lock()
	c.pending = append(c.pending, err)
	c.mu.Unlock()
	c.hasPending.Store(true)
}

// PollThreadEvents delivers pending kills, async raises and context
// cancellation.
func (c *ThreadContext) PollThreadEvents() error {
	if c.killed.Load() {
		c.mu.Lock()
		cause := c.killCause
		c.mu.Unlock()
		return &ThreadKill{Cause: cause}
	}
	if c.hasPending.Load() {
		c.mu.Lock()
		err := c.pending[0]
		c.pending = c.pending[1:]
		c.hasPending.Store(len(c.pending) > 0)
		c.mu.Unlock()
		return err
	}
	select {
	case <-c.done:
		return &ThreadKill{Cause: c.ctx.Err()}
	default:
	}
	return nil
}

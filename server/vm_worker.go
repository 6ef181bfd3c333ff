package server

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/chazu/garnet/vm"
)

// VMWorker runs programs on fresh runtimes, at most limit at a time. Each
// run gets its own Runtime and ThreadContext, so runs never share classes
// or interpreter state.
type VMWorker struct {
	opts   vm.Options
	sem    *semaphore.Weighted
	active atomic.Int64
}

// NewVMWorker creates a worker that admits limit concurrent runs.
func NewVMWorker(opts vm.Options, limit int64) *VMWorker {
	if limit <= 0 {
		limit = 1
	}
	return &VMWorker{opts: opts, sem: semaphore.NewWeighted(limit)}
}

// Active reports how many runs are executing right now.
func (w *VMWorker) Active() int64 { return w.active.Load() }

// Do waits for a slot, then calls fn with a new runtime and a thread bound
// to ctx. A panic in fn, including a broken engine invariant, is returned
// as a *panicError rather than taking the server down.
func (w *VMWorker) Do(ctx context.Context, fn func(*vm.Runtime, *vm.ThreadContext) error) error {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer w.sem.Release(1)

	w.active.Add(1)
	defer w.active.Add(-1)

	rt := vm.NewRuntime(w.opts)
	return w.execute(func() error { return fn(rt, rt.NewThreadContext(ctx)) })
}

// panicError carries a value recovered from a run.
type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

// Unwrap exposes a recovered error, such as a *vm.BugError.
func (e *panicError) Unwrap() error {
	err, _ := e.value.(error)
	return err
}

// execute runs fn, recovering from panics.
func (w *VMWorker) execute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("recovered from panic in run: %v", r)
			err = &panicError{value: r}
		}
	}()
	return fn()
}

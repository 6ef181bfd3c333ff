package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/wire"
)

// EvalService implements the garnet.v1.EvalService Connect handlers.
type EvalService struct {
	worker *VMWorker

	runs       atomic.Uint64
	exceptions atomic.Uint64
	cancelled  atomic.Uint64

	mu         sync.Mutex
	opCounts   map[string]uint64
	clockTicks uint64
}

// NewEvalService creates an EvalService.
func NewEvalService(worker *VMWorker) *EvalService {
	return &EvalService{
		worker:   worker,
		opCounts: make(map[string]uint64),
	}
}

// Run decodes, installs and runs a program.
func (s *EvalService) Run(
	ctx context.Context,
	req *connect.Request[RunRequest],
) (*connect.Response[RunResponse], error) {
	if len(req.Msg.Program) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("program is required"))
	}
	prog, err := wire.DecodeProgram(req.Msg.Program)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	args := make([]vm.Value, len(req.Msg.Args))
	for i, a := range req.Msg.Args {
		if args[i], err = a.ToValue(); err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("argument %d: %w", i, err))
		}
	}

	if req.Msg.TimeoutMillis > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.Msg.TimeoutMillis)*time.Millisecond)
		defer cancel()
	}

	id := uuid.NewString()
	resp := &RunResponse{InvocationID: id}
	var installErr error

	err = s.worker.Do(ctx, func(rt *vm.Runtime, tc *vm.ThreadContext) error {
		main, err := prog.Install(rt)
		if err != nil {
			installErr = err
			return nil
		}
		defer s.collect(rt)

		result, err := rt.Run(tc, main, nil, args...)
		if err != nil {
			return err
		}
		resp.Result = wire.FromValue(result)
		return nil
	})
	s.runs.Add(1)

	if installErr != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, installErr)
	}
	if err != nil {
		if exc, ok := vm.AsException(err); ok {
			s.exceptions.Add(1)
			log.Infof("run %s raised %s: %s", id, exc.Class().Name, exc.Message())
			resp.Result = wire.FromValue(vm.Nil)
			resp.ExceptionClass = exc.Class().Name
			resp.Message = exc.Message()
			resp.Backtrace = exc.Backtrace()
			return connect.NewResponse(resp), nil
		}
		return nil, s.runError(id, err)
	}
	return connect.NewResponse(resp), nil
}

// runError maps a failed run to a Connect error.
func (s *EvalService) runError(id string, err error) error {
	var bugErr *vm.BugError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		s.cancelled.Add(1)
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		s.cancelled.Add(1)
		return connect.NewError(connect.CodeCanceled, err)
	case errors.As(err, &bugErr):
		log.Errorf("run %s: %s", id, bugErr)
		return connect.NewError(connect.CodeInternal, err)
	}
	var kill *vm.ThreadKill
	if errors.As(err, &kill) {
		s.cancelled.Add(1)
		return connect.NewError(connect.CodeAborted, err)
	}
	log.Errorf("run %s: %s", id, err)
	return connect.NewError(connect.CodeInternal, err)
}

// collect folds a finished runtime's profile into the service totals.
func (s *EvalService) collect(rt *vm.Runtime) {
	p := rt.Profiler()
	if p == nil {
		return
	}
	snap := p.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	for op, n := range snap.OpCounts {
		s.opCounts[op] += n
	}
	s.clockTicks += snap.ClockTicks
}

// Stats reports counters aggregated over every run.
func (s *EvalService) Stats(
	ctx context.Context,
	req *connect.Request[StatsRequest],
) (*connect.Response[StatsResponse], error) {
	resp := &StatsResponse{
		Runs:       s.runs.Load(),
		Exceptions: s.exceptions.Load(),
		Cancelled:  s.cancelled.Load(),
		Active:     s.worker.Active(),
		OpCounts:   make(map[string]uint64),
	}
	s.mu.Lock()
	for op, n := range s.opCounts {
		resp.OpCounts[op] = n
	}
	resp.ClockTicks = s.clockTicks
	s.mu.Unlock()
	return connect.NewResponse(resp), nil
}

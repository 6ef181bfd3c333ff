package server

import "github.com/chazu/garnet/vm/wire"

// RunRequest asks the service to install and run an encoded program.
type RunRequest struct {
	// Program is a wire-encoded program, as written by wire.WriteFile.
	Program []byte `cbor:"program"`
	// Args are passed to the main unit.
	Args []wire.Value `cbor:"args,omitempty"`
	// TimeoutMillis bounds the run; zero means only the request deadline.
	TimeoutMillis int64 `cbor:"timeout_ms,omitempty"`
}

// RunResponse reports the outcome of a run. A program that ends in an
// uncaught exception is still a successful call: ExceptionClass is set and
// Result is nil.
type RunResponse struct {
	InvocationID   string     `cbor:"invocation_id"`
	Result         wire.Value `cbor:"result"`
	ExceptionClass string     `cbor:"exception_class,omitempty"`
	Message        string     `cbor:"message,omitempty"`
	Backtrace      []string   `cbor:"backtrace,omitempty"`
}

// StatsRequest has no fields.
type StatsRequest struct{}

// StatsResponse aggregates counters over every run served so far.
type StatsResponse struct {
	Runs       uint64            `cbor:"runs"`
	Exceptions uint64            `cbor:"exceptions"`
	Cancelled  uint64            `cbor:"cancelled"`
	Active     int64             `cbor:"active"`
	OpCounts   map[string]uint64 `cbor:"op_counts,omitempty"`
	ClockTicks uint64            `cbor:"clock_ticks"`
}

// Package server exposes the engine as a Connect RPC evaluation service.
// Messages are CBOR-encoded; programs travel in the same format as .gir
// files.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/garnet/vm"
)

var log = commonlog.GetLogger("garnet.server")

// Procedure paths served by the evaluation service.
const (
	RunProcedure   = "/garnet.v1.EvalService/Run"
	StatsProcedure = "/garnet.v1.EvalService/Stats"
)

// maxMessageBytes bounds request bodies.
const maxMessageBytes = 16 << 20

// GarnetServer serves the evaluation service over HTTP.
type GarnetServer struct {
	eval *EvalService
	mux  *http.ServeMux
	http *http.Server
}

// New creates a server running programs with opts, at most maxConcurrent
// at a time.
func New(opts vm.Options, maxConcurrent int64) *GarnetServer {
	s := &GarnetServer{
		eval: NewEvalService(NewVMWorker(opts, maxConcurrent)),
		mux:  http.NewServeMux(),
	}

	handlerOpts := []connect.HandlerOption{
		connect.WithCodec(cborCodec{}),
		connect.WithReadMaxBytes(maxMessageBytes),
	}
	s.mux.Handle(RunProcedure, connect.NewUnaryHandler(RunProcedure, s.eval.Run, handlerOpts...))
	s.mux.Handle(StatsProcedure, connect.NewUnaryHandler(StatsProcedure, s.eval.Stats, handlerOpts...))
	return s
}

// Handler returns the HTTP handler for all procedures.
func (s *GarnetServer) Handler() http.Handler { return s.mux }

// ListenAndServe starts the HTTP server on the given address. It returns
// nil after Shutdown.
func (s *GarnetServer) ListenAndServe(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	log.Noticef("garnet server listening on %s", addr)
	log.Noticef("  Connect (CBOR): http://%s%s", addr, RunProcedure)
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight runs.
func (s *GarnetServer) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Client calls a remote evaluation service.
type Client struct {
	run   *connect.Client[RunRequest, RunResponse]
	stats *connect.Client[StatsRequest, StatsResponse]
}

// NewClient creates a client for the service at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string) *Client {
	opts := []connect.ClientOption{connect.WithCodec(cborCodec{})}
	return &Client{
		run:   connect.NewClient[RunRequest, RunResponse](httpClient, baseURL+RunProcedure, opts...),
		stats: connect.NewClient[StatsRequest, StatsResponse](httpClient, baseURL+StatsProcedure, opts...),
	}
}

// Run submits a program.
func (c *Client) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	resp, err := c.run.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Stats fetches the service counters.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	resp, err := c.stats.CallUnary(ctx, connect.NewRequest(&StatsRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Package server implements the control plane: the engine loop that owns
// the telemetry document, the WebSocket fan-out hub, and the REST surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/edgeplane/edgeplane/infer"
	"github.com/edgeplane/edgeplane/sim"
)

// Options groups everything the process reads once at startup.
type Options struct {
	Addr      string
	Seed      int64
	Sim       sim.SimConfig
	Infer     infer.Config
	InferOpts infer.Options
	TracePath string
}

// Server ties the engine, clock, hub, and HTTP listener together.
type Server struct {
	opts   Options
	engine *Engine
	hub    *Hub
	clock  *sim.Clock
	trace  *sim.Trace
	http   *http.Server
}

// New assembles a Server from immutable startup options.
func New(opts Options) (*Server, error) {
	if err := opts.Sim.Validate(); err != nil {
		return nil, fmt.Errorf("simulation config: %w", err)
	}

	var trace *sim.Trace
	if opts.TracePath != "" {
		var err error
		trace, err = sim.OpenTrace(opts.TracePath)
		if err != nil {
			return nil, err
		}
	}

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(opts.Seed))
	store := sim.NewStore(opts.Sim)
	pipeline := infer.New(opts.Infer, rng.ForSubsystem(sim.SubsystemInference))
	hub := NewHub()
	engine := NewEngine(store, rng, pipeline, hub, trace, opts.InferOpts)
	clock := sim.NewClock(opts.Sim.TickInterval, engine.Tick)

	api := NewAPI(engine, DefaultPlatformInfo(opts.Sim.TotalMemoryMB))
	httpServer := &http.Server{
		Addr:         opts.Addr,
		Handler:      WithRequestLog(api.Routes(NewWSHandler(hub, engine))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		opts:   opts,
		engine: engine,
		hub:    hub,
		clock:  clock,
		trace:  trace,
		http:   httpServer,
	}, nil
}

// Run starts the engine loop, the clock, and the HTTP listener, and blocks
// until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.engine.Run(ctx)
	go s.clock.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		logrus.Infof("listening on %s (seed=%d)", s.opts.Addr, s.opts.Seed)
		if err := s.http.ListenAndServe(); err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("http shutdown: %v", err)
	}

	if s.trace != nil {
		logrus.Info(s.trace.Summary())
		return s.trace.Close()
	}
	return nil
}

package server

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/edgeplane/edgeplane/infer"
	"github.com/edgeplane/edgeplane/sim"
)

// opBuffer bounds the engine's inbox. Commands past this are dropped with a
// warning instead of blocking the clock or a read pump.
const opBuffer = 128

// ErrEngineBusy is returned by request/reply calls when the op inbox is
// full. Callers must not wait for a reply that was never enqueued.
var ErrEngineBusy = errors.New("engine inbox full")

// op is one unit of work for the engine loop, mirroring the closed command
// set plus the engine's internal bookkeeping ops.
type op interface {
	execute(e *Engine)
}

// Engine owns the Store and runs the single goroutine that may touch it.
// Inbound frames, REST requests, and clock ticks all become ops on one
// channel, so mutation and reads are serialized without a lock, and no
// blocking I/O ever happens between an op starting and finishing.
type Engine struct {
	store    *sim.Store
	rng      *sim.PartitionedRNG
	pipeline *infer.Pipeline
	hub      *Hub
	trace    *sim.Trace

	inferOpts infer.Options
	ops       chan op
}

// NewEngine wires the engine. trace may be nil (tracing disabled).
func NewEngine(store *sim.Store, rng *sim.PartitionedRNG, pipeline *infer.Pipeline, hub *Hub, trace *sim.Trace, inferOpts infer.Options) *Engine {
	return &Engine{
		store:     store,
		rng:       rng,
		pipeline:  pipeline,
		hub:       hub,
		trace:     trace,
		inferOpts: inferOpts,
		ops:       make(chan op, opBuffer),
	}
}

// Run drains the op channel until ctx is cancelled. This goroutine is the
// sole owner of the Store for the lifetime of the process.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-e.ops:
			o.execute(e)
		}
	}
}

// submit enqueues an op without blocking. Returns false when the inbox is
// full; ops carrying a reply channel must propagate that to their caller.
func (e *Engine) submit(o op) bool {
	select {
	case e.ops <- o:
		return true
	default:
		logrus.Warn("engine inbox full, dropping op")
		return false
	}
}

// Tick is the clock callback. Never blocks.
func (e *Engine) Tick() {
	e.submit(tickOp{})
}

// Submit routes one validated client command from a session's read pump.
func (e *Engine) Submit(cmd Command, sess *Session) {
	e.submit(commandOp{cmd: cmd, sess: sess})
}

// Snapshot returns a consistent copy of the document, serialized through
// the engine loop so reads never race a mutation.
func (e *Engine) Snapshot(ctx context.Context) (sim.SystemState, error) {
	reply := make(chan sim.SystemState, 1)
	if !e.submit(snapshotOp{reply: reply}) {
		return sim.SystemState{}, ErrEngineBusy
	}
	select {
	case <-ctx.Done():
		return sim.SystemState{}, ctx.Err()
	case snap := <-reply:
		return snap, nil
	}
}

// Execute applies one state-affecting command on behalf of a REST call and
// returns the resulting snapshot. RunInference is not accepted here; the
// REST inference path calls RunInference instead.
func (e *Engine) Execute(ctx context.Context, cmd Command) (sim.SystemState, error) {
	if cmd.Type == CmdRunInference {
		return sim.SystemState{}, errors.New("run_inference is not a state command")
	}
	reply := make(chan sim.SystemState, 1)
	if !e.submit(commandOp{cmd: cmd, reply: reply}) {
		return sim.SystemState{}, ErrEngineBusy
	}
	select {
	case <-ctx.Done():
		return sim.SystemState{}, ctx.Err()
	case snap := <-reply:
		return snap, nil
	}
}

// RunInference executes the pipeline for a REST caller. On success the
// detection count is folded back into the document through the engine loop.
func (e *Engine) RunInference(ctx context.Context, payload []byte) (*infer.Result, error) {
	res, err := e.pipeline.Run(ctx, payload, e.inferOpts)
	if err != nil {
		return nil, err
	}
	e.submit(detectionsOp{count: len(res.Detections)})
	return res, nil
}

// InferenceTimeout exposes the per-run deadline for REST handlers.
func (e *Engine) InferenceTimeout() time.Duration {
	return e.inferOpts.Timeout
}

// broadcastState pushes the current document to every session, stamps it
// with the global sequence number, and records it in the trace.
func (e *Engine) broadcastState(snap sim.SystemState) {
	seq := e.store.Seq()
	if err := e.trace.Record(seq, snap); err != nil {
		logrus.Errorf("trace record: %v", err)
	}
	e.hub.Broadcast(StatusEvent(seq, snap))
}

// === ops ===

type tickOp struct{}

func (tickOp) execute(e *Engine) {
	snap := e.store.Apply(sim.Tick{}, e.rng.ForSubsystem(sim.SubsystemTelemetry))
	warnThresholds(snap, e.store.Config().Alerts)
	e.broadcastState(snap)
}

type snapshotOp struct {
	reply chan sim.SystemState
}

func (o snapshotOp) execute(e *Engine) {
	o.reply <- e.store.Snapshot()
}

type detectionsOp struct {
	count int
}

func (o detectionsOp) execute(e *Engine) {
	e.store.Apply(sim.SetDetectionCount{Count: o.count}, e.rng.ForSubsystem(sim.SubsystemTelemetry))
}

// commandOp is one client command. sess is nil for REST-originated
// commands; reply is nil for WebSocket-originated ones.
type commandOp struct {
	cmd   Command
	sess  *Session
	reply chan sim.SystemState
}

func (o commandOp) execute(e *Engine) {
	rng := e.rng.ForSubsystem(sim.SubsystemTelemetry)

	var snap sim.SystemState
	switch o.cmd.Type {
	case CmdStartInference:
		snap = e.store.Apply(sim.SetRunning{Running: true}, rng)
	case CmdStopInference:
		snap = e.store.Apply(sim.SetRunning{Running: false}, rng)
	case CmdAdjustFrequency:
		snap = e.store.Apply(sim.SetFrequencyMode{Mode: sim.FrequencyMode(o.cmd.Mode)}, rng)
	case CmdDefragmentMem:
		snap = e.store.Apply(sim.Defragment{}, rng)
	case CmdRunInference:
		e.startInference(o.cmd, o.sess)
		return
	default:
		// ParseCommand rejects unknown tags before they get here.
		logrus.Errorf("unknown command reached engine: %q", o.cmd.Type)
		return
	}

	e.broadcastState(snap)
	if o.reply != nil {
		o.reply <- snap
	}
}

// startInference dispatches the pipeline asynchronously so a slow run never
// delays the next tick. The result re-enters the loop as an op; only the
// loop goroutine ever mutates the Store.
func (e *Engine) startInference(cmd Command, sess *Session) {
	payload, err := DecodeImageData(cmd.ImageData)
	if err != nil {
		logrus.Warnf("session %s: %v", sess.ID, err)
		e.hub.Unicast(sess.ID, ErrorEvent("invalid image payload"))
		return
	}

	go func() {
		res, err := e.pipeline.Run(sess.Context(), payload, e.inferOpts)
		if err != nil {
			if sess.Context().Err() != nil {
				// Session is gone; a cancelled run emits nothing.
				return
			}
			logrus.Warnf("session %s: inference failed: %v", sess.ID, err)
			e.hub.Unicast(sess.ID, ErrorEvent(err.Error()))
			return
		}
		e.submit(resultOp{sess: sess, res: res})
	}()
}

// resultOp folds a successful inference back into the document and
// unicasts the result to the requesting session only.
type resultOp struct {
	sess *Session
	res  *infer.Result
}

func (o resultOp) execute(e *Engine) {
	e.store.Apply(sim.SetDetectionCount{Count: len(o.res.Detections)}, e.rng.ForSubsystem(sim.SubsystemTelemetry))
	e.hub.Unicast(o.sess.ID, ResultEvent(o.res))
}

// warnThresholds logs when a tick pushed the document past an alert level.
func warnThresholds(snap sim.SystemState, t sim.AlertThresholds) {
	for id, core := range snap.CPU.Cores {
		if core.TemperatureC > t.TemperatureC {
			logrus.Warnf("core %s temperature %.1fC exceeds threshold %.1fC", id, core.TemperatureC, t.TemperatureC)
		}
	}
	if snap.Memory.PressurePct > t.PressurePct {
		logrus.Warnf("memory pressure %.1f%% exceeds threshold %.1f%%", snap.Memory.PressurePct, t.PressurePct)
	}
}

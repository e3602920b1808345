// Package runtime wires the object tree, hub, query manager and resetter
// pumps into one process-wide instance, plus the async event-dispatcher
// pool (spec §5, "Embedding surface"). This is the application-facing
// entry point: apps create one Runtime and drive it through this API
// rather than poking at the core packages directly.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/spiderwiz/fabric/cmn"
	"github.com/spiderwiz/fabric/cmn/cos"
	"github.com/spiderwiz/fabric/cmn/nlog"
	"github.com/spiderwiz/fabric/core/delta"
	"github.com/spiderwiz/fabric/core/hub"
	"github.com/spiderwiz/fabric/core/object"
	"github.com/spiderwiz/fabric/core/query"
	"github.com/spiderwiz/fabric/core/reset"
	"github.com/spiderwiz/fabric/core/seq"
	"github.com/spiderwiz/fabric/fabricerr"
)

// Event is one unit of work handed to the async dispatcher pool (spec §5:
// "one asynchronous event-dispatcher pool draining a global bounded queue
// of dispatchable events").
type Event func()

// Runtime is the Main instance: the object tree, the registry, the hub,
// the query manager, and the per-code resetters, all bound to one node
// identity and one async dispatcher pool.
type Runtime struct {
	Config   *cmn.Config
	Registry *object.Registry
	Tree     *object.Tree
	Hub      *hub.Hub
	Queries  *query.Manager

	mu       sync.Mutex
	resetters map[string]*reset.Resetter
	bindings  *bindings

	// seqOut/deltaOut compress this node's own locally-committed stream
	// before Hub.Publish fans the already-encoded line out unchanged to
	// every consumer (spec §4.5: "the hub never re-serializes"), so the
	// outbound sequencer and delta tables are keyed by code alone rather
	// than per recipient channel.
	seqOut *seq.Sequencer
	// seqIn/deltaIn key by (source channel, code) instead, since each
	// inbound channel is its own independent compression stream (spec
	// §4.2, §4.3).
	seqIn *seq.Sequencer

	deltaMu  sync.Mutex
	deltaOut map[string]*delta.Table // code -> table
	deltaIn  map[string]*delta.Table // "channel|code" -> table

	// resetRequester, if set, is asked to put a ^Reset line on the wire for
	// (channel, code) when the inbound sequencer observes an out-of-sequence
	// frame (spec §4.3/§4.4). The transport layer installs this, since only
	// it knows how to address a line back to the originating channel.
	resetRequester func(channel, code string)
	queryHandler   QueryHandler

	events   chan Event
	eg       *errgroup.Group
	ctx      context.Context
	cancel   context.CancelFunc
}

const defaultEventQueueDepth = 4096

// New builds a Runtime for cfg, ready to Start. cfg.UUID is this node's own
// UUID (used by the hub's anti-boomerang check).
func New(cfg *cmn.Config, registry *object.Registry, sender hub.Sender) *Runtime {
	ctx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(ctx)
	r := &Runtime{
		Config:    cfg,
		Registry:  registry,
		Tree:      object.NewTree(registry, cfg.Tunables.PassThrough),
		Hub:       hub.New(cfg.UUID, sender),
		Queries:   query.NewManager(),
		resetters: map[string]*reset.Resetter{},
		bindings:  newBindings(),
		seqOut:    seq.New(nil),
		deltaOut:  map[string]*delta.Table{},
		deltaIn:   map[string]*delta.Table{},
		events:    make(chan Event, defaultEventQueueDepth),
		eg:        eg,
		ctx:       egCtx,
		cancel:    cancel,
	}
	r.seqIn = seq.New(r.requestReset)
	r.Hub.SetQueryOriginResolver(r.queryOrigin)
	if cfg.Tunables.BackupFolder != "" {
		r.Hub.SetPipeDir(cfg.Tunables.BackupFolder)
	}
	r.Tree.SetSink(r)
	return r
}

// SetResetRequester installs the callback that puts a ^Reset line on the
// wire when the inbound sequencer detects an out-of-sequence frame. The
// transport layer calls this once, at startup, since only it can address a
// reset request back to the channel it arrived on (spec §4.3/§4.4).
func (r *Runtime) SetResetRequester(f func(channel, code string)) { r.resetRequester = f }

func (r *Runtime) requestReset(channel, code string) {
	nlog.Warningf("runtime: %s/%s out of sequence, requesting reset", channel, code)
	r.Dispatch(func() {
		if r.resetRequester != nil {
			r.resetRequester(channel, code)
		}
	})
}

func (r *Runtime) queryOrigin(queryID uint16) (originUUID string, isMine bool) {
	q, ok := r.Queries.Lookup(queryID)
	if !ok {
		return "", false
	}
	return q.Origin, q.Origin == r.Config.UUID
}

// Dispatch enqueues an event on the async dispatcher pool (spec's
// onAsyncEvent path). It blocks if the queue is saturated, matching
// lossless-mode backpressure (spec §5 "Suspension points").
func (r *Runtime) Dispatch(e Event) {
	select {
	case r.events <- e:
	case <-r.ctx.Done():
	}
}

// Resetter returns (creating if necessary) the resetter for code, firing
// that code's ResetHook exactly once, at creation (spec §6).
func (r *Runtime) Resetter(code string, mode reset.Mode, broadcast func(string)) *reset.Resetter {
	r.mu.Lock()
	if rs, ok := r.resetters[code]; ok {
		r.mu.Unlock()
		return rs
	}
	rs := reset.New(code, mode, broadcast, nil)
	r.resetters[code] = rs
	r.mu.Unlock()

	r.eg.Go(func() error { rs.Run(); return nil })
	if b, ok := r.bindings.get(object.Code(code)); ok && b.resetHook != nil {
		b.resetHook(rs)
	}
	return rs
}

const dispatcherPoolSize = 8

// Start launches the dispatcher pool. It does not block; call Stop to
// shut down.
func (r *Runtime) Start() {
	for i := 0; i < dispatcherPoolSize; i++ {
		r.eg.Go(r.runDispatcher)
	}
}

func (r *Runtime) runDispatcher() error {
	for {
		select {
		case e, ok := <-r.events:
			if !ok {
				return nil
			}
			r.safeRun(e)
		case <-r.ctx.Done():
			return nil
		}
	}
}

func (r *Runtime) safeRun(e Event) {
	defer func() {
		if p := recover(); p != nil {
			fabricerr.Report(fabricerr.FatalLocal, "panic in dispatched event", cos.NewErrNotFound("event"), false)
			nlog.Errorf("runtime: recovered panic in dispatched event: %v", p)
		}
	}()
	e()
}

// Stop signals every worker to exit, letting the dispatcher pool drain
// whatever is already queued before they return (spec §5: "shutdown
// flushes... the event queue synchronously").
func (r *Runtime) Stop() error {
	r.Hub.StopLossless()
	r.mu.Lock()
	for _, rs := range r.resetters {
		rs.Stop()
	}
	r.mu.Unlock()
	close(r.events)
	err := r.eg.Wait()
	r.cancel()
	return err
}

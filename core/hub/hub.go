// Package hub implements mesh routing: fan-out, anti-boomerang and
// monotonic per-origin filtering across channels (spec §4.5).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package hub

import (
	"path/filepath"
	"sync"

	"github.com/spiderwiz/fabric/cmn/nlog"
	"github.com/spiderwiz/fabric/core/pipe"
	"github.com/spiderwiz/fabric/core/wire"
)

// RemoteNode is the hub's record of one peer reachable over one or more
// channels: login identity, the object-codes it consumes, and the
// monotonic per-code counters used for the strictly-newer check.
type RemoteNode struct {
	UUID          string
	Name          string
	Version       string
	CoreVersion   string
	UserLabel     string
	RemoteAddress string
	AppParams     string
	Consumed      map[string]bool // code -> consumed
	Lossless      map[string]bool // code -> lossless for this node
	DeployTime    int64
	Channels      map[string]bool // channel names this node is currently reachable over

	mu           sync.Mutex
	lastObjSeq   map[string]uint64 // code -> greatest objSeq seen from this origin
	pendingQuery map[string]bool   // open query ids awaiting a reply from this node
}

func NewRemoteNode(uuid string) *RemoteNode {
	return &RemoteNode{
		UUID:         uuid,
		Consumed:     map[string]bool{},
		Lossless:     map[string]bool{},
		Channels:     map[string]bool{},
		lastObjSeq:   map[string]uint64{},
		pendingQuery: map[string]bool{},
	}
}

// observe reports whether seq is strictly newer than the last seen objSeq
// for code, and records it if so (spec §4.5 step 2, the monotonic check).
func (n *RemoteNode) observe(code string, seq uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if seq <= n.lastObjSeq[code] {
		return false
	}
	n.lastObjSeq[code] = seq
	return true
}

// maybeRedeploy clears this node's per-code counters and pending-query map
// when it reports a newer deploy-time (spec §4.5 step 3).
func (n *RemoteNode) maybeRedeploy(deployTime int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if deployTime <= n.DeployTime {
		return
	}
	n.DeployTime = deployTime
	n.lastObjSeq = map[string]uint64{}
	n.pendingQuery = map[string]bool{}
}

// FilterFunc is the producer-supplied per-recipient fan-out predicate
// (spec §4.5 step 5: filterDestination(remoteUUID, name, userLabel,
// remoteAddress, appParams) -> bool).
type FilterFunc func(remoteUUID, name, userLabel, remoteAddress, appParams string) bool

// Sender abstracts "deliver this frame over the channel(s) reaching uuid";
// the hub never imports the channel package, only this narrow interface.
type Sender interface {
	SendTo(uuid string, line string) error
	SendLossless(uuid, code string, line string) error
}

// Hub is the mesh router: the map uuid -> RemoteNode plus the dispatch and
// forwarding decisions driven from it.
type Hub struct {
	self string // own node UUID, for anti-boomerang

	mu    sync.RWMutex
	nodes map[string]*RemoteNode

	sender      Sender
	localCodes  map[string]bool // object-codes this process itself consumes
	dispatch    func(line string)
	filter      FilterFunc
	queryOrigin func(queryID uint16) (originUUID string, isMine bool)

	pipeDir string // root directory for per-(code,uuid) lossless pipes; "" disables persistence
	pipesMu sync.Mutex
	pipes   map[string]*lossless // code|uuid -> pipe + its drain goroutine
}

// lossless bundles one (code, consumerUUID) durable pipe with the
// auto-getter goroutine draining it into the sender (spec §4.6).
type lossless struct {
	pipe *pipe.Pipe
	get  *pipe.AutoGetter
}

func New(self string, sender Sender) *Hub {
	return &Hub{
		self:       self,
		nodes:      map[string]*RemoteNode{},
		sender:     sender,
		localCodes: map[string]bool{},
		pipes:      map[string]*lossless{},
	}
}

// SetPipeDir roots every lossless (code, consumerUUID) pipe this hub opens
// under dir. Must be called, if at all, before the first lossless forward.
func (h *Hub) SetPipeDir(dir string) { h.pipeDir = dir }

func (h *Hub) SetFilter(f FilterFunc)                                  { h.filter = f }
func (h *Hub) SetLocalDispatch(codes []string, dispatch func(string))  {
	h.mu.Lock()
	for _, c := range codes {
		h.localCodes[c] = true
	}
	h.mu.Unlock()
	h.dispatch = dispatch
}
func (h *Hub) SetQueryOriginResolver(f func(queryID uint16) (string, bool)) { h.queryOrigin = f }

func (h *Hub) RegisterNode(n *RemoteNode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes[n.UUID] = n
}

func (h *Hub) Node(uuid string) (*RemoteNode, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n, ok := h.nodes[uuid]
	return n, ok
}

// Route implements spec §4.5's inbound frame pipeline: anti-boomerang,
// monotonic check, redeploy-triggered reset, local dispatch, and filtered
// fan-out forwarding. line is the already-encoded wire text for the
// frame, reused verbatim when forwarding (the hub never re-serializes).
func (h *Hub) Route(f *wire.Frame, line string, deployTime int64, sourceChannel string) {
	if f.Origin == h.self {
		return // anti-boomerang: spec §4.5 step 1, testable property #7
	}

	h.mu.RLock()
	node, ok := h.nodes[f.Origin]
	h.mu.RUnlock()
	if !ok {
		node = NewRemoteNode(f.Origin)
		h.RegisterNode(node)
	}
	node.maybeRedeploy(deployTime)
	if !node.observe(f.Code, f.ObjSeq) {
		return // not strictly newer: drop (spec §4.5 step 2)
	}

	if h.isQueryReplyToSelf(f) {
		h.dispatchLocal(f, line)
		return // a reply to my own query never forwards (spec §4.5 step 5)
	}

	h.dispatchLocal(f, line)
	h.forward(f, line, sourceChannel, node)
}

func (h *Hub) isQueryReplyToSelf(f *wire.Frame) bool {
	if h.queryOrigin == nil || f.Type != wire.FrameQuery {
		return false
	}
	origin, isMine := h.queryOrigin(uint16(f.ObjSeq))
	return isMine && origin == h.self
}

func (h *Hub) dispatchLocal(f *wire.Frame, line string) {
	h.mu.RLock()
	consumes := h.localCodes[f.Code]
	dispatch := h.dispatch
	h.mu.RUnlock()
	if consumes && dispatch != nil {
		dispatch(line)
	}
}

// forward fans the frame out to every known node other than its origin
// that consumes its code, applying the producer's filter and routing
// lossless recipients through the lossless pipe (spec §4.5 steps 5-7).
func (h *Hub) forward(f *wire.Frame, line string, sourceChannel string, origin *RemoteNode) {
	h.mu.RLock()
	recipients := make([]*RemoteNode, 0, len(h.nodes))
	for _, n := range h.nodes {
		if n.UUID == f.Origin {
			continue
		}
		if !n.Consumed[f.Code] {
			continue
		}
		recipients = append(recipients, n)
	}
	h.mu.RUnlock()

	for _, n := range recipients {
		if h.filter != nil && !h.filter(n.UUID, n.Name, n.UserLabel, n.RemoteAddress, n.AppParams) {
			continue
		}
		if h.sender == nil {
			continue
		}
		if n.Lossless[f.Code] {
			h.putLossless(f.Code, n.UUID, line)
			continue
		}
		if err := h.sender.SendTo(n.UUID, line); err != nil {
			nlog.Warningf("hub: forward to %s failed: %v", n.UUID, err)
		}
	}
}

// Publish fans a locally-committed frame out to every node that consumes
// its code (spec §4.5 step 5's forwarding, applied to a frame this node
// itself produced rather than one received from a peer — so none of
// Route's anti-boomerang, monotonic or redeploy checks apply: a fresh
// local commit is always newer than anything a recipient has seen). A
// non-empty destinations narrows the fan-out to those UUIDs (spec's
// Commit(obj, destinations...)); an offline destination is silently
// skipped (spec §4.5 step 6).
func (h *Hub) Publish(f *wire.Frame, line string, destinations ...string) {
	want := map[string]bool{}
	for _, d := range destinations {
		want[d] = true
	}
	h.mu.RLock()
	recipients := make([]*RemoteNode, 0, len(h.nodes))
	for _, n := range h.nodes {
		if !n.Consumed[f.Code] {
			continue
		}
		if len(want) > 0 && !want[n.UUID] {
			continue
		}
		recipients = append(recipients, n)
	}
	h.mu.RUnlock()

	for _, n := range recipients {
		if h.filter != nil && !h.filter(n.UUID, n.Name, n.UserLabel, n.RemoteAddress, n.AppParams) {
			continue
		}
		if h.sender == nil {
			continue
		}
		if n.Lossless[f.Code] {
			h.putLossless(f.Code, n.UUID, line)
			continue
		}
		if err := h.sender.SendTo(n.UUID, line); err != nil {
			nlog.Warningf("hub: publish to %s failed: %v", n.UUID, err)
		}
	}
}

// putLossless appends line to the durable pipe for (code, uuid), opening it
// (and starting its drain goroutine) on first use (spec §4.6: "per
// (producedObjectCode, consumerUUID) the producer owns a durable pipe").
func (h *Hub) putLossless(code, uuid, line string) {
	l := h.losslessFor(code, uuid)
	if l == nil {
		if err := h.sender.SendLossless(uuid, code, line); err != nil {
			nlog.Warningf("hub: lossless send to %s/%s failed: %v", uuid, code, err)
		}
		return
	}
	if _, err := l.pipe.Put(line); err != nil {
		nlog.Warningf("hub: pipe put for %s/%s failed: %v", uuid, code, err)
		return
	}
	l.get.Wake()
}

func (h *Hub) losslessFor(code, uuid string) *lossless {
	if h.pipeDir == "" {
		return nil
	}
	key := code + "|" + uuid
	h.pipesMu.Lock()
	defer h.pipesMu.Unlock()
	if l, ok := h.pipes[key]; ok {
		return l
	}
	p, err := pipe.Open(filepath.Join(h.pipeDir, code, uuid))
	if err != nil {
		nlog.Warningf("hub: open lossless pipe %s/%s: %v", code, uuid, err)
		return nil
	}
	l := &lossless{pipe: p}
	l.get = pipe.NewAutoGetter(p, func(line string) {
		if err := h.sender.SendLossless(uuid, code, line); err != nil {
			nlog.Warningf("hub: lossless deliver to %s/%s failed: %v", uuid, code, err)
		}
	})
	go l.get.Run()
	h.pipes[key] = l
	return l
}

// StopLossless shuts down every open lossless pipe's drain goroutine,
// flushing its in-memory block first (spec §5: shutdown flushes
// lossless-pipe writers synchronously).
func (h *Hub) StopLossless() {
	h.pipesMu.Lock()
	defer h.pipesMu.Unlock()
	for _, l := range h.pipes {
		l.get.Stop()
		if err := l.pipe.Flush(); err != nil {
			nlog.Warningf("hub: flush lossless pipe: %v", err)
		}
	}
}

// Disconnect handles a channel drop (spec §4.5 "on channel disconnect"):
// for each dropped UUID unreachable via any other channel, mark it gone
// and return the set of object-codes no longer needed by any remaining
// node, so the local producer can stop producing them.
func (h *Hub) Disconnect(channel string, droppedUUIDs, _ []string) (goneUUIDs []string, codesNoLongerNeeded []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	droppedCodes := map[string]bool{}
	for _, uuid := range droppedUUIDs {
		n, ok := h.nodes[uuid]
		if !ok {
			continue
		}
		delete(n.Channels, channel)
		if len(n.Channels) > 0 {
			continue // still reachable via another channel
		}
		goneUUIDs = append(goneUUIDs, uuid)
		for code, want := range n.Consumed {
			if want {
				droppedCodes[code] = true
			}
		}
		delete(h.nodes, uuid)
	}

	// A code is still needed if any node still registered in the hub
	// (after the deletions above) consumes it.
	stillNeeded := map[string]bool{}
	for _, n := range h.nodes {
		for code, want := range n.Consumed {
			if want {
				stillNeeded[code] = true
			}
		}
	}

	for code := range droppedCodes {
		if !stillNeeded[code] {
			codesNoLongerNeeded = append(codesNoLongerNeeded, code)
		}
	}
	return goneUUIDs, codesNoLongerNeeded
}

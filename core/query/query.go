// Package query implements the query layer's state machine, streaming
// moderation, expiry and synchronous wait (spec §4.8).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package query

import (
	"sync"
	"time"
)

// State is one of the query life-cycle states (spec §4.8's state
// machine: QUERY -> REPLIED | NEXT -> NEXT* -> END, any -> ABORTED).
type State int

const (
	StateQuery State = iota
	StateReplied
	StateNext
	StateEnd
	StateAborted
)

func (s State) terminal() bool { return s == StateReplied || s == StateEnd || s == StateAborted }

// Query is one in-flight query instance.
type Query struct {
	ID       uint16
	Origin   string
	Type     string // the query's declared type, carried as the wire frame's Code (spec's createQuery(type))
	Open     bool   // open queries stay active until expiry, may collect multiple replies
	expires  time.Duration
	onExpire func()

	mu           sync.Mutex
	state        State
	activatedAt  time.Time
	expireTimer  *time.Timer
	expiredFired bool
	repliedSince bool // whether a reply arrived since the last waitForReply
	waitCh       chan struct{}

	streamStart time.Time
	streamCount int
	streamRate  int // items/sec
}

func newQuery(id uint16, origin, typ string, open bool, expires time.Duration, onExpire func()) *Query {
	return &Query{
		ID:         id,
		Origin:     origin,
		Type:       typ,
		Open:       open,
		expires:    expires,
		onExpire:   onExpire,
		state:      StateQuery,
		streamRate: DefaultReplyRate,
		waitCh:     make(chan struct{}, 1),
	}
}

const DefaultReplyRate = 100 // items/sec, spec §4.8 default

// activate records the activation timestamp and (re)schedules the expiry
// task, canceling any previous one (spec: "any reply that advances the
// state calls activate() again to restart the timer").
func (q *Query) activate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.activatedAt = time.Now()
	if q.expireTimer != nil {
		q.expireTimer.Stop()
	}
	q.expireTimer = time.AfterFunc(q.expires, q.fireExpiry)
}

func (q *Query) fireExpiry() {
	q.mu.Lock()
	if q.expiredFired || q.state.terminal() {
		q.mu.Unlock()
		return
	}
	q.expiredFired = true
	q.mu.Unlock()
	if q.onExpire != nil {
		q.onExpire()
	}
	q.wake()
}

func (q *Query) wake() {
	select {
	case q.waitCh <- struct{}{}:
	default:
	}
}

// WaitForReply blocks until a reply event, expiry, or Abort releases it,
// returning true iff any reply arrived since the previous call (spec
// §4.8's synchronous wait; testable property #9).
func (q *Query) WaitForReply() bool {
	<-q.waitCh
	q.mu.Lock()
	defer q.mu.Unlock()
	replied := q.repliedSince
	q.repliedSince = false
	return replied
}

// OnInquire transitions QUERY -> REPLIED: the one-shot, non-streaming
// reply path.
func (q *Query) OnInquire() {
	q.mu.Lock()
	q.state = StateReplied
	q.repliedSince = true
	q.mu.Unlock()
	q.activate()
	q.wake()
}

// ReplyNext transitions toward NEXT, throttled to streamRate items/sec
// relative to the first ReplyNext of the current stream (spec's streaming
// moderation). Callers loop: each call may block briefly before
// returning, then the caller sends one item.
func (q *Query) ReplyNext() {
	q.mu.Lock()
	if q.state == StateQuery {
		q.streamStart = time.Now()
		q.streamCount = 0
	}
	q.state = StateNext
	q.streamCount++
	count, start, rate := q.streamCount, q.streamStart, q.streamRate
	q.mu.Unlock()

	if rate > 0 {
		due := start.Add(time.Duration(count) * time.Second / time.Duration(rate))
		if d := time.Until(due); d > 0 {
			time.Sleep(d)
		}
	}

	q.mu.Lock()
	q.repliedSince = true
	q.mu.Unlock()
	q.activate()
	q.wake()
}

func (q *Query) SetReplyRate(perSec int) {
	q.mu.Lock()
	q.streamRate = perSec
	q.mu.Unlock()
}

// ReplyEnd transitions NEXT -> END, terminal.
func (q *Query) ReplyEnd() {
	q.mu.Lock()
	q.state = StateEnd
	q.repliedSince = true
	q.mu.Unlock()
	q.cancelTimer()
	q.wake()
}

// Abort transitions any state -> ABORTED, terminal.
func (q *Query) Abort() {
	q.mu.Lock()
	q.state = StateAborted
	q.mu.Unlock()
	q.cancelTimer()
	q.wake()
}

func (q *Query) cancelTimer() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.expireTimer != nil {
		q.expireTimer.Stop()
	}
}

func (q *Query) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Manager owns the pending-query map and issues query ids (spec §4.8,
// §5's "global counters... guarded by their own locks").
type Manager struct {
	mu      sync.Mutex
	nextID  uint16
	pending map[uint16]*Query
}

func NewManager() *Manager {
	return &Manager{pending: map[uint16]*Query{}}
}

// Create allocates a fresh query id (modulo-2^16, per spec §4.8's
// createQuery(type)) and registers a new pending Query, activating its
// expiry timer immediately.
func (m *Manager) Create(origin, typ string, open bool, expires time.Duration) *Query {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.mu.Unlock()
	return m.register(id, origin, typ, open, expires)
}

// Accept registers a Query under an id assigned by the remote origin
// instead of by this Manager — the receiving side of an inbound query
// request, which must reply tagged with the requester's own id rather than
// minting a new one (spec §4.8, §4.5 step 4: "propagate queries to
// consumers synchronously before dispatching").
func (m *Manager) Accept(id uint16, origin, typ string, open bool, expires time.Duration) *Query {
	return m.register(id, origin, typ, open, expires)
}

func (m *Manager) register(id uint16, origin, typ string, open bool, expires time.Duration) *Query {
	q := newQuery(id, origin, typ, open, expires, func() { m.onExpire(id) })
	m.mu.Lock()
	m.pending[id] = q
	m.mu.Unlock()
	q.activate()
	return q
}

func (m *Manager) onExpire(id uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
}

func (m *Manager) Lookup(id uint16) (*Query, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.pending[id]
	return q, ok
}

// Complete removes a query from the pending map once it reaches a
// closed-query terminal state (REPLIED or END for a non-open query).
func (m *Manager) Complete(id uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
}

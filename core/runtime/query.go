/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"fmt"
	"time"

	"github.com/spiderwiz/fabric/core/query"
	"github.com/spiderwiz/fabric/core/wire"
)

// QueryHandler answers an inbound query request addressed to this node
// (spec §4.8: the consumer side of createQuery/post). It should drive q
// through ReplyNext/ReplyEnd/Abort as it produces results; body is the
// requester's serialized query payload.
type QueryHandler func(q *query.Query, body string)

// CreateQuery allocates a local query of the given type (spec's
// createQuery(type)), the producing side of the query life cycle.
func (r *Runtime) CreateQuery(typ string, open bool, expires time.Duration) *query.Query {
	return r.Queries.Create(r.Config.UUID, typ, open, expires)
}

// SetQueryHandler installs the callback invoked for every inbound query
// request this node receives (one handler for every query type; dispatch
// on q.Type inside it, matching the Hooks pattern used for object codes).
func (r *Runtime) SetQueryHandler(h QueryHandler) { r.queryHandler = h }

// Post sends q as a fresh query request to destinations (spec's
// post(expires, [destinations]); expires was already supplied to
// CreateQuery, so Post here only addresses and transmits it).
func (r *Runtime) Post(q *query.Query, body string, destinations ...string) error {
	f := &wire.Frame{
		Type:   wire.FrameQuery,
		Code:   q.Type,
		Origin: r.Config.UUID,
		ObjSeq: uint64(q.ID),
		Body:   wire.Escape(body),
	}
	line, err := f.Encode()
	if err != nil {
		return fmt.Errorf("runtime: encode query %d: %w", q.ID, err)
	}
	r.Hub.Publish(f, line, destinations...)
	return nil
}

// ReplyQuery sends one reply frame for q back to its origin: a one-shot
// reply when next is false, a streamed item when true (spec's
// replyNow()/replyNext(), §4.8).
func (r *Runtime) ReplyQuery(q *query.Query, body string, next bool) error {
	if next {
		q.ReplyNext()
	} else {
		q.OnInquire()
	}
	return r.sendQueryFrame(q, body)
}

// ReplyEndQuery closes a streaming query with the terminal END state.
func (r *Runtime) ReplyEndQuery(q *query.Query) error {
	q.ReplyEnd()
	return r.sendQueryFrame(q, "")
}

func (r *Runtime) sendQueryFrame(q *query.Query, body string) error {
	f := &wire.Frame{
		Type:   wire.FrameQuery,
		Code:   q.Type,
		Origin: r.Config.UUID,
		ObjSeq: uint64(q.ID),
		Body:   wire.Escape(body),
	}
	line, err := f.Encode()
	if err != nil {
		return fmt.Errorf("runtime: encode query reply %d: %w", q.ID, err)
	}
	r.Hub.Publish(f, line, q.Origin)
	return nil
}

// applyQueryFrame is ApplyLine's query-frame branch: it either
// advances a query this node itself originated (a reply arriving) or hands
// a fresh inbound request to the registered QueryHandler (spec §4.5 step 4
// "propagate queries to consumers... before dispatching").
func (r *Runtime) applyQueryFrame(f *wire.Frame) {
	id := uint16(f.ObjSeq)
	body := wire.Unescape(f.Body)

	if q, ok := r.Queries.Lookup(id); ok {
		if q.Origin == r.Config.UUID {
			q.ReplyNext() // a reply to our own outstanding query; wakes any WaitForReply
			return
		}
		if r.queryHandler != nil {
			r.Dispatch(func() { r.queryHandler(q, body) })
		}
		return
	}
	if r.queryHandler == nil {
		return
	}
	q := r.Queries.Accept(id, f.Origin, f.Code, false, defaultQueryExpiry)
	r.Dispatch(func() { r.queryHandler(q, body) })
}

const defaultQueryExpiry = 30 * time.Second

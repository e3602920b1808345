// Package seq implements the per-(channel, ObjectCode, direction)
// sequence counter and gap-detection state machine (spec §4.3).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package seq

import (
	"sync"
	"time"

	"github.com/spiderwiz/fabric/cmn"
)

const modulo = 1 << 16

// Outcome classifies a received sequence number against the expected
// next value (spec §4.3).
type Outcome int

const (
	InSequence    Outcome = iota // received == expected: accept, advance
	ResetMarker                  // received == 0: clear state, accept
	Duplicate                    // received < expected (mod): boomerang/duplicate, drop
	OutOfSequence                // received > expected (mod): drop, maybe request reset
)

// ResetRequester is invoked, rate-limited, when an out-of-sequence frame
// is observed, asking the caller to request a reset for (channel, code)
// over the wire (spec §4.3/§4.4 "^Reset").
type ResetRequester func(channel string, code string)

// key identifies one (channel, ObjectCode, direction) counter.
type key struct {
	channel   string
	code      string
	direction bool // true == inbound/receive, false == outbound/send
}

type counterState struct {
	expected    uint16
	lastRequest time.Time
}

// Sequencer owns every (channel, ObjectCode, direction) counter for a
// node, all guarded by one mutex. It holds no delta tables: those are
// separate delta.Table values with their own locks, so a counter and its
// keyframe table are not updated under a single lock.
type Sequencer struct {
	mu       sync.Mutex
	counters map[key]*counterState
	request  ResetRequester
	rateWin  time.Duration // rate-limit window for repeated reset requests per (channel, code)
}

func New(request ResetRequester) *Sequencer {
	return &Sequencer{
		counters: map[key]*counterState{},
		request:  request,
		rateWin:  cmn.Rom.ResetRequestWindow(),
	}
}

// Next returns the next outbound sequence number for (channel, code) and
// post-increments the counter, modulo 2^16.
func (s *Sequencer) Next(channel, code string) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{channel, code, false}
	c := s.counterFor(k)
	v := c.expected
	c.expected = uint16((uint32(c.expected) + 1) % modulo)
	return v
}

// ResetSend clears the outbound counter for (channel, code), as happens
// when the local sequencer itself needs to force a keyframe.
func (s *Sequencer) ResetSend(channel, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key{channel, code, false})
}

// Receive classifies an inbound frame's sequence number against the
// expected next value for (channel, code), advancing state and, for an
// out-of-sequence frame, invoking the rate-limited reset requester.
func (s *Sequencer) Receive(channel, code string, received uint16) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{channel, code, true}
	c := s.counterFor(k)

	switch {
	case received == 0:
		c.expected = 1
		c.lastRequest = time.Time{}
		return ResetMarker
	case received == c.expected:
		c.expected = uint16((uint32(c.expected) + 1) % modulo)
		return InSequence
	case modLess(received, c.expected):
		return Duplicate
	default:
		now := time.Now()
		if s.request != nil && now.Sub(c.lastRequest) >= s.rateWin {
			c.lastRequest = now
			s.request(channel, code)
		}
		return OutOfSequence
	}
}

func (s *Sequencer) counterFor(k key) *counterState {
	c, ok := s.counters[k]
	if !ok {
		c = &counterState{}
		s.counters[k] = c
	}
	return c
}

// modLess reports whether a precedes b on the modulo-2^16 ring, using the
// standard half-range convention: a is "less" than b if the forward
// distance from a to b is less than half the modulus.
func modLess(a, b uint16) bool {
	diff := uint16(b - a)
	return diff != 0 && diff < modulo/2
}

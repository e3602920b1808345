// Package reset implements the resetter: a bounded, rate-moderated
// recovery stream per ObjectCode (spec §4.7).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package reset

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/spiderwiz/fabric/cmn/nlog"
)

const (
	DefaultMaxCapacity = 200000
	DefaultRatePerMin  = 30000
)

// Mode selects overflow behavior when the queue is full.
type Mode int

const (
	Lossy    Mode = iota // excess items dropped
	Lossless             // producer blocks
)

type item struct {
	payload string
	isEnd   bool
}

// Resetter drains a bounded queue at a configurable rate, handing every
// item to the broadcast callback; it has no mode that routes items to one
// requesting channel only.
type Resetter struct {
	code string
	mode Mode

	mu       sync.Mutex
	queue    []item
	capacity int
	ratePerMin int
	sem      *semaphore.Weighted // credit-based pacing, teacher-style use of x/sync

	broadcast func(payload string)
	onDone    func()

	cond    *sync.Cond
	stopped bool
}

func New(code string, mode Mode, broadcast func(payload string), onDone func()) *Resetter {
	r := &Resetter{
		code:       code,
		mode:       mode,
		capacity:   DefaultMaxCapacity,
		ratePerMin: DefaultRatePerMin,
		broadcast:  broadcast,
		onDone:     onDone,
	}
	r.cond = sync.NewCond(&r.mu)
	r.sem = semaphore.NewWeighted(int64(r.ratePerMin))
	return r
}

func (r *Resetter) SetMaxCapacity(n int) {
	r.mu.Lock()
	r.capacity = n
	r.mu.Unlock()
}

func (r *Resetter) SetLossless(lossless bool) {
	r.mu.Lock()
	if lossless {
		r.mode = Lossless
	} else {
		r.mode = Lossy
	}
	r.mu.Unlock()
}

func (r *Resetter) SetResetRate(perMin int) {
	r.mu.Lock()
	r.ratePerMin = perMin
	r.sem = semaphore.NewWeighted(int64(perMin))
	r.mu.Unlock()
}

// ResetObject enqueues one item for the reset stream (spec's
// resetObject(obj), already serialized by the caller).
func (r *Resetter) ResetObject(payload string) (accepted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.queue) >= r.capacity {
		if r.mode == Lossy {
			nlog.Warningf("reset: queue for %s full, dropping item", r.code)
			return false
		}
		r.cond.Wait()
		if r.stopped {
			return false
		}
	}
	r.queue = append(r.queue, item{payload: payload})
	r.cond.Signal()
	return true
}

// EndOfData pushes the terminal sentinel (spec: "endOfData() pushes a
// terminal sentinel; upon drain completion, an onResetCompleted hook
// fires").
func (r *Resetter) EndOfData() {
	r.mu.Lock()
	r.queue = append(r.queue, item{isEnd: true})
	r.cond.Signal()
	r.mu.Unlock()
}

// Restart clears the queue and resets the rate moderator's accumulated
// credit (spec: "restarting the resetter clears the queue and the
// underlying moderator's accumulated-credit counter").
func (r *Resetter) Restart() {
	r.mu.Lock()
	r.queue = nil
	r.sem = semaphore.NewWeighted(int64(r.ratePerMin))
	r.mu.Unlock()
}

func (r *Resetter) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.cond.Broadcast()
}

// Run drains the queue, rate-moderated, until EndOfData's sentinel is
// reached or Stop is called. Intended to run in its own goroutine, one
// pump per active reset (spec §5's "one resetter pump per active reset").
func (r *Resetter) Run() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			r.mu.Lock()
			rate := r.ratePerMin
			r.sem = semaphore.NewWeighted(int64(rate))
			stopped := r.stopped
			r.mu.Unlock()
			if stopped {
				return
			}
		}
	}()

	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.stopped {
			r.cond.Wait()
		}
		if r.stopped && len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		next := r.queue[0]
		r.queue = r.queue[1:]
		r.cond.Signal() // wake any blocked lossless producer
		r.mu.Unlock()

		if next.isEnd {
			if r.onDone != nil {
				r.onDone()
			}
			continue
		}
		if err := r.sem.Acquire(context.Background(), 1); err != nil {
			continue
		}
		if r.broadcast != nil {
			r.broadcast(next.payload)
		}
	}
}

func (r *Resetter) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

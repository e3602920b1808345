/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package pipe

import "sync"

// AutoGetter polls a Pipe and delivers each item to a callback, blocking
// (via a condition variable) whenever the pipe is empty, until Stop is
// called (spec §4.6: "an optional auto-getter thread polls get() and
// delivers via a user callback; it blocks when empty").
type AutoGetter struct {
	pipe     *Pipe
	deliver  func(line string)
	cond     *sync.Cond
	stopped  bool
	wakeFlag bool
}

func NewAutoGetter(p *Pipe, deliver func(line string)) *AutoGetter {
	return &AutoGetter{pipe: p, deliver: deliver, cond: sync.NewCond(&sync.Mutex{})}
}

// Wake signals the getter that new data may be available, e.g. called by
// the producer right after Put.
func (g *AutoGetter) Wake() {
	g.cond.L.Lock()
	g.wakeFlag = true
	g.cond.L.Unlock()
	g.cond.Signal()
}

func (g *AutoGetter) Stop() {
	g.cond.L.Lock()
	g.stopped = true
	g.cond.L.Unlock()
	g.cond.Signal()
}

// Run drains the pipe until Stop is called. Intended to run in its own
// goroutine, one per lossless-pipe consumer.
func (g *AutoGetter) Run() {
	for {
		line, ok, err := g.pipe.Get()
		if err != nil {
			continue
		}
		if ok {
			g.deliver(line)
			continue
		}
		g.cond.L.Lock()
		for !g.wakeFlag && !g.stopped {
			g.cond.Wait()
		}
		stopped := g.stopped
		g.wakeFlag = false
		g.cond.L.Unlock()
		if stopped {
			return
		}
	}
}

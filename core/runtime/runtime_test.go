/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"sync"
	"testing"
	"time"

	"github.com/spiderwiz/fabric/cmn"
	"github.com/spiderwiz/fabric/core/object"
)

type nopSender struct{}

func (nopSender) SendTo(uuid, line string) error             { return nil }
func (nopSender) SendLossless(uuid, code, line string) error { return nil }

func TestDispatchRunsEventsOnThePool(t *testing.T) {
	cfg := cmn.NewNode("test-node")
	reg := object.NewRegistry()
	r := New(cfg, reg, nopSender{})
	r.Start()

	var mu sync.Mutex
	var ran int
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		r.Dispatch(func() {
			mu.Lock()
			ran++
			mu.Unlock()
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatched events did not all run in time")
	}

	mu.Lock()
	got := ran
	mu.Unlock()
	if got != 10 {
		t.Fatalf("expected 10 events run, got %d", got)
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestCommitInvokedViaTreeSink(t *testing.T) {
	cfg := cmn.NewNode("test-node")
	reg := object.NewRegistry()
	_ = reg.Register(&object.Schema{Code: "Sensor"})
	r := New(cfg, reg, nopSender{})
	r.Start()
	defer r.Stop()

	obj, ok := r.Tree.CreateTopLevelObject("Sensor", "s1")
	if !ok {
		t.Fatal("create failed")
	}
	r.Tree.Commit(obj, "dest-1")
	time.Sleep(20 * time.Millisecond) // commit dispatches asynchronously
}

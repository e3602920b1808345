/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package reset

import (
	"sync"
	"testing"
	"time"
)

func TestResetterDrainsAndFiresOnDone(t *testing.T) {
	var mu sync.Mutex
	var received []string
	var done bool

	r := New("Sensor", Lossless, func(payload string) {
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
	}, func() {
		mu.Lock()
		done = true
		mu.Unlock()
	})
	r.SetResetRate(1000000) // avoid the 1-per-minute ticker being the bottleneck in a test

	for i := 0; i < 5; i++ {
		if !r.ResetObject("item") {
			t.Fatal("expected item to be accepted")
		}
	}
	r.EndOfData()
	go r.Run()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n, d := len(received), done
		mu.Unlock()
		if n == 5 && d {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	r.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 5 {
		t.Fatalf("expected 5 broadcast items, got %d", len(received))
	}
	if !done {
		t.Fatal("expected onDone to fire after the end-of-data sentinel drained")
	}
}

func TestResetterLossyDropsWhenFull(t *testing.T) {
	r := New("Sensor", Lossy, func(string) {}, nil)
	r.SetMaxCapacity(2)
	if !r.ResetObject("a") || !r.ResetObject("b") {
		t.Fatal("expected first two items accepted")
	}
	if r.ResetObject("c") {
		t.Fatal("expected third item dropped when lossy queue is full")
	}
}

func TestRestartClearsQueue(t *testing.T) {
	r := New("Sensor", Lossy, func(string) {}, nil)
	r.ResetObject("a")
	r.ResetObject("b")
	if r.QueueLen() != 2 {
		t.Fatalf("expected queue length 2, got %d", r.QueueLen())
	}
	r.Restart()
	if r.QueueLen() != 0 {
		t.Fatalf("expected queue cleared after Restart, got %d", r.QueueLen())
	}
}

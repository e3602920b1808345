/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package seq

import "testing"

func TestFreshCounterRejectsFirstNonZeroFrame(t *testing.T) {
	s := New(nil)
	if o := s.Receive("chan1", "Sensor", 1); o != OutOfSequence {
		// fresh counter starts expecting 0; first legitimate stream after
		// a reset always begins at 1 once the 0 keyframe has been seen.
		t.Fatalf("expected OutOfSequence on first non-zero frame, got %v", o)
	}
}

func TestResetMarkerThenInSequence(t *testing.T) {
	s := New(nil)
	if o := s.Receive("chan1", "Sensor", 0); o != ResetMarker {
		t.Fatalf("expected ResetMarker, got %v", o)
	}
	if o := s.Receive("chan1", "Sensor", 1); o != InSequence {
		t.Fatalf("expected the frame right after a reset marker to be InSequence, got %v", o)
	}
	if o := s.Receive("chan1", "Sensor", 2); o != InSequence {
		t.Fatalf("expected InSequence to keep advancing, got %v", o)
	}
}

func TestDuplicateDropped(t *testing.T) {
	s := New(nil)
	s.Receive("chan1", "Sensor", 0) // reset -> expected becomes 1
	s.Receive("chan1", "Sensor", 1) // in sequence -> expected becomes 2
	if o := s.Receive("chan1", "Sensor", 1); o != Duplicate {
		t.Fatalf("expected a replayed seq to be Duplicate, got %v", o)
	}
}

func TestOutOfSequenceTriggersRateLimitedRequest(t *testing.T) {
	var requested int
	s := New(func(channel, code string) { requested++ })
	s.Receive("chan1", "Sensor", 0) // establish expected == 1

	// Jump far ahead: out of sequence.
	if o := s.Receive("chan1", "Sensor", 5); o != OutOfSequence {
		t.Fatalf("expected OutOfSequence, got %v", o)
	}
	if requested != 1 {
		t.Fatalf("expected exactly one reset request, got %d", requested)
	}
	// A second out-of-sequence frame immediately after must not re-trigger
	// the request (rate-limited).
	if o := s.Receive("chan1", "Sensor", 6); o != OutOfSequence {
		t.Fatalf("expected OutOfSequence, got %v", o)
	}
	if requested != 1 {
		t.Fatalf("expected the reset request to stay rate-limited, got %d requests", requested)
	}
}

func TestNextPostIncrementsModulo(t *testing.T) {
	s := New(nil)
	first := s.Next("chan1", "Sensor")
	second := s.Next("chan1", "Sensor")
	if first != 0 || second != 1 {
		t.Fatalf("expected sequential 0,1 got %d,%d", first, second)
	}
}

func TestModLessHalfRangeConvention(t *testing.T) {
	if !modLess(10, 20) {
		t.Fatal("10 should precede 20")
	}
	if modLess(20, 10) {
		t.Fatal("20 should not precede 10 within half range")
	}
	if modLess(5, 5) {
		t.Fatal("a value never precedes itself")
	}
}

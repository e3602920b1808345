/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package delta

import (
	"reflect"
	"sort"
	"strconv"
	"testing"
)

func TestNumericRoundTrip(t *testing.T) {
	cases := []struct{ prev, cur int64 }{
		{100, 101}, {100, 100}, {0, -5}, {1 << 40, 1<<40 + 3}, {-7, 1000000},
	}
	for _, c := range cases {
		literal := strconv.FormatInt(c.cur, 10)
		enc := EncodeNumeric(c.prev, c.cur, literal)
		got, _, err := DecodeNumeric(c.prev, enc)
		if err != nil {
			t.Fatalf("decode error for %+v: %v", c, err)
		}
		if enc == literal {
			got = c.cur // literal form, no delta decode needed
		}
		if got != c.cur {
			t.Fatalf("round trip failed for %+v: got %d via %q", c, got, enc)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := []struct{ prev, cur string }{
		{"hello world", "hello there world"},
		{"abcdefgh", "abcdxyzfgh"},
		{"", "newvalue!!"},
		{"same same same", "same same same"},
		{"short", "ab"}, // below minDeltaLen, literal path
		{"tail-shared-xyz", "other-shared-xyz"},
	}
	for _, c := range cases {
		enc := EncodeString(c.prev, c.cur)
		got, err := DecodeString(c.prev, enc)
		if err != nil {
			t.Fatalf("decode error for %+v via %q: %v", c, enc, err)
		}
		if got != c.cur {
			t.Fatalf("round trip failed for %+v: got %q via %q", c, got, enc)
		}
	}
}

func TestListRoundTrip(t *testing.T) {
	prev := []string{"alpha", "beta", "gamma"}
	cur := []string{"alpha!", "beta", "gamma", "delta"}
	ops := DeltaList(prev, cur)
	got, err := UndoList(prev, ops)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !reflect.DeepEqual(got, cur) {
		t.Fatalf("list round trip failed: got %v want %v", got, cur)
	}

	shrunk := []string{"alpha!"}
	ops = DeltaList(prev, shrunk)
	got, err = UndoList(prev, ops)
	if err != nil || !reflect.DeepEqual(got, shrunk) {
		t.Fatalf("shrinking list round trip failed: got %v err %v", got, err)
	}
}

func TestSetRoundTrip(t *testing.T) {
	prev := []string{"a", "b", "c"}
	cur := []string{"b", "c", "d"}
	ops := DeltaSet(prev, cur)
	got := UndoSet(prev, ops)
	sort.Strings(got)
	want := []string{"b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("set round trip failed: got %v want %v", got, want)
	}
}

func TestMapRoundTrip(t *testing.T) {
	prev := map[string]string{"x": "1", "y": "hello world"}
	cur := map[string]string{"x": "1", "y": "hello there world", "z": "new"}
	keys, vals := DeltaMap(prev, cur)
	got, err := UndoMap(prev, keys, vals)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !reflect.DeepEqual(got, cur) {
		t.Fatalf("map round trip failed: got %v want %v", got, cur)
	}

	removed := map[string]string{"x": "1"}
	keys, vals = DeltaMap(prev, removed)
	got, err = UndoMap(prev, keys, vals)
	if err != nil || !reflect.DeepEqual(got, removed) {
		t.Fatalf("map removal round trip failed: got %v err %v", got, err)
	}
}

func TestTableResetClearsBaselines(t *testing.T) {
	tbl := NewTable()
	isKF, out := tbl.CompressFields("k1", []string{"10", "hello world value"})
	if !isKF {
		t.Fatal("first sighting of a key-path must be a keyframe")
	}
	isKF, out = tbl.CompressFields("k1", []string{"11", "hello there world value"})
	if isKF {
		t.Fatal("second sighting must be a delta")
	}
	decIsKF, dec, err := tbl.DecompressFields("k1", out, 2)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	_ = decIsKF

	tbl.Reset()
	isKF, _ = tbl.CompressFields("k1", []string{"99", "anything"})
	if !isKF {
		t.Fatal("after Reset, the next frame for a known key-path must be a keyframe again")
	}
	_ = dec
}

func TestTableObjSeqRoundTrip(t *testing.T) {
	sender := NewTable()
	receiver := NewTable()

	enc := sender.CompressObjSeq("node-a", 1000, "1000")
	if enc != "1000" {
		t.Fatalf("first objSeq from a fresh origin must be literal (diff against 0), got %q", enc)
	}
	got, err := receiver.DecompressObjSeq("node-a", enc)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if got != 0 {
		t.Fatalf("literal-form objSeq should report wasDelta=false (got value %d), caller parses literal itself", got)
	}
	receiver.mu.Lock()
	receiver.objSeqs["node-a"] = 1000
	receiver.mu.Unlock()

	enc = sender.CompressObjSeq("node-a", 1001, "1001")
	got, err = receiver.DecompressObjSeq("node-a", enc)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if got != 1001 {
		t.Fatalf("expected reconstructed objSeq 1001, got %d via %q", got, enc)
	}
}
